package memory

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/template"

	"github.com/samber/lo"
	"k8s.io/client-go/util/jsonpath"

	"github.com/DaoCloud/listcache/common"
	"github.com/DaoCloud/listcache/log"
	"github.com/DaoCloud/listcache/order"
	"github.com/DaoCloud/listcache/page"
	"github.com/DaoCloud/listcache/store"
	"github.com/DaoCloud/listcache/utils"
	"github.com/DaoCloud/listcache/utils/prommonitor"
)

type syncResourceStore[K comparable, V any] struct {
	lock      sync.RWMutex
	resources map[K]*V
}

func (s *syncResourceStore[K, V]) Set(key K, value V) {
	s.lock.Lock()
	if s.resources == nil {
		s.resources = make(map[K]*V)
	}
	s.resources[key] = &value
	s.lock.Unlock()
}

func (s *syncResourceStore[K, V]) Init(key K) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.resources == nil {
		s.resources = make(map[K]*V)
	}
	if _, ok := s.resources[key]; ok {
		return
	}
	s.resources[key] = new(V)
}

func (s *syncResourceStore[K, V]) Clean() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.resources = make(map[K]*V)
}

func (s *syncResourceStore[K, V]) Get(key K) *V {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.resources[key]
}

func (s *syncResourceStore[K, V]) Exists(key K) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	_, ok := s.resources[key]
	return ok
}

func (s *syncResourceStore[K, V]) Delete(key K) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.resources, key)
}

// Values returns copies, safe to sort while the store keeps changing.
func (s *syncResourceStore[K, V]) Values() []V {
	s.lock.RLock()
	defer s.lock.RUnlock()
	res := make([]V, 0, len(s.resources))
	for _, v := range s.resources {
		res = append(res, *v)
	}
	return res
}

func (s *syncResourceStore[K, V]) Keys() []K {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return lo.Keys(s.resources)
}

func (s *syncResourceStore[K, V]) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.resources)
}

type collectionName string

type memoryStore struct {
	collections map[string]common.Collection
	// resourceMap collection - id
	resourceMap syncResourceStore[
		collectionName,
		syncResourceStore[string, store.Object],
	]
}

func NewMemoryStore(collections []common.Collection) store.Store {
	s := memoryStore{
		collections: map[string]common.Collection{},
	}
	for _, c := range collections {
		s.collections[c.Name] = c
		s.resourceMap.Init(collectionName(c.Name))
	}
	return &s
}

func (m *memoryStore) objects(collection string) (*syncResourceStore[string, store.Object], error) {
	objs := m.resourceMap.Get(collectionName(collection))
	if objs == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrCollectionNotFound, collection)
	}
	return objs, nil
}

func (m *memoryStore) IsStoreCollection(collection string) bool {
	return m.resourceMap.Exists(collectionName(collection))
}

func (m *memoryStore) Collections() []string {
	res := lo.Map(m.resourceMap.Keys(), func(c collectionName, _ int) string {
		return string(c)
	})
	sort.Strings(res)
	return res
}

func (m *memoryStore) Clean(collection string) error {
	objs, err := m.objects(collection)
	if err != nil {
		return err
	}
	objs.Clean()
	prommonitor.Resources.WithLabelValues(collection).Set(0)
	return nil
}

func (m *memoryStore) OnResourceAdded(collection string, obj interface{}) error {
	return m.put(collection, obj)
}

func (m *memoryStore) OnResourceModified(collection string, obj interface{}) error {
	return m.put(collection, obj)
}

func (m *memoryStore) put(collection string, obj interface{}) error {
	objs, err := m.objects(collection)
	if err != nil {
		return err
	}
	o := m.buildResourceWithIndex(m.collections[collection], obj)
	if o.ID == "" {
		return fmt.Errorf("%w: collection %s, id field %s", store.ErrMissingID, collection, m.collections[collection].IDField)
	}
	objs.Set(o.ID, o)
	prommonitor.Resources.WithLabelValues(collection).Set(float64(objs.Len()))
	return nil
}

func (m *memoryStore) OnResourceDeleted(collection string, obj interface{}) error {
	objs, err := m.objects(collection)
	if err != nil {
		return err
	}
	o := m.buildResourceWithIndex(m.collections[collection], obj)
	objs.Delete(o.ID)
	prommonitor.Resources.WithLabelValues(collection).Set(float64(objs.Len()))
	return nil
}

func (m *memoryStore) Get(collection string, id string) interface{} {
	objs, err := m.objects(collection)
	if err != nil {
		return nil
	}
	if o := objs.Get(id); o != nil {
		return o.Obj
	}
	return nil
}

// sortObjs sorts by the given fields, then by id so that pages never
// overlap. Values are compared as numbers or times when both sides parse.
func sortObjs(objs []store.Object, sorts order.List) ([]store.Object, error) {
	if len(objs) == 0 {
		return objs, nil
	}
	for _, s := range sorts {
		if !lo.SomeBy(objs, func(o store.Object) bool {
			_, ok := o.Index[s.Field]
			return ok
		}) {
			return objs, fmt.Errorf("unexpected sort key: %s", s.Field)
		}
	}
	sort.SliceStable(objs, func(i, j int) bool {
		for _, s := range sorts {
			c := compareIndex(objs[i].Index[s.Field], objs[j].Index[s.Field])
			if c == 0 {
				continue
			}
			if s.Direction == order.DESC {
				return c > 0
			}
			return c < 0
		}
		return objs[i].ID < objs[j].ID
	})
	return objs, nil
}

func (m *memoryStore) Query(collection string, q page.Query) (store.QueryResult, error) {
	res := store.QueryResult{Items: []interface{}{}}
	objs, err := m.objects(collection)
	if err != nil {
		return res, err
	}
	if q.Offset < 0 || q.Limit < page.Unbounded {
		return res, fmt.Errorf("invalid window: offset %d, limit %d", q.Offset, q.Limit)
	}
	resources := lo.Filter(objs.Values(), func(o store.Object, _ int) bool {
		return matchAll(o.Index, q.Filters)
	})
	resources, err = sortObjs(resources, q.Sort)
	if err != nil {
		return res, err
	}
	l := len(resources)
	res.Total = l
	start, end := q.Offset, l
	if start > l {
		start = l
	}
	if q.Limit != page.Unbounded && q.Limit < end-start {
		end = start + q.Limit
	}
	for _, r := range resources[start:end] {
		res.Items = append(res.Items, r.Obj)
	}
	return res, nil
}

var funMap = map[string]interface{}{
	"default": func(def string, pre interface{}) string {
		if pre == nil {
			return def
		}
		return fmt.Sprintf("%v", pre)
	},
	"quote": func(pre interface{}) string {
		return fmt.Sprintf("%q", pre)
	},
	"join": func(sep string, ins ...string) string {
		return strings.Join(ins, sep)
	},
}

// buildResourceWithIndex indexes every top level scalar field under its own
// name, then evaluates the configured index expressions on top of them.
func (m *memoryStore) buildResourceWithIndex(col common.Collection, obj interface{}) store.Object {
	s := store.Object{
		Index: map[string]string{},
		Obj:   obj,
	}
	mobj := utils.Obj2JSONMap(obj)
	for k, v := range mobj {
		if text, ok := scalarText(v); ok {
			s.Index[k] = text
		}
	}
	jp := jsonpath.New("parser")
	jp.AllowMissingKeys(true)
	gotmpl := template.New("parser").Funcs(funMap)
	for k, v := range col.Index {
		w := bytes.NewBuffer([]byte{})
		var exec interface {
			Execute(wr io.Writer, data interface{}) error
		}
		var err error
		if strings.Contains(v, "{{") {
			// go template
			exec, err = gotmpl.Parse(v)
		} else if !strings.Contains(v, "{") {
			// raw string
			s.Index[k] = v
			continue
		} else {
			// json path
			err = jp.Parse(v)
			exec = jp
		}
		if err != nil {
			log.Errorf("parse index expression %s of %s error: %v", k, col.Name, err)
			s.Index[k] = w.String()
			continue
		}
		err = exec.Execute(w, mobj)
		if err != nil {
			log.Warnf("exec index expression error: %v, %v", obj, err)
		}
		s.Index[k] = w.String()
	}
	s.ID = s.Index[col.IDField]
	log.Debugf("memory store: collection: %s, id %s, index: %v", col.Name, s.ID, s.Index)
	return s
}

func scalarText(v interface{}) (string, bool) {
	switch vv := v.(type) {
	case string:
		return vv, true
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(vv), true
	}
	return "", false
}
