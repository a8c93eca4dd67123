package watcher

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"sigs.k8s.io/yaml"

	"github.com/DaoCloud/listcache/common"
	"github.com/DaoCloud/listcache/log"
	"github.com/DaoCloud/listcache/store"
	"github.com/DaoCloud/listcache/utils"
)

type Watcher interface {
	Start() error
	Stop() error
}

// fixtureNamespace seeds the ids generated for fixture entities without one.
var fixtureNamespace = uuid.MustParse("6f0c5d7e-3b1a-4a53-9a43-0b8a2f1d7c11")

// watcher keeps the store in sync with the fixture files of each collection.
// A changed file reloads every collection reading it.
type watcher struct {
	collections []common.Collection
	store       store.Store
	fw          utils.FixedFileWatcher
	lock        sync.Mutex
	stop        chan struct{}
	stopOnce    sync.Once
}

func NewWatcher(collections []common.Collection, s store.Store) Watcher {
	return &watcher{
		collections: collections,
		store:       s,
		stop:        make(chan struct{}),
	}
}

// LoadFixture reads a YAML or JSON file holding a list of entities, or an
// object with the list under "items".
func LoadFixture(path string) ([]map[string]interface{}, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFixture(bs)
}

func ParseFixture(bs []byte) ([]map[string]interface{}, error) {
	var items []map[string]interface{}
	if err := yaml.Unmarshal(bs, &items); err == nil {
		return items, nil
	}
	wrapped := struct {
		Items []map[string]interface{} `json:"items"`
	}{}
	if err := yaml.Unmarshal(bs, &wrapped); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return wrapped.Items, nil
}

// LoadCollection reads every fixture of col. Entities without an id get one
// derived from their file and position, stable across reloads.
func LoadCollection(col common.Collection) ([]map[string]interface{}, error) {
	res := []map[string]interface{}{}
	for _, f := range col.Fixtures {
		items, err := LoadFixture(f)
		if err != nil {
			return nil, fmt.Errorf("load fixture %s of %s: %w", f, col.Name, err)
		}
		for i, item := range items {
			if v, ok := item[col.IDField]; !ok || v == nil || v == "" {
				item[col.IDField] = uuid.NewSHA1(fixtureNamespace, []byte(fmt.Sprintf("%s/%s#%d", col.Name, f, i))).String()
			}
		}
		log.Debugf("read %d %s from %s", len(items), col.Name, f)
		res = append(res, items...)
	}
	return res, nil
}

// Sync replaces the content of one collection with its fixtures. When a
// fixture can't be read the collection is left as it was.
func (w *watcher) Sync(col common.Collection) error {
	items, err := LoadCollection(col)
	if err != nil {
		return err
	}
	w.lock.Lock()
	defer w.lock.Unlock()
	if err := w.store.Clean(col.Name); err != nil {
		return err
	}
	for i, item := range items {
		if err := w.store.OnResourceAdded(col.Name, item); err != nil {
			return fmt.Errorf("add #%d of %s: %w", i, col.Name, err)
		}
	}
	log.Infof("loaded %d %s", len(items), col.Name)
	return nil
}

func (w *watcher) Start() error {
	files := []string{}
	seen := map[string]bool{}
	for _, col := range w.collections {
		if err := w.Sync(col); err != nil {
			return err
		}
		for _, f := range col.Fixtures {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	if len(files) == 0 {
		return nil
	}
	fw, err := utils.NewFixedFileWatcher(files)
	if err != nil {
		return err
	}
	if err := fw.Start(); err != nil {
		return err
	}
	w.fw = fw
	go func() {
		for {
			select {
			case e, open := <-fw.Events():
				if !open {
					return
				}
				if e.Type == utils.EventTypeError {
					log.Errorf("fixture %s is gone, keeping the loaded data", e.Name)
					continue
				}
				w.reload(e.Name)
			case <-w.stop:
				return
			}
		}
	}()
	return nil
}

func (w *watcher) reload(file string) {
	for _, col := range w.collections {
		for _, f := range col.Fixtures {
			if f != file {
				continue
			}
			if err := w.Sync(col); err != nil {
				log.Errorf("reload %s error: %v", col.Name, err)
			}
			break
		}
	}
}

func (w *watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		if w.fw != nil {
			err = w.fw.Close()
		}
	})
	return err
}
