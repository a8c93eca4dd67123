package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/DaoCloud/listcache/common/constants"
	"github.com/DaoCloud/listcache/filter"
	"github.com/DaoCloud/listcache/log"
	"github.com/DaoCloud/listcache/order"
	"github.com/DaoCloud/listcache/page"
	"github.com/DaoCloud/listcache/store"
)

func getCollectionFromReq(req *http.Request) string {
	return mux.Vars(req)["collection"]
}

// errorResp fills a Status; the router writes it with err.Code.
func errorResp(err v1.Status) interface{} {
	err.Kind = "Status"
	err.APIVersion = "v1"
	err.Status = v1.StatusFailure
	return err
}

func notFound(format string, args ...interface{}) interface{} {
	return errorResp(v1.Status{
		Message: fmt.Sprintf(format, args...),
		Reason:  v1.StatusReasonNotFound,
		Code:    http.StatusNotFound,
	})
}

func badRequest(err error) interface{} {
	return errorResp(v1.Status{
		Message: err.Error(),
		Reason:  v1.StatusReasonBadRequest,
		Code:    http.StatusBadRequest,
	})
}

// ParseQuery reads a list request. The `q` parameter carries the whole
// encoded page.Query; otherwise offset, limit, sort ("a asc, b desc") and
// filter (selector expression) are read one by one. A missing limit
// returns every row.
func ParseQuery(r *http.Request) (page.Query, error) {
	values := r.URL.Query()
	if q := values.Get(constants.QueryParam); q != "" {
		return page.DecodeQuery(q)
	}
	q := page.Query{Limit: page.Unbounded}
	if s := values.Get(constants.OffsetParam); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, fmt.Errorf("invalid offset `%s`", s)
		}
		q.Offset = n
	}
	if s := values.Get(constants.LimitParam); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < page.Unbounded {
			return q, fmt.Errorf("invalid limit `%s`", s)
		}
		q.Limit = n
	}
	if s := values.Get(constants.SortParam); s != "" {
		l, err := order.Parse(s)
		if err != nil {
			return q, err
		}
		q.Sort = l
	}
	if s := values.Get(constants.FilterParam); s != "" {
		fs, err := filter.ParseExpression(s)
		if err != nil {
			return q, err
		}
		q.Filters = fs
	}
	return q, nil
}

func ListCollection(r *ReqContext) interface{} {
	collection := getCollectionFromReq(r.Request)
	if !r.Store.IsStoreCollection(collection) {
		return notFound("collection %s not found", collection)
	}
	q, err := ParseQuery(r.Request)
	if err != nil {
		return badRequest(err)
	}
	res, err := r.Store.Query(collection, q)
	if err != nil {
		return badRequest(err)
	}
	log.Debugf("list %s [%d, +%d) filters %v sort %q: %d/%d", collection, q.Offset, q.Limit, q.Filters, q.Sort.String(), len(res.Items), res.Total)
	return res
}

func ListCollections(r *ReqContext) interface{} {
	return map[string][]string{
		"collections": r.Store.Collections(),
	}
}

func GetItem(r *ReqContext) interface{} {
	collection := getCollectionFromReq(r.Request)
	id := mux.Vars(r.Request)["id"]
	res := r.Store.Get(collection, id)
	if res == nil {
		return notFound("%s/%s not found", collection, id)
	}
	return res
}

// PutItem creates or replaces the entity in the request body.
func PutItem(r *ReqContext) interface{} {
	collection := getCollectionFromReq(r.Request)
	if !r.Store.IsStoreCollection(collection) {
		return notFound("collection %s not found", collection)
	}
	obj := map[string]interface{}{}
	if err := json.NewDecoder(r.Request.Body).Decode(&obj); err != nil {
		return badRequest(fmt.Errorf("decode body: %w", err))
	}
	if err := r.Store.OnResourceModified(collection, obj); err != nil {
		if errors.Is(err, store.ErrMissingID) {
			return badRequest(err)
		}
		panic(err)
	}
	return obj
}

func DeleteItem(r *ReqContext) interface{} {
	collection := getCollectionFromReq(r.Request)
	id := mux.Vars(r.Request)["id"]
	obj := r.Store.Get(collection, id)
	if obj == nil {
		return notFound("%s/%s not found", collection, id)
	}
	if err := r.Store.OnResourceDeleted(collection, obj); err != nil {
		panic(err)
	}
	return v1.Status{
		Status: v1.StatusSuccess,
		Code:   http.StatusOK,
	}
}
