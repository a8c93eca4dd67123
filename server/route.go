package server

import (
	"github.com/DaoCloud/listcache/api"
	"github.com/DaoCloud/listcache/common/constants"
	"github.com/DaoCloud/listcache/utils/prommonitor"
)

type HandleFunc func(r *api.ReqContext) interface{}

type route struct {
	path          string
	method        string
	handler       HandleFunc
	authRequired  bool
	successStatus int
	prefix        bool
}

var (
	routeHandles = []route{
		{
			path:          "/metrics",
			method:        "GET",
			handler:       prommonitor.PromHandler,
			successStatus: 200,
		},
		{
			path:          constants.APIPrefix,
			method:        "GET",
			handler:       api.ListCollections,
			authRequired:  true,
			successStatus: 200,
		},
		{
			path:          constants.APIPrefix + "/{collection}",
			method:        "GET",
			handler:       api.ListCollection,
			authRequired:  true,
			successStatus: 200,
		},
		{
			path:          constants.APIPrefix + "/{collection}/{id}",
			method:        "GET",
			handler:       api.GetItem,
			authRequired:  true,
			successStatus: 200,
		},
	}
	// mutationRoutes let tests change server data under a running list view.
	mutationRoutes = []route{
		{
			path:          constants.APIPrefix + "/{collection}",
			method:        "POST",
			handler:       api.PutItem,
			authRequired:  true,
			successStatus: 201,
		},
		{
			path:          constants.APIPrefix + "/{collection}",
			method:        "PUT",
			handler:       api.PutItem,
			authRequired:  true,
			successStatus: 200,
		},
		{
			path:          constants.APIPrefix + "/{collection}/{id}",
			method:        "DELETE",
			handler:       api.DeleteItem,
			authRequired:  true,
			successStatus: 200,
		},
	}
)
