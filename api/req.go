package api

import (
	"net/http"

	"github.com/DaoCloud/listcache/store"
)

type ReqContext struct {
	Store   store.Store
	Request *http.Request
	Writer  http.ResponseWriter
}
