package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/DaoCloud/listcache/api"
	"github.com/DaoCloud/listcache/common"
	"github.com/DaoCloud/listcache/common/constants"
	"github.com/DaoCloud/listcache/log"
	"github.com/DaoCloud/listcache/store"
	"github.com/DaoCloud/listcache/utils/prommonitor"
)

type Server interface {
	Run() error
	Stop() error
	ResetStore(store store.Store)
	Handler() http.Handler
}

type Options struct {
	ListenAddr string
	// Mutable exposes POST, PUT and DELETE on collections.
	Mutable bool
}

type muxServer struct {
	ListenAddr string
	router     *mux.Router
	server     *http.Server
	storeLock  sync.RWMutex
	store      store.Store
}

type statusWriter struct {
	http.ResponseWriter
	status int
	length int
}

func (w *statusWriter) flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
	w.flush()
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = 200
	}
	n, err := w.ResponseWriter.Write(b)
	w.flush()
	w.length += n
	return n, err
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := time.Now()
		sw := statusWriter{
			ResponseWriter: w,
			status:         0,
			length:         0,
		}
		next.ServeHTTP(&sw, r)
		if collection, ok := mux.Vars(r)["collection"]; ok {
			prommonitor.Requests.WithLabelValues(collection, strconv.Itoa(sw.status)).Inc()
		}
		log.AccessLog.WithFields(log.Fields{
			"type":           "access",
			"method":         r.Method,
			"path":           r.RequestURI,
			"req_time":       time.Since(st),
			"status":         sw.status,
			"content_length": sw.length,
		}).Print()
	})
}

func NewMuxServer(opts Options, s store.Store, externalRouter ...func(*mux.Router)) Server {
	ser := muxServer{
		store:      s,
		ListenAddr: opts.ListenAddr,
		router:     mux.NewRouter(),
	}
	for _, h := range externalRouter {
		h(ser.router)
	}
	ser.registerRoutes(ser.router, routeHandles)
	if opts.Mutable {
		ser.registerRoutes(ser.router, mutationRoutes)
	}
	ser.router.Use(loggingMiddleware)
	return &ser
}

func (m *muxServer) Handler() http.Handler {
	return m.router
}

func (m *muxServer) Run() error {
	m.server = &http.Server{
		Addr:         m.ListenAddr,
		Handler:      m.router,
		ReadTimeout:  30 * time.Minute,
		WriteTimeout: 30 * time.Minute,
	}
	log.Infof("starting server at %v", m.ListenAddr)
	return m.server.ListenAndServe()
}

func (m *muxServer) Stop() error {
	if m.server == nil {
		return fmt.Errorf("server not start ever")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	log.Infof("shutting down the server...")
	return m.server.Shutdown(ctx)
}

func (m *muxServer) ResetStore(s store.Store) {
	m.storeLock.Lock()
	defer m.storeLock.Unlock()
	m.store = s
}

func (m *muxServer) currentStore() store.Store {
	m.storeLock.RLock()
	defer m.storeLock.RUnlock()
	return m.store
}

func jsonResp(writer http.ResponseWriter, status int, v interface{}) {
	b, _ := json.Marshal(v)
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	writer.Write(b)
}

func authorized(r *http.Request) bool {
	token := common.GetConfig().Token
	return token == "" || r.Header.Get(constants.AuthHeader) == constants.BearerPrefix+token
}

func (m *muxServer) registerRoutes(router *mux.Router, handleRoutes []route) {
	for _, r := range handleRoutes {
		func(route route) {
			var rt *mux.Route
			if route.prefix {
				rt = router.PathPrefix(route.path)
			} else {
				rt = router.Path(route.path)
				if route.method != "" {
					rt = rt.Methods(route.method)
				} else {
					rt = rt.Methods("GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS", "HEAD")
				}
			}
			rt.HandlerFunc(func(writer http.ResponseWriter, r *http.Request) {
				defer func() {
					// deal 500 error
					if err := recover(); err != nil {
						log.Errorf("%s:%s request error: %v", r.Method, route.path, err)
						debug.PrintStack()
						jsonResp(writer, http.StatusInternalServerError, v1.Status{
							TypeMeta: v1.TypeMeta{Kind: "Status", APIVersion: "v1"},
							Status:   v1.StatusFailure,
							Message:  fmt.Sprint(err),
							Reason:   v1.StatusReasonInternalError,
							Code:     http.StatusInternalServerError,
						})
					}
				}()
				if route.authRequired && !authorized(r) {
					jsonResp(writer, http.StatusUnauthorized, v1.Status{
						TypeMeta: v1.TypeMeta{Kind: "Status", APIVersion: "v1"},
						Status:   v1.StatusFailure,
						Message:  "token missing or error",
						Reason:   v1.StatusReasonUnauthorized,
						Code:     http.StatusUnauthorized,
					})
					return
				}
				var res interface{}
				res = route.handler(&api.ReqContext{
					Store:   m.currentStore(),
					Request: r,
					Writer:  writer,
				})
				if res == nil {
					return
				}
				var status int
				switch res.(type) {
				case error:
					log.Errorf("request return a unexpected error: %v", res)
					panic(res)
				case v1.Status:
					status = int(res.(v1.Status).Code)
				case *v1.Status:
					status = int(res.(*v1.Status).Code)
				case string:
					writer.Write([]byte(res.(string)))
					return
				case []byte:
					writer.Write(res.([]byte))
					return
				default:
					status = route.successStatus
				}
				jsonResp(writer, status, res)
			})
		}(r)
	}
}
