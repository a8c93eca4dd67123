package fake

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/gorilla/mux"

	"github.com/DaoCloud/listcache/common"
	"github.com/DaoCloud/listcache/server"
	"github.com/DaoCloud/listcache/store"
	"github.com/DaoCloud/listcache/store/memory"
	"github.com/DaoCloud/listcache/watcher"
)

type fakeServer struct {
	cfg       *common.Config
	store     store.Store
	ser       *httptest.Server
	eventChan chan Event
}

// NewFakeServer starts a mutable server for the YAML or JSON config. The
// token is ignored and fixtures are loaded, but not watched for changes.
func NewFakeServer(config string) (Server, error) {
	cfg, err := common.ParseConfig([]byte(config))
	if err != nil {
		return nil, err
	}
	cfg.Token = ""
	common.InitConfig(cfg)
	m := memory.NewMemoryStore(cfg.Collections)
	s := fakeServer{
		cfg:       cfg,
		store:     m,
		eventChan: make(chan Event, 100),
	}
	for _, col := range cfg.Collections {
		items, err := watcher.LoadCollection(col)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if err := m.OnResourceAdded(col.Name, it); err != nil {
				return nil, err
			}
		}
	}
	ser := server.NewMuxServer(server.Options{Mutable: true}, m, s.registerFakeRoute)
	s.ser = httptest.NewServer(ser.Handler())
	return &s, nil
}

func NewFakeServerWithConfigPath(cfgPath string) (Server, error) {
	bs, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, err
	}
	return NewFakeServer(string(bs))
}

func (s *fakeServer) Stop() {
	s.ser.Close()
}

func (s *fakeServer) URL() string {
	return s.ser.URL
}

func (s *fakeServer) Store() store.Store {
	return s.store
}

func (s *fakeServer) Events() <-chan Event {
	return s.eventChan
}

func (s *fakeServer) registerFakeRoute(r *mux.Router) {
	r.Use(s.eventMiddleware)
}

type codeWriter struct {
	http.ResponseWriter
	code int
}

func (w *codeWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// eventMiddleware reports every successful mutation on Events.
func (s *fakeServer) eventMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, r *http.Request) {
		action := EventActionError
		switch r.Method {
		case "POST":
			action = EventActionAdd
		case "PUT":
			action = EventActionUpdate
		case "DELETE":
			action = EventActionDelete
		default:
			next.ServeHTTP(writer, r)
			return
		}
		collection := mux.Vars(r)["collection"]
		id := mux.Vars(r)["id"]
		if id == "" {
			bs, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(bs))
			obj := map[string]interface{}{}
			json.Unmarshal(bs, &obj)
			if col, ok := s.cfg.Collection(collection); ok {
				if v, ok := obj[col.IDField].(string); ok {
					id = v
				}
			}
		}
		w := &codeWriter{ResponseWriter: writer, code: http.StatusOK}
		next.ServeHTTP(w, r)
		if w.code >= http.StatusBadRequest {
			action = EventActionError
		}
		select {
		case s.eventChan <- Event{EventAction: action, Collection: collection, ID: id}:
		default:
		}
	})
}
