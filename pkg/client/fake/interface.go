package fake

import (
	"github.com/DaoCloud/listcache/store"
)

type EventAction int

const (
	EventActionError  EventAction = 0
	EventActionAdd    EventAction = 1
	EventActionUpdate EventAction = 2
	EventActionDelete EventAction = 3
)

type Event struct {
	EventAction
	Collection string
	ID         string
}

// Server is an in-process collection server for tests. Its data can be
// changed through the HTTP API or Store while list views are reading it.
type Server interface {
	Events() <-chan Event
	URL() string
	Store() store.Store
	Stop()
}
