package store

import (
	"github.com/DaoCloud/listcache/page"
)

// Store answers page queries over named collections of entities.
type Store interface {
	IsStoreCollection(collection string) bool
	Collections() []string
	Clean(collection string) error
	OnResourceAdded(collection string, obj interface{}) error
	OnResourceModified(collection string, obj interface{}) error
	OnResourceDeleted(collection string, obj interface{}) error
	// Query filters and sorts the collection and returns the rows of
	// [Offset, Offset+Limit) with the total number of matching rows.
	// A Limit of page.Unbounded returns every matching row.
	Query(collection string, q page.Query) (QueryResult, error)
	Get(collection string, id string) interface{}
}
