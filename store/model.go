package store

import "errors"

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrMissingID          = errors.New("object has no id")
)

// Object is a stored entity with the index values extracted from it.
type Object struct {
	ID    string
	Index map[string]string
	Obj   interface{}
}

type QueryResult struct {
	Items []interface{} `json:"items"`
	Total int           `json:"total"`
}
