package cache

import (
	"errors"
	"fmt"

	"github.com/DaoCloud/listcache/page"
)

var (
	// ErrFetchNeeded means the window has at least one missing row.
	ErrFetchNeeded = errors.New("fetch needed")
	// ErrPageOutOfRange means the window starts at or after the total; the
	// caller should clamp the page with page.ClampPage and materialize again.
	ErrPageOutOfRange = errors.New("page out of range")
	// ErrStaleResponse is returned for a page fetched under an old query key.
	ErrStaleResponse = errors.New("stale response")
)

const (
	WipeQueryKey   = "query_key"
	WipeTotalDrift = "total_drift"
	WipeReset      = "reset"
)

const unknownTotal = -1

// Cache is a sparse mirror of what the server returns for one query key:
// absolute row index -> id -> entity, plus the total row count.
//
// A Cache is not safe for concurrent use; its owner serializes access.
type Cache[K comparable, E any] struct {
	idOf       func(E) K
	key        page.Key
	total      int
	indexToID  map[int]K
	idToIndex  map[K]int
	idToEntity map[K]E

	// OnWipe, if set, is called with the reason of every full wipe.
	OnWipe func(reason string)
}

func New[K comparable, E any](key page.Key, idOf func(E) K) *Cache[K, E] {
	c := &Cache[K, E]{
		idOf: idOf,
		key:  page.NewKey(key.Filters, key.Sort),
	}
	c.clear()
	return c
}

func (c *Cache[K, E]) clear() {
	c.total = unknownTotal
	c.indexToID = map[int]K{}
	c.idToIndex = map[K]int{}
	c.idToEntity = map[K]E{}
}

func (c *Cache[K, E]) wipe(reason string) {
	c.clear()
	if c.OnWipe != nil {
		c.OnWipe(reason)
	}
}

func (c *Cache[K, E]) Key() page.Key {
	return c.key
}

// Total returns the last reported total, false while it is unknown.
func (c *Cache[K, E]) Total() (int, bool) {
	return c.total, c.total != unknownTotal
}

// Len is the number of cached rows.
func (c *Cache[K, E]) Len() int {
	return len(c.indexToID)
}

// Get returns the cached entity at an absolute index.
func (c *Cache[K, E]) Get(index int) (E, bool) {
	var e E
	id, ok := c.indexToID[index]
	if !ok {
		return e, false
	}
	e, ok = c.idToEntity[id]
	return e, ok
}

// OnQueryKeyChanged drops everything and starts over for key. It never
// fetches; the next materialization does.
func (c *Cache[K, E]) OnQueryKeyChanged(key page.Key) {
	c.key = page.NewKey(key.Filters, key.Sort)
	c.wipe(WipeQueryKey)
}

// Reset drops every row but keeps the key.
func (c *Cache[K, E]) Reset() {
	c.wipe(WipeReset)
}

// OnPageFetched merges a fetched page starting at offset. A page fetched
// under another key is dropped with ErrStaleResponse. A total that differs
// from the known one wipes the cache before the page is merged.
func (c *Cache[K, E]) OnPageFetched(offset, limit int, items []E, total int, key page.Key) error {
	if !key.Equal(c.key) {
		return ErrStaleResponse
	}
	if offset < 0 || total < 0 {
		return fmt.Errorf("invalid page: offset %d, total %d", offset, total)
	}
	if c.total != unknownTotal && c.total != total {
		c.wipe(WipeTotalDrift)
	}
	c.total = total
	for j, e := range items {
		i := offset + j
		if i >= total || (limit != page.Unbounded && j >= limit) {
			break
		}
		id := c.idOf(e)
		if old, ok := c.idToIndex[id]; ok && old != i {
			// moved, e.g. a row was inserted before it
			delete(c.indexToID, old)
		}
		if prev, ok := c.indexToID[i]; ok && prev != id {
			delete(c.idToIndex, prev)
			delete(c.idToEntity, prev)
		}
		c.indexToID[i] = id
		c.idToIndex[id] = i
		c.idToEntity[id] = e
	}
	return nil
}

// Materialize returns the dense rows of w. It never returns a partial
// window: any missing row yields ErrFetchNeeded.
func (c *Cache[K, E]) Materialize(w page.Window) ([]E, error) {
	if w.PageSize <= 0 || w.Page < 0 {
		return nil, fmt.Errorf("invalid window: page %d, page size %d", w.Page, w.PageSize)
	}
	if c.total == unknownTotal {
		return nil, ErrFetchNeeded
	}
	lo, hi := w.Bounds(c.total)
	if w.Offset() >= c.total {
		if w.Page == 0 {
			return []E{}, nil
		}
		return nil, ErrPageOutOfRange
	}
	res := make([]E, 0, hi-lo)
	for i := lo; i < hi; i++ {
		e, ok := c.Get(i)
		if !ok {
			return nil, ErrFetchNeeded
		}
		res = append(res, e)
	}
	return res, nil
}
