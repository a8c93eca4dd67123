package page

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/DaoCloud/listcache/filter"
	"github.com/DaoCloud/listcache/order"
)

// Unbounded is the limit used to download every matching row.
const Unbounded = -1

// Window is the page the UI is displaying. Page starts with 0.
type Window struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func (w Window) Offset() int {
	return w.Page * w.PageSize
}

// Bounds returns the absolute row range [lo, hi) of the window, clipped to total.
func (w Window) Bounds(total int) (int, int) {
	lo := w.Offset()
	hi := lo + w.PageSize
	if hi > total {
		hi = total
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// ClampPage returns the last page still holding rows when page points past
// total, e.g. after the last row of the last page was deleted.
func ClampPage(page, pageSize, total int) int {
	if page < 0 || pageSize <= 0 || total <= 0 {
		return 0
	}
	if page*pageSize >= total {
		return (total - 1) / pageSize
	}
	return page
}

// Pages is ceil(total / pageSize), at least 1.
func Pages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// Key is the filter and sort configuration deciding what the server returns
// for an offset/limit. Keys compare structurally.
type Key struct {
	Filters []filter.Descriptor `json:"filters"`
	Sort    order.List          `json:"sort"`
}

func NewKey(filters []filter.Descriptor, sort order.List) Key {
	k := Key{
		Filters: make([]filter.Descriptor, len(filters)),
		Sort:    make(order.List, len(sort)),
	}
	copy(k.Filters, filters)
	copy(k.Sort, sort)
	return k
}

// String is the canonical form of the key.
func (k Key) String() string {
	bs, _ := json.Marshal(NewKey(k.Filters, k.Sort))
	return string(bs)
}

func (k Key) Equal(o Key) bool {
	return k.String() == o.String()
}

// Query is what a fetch sends to the query executor.
type Query struct {
	Offset  int                 `json:"offset"`
	Limit   int                 `json:"limit"`
	Filters []filter.Descriptor `json:"filters,omitempty"`
	Sort    order.List          `json:"sort,omitempty"`
}

func NewQuery(offset, limit int, key Key) Query {
	return Query{
		Offset:  offset,
		Limit:   limit,
		Filters: key.Filters,
		Sort:    key.Sort,
	}
}

func (q Query) Key() Key {
	return NewKey(q.Filters, q.Sort)
}

// Result is one fetched page and the total number of matching rows.
type Result[E any] struct {
	Items []E `json:"items"`
	Total int `json:"total"`
}

var encoding = base64.StdEncoding.WithPadding(base64.NoPadding)

// EncodeQuery packs a query into a single token for the `q` parameter.
func EncodeQuery(q Query) (string, error) {
	bs, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	return encoding.EncodeToString(bs), nil
}

func DecodeQuery(s string) (Query, error) {
	q := Query{}
	bs, err := encoding.DecodeString(s)
	if err != nil {
		return q, fmt.Errorf("decode query: %w", err)
	}
	if err := json.Unmarshal(bs, &q); err != nil {
		return q, fmt.Errorf("decode query: %w", err)
	}
	if q.Offset < 0 {
		return q, fmt.Errorf("negative offset %d", q.Offset)
	}
	if q.Limit < Unbounded {
		return q, fmt.Errorf("invalid limit %d", q.Limit)
	}
	return q, nil
}
