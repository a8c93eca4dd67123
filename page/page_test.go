package page

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaoCloud/listcache/filter"
	"github.com/DaoCloud/listcache/order"
)

func TestClampPage(t *testing.T) {
	cases := []struct {
		name     string
		page     int
		pageSize int
		total    int
		out      int
	}{
		{
			name:     "inside",
			page:     1,
			pageSize: 10,
			total:    25,
			out:      1,
		},
		{
			name:     "last partial page",
			page:     2,
			pageSize: 10,
			total:    25,
			out:      2,
		},
		{
			name:     "shrunk below page",
			page:     2,
			pageSize: 10,
			total:    20,
			out:      1,
		},
		{
			name:     "far past the end",
			page:     9,
			pageSize: 10,
			total:    3,
			out:      0,
		},
		{
			name:     "empty",
			page:     3,
			pageSize: 10,
			total:    0,
			out:      0,
		},
		{
			name:     "negative page",
			page:     -1,
			pageSize: 10,
			total:    30,
			out:      0,
		},
	}
	for i, c := range cases {
		t.Run(fmt.Sprintf("%d---%s", i, c.name), func(t *testing.T) {
			assert.Equal(t, c.out, ClampPage(c.page, c.pageSize, c.total))
		})
	}
}

func TestWindowBounds(t *testing.T) {
	w := Window{Page: 2, PageSize: 10}
	assert.Equal(t, 20, w.Offset())
	lo, hi := w.Bounds(23)
	assert.Equal(t, 20, lo)
	assert.Equal(t, 23, hi)
	lo, hi = w.Bounds(15)
	assert.Equal(t, 15, lo)
	assert.Equal(t, 15, hi)
	assert.Equal(t, 3, Pages(23, 10))
	assert.Equal(t, 1, Pages(0, 10))
}

func TestKeyEqual(t *testing.T) {
	a := NewKey(nil, nil)
	b := Key{Filters: []filter.Descriptor{}, Sort: order.List{}}
	assert.True(t, a.Equal(b))

	f := []filter.Descriptor{{Field: "site", Operator: filter.OpEquals, Value: filter.String("north")}}
	c := NewKey(f, order.List{}.Toggle("name"))
	d := NewKey(f, order.List{}.Toggle("name"))
	assert.True(t, c.Equal(d))
	assert.False(t, a.Equal(c))
	assert.False(t, c.Equal(NewKey(f, c.Sort.Toggle("name"))))

	// the key does not alias the caller's slices
	f[0].Field = "owner"
	assert.Equal(t, "site", c.Filters[0].Field)
}

func TestEncodeQuery(t *testing.T) {
	cases := []struct {
		name string
		in   Query
	}{
		{
			name: "window only",
			in:   Query{Offset: 10, Limit: 10},
		},
		{
			name: "unbounded",
			in:   Query{Limit: Unbounded},
		},
		{
			name: "filters and sort",
			in: Query{
				Offset: 20,
				Limit:  5,
				Filters: []filter.Descriptor{
					{Field: "notes", Operator: filter.OpIsEmpty, Value: filter.None{}},
					{Field: "height", Operator: filter.OpBetween, Value: filter.Range{From: filter.Number(1), To: filter.Number(3)}},
				},
				Sort: order.List{{Field: "name", Direction: order.DESC}},
			},
		},
	}
	for i, c := range cases {
		t.Run(fmt.Sprintf("%d---%s", i, c.name), func(t *testing.T) {
			s, err := EncodeQuery(c.in)
			require.NoError(t, err)
			out, err := DecodeQuery(s)
			require.NoError(t, err)
			assert.Equal(t, c.in.Offset, out.Offset)
			assert.Equal(t, c.in.Limit, out.Limit)
			assert.True(t, c.in.Key().Equal(out.Key()))
		})
	}
}

func TestDecodeQueryErrors(t *testing.T) {
	for i, s := range []string{
		"%%%",
		// not json
		"bm90IGpzb24",
		// {"offset":-1,"limit":1}
		"eyJvZmZzZXQiOi0xLCJsaW1pdCI6MX0",
	} {
		t.Run(fmt.Sprintf("%d---%s", i, s), func(t *testing.T) {
			_, err := DecodeQuery(s)
			assert.Error(t, err)
		})
	}
}
