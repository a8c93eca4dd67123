package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaoCloud/listcache/common"
	"github.com/DaoCloud/listcache/page"
	"github.com/DaoCloud/listcache/store/memory"
)

func TestParseFixture(t *testing.T) {
	cases := []struct {
		name string
		in   string
		out  int
		err  bool
	}{
		{
			name: "yaml list",
			in:   "- id: a\n  height: 3\n- id: b\n",
			out:  2,
		},
		{
			name: "json items",
			in:   `{"items": [{"id": "a"}]}`,
			out:  1,
		},
		{
			name: "empty",
			in:   "[]",
			out:  0,
		},
		{
			name: "scalar",
			in:   "oak",
			err:  true,
		},
	}
	for i, c := range cases {
		t.Run(fmt.Sprintf("%d---%s", i, c.name), func(t *testing.T) {
			items, err := ParseFixture([]byte(c.in))
			if c.err {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Len(t, items, c.out)
		})
	}
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "ponds.yaml")
	require.NoError(t, os.WriteFile(f, []byte("- id: p1\n  depth: 2\n- id: p2\n- depth: 7\n"), 0644))
	cols := []common.Collection{
		{Name: "ponds", IDField: "id", Index: map[string]string{"id": "{.id}"}, Fixtures: []string{f}},
	}
	s := memory.NewMemoryStore(cols)
	w := NewWatcher(cols, s)
	require.NoError(t, w.Start())
	defer w.Stop()

	res, err := s.Query("ponds", page.Query{Limit: page.Unbounded})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.NotNil(t, s.Get("ponds", "p1"))

	// the generated id survives a reload
	generated := ""
	for _, it := range res.Items {
		m := it.(map[string]interface{})
		if m["depth"] == float64(7) {
			generated = m["id"].(string)
		}
	}
	require.NotEmpty(t, generated)

	require.NoError(t, os.WriteFile(f, []byte("- id: p1\n- id: p3\n- depth: 7\n- id: p4\n"), 0644))
	assert.Eventually(t, func() bool {
		res, err := s.Query("ponds", page.Query{Limit: page.Unbounded})
		return err == nil && res.Total == 4
	}, 10*time.Second, 50*time.Millisecond)
	assert.Nil(t, s.Get("ponds", "p2"))
	assert.Eventually(t, func() bool {
		return s.Get("ponds", generated) != nil
	}, 10*time.Second, 50*time.Millisecond)
}

func TestWatcherBadFixture(t *testing.T) {
	cols := []common.Collection{
		{Name: "ponds", IDField: "id", Index: map[string]string{"id": "{.id}"}, Fixtures: []string{filepath.Join(t.TempDir(), "missing.yaml")}},
	}
	w := NewWatcher(cols, memory.NewMemoryStore(cols))
	assert.Error(t, w.Start())
}

func TestSyncKeepsDataOnBadFixture(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "north.yaml")
	other := filepath.Join(dir, "south.yaml")
	require.NoError(t, os.WriteFile(good, []byte("- id: p1\n- id: p2\n"), 0644))
	require.NoError(t, os.WriteFile(other, []byte("- id: p3\n"), 0644))
	cols := []common.Collection{
		{Name: "ponds", IDField: "id", Index: map[string]string{"id": "{.id}"}, Fixtures: []string{good, other}},
	}
	s := memory.NewMemoryStore(cols)
	w := NewWatcher(cols, s).(*watcher)
	require.NoError(t, w.Sync(cols[0]))

	require.NoError(t, os.WriteFile(other, []byte("oak"), 0644))
	assert.Error(t, w.Sync(cols[0]))
	res, err := s.Query("ponds", page.Query{Limit: page.Unbounded})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.NotNil(t, s.Get("ponds", "p3"))

	assert.NoError(t, w.Stop())
	assert.NotPanics(t, func() { w.Stop() })
}

func TestLoadCollection(t *testing.T) {
	f := filepath.Join(t.TempDir(), "ponds.yaml")
	require.NoError(t, os.WriteFile(f, []byte("- code: p1\n- depth: 7\n- code: \"\"\n"), 0644))
	col := common.Collection{Name: "ponds", IDField: "code", Fixtures: []string{f}}

	items, err := LoadCollection(col)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "p1", items[0]["code"])
	assert.NotEmpty(t, items[1]["code"])
	assert.NotEmpty(t, items[2]["code"])
	assert.NotEqual(t, items[1]["code"], items[2]["code"])

	again, err := LoadCollection(col)
	require.NoError(t, err)
	assert.Equal(t, items, again)
}
