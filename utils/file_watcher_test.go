package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// compact drops consecutive duplicates; one write may be reported twice.
func compact(es []Event) []Event {
	res := []Event{}
	for _, e := range es {
		if len(res) > 0 && res[len(res)-1] == e {
			continue
		}
		res = append(res, e)
	}
	return res
}

func TestFixedFileWatcher_Events(t *testing.T) {
	recheckDelay = 500 * time.Millisecond
	dir := t.TempDir()
	f1 := filepath.Join(dir, "fixtures-1.yaml")
	f2 := filepath.Join(dir, "fixtures-2.yaml")
	cases := []struct {
		name       string
		files      []string
		init       func()
		events     func(w FixedFileWatcher)
		wantEvents []Event
	}{
		{
			name:  "normal",
			files: []string{f1},
			init: func() {
				os.WriteFile(f1, []byte("test"), 0644)
			},
			events: func(w FixedFileWatcher) {
				os.WriteFile(f1, []byte("test-1"), 0644)
				time.Sleep(time.Second)
				w.Close()
			},
			wantEvents: []Event{
				{
					Name: f1,
					Type: EventTypeChanged,
				},
			},
		},
		{
			name:  "multiple files",
			files: []string{f1, f2},
			init: func() {
				os.WriteFile(f1, []byte("test"), 0644)
				os.WriteFile(f2, []byte("test"), 0644)
			},
			events: func(w FixedFileWatcher) {
				os.WriteFile(f1, []byte("test-1"), 0644)
				time.Sleep(time.Second)
				os.WriteFile(f2, []byte("test-2"), 0644)
				time.Sleep(time.Second)
				w.Close()
			},
			wantEvents: []Event{
				{
					Name: f1,
					Type: EventTypeChanged,
				},
				{
					Name: f2,
					Type: EventTypeChanged,
				},
			},
		},
		{
			name:  "remove and recreate",
			files: []string{f1},
			init: func() {
				os.WriteFile(f1, []byte("test"), 0644)
			},
			events: func(w FixedFileWatcher) {
				os.Remove(f1)
				time.Sleep(100 * time.Millisecond)
				os.WriteFile(f1, []byte("test-1"), 0644)
				time.Sleep(time.Second)
				w.Close()
			},
			wantEvents: []Event{
				{
					Name: f1,
					Type: EventTypeChanged,
				},
			},
		},
		{
			name:  "remove",
			files: []string{f1},
			init: func() {
				os.WriteFile(f1, []byte("test"), 0644)
			},
			events: func(w FixedFileWatcher) {
				os.Remove(f1)
				time.Sleep(time.Second)
				w.Close()
			},
			wantEvents: []Event{
				{
					Name: f1,
					Type: EventTypeError,
				},
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			c.init()
			w, err := NewFixedFileWatcher(c.files)
			require.NoError(t, err)
			defer func() {
				for _, f := range c.files {
					os.Remove(f)
				}
			}()
			es := []Event{}
			require.NoError(t, w.Start())
			stop := make(chan struct{})
			go func() {
				for e := range w.Events() {
					es = append(es, e)
				}
				close(stop)
			}()
			c.events(w)
			<-stop
			assert.Equal(t, c.wantEvents, compact(es))
		})
	}
}

func TestFixedFileWatcher_Missing(t *testing.T) {
	_, err := NewFixedFileWatcher([]string{filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}
