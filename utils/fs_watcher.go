package utils

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DaoCloud/listcache/log"
)

// FixedFileWatcher reports changes of a fixed set of files, surviving the
// remove-then-create dance of editors and mounted ConfigMaps.
type FixedFileWatcher interface {
	io.Closer
	Start() error
	Events() <-chan Event
}

type Event struct {
	Name string
	Type EventType
}

type EventType int

const (
	EventTypeChanged = iota
	EventTypeError
)

// recheckDelay is how long a removed file gets to reappear.
var recheckDelay = time.Second * 2

type fixedFileWatcher struct {
	files     []string
	lock      sync.Mutex
	fswatcher *fsnotify.Watcher
	events    chan Event
	done      chan struct{}
}

func NewFixedFileWatcher(files []string) (FixedFileWatcher, error) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return nil, err
		}
	}
	return &fixedFileWatcher{
		files:  files,
		events: make(chan Event),
		done:   make(chan struct{}),
	}, nil
}

func (w *fixedFileWatcher) Start() error {
	ww, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, f := range w.files {
		if err := ww.Add(f); err != nil {
			ww.Close()
			return err
		}
	}
	w.lock.Lock()
	w.fswatcher = ww
	w.lock.Unlock()
	go w.run(ww)
	return nil
}

func (w *fixedFileWatcher) emit(e Event) bool {
	select {
	case w.events <- e:
		return true
	case <-w.done:
		return false
	}
}

func (w *fixedFileWatcher) run(ww *fsnotify.Watcher) {
	defer close(w.events)
	for {
		select {
		case <-w.done:
			return
		case err, open := <-ww.Errors:
			if !open {
				return
			}
			log.Warnf("fs watcher error: %v", err)
		case e, open := <-ww.Events:
			if !open {
				log.Info("fs watcher closed")
				return
			}
			log.Debugf("get file watcher event: %v", e)
			switch {
			case e.Has(fsnotify.Write), e.Has(fsnotify.Create):
				// do reload
			case e.Has(fsnotify.Remove), e.Has(fsnotify.Rename):
				// the file is deleted and created again on update, e.g. a
				// ConfigMap mount, so watch it again once it is back
				ww.Remove(e.Name)
				select {
				case <-time.After(recheckDelay):
				case <-w.done:
					return
				}
				if err := ww.Add(e.Name); err != nil {
					log.Errorf("add watcher for %s error: %v", e.Name, err)
					if !w.emit(Event{Name: e.Name, Type: EventTypeError}) {
						return
					}
					continue
				}
				// do reload
			default:
				// do not reload
				continue
			}
			if !w.emit(Event{Name: e.Name, Type: EventTypeChanged}) {
				return
			}
		}
	}
}

func (w *fixedFileWatcher) Close() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	if w.fswatcher != nil {
		return w.fswatcher.Close()
	}
	// never started
	close(w.events)
	return nil
}

func (w *fixedFileWatcher) Events() <-chan Event {
	return w.events
}
