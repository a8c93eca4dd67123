package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/DaoCloud/listcache/cache"
	"github.com/DaoCloud/listcache/common/constants"
	"github.com/DaoCloud/listcache/dispatch"
	"github.com/DaoCloud/listcache/filter"
	"github.com/DaoCloud/listcache/log"
	"github.com/DaoCloud/listcache/order"
	"github.com/DaoCloud/listcache/page"
	"github.com/DaoCloud/listcache/utils/prommonitor"
)

type Options struct {
	// Name labels logs and metrics of the view.
	Name     string
	PageSize int
	Debounce time.Duration
	Clock    clock.WithDelayedExecution
	// OnError receives transport errors. The rows shown stay as they were.
	OnError func(error)
	// OnUpdate is called after a fetched page was merged, so the caller can
	// render Rows again.
	OnUpdate func()
}

// Rows is what a list screen renders: the dense rows of Window, or Loading.
// Total is -1 while unknown.
type Rows[E any] struct {
	Items   []E
	Loading bool
	Window  page.Window
	Total   int
}

// View owns the filters, sort, window and cache of one list screen.
// Every view has its own cache; views never share rows.
type View[K comparable, E any] struct {
	lock       sync.Mutex
	opts       Options
	fetch      dispatch.FetchFunc[E]
	filters    *filter.Set
	sort       order.List
	window     page.Window
	cache      *cache.Cache[K, E]
	dispatcher *dispatch.Dispatcher[E]
	closed     bool
}

func New[K comparable, E any](fetch dispatch.FetchFunc[E], idOf func(E) K, opts Options) *View[K, E] {
	if opts.PageSize <= 0 {
		opts.PageSize = constants.DefaultPageSize
	}
	if opts.Debounce <= 0 {
		opts.Debounce = constants.DefaultDebounce
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	v := &View[K, E]{
		opts:   opts,
		fetch:  fetch,
		sort:   order.List{},
		window: page.Window{PageSize: opts.PageSize},
		cache:  cache.New[K, E](page.NewKey(nil, nil), idOf),
	}
	v.filters = filter.NewSet(v.keyChanged)
	v.cache.OnWipe = func(reason string) {
		prommonitor.CacheWipes.WithLabelValues(opts.Name, reason).Inc()
		log.Debugf("view %s: cache wiped (%s)", opts.Name, reason)
	}
	v.dispatcher = dispatch.New[E](fetch, dispatch.Options[E]{
		Name:     opts.Name,
		Delay:    opts.Debounce,
		Clock:    opts.Clock,
		OnResult: v.onResult,
		OnError:  v.onError,
	})
	return v
}

// keyChanged runs with the lock held, on every filter or sort change.
func (v *View[K, E]) keyChanged() {
	v.window.Page = 0
	v.cache.OnQueryKeyChanged(page.NewKey(v.filters.All(), v.sort))
}

// SetFilter applies one widget state. It returns the active descriptor, or
// nil when the filter was removed or rejected.
func (v *View[K, E]) SetFilter(field string, state filter.State) *filter.Descriptor {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.filters.SetFilter(field, state)
}

// SetFilters replaces every filter at once.
func (v *View[K, E]) SetFilters(states map[string]filter.State) bool {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.filters.SetFilters(states)
}

func (v *View[K, E]) RemoveFilter(field string) bool {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.filters.RemoveFilter(field)
}

func (v *View[K, E]) ClearFilters() bool {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.filters.Clear()
}

// ToggleSort cycles field through asc, desc and unsorted and returns the
// new sort list.
func (v *View[K, E]) ToggleSort(field string) order.List {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.sort = v.sort.Toggle(field)
	v.keyChanged()
	return v.sort
}

// SetWindow moves the visible window; a non-positive pageSize keeps the
// current one.
func (v *View[K, E]) SetWindow(p, pageSize int) {
	v.lock.Lock()
	defer v.lock.Unlock()
	if p < 0 {
		p = 0
	}
	if pageSize <= 0 {
		pageSize = v.window.PageSize
	}
	v.window = page.Window{Page: p, PageSize: pageSize}
}

func (v *View[K, E]) Window() page.Window {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.window
}

func (v *View[K, E]) Filters() []filter.Descriptor {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.filters.All()
}

func (v *View[K, E]) Sort() order.List {
	v.lock.Lock()
	defer v.lock.Unlock()
	return append(order.List{}, v.sort...)
}

// Total returns the total of the current query, false while unknown.
func (v *View[K, E]) Total() (int, bool) {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.cache.Total()
}

// Rows materializes the visible window. When rows are missing it requests
// the window and reports Loading; a window past the end is clamped to the
// last page.
func (v *View[K, E]) Rows() Rows[E] {
	v.lock.Lock()
	defer v.lock.Unlock()
	for {
		total, known := v.cache.Total()
		if !known {
			total = -1
		}
		items, err := v.cache.Materialize(v.window)
		switch {
		case err == nil:
			prommonitor.Materializations.WithLabelValues(v.opts.Name, "hit").Inc()
			return Rows[E]{Items: items, Window: v.window, Total: total}
		case errors.Is(err, cache.ErrPageOutOfRange):
			prommonitor.Materializations.WithLabelValues(v.opts.Name, "clamped").Inc()
			clamped := page.ClampPage(v.window.Page, v.window.PageSize, total)
			log.Debugf("view %s: page %d out of range, total %d, clamp to %d", v.opts.Name, v.window.Page, total, clamped)
			v.window.Page = clamped
		case errors.Is(err, cache.ErrFetchNeeded):
			prommonitor.Materializations.WithLabelValues(v.opts.Name, "fetch_needed").Inc()
			if !v.closed {
				v.dispatcher.RequestWindow(dispatch.Request{
					Offset: v.window.Offset(),
					Limit:  v.window.PageSize,
					Key:    v.cache.Key(),
				})
			}
			return Rows[E]{Loading: true, Window: v.window, Total: total}
		default:
			log.Errorf("view %s: %v", v.opts.Name, err)
			return Rows[E]{Window: v.window, Total: total}
		}
	}
}

func (v *View[K, E]) onResult(req dispatch.Request, res page.Result[E]) {
	v.lock.Lock()
	if v.closed {
		v.lock.Unlock()
		return
	}
	err := v.cache.OnPageFetched(req.Offset, req.Limit, res.Items, res.Total, req.Key)
	v.lock.Unlock()
	if errors.Is(err, cache.ErrStaleResponse) {
		prommonitor.StaleResponses.WithLabelValues(v.opts.Name).Inc()
		log.Debugf("view %s: dropped stale rows %s", v.opts.Name, req)
		return
	}
	if err != nil {
		log.Errorf("view %s: merge rows %s: %v", v.opts.Name, req, err)
		return
	}
	if v.opts.OnUpdate != nil {
		v.opts.OnUpdate()
	}
}

func (v *View[K, E]) onError(_ dispatch.Request, err error) {
	if v.opts.OnError != nil {
		v.opts.OnError(err)
	}
}

// DownloadAll fetches every row matching the current filters and sort,
// bypassing the cache.
func (v *View[K, E]) DownloadAll(ctx context.Context) (page.Result[E], error) {
	v.lock.Lock()
	key := v.cache.Key()
	v.lock.Unlock()
	res, err := v.fetch(ctx, page.NewQuery(0, page.Unbounded, key))
	if err != nil {
		return res, &dispatch.TransportError{Offset: 0, Limit: page.Unbounded, Err: err}
	}
	return res, nil
}

// Close stops pending fetches and drops the cached rows.
func (v *View[K, E]) Close() {
	v.dispatcher.Close()
	v.lock.Lock()
	defer v.lock.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.cache.Reset()
}
