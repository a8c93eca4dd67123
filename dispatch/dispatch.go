package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/DaoCloud/listcache/common/constants"
	"github.com/DaoCloud/listcache/log"
	"github.com/DaoCloud/listcache/page"
	"github.com/DaoCloud/listcache/utils/prommonitor"
)

// FetchFunc asks the query executor for one page. It is the only call of
// this package that may block.
type FetchFunc[E any] func(ctx context.Context, q page.Query) (page.Result[E], error)

// Request is a window fetch stamped with the query key it was issued under.
type Request struct {
	Offset int
	Limit  int
	Key    page.Key
}

func (r Request) window() window {
	return window{offset: r.Offset, limit: r.Limit}
}

func (r Request) end() int {
	if r.Limit == page.Unbounded {
		return int(^uint(0) >> 1)
	}
	return r.Offset + r.Limit
}

func (r Request) overlaps(o Request) bool {
	return r.Offset < o.end() && o.Offset < r.end()
}

func (r Request) same(o Request) bool {
	return r.window() == o.window() && r.Key.Equal(o.Key)
}

func (r Request) String() string {
	return fmt.Sprintf("[%d, +%d) %s", r.Offset, r.Limit, r.Key)
}

type window struct {
	offset int
	limit  int
}

// TransportError is a failed fetch. The cache is left untouched and the
// fetch is not retried.
type TransportError struct {
	Offset int
	Limit  int
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch rows [%d, +%d): %v", e.Offset, e.Limit, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Options[E any] struct {
	// Name labels the metrics of this dispatcher.
	Name string
	// Delay is the settling interval before a request fires, 300ms if unset.
	Delay time.Duration
	Clock clock.WithDelayedExecution
	// OnResult and OnError are called from the fetching goroutine, never
	// while the dispatcher holds its lock.
	OnResult func(Request, page.Result[E])
	OnError  func(Request, error)
}

type pendingFetch struct {
	req   Request
	timer clock.Timer
}

type flight struct {
	gen uint64
	req Request
}

// Dispatcher debounces window requests and keeps at most one live fetch per
// (offset, limit).
type Dispatcher[E any] struct {
	lock     sync.Mutex
	fetch    FetchFunc[E]
	opts     Options[E]
	pending  []*pendingFetch
	gens     map[window]uint64
	inflight map[window]flight
	ctx      context.Context
	cancel   context.CancelFunc
	closed   bool
}

func New[E any](fetch FetchFunc[E], opts Options[E]) *Dispatcher[E] {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Delay == 0 {
		opts.Delay = constants.DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher[E]{
		fetch:    fetch,
		opts:     opts,
		gens:     map[window]uint64{},
		inflight: map[window]flight{},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RequestWindow schedules a fetch of req after the settling delay. Pending
// requests overlapping req, or issued under another key, are cancelled and
// replaced. A request identical to a pending one restarts its delay; one
// identical to an in-flight fetch is a no-op.
func (d *Dispatcher[E]) RequestWindow(req Request) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return
	}
	var same *pendingFetch
	kept := d.pending[:0]
	for _, p := range d.pending {
		switch {
		case p.req.same(req):
			same = p
		case p.req.overlaps(req) || !p.req.Key.Equal(req.Key):
			p.timer.Stop()
			prommonitor.DebounceReplaced.WithLabelValues(d.opts.Name).Inc()
			log.Debugf("dispatcher %s: request %s replaced by %s", d.opts.Name, p.req, req)
			continue
		}
		kept = append(kept, p)
	}
	d.pending = kept
	if same != nil {
		same.timer.Stop()
		d.schedule(same)
		return
	}
	if f, ok := d.inflight[req.window()]; ok && f.req.Key.Equal(req.Key) {
		return
	}
	p := &pendingFetch{req: req}
	d.schedule(p)
	d.pending = append(d.pending, p)
}

func (d *Dispatcher[E]) schedule(p *pendingFetch) {
	p.timer = d.opts.Clock.AfterFunc(d.opts.Delay, func() {
		go d.fire(p)
	})
}

func (d *Dispatcher[E]) fire(p *pendingFetch) {
	d.lock.Lock()
	idx := -1
	for i, q := range d.pending {
		if q == p {
			idx = i
			break
		}
	}
	if d.closed || idx < 0 {
		// cancelled after the timer fired
		d.lock.Unlock()
		return
	}
	d.pending = append(d.pending[:idx], d.pending[idx+1:]...)
	w := p.req.window()
	d.gens[w]++
	gen := d.gens[w]
	d.inflight[w] = flight{gen: gen, req: p.req}
	ctx := d.ctx
	d.lock.Unlock()

	d.run(ctx, p.req, gen)
}

func (d *Dispatcher[E]) run(ctx context.Context, req Request, gen uint64) {
	res, err := d.fetch(ctx, page.NewQuery(req.Offset, req.Limit, req.Key))

	w := req.window()
	d.lock.Lock()
	current := d.gens[w] == gen
	if current {
		delete(d.inflight, w)
	}
	closed := d.closed
	d.lock.Unlock()

	switch {
	case closed:
		return
	case !current:
		prommonitor.Fetches.WithLabelValues(d.opts.Name, "superseded").Inc()
		log.Debugf("dispatcher %s: result of %s superseded", d.opts.Name, req)
	case err != nil:
		prommonitor.Fetches.WithLabelValues(d.opts.Name, "error").Inc()
		terr := &TransportError{Offset: req.Offset, Limit: req.Limit, Err: err}
		log.Warnf("dispatcher %s: %v", d.opts.Name, terr)
		if d.opts.OnError != nil {
			d.opts.OnError(req, terr)
		}
	default:
		prommonitor.Fetches.WithLabelValues(d.opts.Name, "success").Inc()
		if d.opts.OnResult != nil {
			d.opts.OnResult(req, res)
		}
	}
}

// Pending returns the requests waiting for their settling delay.
func (d *Dispatcher[E]) Pending() []Request {
	d.lock.Lock()
	defer d.lock.Unlock()
	res := make([]Request, 0, len(d.pending))
	for _, p := range d.pending {
		res = append(res, p.req)
	}
	return res
}

// InFlight is the number of fetches whose result is still awaited.
func (d *Dispatcher[E]) InFlight() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return len(d.inflight)
}

// Close cancels pending requests and the context of in-flight fetches.
// Results arriving afterwards are dropped.
func (d *Dispatcher[E]) Close() {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for _, p := range d.pending {
		p.timer.Stop()
	}
	d.pending = nil
	d.cancel()
}
