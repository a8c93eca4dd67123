package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/DaoCloud/listcache/filter"
	"github.com/DaoCloud/listcache/page"
)

const delay = 300 * time.Millisecond

var (
	keyA = page.NewKey(nil, nil)
	keyB = page.NewKey([]filter.Descriptor{
		{Field: "site", Operator: filter.OpEquals, Value: filter.String("north")},
	}, nil)
)

type reply struct {
	res page.Result[string]
	err error
}

type call struct {
	ctx   context.Context
	q     page.Query
	reply chan reply
}

type fakeFetcher struct {
	calls chan call
}

func (f *fakeFetcher) fetch(ctx context.Context, q page.Query) (page.Result[string], error) {
	c := call{ctx: ctx, q: q, reply: make(chan reply, 1)}
	f.calls <- c
	r := <-c.reply
	return r.res, r.err
}

func (f *fakeFetcher) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no fetch issued")
	}
	return call{}
}

type harness struct {
	clock   *testingclock.FakeClock
	fetcher *fakeFetcher
	d       *Dispatcher[string]
	results chan Request
	errs    chan error
}

func newHarness() *harness {
	h := &harness{
		clock:   testingclock.NewFakeClock(time.Unix(0, 0)),
		fetcher: &fakeFetcher{calls: make(chan call, 10)},
		results: make(chan Request, 10),
		errs:    make(chan error, 10),
	}
	h.d = New[string](h.fetcher.fetch, Options[string]{
		Name:  "test",
		Delay: delay,
		Clock: h.clock,
		OnResult: func(r Request, _ page.Result[string]) {
			h.results <- r
		},
		OnError: func(_ Request, err error) {
			h.errs <- err
		},
	})
	return h
}

func windows(rs []Request) []string {
	res := []string{}
	for _, r := range rs {
		res = append(res, fmt.Sprintf("%d+%d", r.Offset, r.Limit))
	}
	return res
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Request
		out  bool
	}{
		{name: "same", a: Request{Offset: 0, Limit: 10}, b: Request{Offset: 0, Limit: 10}, out: true},
		{name: "partial", a: Request{Offset: 0, Limit: 10}, b: Request{Offset: 5, Limit: 10}, out: true},
		{name: "adjacent", a: Request{Offset: 0, Limit: 10}, b: Request{Offset: 10, Limit: 10}, out: false},
		{name: "unbounded", a: Request{Offset: 0, Limit: page.Unbounded}, b: Request{Offset: 100, Limit: 10}, out: true},
	}
	for i, c := range cases {
		t.Run(fmt.Sprintf("%d---%s", i, c.name), func(t *testing.T) {
			assert.Equal(t, c.out, c.a.overlaps(c.b))
			assert.Equal(t, c.out, c.b.overlaps(c.a))
		})
	}
}

func TestDebounce(t *testing.T) {
	h := newHarness()
	defer h.d.Close()

	h.d.RequestWindow(Request{Offset: 0, Limit: 10, Key: keyA})
	h.d.RequestWindow(Request{Offset: 0, Limit: 10, Key: keyA})
	assert.Equal(t, []string{"0+10"}, windows(h.d.Pending()))

	// overlapping replaces
	h.d.RequestWindow(Request{Offset: 5, Limit: 10, Key: keyA})
	assert.Equal(t, []string{"5+10"}, windows(h.d.Pending()))

	// disjoint windows of the same key coexist
	h.d.RequestWindow(Request{Offset: 20, Limit: 10, Key: keyA})
	assert.Equal(t, []string{"5+10", "20+10"}, windows(h.d.Pending()))

	// another key replaces everything
	h.d.RequestWindow(Request{Offset: 40, Limit: 10, Key: keyB})
	assert.Equal(t, []string{"40+10"}, windows(h.d.Pending()))

	h.clock.Step(delay - time.Millisecond)
	assert.Len(t, h.d.Pending(), 1)
	assert.Len(t, h.fetcher.calls, 0)

	h.clock.Step(time.Millisecond)
	c := h.fetcher.next(t)
	assert.Equal(t, 40, c.q.Offset)
	assert.Equal(t, 10, c.q.Limit)
	assert.True(t, keyB.Equal(c.q.Key()))
	c.reply <- reply{res: page.Result[string]{Items: []string{"a"}, Total: 41}}

	select {
	case r := <-h.results:
		assert.Equal(t, 40, r.Offset)
	case <-time.After(5 * time.Second):
		t.Fatal("no result")
	}
	assert.Eventually(t, func() bool { return h.d.InFlight() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, h.fetcher.calls, 0)
}

func TestInFlight(t *testing.T) {
	h := newHarness()
	defer h.d.Close()

	h.d.RequestWindow(Request{Offset: 0, Limit: 10, Key: keyA})
	h.clock.Step(delay)
	first := h.fetcher.next(t)
	assert.Eventually(t, func() bool { return h.d.InFlight() == 1 }, 5*time.Second, 10*time.Millisecond)

	// identical to the in-flight one
	h.d.RequestWindow(Request{Offset: 0, Limit: 10, Key: keyA})
	assert.Empty(t, h.d.Pending())

	// same window, new key
	h.d.RequestWindow(Request{Offset: 0, Limit: 10, Key: keyB})
	h.clock.Step(delay)
	second := h.fetcher.next(t)
	assert.True(t, keyB.Equal(second.q.Key()))

	second.reply <- reply{res: page.Result[string]{Total: 0}}
	select {
	case r := <-h.results:
		assert.True(t, keyB.Equal(r.Key))
	case <-time.After(5 * time.Second):
		t.Fatal("no result")
	}

	// the older result arrives last and is ignored
	first.reply <- reply{res: page.Result[string]{Items: []string{"x"}, Total: 1}}
	assert.Eventually(t, func() bool { return h.d.InFlight() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return len(h.results) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestTransportError(t *testing.T) {
	h := newHarness()
	defer h.d.Close()

	h.d.RequestWindow(Request{Offset: 10, Limit: 10, Key: keyA})
	h.clock.Step(delay)
	cause := errors.New("connection refused")
	h.fetcher.next(t).reply <- reply{err: cause}

	select {
	case err := <-h.errs:
		var terr *TransportError
		require.True(t, errors.As(err, &terr))
		assert.Equal(t, 10, terr.Offset)
		assert.ErrorIs(t, err, cause)
	case <-time.After(5 * time.Second):
		t.Fatal("no error")
	}
	assert.Len(t, h.results, 0)

	// no retry
	h.clock.Step(10 * delay)
	assert.Len(t, h.fetcher.calls, 0)
}

func TestClose(t *testing.T) {
	h := newHarness()

	h.d.RequestWindow(Request{Offset: 0, Limit: 10, Key: keyA})
	h.clock.Step(delay)
	inflight := h.fetcher.next(t)

	h.d.RequestWindow(Request{Offset: 10, Limit: 10, Key: keyA})
	h.d.Close()
	assert.Empty(t, h.d.Pending())
	assert.Error(t, inflight.ctx.Err())

	h.clock.Step(delay)
	inflight.reply <- reply{res: page.Result[string]{Total: 3}}
	assert.Never(t, func() bool {
		return len(h.results) > 0 || len(h.fetcher.calls) > 0
	}, 100*time.Millisecond, 10*time.Millisecond)

	// requests after close are ignored
	h.d.RequestWindow(Request{Offset: 0, Limit: 10, Key: keyA})
	assert.Empty(t, h.d.Pending())
}

func TestRepeatRestartsDelay(t *testing.T) {
	h := newHarness()
	defer h.d.Close()

	h.d.RequestWindow(Request{Offset: 0, Limit: 10, Key: keyA})
	h.clock.Step(delay / 2)
	h.d.RequestWindow(Request{Offset: 0, Limit: 10, Key: keyA})
	h.clock.Step(delay / 2)
	assert.Never(t, func() bool { return len(h.fetcher.calls) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, []string{"0+10"}, windows(h.d.Pending()))

	h.clock.Step(delay / 2)
	c := h.fetcher.next(t)
	assert.Equal(t, 0, c.q.Offset)
	c.reply <- reply{res: page.Result[string]{Total: 0}}
	select {
	case <-h.results:
	case <-time.After(5 * time.Second):
		t.Fatal("no result")
	}
}

func TestKeyFlipBackWhileInFlight(t *testing.T) {
	h := newHarness()
	defer h.d.Close()

	h.d.RequestWindow(Request{Offset: 0, Limit: 10, Key: keyA})
	h.clock.Step(delay)
	first := h.fetcher.next(t)
	assert.Eventually(t, func() bool { return h.d.InFlight() == 1 }, 5*time.Second, 10*time.Millisecond)

	// switch to B, then back to A before B settles
	h.d.RequestWindow(Request{Offset: 0, Limit: 10, Key: keyB})
	assert.Equal(t, []string{"0+10"}, windows(h.d.Pending()))
	h.d.RequestWindow(Request{Offset: 0, Limit: 10, Key: keyA})
	assert.Empty(t, h.d.Pending())

	h.clock.Step(delay)
	assert.Never(t, func() bool { return len(h.fetcher.calls) > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	first.reply <- reply{res: page.Result[string]{Items: []string{"a"}, Total: 1}}
	select {
	case r := <-h.results:
		assert.True(t, keyA.Equal(r.Key))
	case <-time.After(5 * time.Second):
		t.Fatal("result of A was not delivered")
	}
}
