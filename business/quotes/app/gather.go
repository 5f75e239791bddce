package app

import (
	"context"
	"sync"
)

type outcome[Q any] struct {
	idx int
	q   Q
	err error
}

// joined is the result of one fan-out.
type joined[Q any] struct {
	quotes []Q
	failed int
	// complete is false when ctx ended before every source reported.
	complete bool
}

// progress holds the outcomes of one fan-out as they arrive, so callers that
// stop waiting early can still read what came in.
type progress[Q any] struct {
	mu    sync.Mutex
	slots []*outcome[Q]
}

func newProgress[Q any](n int) *progress[Q] {
	return &progress[Q]{slots: make([]*outcome[Q], n)}
}

func (p *progress[Q]) record(o outcome[Q]) {
	p.mu.Lock()
	p.slots[o.idx] = &o
	p.mu.Unlock()
}

// join returns the successes so far in source order.
func (p *progress[Q]) join() joined[Q] {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := joined[Q]{quotes: make([]Q, 0, len(p.slots)), complete: true}
	for _, o := range p.slots {
		switch {
		case o == nil:
			res.complete = false
		case o.err != nil:
			res.failed++
		default:
			res.quotes = append(res.quotes, o.q)
		}
	}
	return res
}

// gather calls fetch for every source concurrently and waits for all of them
// or for ctx, whichever comes first. Successes keep source order. Results that
// arrive after ctx is done are dropped.
func gather[S, Q any](ctx context.Context, sources []S, p *progress[Q], fetch func(context.Context, S) (Q, error)) joined[Q] {
	ch := make(chan outcome[Q], len(sources))
	for i, s := range sources {
		go func() {
			q, err := fetch(ctx, s)
			ch <- outcome[Q]{idx: i, q: q, err: err}
		}()
	}

	for received := 0; received < len(sources); received++ {
		select {
		case o := <-ch:
			p.record(o)
		case <-ctx.Done():
			drain(ch, p)
			return p.join()
		}
	}
	return p.join()
}

// drain records outcomes already buffered in ch without blocking.
func drain[Q any](ch <-chan outcome[Q], p *progress[Q]) {
	for {
		select {
		case o := <-ch:
			p.record(o)
		default:
			return
		}
	}
}
