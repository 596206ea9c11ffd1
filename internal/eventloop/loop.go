// Package eventloop runs the client's work on a single cooperative thread.
// User actions and backend emissions are posted as closures and executed one
// at a time in FIFO order.
package eventloop

import (
	"context"
	"sync"
)

// Poster accepts work for the loop. Post never blocks.
type Poster interface {
	Post(fn func())
}

// Loop executes posted closures on the goroutine that calls Run.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
}

// New returns an idle loop.
func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues fn. The queue is unbounded so a closure running on the loop may
// post more work without deadlocking.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil, false
	}
	fn := l.pending[0]
	l.pending[0] = nil
	l.pending = l.pending[1:]
	return fn, true
}

// Call posts fn and waits for it to finish on the loop. It must not be called
// from the loop goroutine.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Manual is a Poster that only runs work when Flush is called. Tests use it to
// control exactly when backend emissions reach the views.
type Manual struct {
	mu      sync.Mutex
	pending []func()
}

// NewManual returns an empty manual loop.
func NewManual() *Manual { return &Manual{} }

func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.pending = append(m.pending, fn)
	m.mu.Unlock()
}

// Pending reports how many closures are queued.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Flush runs queued closures, including ones posted while flushing, until the
// queue is empty. It returns the number of closures run.
func (m *Manual) Flush() int {
	n := 0
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.mu.Unlock()
			return n
		}
		fn := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()

		fn()
		n++
	}
}
