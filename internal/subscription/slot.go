// Package subscription manages live backend subscriptions. A Slot holds at
// most one live Handle; starting a new one cancels the previous one first.
package subscription

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/PaulBabatuyi/pairchat/internal/backend"
	"github.com/PaulBabatuyi/pairchat/internal/eventloop"
)

// StartFunc opens the backend subscription for a handle. ctx is canceled when
// the handle is.
type StartFunc func(ctx context.Context, h *Handle) (backend.Stop, error)

// Slot is a named place for one live subscription, e.g. "thread".
type Slot struct {
	name string
	loop eventloop.Poster

	mu      sync.Mutex
	current *Handle
	live    int
	nextID  int64
}

// NewSlot returns an empty slot whose handles deliver onto loop.
func NewSlot(name string, loop eventloop.Poster) *Slot {
	return &Slot{name: name, loop: loop}
}

// Name returns the slot name.
func (s *Slot) Name() string { return s.name }

// Start cancels the current handle, if any, and opens a new subscription for
// key. The slot never holds more than one live handle; replacement panics if
// the previous handle failed to shut down.
func (s *Slot) Start(key string, start StartFunc) (*Handle, error) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{slot: s, key: key, ctx: ctx, cancel: cancel}
	h.live.Store(true)

	s.mu.Lock()
	prev := s.current
	s.current = nil
	s.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}

	s.mu.Lock()
	if s.live != 0 || s.current != nil {
		s.mu.Unlock()
		cancel()
		panic(fmt.Sprintf("subscription: slot %q still has %d live handle(s) at replacement", s.name, s.live))
	}
	s.nextID++
	h.id = s.nextID
	s.current = h
	s.live++
	s.mu.Unlock()

	stop, err := start(ctx, h)
	if err != nil {
		h.Cancel()
		return nil, err
	}
	h.setStop(stop)

	log.Debug().Str("slot", s.name).Str("key", key).Int64("handle", h.id).Msg("subscription started")
	return h, nil
}

// Current returns the live handle or nil.
func (s *Slot) Current() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Active reports the number of live handles (0 or 1).
func (s *Slot) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Cancel cancels the current handle. Calling it on an empty slot is a no-op.
func (s *Slot) Cancel() {
	if h := s.Current(); h != nil {
		h.Cancel()
	}
}

func (s *Slot) release(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == h {
		s.current = nil
	}
	s.live--
}

// Handle is one live subscription.
type Handle struct {
	slot   *Slot
	key    string
	id     int64
	ctx    context.Context
	cancel context.CancelFunc
	live   atomic.Bool

	stopMu sync.Mutex
	stop   backend.Stop
}

// Key returns what the handle is subscribed to.
func (h *Handle) Key() string { return h.key }

// Live reports whether the handle has not been canceled.
func (h *Handle) Live() bool { return h.live.Load() }

// Context is canceled together with the handle.
func (h *Handle) Context() context.Context { return h.ctx }

// Cancel stops delivery and tells the backend to stop. It is idempotent.
func (h *Handle) Cancel() {
	if !h.live.CompareAndSwap(true, false) {
		return
	}
	h.cancel()

	h.stopMu.Lock()
	stop := h.stop
	h.stop = nil
	h.stopMu.Unlock()
	if stop != nil {
		stop()
	}

	h.slot.release(h)
	log.Debug().Str("slot", h.slot.name).Str("key", h.key).Int64("handle", h.id).Msg("subscription canceled")
}

func (h *Handle) setStop(stop backend.Stop) {
	if stop == nil {
		return
	}
	h.stopMu.Lock()
	if h.Live() {
		h.stop = stop
		h.stopMu.Unlock()
		return
	}
	h.stopMu.Unlock()
	stop()
}

// Emit adapts fn into a callback a backend may call from any goroutine. Each
// value is posted to the slot's loop and handed to fn only if h is still live
// when the loop runs it, so nothing reaches fn after Cancel.
func Emit[T any](h *Handle, fn func(T)) func(T) {
	return func(v T) {
		if !h.Live() {
			return
		}
		h.slot.loop.Post(func() {
			if h.Live() {
				fn(v)
			}
		})
	}
}
