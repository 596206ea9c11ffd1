package subscription

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulBabatuyi/pairchat/internal/backend"
	"github.com/PaulBabatuyi/pairchat/internal/eventloop"
)

// fakeFeed records stop calls and lets the test push values.
type fakeFeed struct {
	emit    func(string)
	stopped int
	ctx     context.Context
}

func (f *fakeFeed) start(fn func(string)) StartFunc {
	return func(ctx context.Context, h *Handle) (backend.Stop, error) {
		f.ctx = ctx
		f.emit = Emit(h, fn)
		return func() { f.stopped++ }, nil
	}
}

func TestSlotReplacementCancelsPrevious(t *testing.T) {
	loop := eventloop.NewManual()
	slot := NewSlot("thread", loop)

	var got []string
	x, y := &fakeFeed{}, &fakeFeed{}

	hx, err := slot.Start("x", x.start(func(v string) { got = append(got, "x:"+v) }))
	require.NoError(t, err)
	hy, err := slot.Start("y", y.start(func(v string) { got = append(got, "y:"+v) }))
	require.NoError(t, err)

	assert.False(t, hx.Live())
	assert.True(t, hy.Live())
	assert.Equal(t, 1, slot.Active())
	assert.Same(t, hy, slot.Current())
	assert.Equal(t, 1, x.stopped)
	assert.ErrorIs(t, x.ctx.Err(), context.Canceled)

	x.emit("late")
	y.emit("hello")
	loop.Flush()
	assert.Equal(t, []string{"y:hello"}, got)
}

func TestEmitDropsInFlightValuesAfterCancel(t *testing.T) {
	loop := eventloop.NewManual()
	slot := NewSlot("list", loop)

	var got []string
	f := &fakeFeed{}
	h, err := slot.Start("me", f.start(func(v string) { got = append(got, v) }))
	require.NoError(t, err)

	f.emit("queued before cancel")
	require.Equal(t, 1, loop.Pending())

	h.Cancel()
	h.Cancel()
	loop.Flush()

	assert.Empty(t, got)
	assert.Equal(t, 1, f.stopped)
	assert.Equal(t, 0, slot.Active())
	assert.Nil(t, slot.Current())
}

func TestStartErrorLeavesSlotEmpty(t *testing.T) {
	slot := NewSlot("presence", eventloop.NewManual())
	boom := errors.New("boom")

	h, err := slot.Start("u1", func(ctx context.Context, h *Handle) (backend.Stop, error) {
		return nil, boom
	})
	assert.Nil(t, h)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, slot.Active())
}

func TestSlotCancelOnEmptySlot(t *testing.T) {
	slot := NewSlot("thread", eventloop.NewManual())
	slot.Cancel()
	assert.Equal(t, 0, slot.Active())
	assert.Equal(t, "thread", slot.Name())
}
