package eventloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsInPostOrder(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	require.NoError(t, l.Call(ctx, func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}
}

func TestLoopPostFromLoopDoesNotDeadlock(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	reached := make(chan struct{})
	l.Post(func() {
		l.Post(func() { close(reached) })
	})

	select {
	case <-reached:
	case <-time.After(time.Second):
		t.Fatal("nested post never ran")
	}
}

func TestManualFlush(t *testing.T) {
	m := NewManual()
	var got []string
	m.Post(func() {
		got = append(got, "first")
		m.Post(func() { got = append(got, "nested") })
	})
	m.Post(func() { got = append(got, "second") })

	assert.Equal(t, 2, m.Pending())
	assert.Equal(t, 3, m.Flush())
	assert.Equal(t, []string{"first", "second", "nested"}, got)
	assert.Equal(t, 0, m.Pending())
}
