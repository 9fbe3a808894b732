package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestHandsOutEachSnapshotOnce(t *testing.T) {
	l := NewLatest()
	ctx := context.Background()

	_, ok := l.Acquire(ctx, time.Millisecond)
	assert.False(t, ok)

	l.Publish(NewSnapshot(1, map[string]float64{"x": 1}, nil))
	l.Publish(NewSnapshot(2, map[string]float64{"x": 2}, nil))

	s, ok := l.Acquire(ctx, time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, 2.0, s.Time(), "unread snapshots are overwritten")

	_, ok = l.Acquire(ctx, time.Millisecond)
	assert.False(t, ok)

	peek, ok := l.Peek()
	assert.True(t, ok)
	assert.Equal(t, 2.0, peek.Time())
}

func TestLatestWakesWaiters(t *testing.T) {
	l := NewLatest()
	go func() {
		time.Sleep(5 * time.Millisecond)
		l.Publish(NewSnapshot(3, map[string]float64{"x": 3}, nil))
	}()
	s, ok := l.Acquire(context.Background(), time.Second)
	require.True(t, ok)
	assert.Equal(t, 3.0, s.Time())
}

func TestLatestClose(t *testing.T) {
	l := NewLatest()
	done := make(chan bool)
	go func() {
		_, ok := l.Acquire(context.Background(), time.Second)
		done <- ok
	}()
	time.Sleep(5 * time.Millisecond)
	l.Close()
	l.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("close did not wake the waiter")
	}
	l.Publish(NewSnapshot(4, nil, nil))
	_, ok := l.Peek()
	assert.False(t, ok)
}
