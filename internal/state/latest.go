package state

import (
	"context"
	"sync"
	"time"
)

// Latest holds the most recently published snapshot. Each published
// snapshot is handed out by Acquire at most once; older unread snapshots are
// overwritten.
type Latest struct {
	mu      sync.Mutex
	snap    Snapshot
	version uint64
	served  uint64
	closed  bool
	updated chan struct{}
}

func NewLatest() *Latest {
	return &Latest{updated: make(chan struct{})}
}

func (l *Latest) Publish(s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.snap = s
	l.version++
	close(l.updated)
	l.updated = make(chan struct{})
}

// Peek returns the newest snapshot without consuming it.
func (l *Latest) Peek() (Snapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap, l.version > 0
}

// Close wakes pending Acquire calls; later calls fail at once.
func (l *Latest) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.updated)
}

// Acquire returns the newest snapshot not yet handed out, waiting up to
// timeout for one to be published.
func (l *Latest) Acquire(ctx context.Context, timeout time.Duration) (Snapshot, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		l.mu.Lock()
		if l.version > l.served {
			l.served = l.version
			s := l.snap
			l.mu.Unlock()
			return s, true
		}
		if l.closed {
			l.mu.Unlock()
			return Snapshot{}, false
		}
		updated := l.updated
		l.mu.Unlock()

		select {
		case <-updated:
		case <-timer.C:
			return Snapshot{}, false
		case <-ctx.Done():
			return Snapshot{}, false
		}
	}
}
