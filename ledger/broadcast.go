package ledger

import (
	"context"
	"sync"
)

// =============================================================================
// BROADCASTER - Latest-snapshot fan-out to watchers
// =============================================================================

// Broadcaster delivers ledger snapshots to any number of watchers. Each
// watcher channel holds at most one pending snapshot; publishing replaces
// an undelivered one so a slow reader skips straight to the newest set.
//
// Snapshots are shared between watchers and must be treated as read-only.
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[int]chan []PayoutLine
	nextID  int
	last    []PayoutLine
	hasLast bool
	closed  bool
	done    chan struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan []PayoutLine), done: make(chan struct{})}
}

// Subscribe registers a watcher. The last published snapshot, if any, is
// queued immediately.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan []PayoutLine, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrFeedClosed
	}

	id := b.nextID
	b.nextID++
	ch := make(chan []PayoutLine, 1)
	if b.hasLast {
		ch <- b.last
	}
	b.subs[id] = ch

	go func() {
		select {
		case <-ctx.Done():
			b.unsubscribe(id)
		case <-b.done:
		}
	}()
	return ch, nil
}

// Publish replaces the current snapshot and notifies every watcher.
// Never blocks.
func (b *Broadcaster) Publish(lines []PayoutLine) {
	snap := append([]PayoutLine(nil), lines...)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.last = snap
	b.hasLast = true
	for _, ch := range b.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale pending snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// Watchers returns the number of live subscriptions.
func (b *Broadcaster) Watchers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription. Later Subscribe calls fail with ErrFeedClosed.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}

func (b *Broadcaster) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}
