package ledger

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// VIEW - Latest snapshot of a Feed, recomputed on every notification
// =============================================================================

// View keeps the most recent ledger snapshot delivered by a Feed. Readers
// get the snapshot without touching the store.
type View struct {
	mu       sync.RWMutex
	lines    []PayoutLine
	version  uint64
	live     bool
	ready    chan struct{}
	once     sync.Once
	onChange func(lines []PayoutLine)
}

// NewView creates an empty view. onChange, if set, runs after every
// snapshot is applied.
func NewView(onChange func(lines []PayoutLine)) *View {
	return &View{ready: make(chan struct{}), onChange: onChange}
}

// Run consumes feed until ctx is done or the feed closes. Returns
// ErrFeedClosed if the feed went away first. The view is not live once Run
// returns; its last snapshot stays readable through Lines.
func (v *View) Run(ctx context.Context, feed Feed) error {
	defer v.setLive(false)

	ch, err := feed.Watch(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case lines, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrFeedClosed
			}
			v.apply(lines)
		}
	}
}

func (v *View) apply(lines []PayoutLine) {
	v.mu.Lock()
	v.lines = lines
	v.version++
	v.live = true
	v.mu.Unlock()

	v.once.Do(func() { close(v.ready) })
	if v.onChange != nil {
		v.onChange(lines)
	}
}

// Lines returns the current snapshot. Read-only.
func (v *View) Lines() []PayoutLine {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lines
}

// Version counts applied snapshots.
func (v *View) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// Ready is closed once the first snapshot has arrived.
func (v *View) Ready() <-chan struct{} {
	return v.ready
}

// IsReady reports whether the view is following a feed and has applied a
// snapshot from it. False before the first snapshot and after Run returns,
// until a new subscription delivers again.
func (v *View) IsReady() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.live
}

func (v *View) setLive(live bool) {
	v.mu.Lock()
	v.live = live
	v.mu.Unlock()
}

// =============================================================================
// FOLLOW - Run with re-subscription
// =============================================================================

// Backoff bounds the wait between subscriptions.
type Backoff struct {
	Min time.Duration // first wait, default 1s
	Max time.Duration // cap, default 30s
}

// Follow runs the view against feed until ctx is done, subscribing again
// whenever the feed fails or closes. The wait doubles after every
// subscription that delivered nothing and resets after one that did.
// onErr, if set, sees each failure and the wait before the next attempt.
func (v *View) Follow(ctx context.Context, feed Feed, b Backoff, onErr func(err error, wait time.Duration)) {
	if b.Min <= 0 {
		b.Min = time.Second
	}
	if b.Max <= 0 {
		b.Max = 30 * time.Second
	}
	if b.Max < b.Min {
		b.Max = b.Min
	}

	wait := b.Min
	for {
		before := v.Version()
		err := v.Run(ctx, feed)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = ErrFeedClosed
		}
		if v.Version() != before {
			wait = b.Min
		}
		if onErr != nil {
			onErr(err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if wait *= 2; wait > b.Max {
			wait = b.Max
		}
	}
}
