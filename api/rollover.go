/*
rollover.go - Bi-week rollover watcher

PURPOSE:
  Periodically checks whether the current bi-week has changed. When a
  period closes it records a summary of that period (lines, revenue,
  take-home) and logs it, so the dashboard can show what was booked into
  the period that just ended.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Remembers the last period key it saw; the first check only records it
  - A jump over several periods records each closed period in order
  - Runs are kept in memory, newest last

USAGE:
  watcher := NewRolloverWatcher(handler)
  watcher.Start()
  // ... later
  watcher.Stop()

SEE ALSO:
  - handlers.go: ListRollovers endpoint
  - calendar/period.go: Period math
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/commission-engine/calendar"
	"github.com/warp/commission-engine/ledger"
)

// RolloverDTO summarizes one closed period.
type RolloverDTO struct {
	Period     PeriodDTO `json:"period"`
	Lines      int       `json:"lines"`
	Revenue    string    `json:"revenue"`
	TakeHome   string    `json:"take_home"`
	DetectedAt string    `json:"detected_at"`
}

// RolloverWatcher records period closings.
type RolloverWatcher struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastKey string
	runs    []RolloverDTO
}

// NewRolloverWatcher creates a watcher for h and attaches it to h.
func NewRolloverWatcher(h *Handler) *RolloverWatcher {
	rw := &RolloverWatcher{
		Handler:       h,
		CheckInterval: 1 * time.Minute,
		Enabled:       true,
	}
	h.Rollovers = rw
	return rw
}

// Start begins the watcher. Starting a running watcher does nothing.
func (rw *RolloverWatcher) Start() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if !rw.Enabled {
		rw.Handler.logger.Info("rollover watcher disabled")
		return
	}
	if rw.ticker != nil {
		return
	}

	rw.ticker = time.NewTicker(rw.CheckInterval)
	rw.stop = make(chan struct{})
	rw.wg.Add(1)
	go rw.run(rw.ticker, rw.stop)

	rw.Handler.logger.Info("rollover watcher started", zap.Duration("interval", rw.CheckInterval))
}

// Stop stops the watcher and waits for an in-flight check. Safe to call
// more than once.
func (rw *RolloverWatcher) Stop() {
	rw.mu.Lock()
	ticker, stop := rw.ticker, rw.stop
	rw.ticker, rw.stop = nil, nil
	rw.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(stop)
	rw.wg.Wait()
	rw.Handler.logger.Info("rollover watcher stopped")
}

// run uses the ticker and stop channel it was started with. Stop clears
// the fields.
func (rw *RolloverWatcher) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rw.wg.Done()

	// Run immediately on start
	rw.Check(context.Background())

	for {
		select {
		case <-ticker.C:
			rw.Check(context.Background())
		case <-stop:
			return
		}
	}
}

// Check compares the current period with the last one seen and records a
// summary for every period that closed in between. Returns the number of
// periods recorded.
func (rw *RolloverWatcher) Check(ctx context.Context) int {
	h := rw.Handler
	cal := h.Calendar
	current := cal.Current()

	rw.mu.Lock()
	last := rw.lastKey
	rw.lastKey = current.Key
	rw.mu.Unlock()

	if last == "" || last == current.Key {
		return 0
	}

	start, err := calendar.ParseDate(last)
	if err != nil {
		return 0
	}

	lines, err := h.lines(ctx)
	if err != nil {
		h.logger.Error("rollover check failed", zap.String("period", last), zap.Error(err))
		return 0
	}

	recorded := 0
	for p := cal.FromStart(start); p.Start.Before(current.Start); p = cal.FromStart(p.Start.AddDays(calendar.PeriodDays)) {
		inPeriod := ledger.InPeriod(lines, cal, p)
		revenue, takeHome := ledger.AllTimeRevenue(inPeriod), ledger.TotalTakeHome(inPeriod)
		run := RolloverDTO{
			Period:     toPeriodDTO(cal, p),
			Lines:      len(inPeriod),
			Revenue:    money(revenue),
			TakeHome:   money(takeHome),
			DetectedAt: time.Now().UTC().Format(time.RFC3339),
		}

		rw.mu.Lock()
		rw.runs = append(rw.runs, run)
		rw.mu.Unlock()
		recorded++

		h.logger.Info("period closed",
			zap.String("period", p.Key),
			zap.Int("lines", run.Lines),
			zap.String("revenue", run.Revenue),
			zap.String("take_home", run.TakeHome),
		)
	}
	return recorded
}

// Runs returns the recorded closings, oldest first.
func (rw *RolloverWatcher) Runs() []RolloverDTO {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return append([]RolloverDTO{}, rw.runs...)
}
