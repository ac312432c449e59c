/*
Package ledger is the append-only record of payout lines ("cards").

PURPOSE:
  Every revenue event expands into one or more PayoutLines. Lines are
  appended one at a time by the commission engine and never updated or
  deleted here. Totals, leaderboards and exports are pure reductions over
  a snapshot of the lines.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: Writer has a single Append operation.
  2. SNAPSHOT FEED: Watchers receive the full current record set on every
     change, never a delta. A slow watcher only sees the newest set.
  3. PERIOD TAGGING: Each line carries the period it was recorded against
     (BiWeekKey + stamps). Legacy rows may lack the key; membership falls
     back to the stored start stamp (see calendar.Membership).

MONEY:
  All money is decimal.Decimal, rounded to cents by the engine before a
  line is written. Nothing in this package rounds.

SEE ALSO:
  - broadcast.go: Snapshot fan-out shared by in-process stores
  - view.go: Live aggregate view over a Feed
  - aggregate.go: Totals and leaderboard
  - export.go: CSV export
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/calendar"
	"github.com/warp/commission-engine/roster"
)

// =============================================================================
// PAYOUT LINE
// =============================================================================

// PayoutLine is one beneficiary's entitlement from one revenue event.
type PayoutLine struct {
	ID string // assigned by the store

	EmployeeID string
	Name       string
	JobTitle   string
	Team       roster.Team // beneficiary's own team at creation
	ForTeam    roster.Team // team the event was attributed to

	Description string
	Amount      decimal.Decimal // gross amount; nonzero on the submitter line only
	Revenue     decimal.Decimal // equals Amount on the submitter line, zero elsewhere
	TakeHome    decimal.Decimal

	CreatedAt time.Time // assigned by the store

	BiWeekStart string
	BiWeekEnd   string
	BiWeekKey   string
}

// Validate checks the shape required before a line is written.
func (l PayoutLine) Validate() error {
	if l.EmployeeID == "" {
		return fmt.Errorf("%w: employee id is required", ErrInvalidLine)
	}
	if l.TakeHome.IsNegative() || l.Revenue.IsNegative() || l.Amount.IsNegative() {
		return fmt.Errorf("%w: negative money on line for %s", ErrInvalidLine, l.EmployeeID)
	}
	return nil
}

// InPeriod stamps the line with period p.
func (l PayoutLine) InPeriod(p calendar.BiWeek) PayoutLine {
	l.BiWeekStart = p.StartStamp()
	l.BiWeekEnd = p.EndStamp()
	l.BiWeekKey = p.Key
	return l
}

// IsSubmitterLine reports whether the line carries the event's revenue.
func (l PayoutLine) IsSubmitterLine() bool {
	return l.Revenue.IsPositive()
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

// Writer appends one line. The store assigns ID and CreatedAt and returns
// the stored line.
type Writer interface {
	Append(ctx context.Context, line PayoutLine) (PayoutLine, error)
}

// Reader returns stored lines. List is oldest first; Get fails with
// ErrLineNotFound for an unknown id.
type Reader interface {
	List(ctx context.Context) ([]PayoutLine, error)
	Get(ctx context.Context, id string) (PayoutLine, error)
}

// Feed pushes the full record set on subscribe and after every change.
// The channel is closed when ctx is cancelled or the store shuts down.
type Feed interface {
	Watch(ctx context.Context) (<-chan []PayoutLine, error)
}

// Store is what a backend provides.
type Store interface {
	Writer
	Reader
	Feed
}
