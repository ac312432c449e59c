package commission

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/calendar"
	"github.com/warp/commission-engine/ledger"
	"github.com/warp/commission-engine/roster"
	"go.uber.org/zap"
)

// =============================================================================
// INPUT
// =============================================================================

// RevenueEvent is one submitted sale or deal. Transient; it only exists as
// the payout lines it expands into.
type RevenueEvent struct {
	SubmitterID   string // preferred
	SubmitterName string // used when SubmitterID is empty; first exact match
	ForTeam       roster.Team
	Amount        decimal.Decimal
	Description   string
}

// =============================================================================
// BREAKDOWN - A computed, unwritten fan-out
// =============================================================================

type Breakdown struct {
	Variant   string
	Submitter roster.Employee
	Pools     map[string]decimal.Decimal
	Lines     []ledger.PayoutLine // submitter line first, then table order
	Skipped   []roster.Role       // allocations whose role has no holder
}

// Steps is the number of rounding operations behind the breakdown.
func (b Breakdown) Steps() int {
	return len(b.Lines) + len(b.Pools) - 1
}

// =============================================================================
// RESULT
// =============================================================================

// LineFailure is a planned line the store rejected. Not retried.
type LineFailure struct {
	Line ledger.PayoutLine
	Err  error
}

type Result struct {
	Variant  string
	Planned  int
	Lines    []ledger.PayoutLine // as stored, with ids
	Failures []LineFailure
	Skipped  []roster.Role
}

// Complete reports whether every planned line was written.
func (r Result) Complete() bool {
	return len(r.Failures) == 0 && len(r.Lines) == r.Planned
}

// Distributed sums take-home over written lines.
func (r Result) Distributed() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range r.Lines {
		sum = sum.Add(l.TakeHome)
	}
	return sum
}

// Unallocated is what amount leaves undistributed: skipped roles, failed
// writes and rounding.
func (r Result) Unallocated(amount decimal.Decimal) decimal.Decimal {
	return amount.Sub(r.Distributed())
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine plans and writes payout lines. Safe for concurrent use; two
// submissions simply interleave their writes.
type Engine struct {
	rules  RuleSet
	writer ledger.Writer
	logger *zap.Logger
}

// NewEngine builds an engine over w. Nil rules means DefaultRules, nil
// logger discards.
func NewEngine(w ledger.Writer, rules RuleSet, logger *zap.Logger) *Engine {
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{rules: rules, writer: w, logger: logger}
}

// Rules returns the active rule set.
func (e *Engine) Rules() RuleSet { return e.rules }

// Breakdown computes the full fan-out for ev without writing. Validation
// failures return a *ValidationError.
func (e *Engine) Breakdown(ev RevenueEvent, dir *roster.Directory, period calendar.BiWeek) (Breakdown, error) {
	submitter, err := resolveSubmitter(ev, dir)
	if err != nil {
		return Breakdown{}, err
	}
	if !ev.Amount.IsPositive() {
		return Breakdown{}, &ValidationError{Field: "amount", Reason: fmt.Sprintf("%s is not positive", ev.Amount), Err: ErrInvalidAmount}
	}
	variant, err := e.rules.Match(ev.ForTeam, dir, submitter)
	if err != nil {
		return Breakdown{}, err
	}

	pools := map[string]decimal.Decimal{PoolAmount: ev.Amount}
	for _, p := range variant.Pools {
		base, ok := pools[p.Base]
		if !ok {
			return Breakdown{}, fmt.Errorf("%w: pool %q uses unknown base %q", ErrInvalidRules, p.Name, p.Base)
		}
		pools[p.Name] = Split(base, p.Fraction)
	}

	b := Breakdown{Variant: variant.Name, Submitter: submitter, Pools: pools}

	// Submitter line carries the revenue
	share, err := submitterShare(variant.Submitter, pools, dir, submitter)
	if err != nil {
		return Breakdown{}, err
	}
	own := newLine(submitter, ev, period, ev.Description, share)
	own.Amount = ev.Amount
	own.Revenue = ev.Amount
	b.Lines = append(b.Lines, own)

	for _, a := range variant.Lines {
		holder, ok := dir.Holder(a.Role)
		if !ok {
			b.Skipped = append(b.Skipped, a.Role)
			continue
		}
		if a.ExcludeSubmitter && holder.ID == submitter.ID {
			continue
		}
		pool, ok := pools[a.Pool]
		if !ok {
			return Breakdown{}, fmt.Errorf("%w: %s uses unknown pool %q", ErrInvalidRules, a.Role, a.Pool)
		}
		note := strings.ReplaceAll(a.Note, "{name}", submitter.Name)
		b.Lines = append(b.Lines, newLine(holder, ev, period, note, Split(pool, a.Fraction)))
	}
	return b, nil
}

// Plan returns the lines Submit would write, in write order.
func (e *Engine) Plan(ev RevenueEvent, dir *roster.Directory, period calendar.BiWeek) ([]ledger.PayoutLine, error) {
	b, err := e.Breakdown(ev, dir, period)
	if err != nil {
		return nil, err
	}
	return b.Lines, nil
}

// Submit plans ev and appends each line in order, one write per line.
//
// A validation failure returns an error and writes nothing. Once writing
// starts it runs to the end: a rejected line is recorded in
// Result.Failures and the next line is still attempted. Nothing is retried
// or rolled back, and cancelling ctx does not stop the fan-out.
func (e *Engine) Submit(ctx context.Context, ev RevenueEvent, dir *roster.Directory, period calendar.BiWeek) (Result, error) {
	b, err := e.Breakdown(ev, dir, period)
	if err != nil {
		return Result{}, err
	}

	ctx = context.WithoutCancel(ctx)
	res := Result{Variant: b.Variant, Planned: len(b.Lines), Skipped: b.Skipped}

	for _, role := range b.Skipped {
		e.logger.Debug("payout role unfilled",
			zap.String("role", role.String()),
			zap.String("for_team", string(ev.ForTeam)))
	}

	for _, line := range b.Lines {
		stored, err := e.writer.Append(ctx, line)
		if err != nil {
			res.Failures = append(res.Failures, LineFailure{Line: line, Err: err})
			e.logger.Warn("payout line write failed",
				zap.String("employee_id", line.EmployeeID),
				zap.String("take_home", line.TakeHome.StringFixed(2)),
				zap.Error(err))
			continue
		}
		res.Lines = append(res.Lines, stored)
	}

	e.logger.Info("event submitted",
		zap.String("submitter", b.Submitter.Name),
		zap.String("for_team", string(ev.ForTeam)),
		zap.String("amount", ev.Amount.StringFixed(2)),
		zap.String("period", period.Key),
		zap.String("variant", b.Variant),
		zap.Int("planned", res.Planned),
		zap.Int("written", len(res.Lines)),
		zap.Int("failed", len(res.Failures)))
	return res, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func resolveSubmitter(ev RevenueEvent, dir *roster.Directory) (roster.Employee, error) {
	switch {
	case ev.SubmitterID != "":
		if e, ok := dir.ByID(ev.SubmitterID); ok {
			return e, nil
		}
		return roster.Employee{}, &ValidationError{Field: "submitter", Reason: fmt.Sprintf("no employee with id %q", ev.SubmitterID), Err: ErrUnknownSubmitter}
	case ev.SubmitterName != "":
		if e, ok := dir.ByName(ev.SubmitterName); ok {
			return e, nil
		}
		return roster.Employee{}, &ValidationError{Field: "submitter", Reason: fmt.Sprintf("no employee named %q", ev.SubmitterName), Err: ErrUnknownSubmitter}
	default:
		return roster.Employee{}, &ValidationError{Field: "submitter", Reason: "no submitter selected", Err: ErrUnknownSubmitter}
	}
}

func submitterShare(s SubmitterShare, pools map[string]decimal.Decimal, dir *roster.Directory, submitter roster.Employee) (decimal.Decimal, error) {
	pool, ok := pools[s.Pool]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: submitter uses unknown pool %q", ErrInvalidRules, s.Pool)
	}
	fraction := s.Fraction
	if s.ByExecutiveTier {
		fraction, _ = TierFraction(dir, submitter.ID)
	}
	return Split(pool, fraction), nil
}

func newLine(e roster.Employee, ev RevenueEvent, period calendar.BiWeek, description string, takeHome decimal.Decimal) ledger.PayoutLine {
	l := ledger.PayoutLine{
		EmployeeID:  e.ID,
		Name:        e.Name,
		JobTitle:    e.JobTitle,
		Team:        e.Team,
		ForTeam:     ev.ForTeam,
		Description: description,
		Amount:      decimal.Zero,
		Revenue:     decimal.Zero,
		TakeHome:    takeHome,
	}
	return l.InPeriod(period)
}
