/*
Package calendar computes the bi-week accounting periods payouts are booked into.

PURPOSE:
  Every payout line belongs to exactly one 14-day period. Periods are anchored
  to a fixed Monday (period #0) and tile time without gaps or overlaps, so a
  period is fully identified by its start date (the period key).

KEY CONCEPTS:
  - Date:     civil date, day-granular, UTC-backed
  - BiWeek:   one 14-day period (Start .. Start+13)
  - Calendar: anchor + timezone + clock; does the period math and navigation

NAVIGATION:
  Previous() never goes before the anchor period and Next() never goes past
  the period containing "now". Both clamp instead of failing.

LEGACY ROWS:
  Older ledger rows carry only biWeekStart (no biWeekKey). Membership() falls
  back to recomputing the period from that timestamp.
*/
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// PeriodDays is the length of one accounting period.
const PeriodDays = 14

// DefaultAnchor is Monday, July 28 2025: period #0.
var DefaultAnchor = NewDate(2025, time.July, 28)

var (
	// ErrInvalidPeriodKey is returned for keys that are not a period start date.
	ErrInvalidPeriodKey = errors.New("invalid period key")

	// ErrBeforeAnchor is returned for keys before period #0.
	ErrBeforeAnchor = errors.New("period before anchor")

	// ErrFuturePeriod is returned for keys after the current period.
	ErrFuturePeriod = errors.New("period in the future")
)

// =============================================================================
// BIWEEK - One accounting period
// =============================================================================

type BiWeek struct {
	Start   Date
	End     Date      // Start + 13 days
	StartAt time.Time // midnight of Start in the calendar timezone
	EndAt   time.Time // end of day of End in the calendar timezone
	Key     string    // ISO date of Start; stable, string-comparable
}

// Label renders the range the way the dashboard header shows it.
func (p BiWeek) Label() string {
	return p.StartAt.Format("Jan 2") + " – " + p.EndAt.Format("Jan 2, 2006")
}

// StartStamp is the stored biWeekStart value.
func (p BiWeek) StartStamp() string { return p.StartAt.Format(TimestampLayout) }

// EndStamp is the stored biWeekEnd value.
func (p BiWeek) EndStamp() string { return p.EndAt.Format(TimestampLayout) }

func (p BiWeek) String() string { return "[" + p.Start.String() + ", " + p.End.String() + "]" }

// =============================================================================
// CALENDAR
// =============================================================================

type Calendar struct {
	Anchor   Date
	Location *time.Location

	// Now is the clock used for the "current period" clamp. Nil means time.Now.
	Now func() time.Time
}

func New(anchor Date, loc *time.Location) *Calendar {
	return &Calendar{Anchor: anchor, Location: loc}
}

// Default returns the production calendar (anchor 2025-07-28, UTC).
func Default() *Calendar {
	return New(DefaultAnchor, time.UTC)
}

func (c *Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c *Calendar) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// PeriodStartFor returns the start date of the period containing t.
// Instants before the anchor land in negative-index periods.
func (c *Calendar) PeriodStartFor(t time.Time) Date {
	day := DateOf(t, c.loc())
	periods := floorDiv(DaysBetween(c.Anchor, day), PeriodDays)
	return c.Anchor.AddDays(periods * PeriodDays)
}

// PeriodFor returns the period containing t.
func (c *Calendar) PeriodFor(t time.Time) BiWeek {
	return c.FromStart(c.PeriodStartFor(t))
}

// FromStart builds the period beginning on start. The start is taken as-is.
func (c *Calendar) FromStart(start Date) BiWeek {
	end := start.AddDays(PeriodDays - 1)
	return BiWeek{
		Start:   start,
		End:     end,
		StartAt: start.StartIn(c.loc()),
		EndAt:   end.EndIn(c.loc()),
		Key:     start.String(),
	}
}

// Today is the current civil date in the calendar's location.
func (c *Calendar) Today() Date {
	return DateOf(c.now(), c.loc())
}

// Current returns the period containing now.
func (c *Calendar) Current() BiWeek {
	return c.PeriodFor(c.now())
}

// Index returns the period number relative to the anchor (anchor = 0).
func (c *Calendar) Index(p BiWeek) int {
	return floorDiv(DaysBetween(c.Anchor, p.Start), PeriodDays)
}

// Previous steps back one period, clamped at the anchor.
func (c *Calendar) Previous(p BiWeek) BiWeek {
	prev := p.Start.AddDays(-PeriodDays)
	if prev.Before(c.Anchor) {
		prev = c.Anchor
	}
	return c.FromStart(prev)
}

// Next steps forward one period, clamped at the current period.
func (c *Calendar) Next(p BiWeek) BiWeek {
	next := p.Start.AddDays(PeriodDays)
	current := c.PeriodStartFor(c.now())
	if next.After(current) {
		next = current
	}
	return c.FromStart(next)
}

func (c *Calendar) HasPrevious(p BiWeek) bool { return p.Start.After(c.Anchor) }
func (c *Calendar) HasNext(p BiWeek) bool     { return p.Start.Before(c.PeriodStartFor(c.now())) }

// Contains reports whether instant t falls in period p.
func (c *Calendar) Contains(p BiWeek, t time.Time) bool {
	return c.PeriodStartFor(t).Equal(p.Start)
}

// ParseKey resolves a period key to a navigable period.
func (c *Calendar) ParseKey(key string) (BiWeek, error) {
	d, err := ParseDate(key)
	if err != nil {
		return BiWeek{}, fmt.Errorf("%w: %v", ErrInvalidPeriodKey, err)
	}
	if !c.PeriodStartFor(d.StartIn(c.loc())).Equal(d) {
		return BiWeek{}, fmt.Errorf("%w: %s is not a period start", ErrInvalidPeriodKey, key)
	}
	if d.Before(c.Anchor) {
		return BiWeek{}, fmt.Errorf("%w: %s", ErrBeforeAnchor, key)
	}
	if d.After(c.PeriodStartFor(c.now())) {
		return BiWeek{}, fmt.Errorf("%w: %s", ErrFuturePeriod, key)
	}
	return c.FromStart(d), nil
}

// Membership tests a stored row against p. A stored key is authoritative;
// rows without one are placed by recomputing the period of their stored start.
func (c *Calendar) Membership(p BiWeek, key, start string) bool {
	if key != "" {
		return key == p.Key
	}
	if start != "" {
		t, err := ParseTimestamp(start, c.loc())
		if err != nil {
			return false
		}
		return c.PeriodStartFor(t).String() == p.Key
	}
	return false
}
