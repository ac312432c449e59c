/*
Package commission expands a revenue event into payout lines.

PURPOSE:
  Given a submitter, a target team and an amount, the engine decides who
  gets paid what. The decision is data: a RuleSet maps each target team to
  an ordered list of Variants. The first variant whose condition matches the
  submitter is used; one generic fan-out routine executes it.

VARIANT SHAPE:
  When       Condition on the submitter (holds role, on team, always)
  Submitter  The submitter's own take-home (fraction of a pool, or their
             executive tier fraction)
  Pools      Named bases: "amount" is the event amount; every other pool
             is Split(base, fraction) of an earlier pool
  Lines      Allocations: role + pool + fraction + note

ROUNDING:
  Every pool and every line is rounded to cents on its own (Split). There
  is no remainder distribution, so a line set can be off by up to half a
  cent per line. A role with no holder is skipped and its share stays
  unallocated.

EXAMPLE (Sales Team, submitter is not the Sales Manager, amount 1000):
  submitter   30% of amount      = 300.00
  remaining   70% of amount      = 700.00
  Sales Lead  10% of remaining   =  70.00
  Sales Mgr   20% of remaining   = 140.00
  executives  70% of remaining   = 490.00 -> 294 / 98 / 49 / 49

SEE ALSO:
  - engine.go: Plan and Submit
  - split.go: Rounding primitive
  - factory/rules.go: JSON rule definitions
*/
package commission

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/roster"
)

// PoolAmount is the predefined pool holding the event amount.
const PoolAmount = "amount"

// =============================================================================
// CONDITIONS
// =============================================================================

type ConditionKind string

const (
	CondAlways    ConditionKind = "always"
	CondHoldsRole ConditionKind = "holds_role"
	CondOnTeam    ConditionKind = "on_team"
)

// Condition selects a variant based on the submitter.
type Condition struct {
	Kind ConditionKind
	Role roster.Role // CondHoldsRole
	Team roster.Team // CondOnTeam
}

func Always() Condition                 { return Condition{Kind: CondAlways} }
func HoldsRole(r roster.Role) Condition { return Condition{Kind: CondHoldsRole, Role: r} }
func OnTeam(t roster.Team) Condition    { return Condition{Kind: CondOnTeam, Team: t} }

// Matches evaluates the condition for submitter against dir.
func (c Condition) Matches(dir *roster.Directory, submitter roster.Employee) bool {
	switch c.Kind {
	case CondAlways:
		return true
	case CondHoldsRole:
		return dir.HoldsRole(submitter.ID, c.Role)
	case CondOnTeam:
		return roster.IsOnTeam(submitter, c.Team)
	default:
		return false
	}
}

func (c Condition) String() string {
	switch c.Kind {
	case CondHoldsRole:
		return "holds " + string(c.Role)
	case CondOnTeam:
		return "on " + string(c.Team)
	default:
		return string(c.Kind)
	}
}

// =============================================================================
// POOLS AND ALLOCATIONS
// =============================================================================

// Pool is a named base computed as Split(Base, Fraction).
type Pool struct {
	Name     string
	Base     string
	Fraction decimal.Decimal
}

// Allocation pays the holder of Role a fraction of a pool.
type Allocation struct {
	Role     roster.Role
	Pool     string
	Fraction decimal.Decimal

	// Note becomes the line description; "{name}" is replaced by the
	// submitter's name.
	Note string

	// ExcludeSubmitter skips the line when the submitter holds Role.
	ExcludeSubmitter bool
}

// SubmitterShare is the submitter's own take-home.
type SubmitterShare struct {
	Pool     string
	Fraction decimal.Decimal

	// ByExecutiveTier pays the fraction of the submitter's own executive
	// tier (first held in tier order) and ignores Fraction. Zero if the
	// submitter holds no tier.
	ByExecutiveTier bool
}

type Variant struct {
	Name      string
	When      Condition
	Submitter SubmitterShare
	Pools     []Pool
	Lines     []Allocation
}

// RuleSet maps a target team to its variants, tried in order.
type RuleSet map[roster.Team][]Variant

// =============================================================================
// EXECUTIVE TIER
// =============================================================================

type Tier struct {
	Role     roster.Role
	Fraction decimal.Decimal
}

// ExecutiveTiers is the 60/20/10/10 executive distribution.
var ExecutiveTiers = []Tier{
	{Role: roster.RoleCEO, Fraction: decimal.RequireFromString("0.6")},
	{Role: roster.RoleCOO, Fraction: decimal.RequireFromString("0.2")},
	{Role: roster.RoleCFO, Fraction: decimal.RequireFromString("0.1")},
	{Role: roster.RoleCompany, Fraction: decimal.RequireFromString("0.1")},
}

// Executives expands to one allocation per executive tier over pool.
func Executives(pool, note string, excludeSubmitter bool) []Allocation {
	out := make([]Allocation, 0, len(ExecutiveTiers))
	for _, t := range ExecutiveTiers {
		out = append(out, Allocation{
			Role:             t.Role,
			Pool:             pool,
			Fraction:         t.Fraction,
			Note:             note,
			ExcludeSubmitter: excludeSubmitter,
		})
	}
	return out
}

// TierFraction returns the fraction of the first tier held by employeeID.
func TierFraction(dir *roster.Directory, employeeID string) (decimal.Decimal, bool) {
	for _, t := range ExecutiveTiers {
		if dir.HoldsRole(employeeID, t.Role) {
			return t.Fraction, true
		}
	}
	return decimal.Zero, false
}

// =============================================================================
// DEFAULT RULES
// =============================================================================

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func lines(groups ...[]Allocation) []Allocation {
	var out []Allocation
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// DefaultRules is the dashboard's payout table.
func DefaultRules() RuleSet {
	remaining := Pool{Name: "remaining", Base: PoolAmount, Fraction: pct("0.7")}
	execOfAmount := Pool{Name: "executives", Base: PoolAmount, Fraction: pct("0.7")}
	execOfRemaining := Pool{Name: "executives", Base: "remaining", Fraction: pct("0.7")}
	thirty := SubmitterShare{Pool: PoolAmount, Fraction: pct("0.3")}

	return RuleSet{
		roster.SalesTeam: {
			{
				Name:      "sales-manager",
				When:      HoldsRole(roster.RoleSalesManager),
				Submitter: SubmitterShare{Pool: PoolAmount, Fraction: pct("0.2")},
				Pools:     []Pool{execOfAmount},
				Lines: lines(
					[]Allocation{{Role: roster.RoleSalesLead, Pool: PoolAmount, Fraction: pct("0.1"), Note: "10% from {name} (Sales Team)"}},
					Executives("executives", "C-suite share from {name} (Sales Team)", false),
				),
			},
			{
				Name:      "sales",
				When:      Always(),
				Submitter: thirty,
				Pools:     []Pool{remaining, execOfRemaining},
				Lines: lines(
					[]Allocation{
						{Role: roster.RoleSalesLead, Pool: "remaining", Fraction: pct("0.1"), Note: "Sales split from {name}"},
						{Role: roster.RoleSalesManager, Pool: "remaining", Fraction: pct("0.2"), Note: "Sales split from {name}"},
					},
					Executives("executives", "C-suite share from {name} (Sales Team)", false),
				),
			},
		},
		roster.StreamerTeam: {
			{
				Name:      "streamer-on-team",
				When:      OnTeam(roster.StreamerTeam),
				Submitter: SubmitterShare{Pool: PoolAmount, Fraction: decimal.Zero},
				Pools:     []Pool{{Name: "teamPot", Base: PoolAmount, Fraction: pct("0.3")}, execOfAmount},
				Lines: lines(
					[]Allocation{
						{Role: roster.RoleStreamLead, Pool: "teamPot", Fraction: pct("0.1"), Note: "Streamer team pot from {name}"},
						{Role: roster.RoleVideoLead, Pool: "teamPot", Fraction: pct("0.9"), Note: "Streamer team pot from {name}"},
					},
					Executives("executives", "C-suite share from {name} (Streamer Team)", false),
				),
			},
			{
				Name:      "streamer",
				When:      Always(),
				Submitter: thirty,
				Pools:     []Pool{remaining, execOfRemaining},
				Lines: lines(
					[]Allocation{
						{Role: roster.RoleStreamLead, Pool: "remaining", Fraction: pct("0.1"), Note: "Streamer split from {name}"},
						{Role: roster.RoleVideoLead, Pool: "remaining", Fraction: pct("0.2"), Note: "Streamer split from {name}"},
					},
					Executives("executives", "C-suite share from {name} (Streamer Team)", false),
				),
			},
		},
		roster.ContentTeam: {
			{
				Name:      "content-on-team",
				When:      OnTeam(roster.ContentTeam),
				Submitter: thirty,
				Pools:     []Pool{execOfAmount},
				Lines:     Executives("executives", "C-suite share from {name} (Content Team)", false),
			},
			{
				Name:      "content",
				When:      Always(),
				Submitter: thirty,
				Pools:     []Pool{remaining, execOfRemaining},
				Lines: lines(
					[]Allocation{{Role: roster.RoleContentLead, Pool: "remaining", Fraction: pct("0.3"), Note: "Content split from {name}"}},
					Executives("executives", "C-suite share from {name} (Content Team)", false),
				),
			},
		},
		roster.CSuite: {
			{
				Name:      "csuite-self",
				When:      OnTeam(roster.CSuite),
				Submitter: SubmitterShare{Pool: PoolAmount, ByExecutiveTier: true},
				Lines:     Executives(PoolAmount, "C-suite split from {name}", true),
			},
			{
				Name:      "csuite",
				When:      Always(),
				Submitter: thirty,
				Pools:     []Pool{execOfAmount},
				Lines:     Executives("executives", "C-suite share from {name} (C-suite target)", false),
			},
		},
	}
}

// =============================================================================
// LOOKUP + VALIDATION
// =============================================================================

// Match returns the first variant of team whose condition holds for submitter.
func (rs RuleSet) Match(team roster.Team, dir *roster.Directory, submitter roster.Employee) (Variant, error) {
	variants, ok := rs[team]
	if !ok {
		return Variant{}, &ValidationError{Field: "for_team", Reason: fmt.Sprintf("no rules for %q", team), Err: ErrUnknownTeam}
	}
	for _, v := range variants {
		if v.When.Matches(dir, submitter) {
			return v, nil
		}
	}
	return Variant{}, &ValidationError{Field: "for_team", Reason: fmt.Sprintf("no variant of %q matches submitter", team), Err: ErrUnknownTeam}
}

// Validate checks pool references and fractions across the rule set.
func (rs RuleSet) Validate() error {
	var problems []string
	for team, variants := range rs {
		if len(variants) == 0 {
			problems = append(problems, fmt.Sprintf("%s: no variants", team))
		}
		for _, v := range variants {
			problems = append(problems, v.problems(team)...)
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRules, strings.Join(problems, "; "))
	}
	return nil
}

func (v Variant) problems(team roster.Team) []string {
	var out []string
	where := fmt.Sprintf("%s/%s", team, v.Name)
	known := map[string]bool{PoolAmount: true}

	for _, p := range v.Pools {
		if !known[p.Base] {
			out = append(out, fmt.Sprintf("%s: pool %q uses unknown base %q", where, p.Name, p.Base))
		}
		if !validFraction(p.Fraction) {
			out = append(out, fmt.Sprintf("%s: pool %q fraction %s out of [0,1]", where, p.Name, p.Fraction))
		}
		known[p.Name] = true
	}
	if !known[v.Submitter.Pool] {
		out = append(out, fmt.Sprintf("%s: submitter uses unknown pool %q", where, v.Submitter.Pool))
	}
	if !v.Submitter.ByExecutiveTier && !validFraction(v.Submitter.Fraction) {
		out = append(out, fmt.Sprintf("%s: submitter fraction %s out of [0,1]", where, v.Submitter.Fraction))
	}
	for _, a := range v.Lines {
		if _, ok := roster.AliasFor(a.Role); !ok {
			out = append(out, fmt.Sprintf("%s: unknown role %q", where, a.Role))
		}
		if !known[a.Pool] {
			out = append(out, fmt.Sprintf("%s: %s uses unknown pool %q", where, a.Role, a.Pool))
		}
		if !validFraction(a.Fraction) {
			out = append(out, fmt.Sprintf("%s: %s fraction %s out of [0,1]", where, a.Role, a.Fraction))
		}
	}
	switch v.When.Kind {
	case CondAlways, CondHoldsRole, CondOnTeam:
	default:
		out = append(out, fmt.Sprintf("%s: unknown condition %q", where, v.When.Kind))
	}
	return out
}

func validFraction(f decimal.Decimal) bool {
	return !f.IsNegative() && f.LessThanOrEqual(decimal.NewFromInt(1))
}
