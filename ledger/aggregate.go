package ledger

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/calendar"
	"github.com/warp/commission-engine/roster"
)

// DefaultTarget is the per-employee leaderboard goal in dollars.
var DefaultTarget = decimal.NewFromInt(10000)

// =============================================================================
// FILTERS
// =============================================================================

// InPeriod keeps the lines that belong to p, accepting legacy rows that
// only carry a start stamp.
func InPeriod(lines []PayoutLine, cal *calendar.Calendar, p calendar.BiWeek) []PayoutLine {
	var out []PayoutLine
	for _, l := range lines {
		if cal.Membership(p, l.BiWeekKey, l.BiWeekStart) {
			out = append(out, l)
		}
	}
	return out
}

// ForEmployee keeps the lines paid to employeeID.
func ForEmployee(lines []PayoutLine, employeeID string) []PayoutLine {
	var out []PayoutLine
	for _, l := range lines {
		if l.EmployeeID == employeeID {
			out = append(out, l)
		}
	}
	return out
}

// =============================================================================
// TOTALS
// =============================================================================

// Totals is the revenue and take-home sum for one employee.
type Totals struct {
	EmployeeID string
	Revenue    decimal.Decimal
	TakeHome   decimal.Decimal
	Lines      int
}

// TotalsByEmployee sums lines per employee id. Lines without an employee
// id are ignored.
func TotalsByEmployee(lines []PayoutLine) map[string]Totals {
	out := make(map[string]Totals)
	for _, l := range lines {
		if l.EmployeeID == "" {
			continue
		}
		t := out[l.EmployeeID]
		t.EmployeeID = l.EmployeeID
		t.Revenue = t.Revenue.Add(l.Revenue)
		t.TakeHome = t.TakeHome.Add(l.TakeHome)
		t.Lines++
		out[l.EmployeeID] = t
	}
	return out
}

// AllTimeRevenue sums revenue across every line.
func AllTimeRevenue(lines []PayoutLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Revenue)
	}
	return sum
}

func TotalTakeHome(lines []PayoutLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.TakeHome)
	}
	return sum
}

// CompanyRevenue sums take-home on lines whose recorded job title contains
// "company" (the retained-earnings entity).
func CompanyRevenue(lines []PayoutLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		if strings.Contains(strings.ToLower(l.JobTitle), "company") {
			sum = sum.Add(l.TakeHome)
		}
	}
	return sum
}

// =============================================================================
// TEAM CARDS
// =============================================================================

// EmployeeCard is one dashboard card: an employee with their totals.
type EmployeeCard struct {
	Employee roster.Employee
	Revenue  decimal.Decimal
	TakeHome decimal.Decimal
}

// TeamCards returns one card per member of team, in directory order,
// including members with no lines.
func TeamCards(dir *roster.Directory, lines []PayoutLine, team roster.Team) []EmployeeCard {
	totals := TotalsByEmployee(lines)
	members := dir.OnTeam(team)
	out := make([]EmployeeCard, 0, len(members))
	for _, e := range members {
		t := totals[e.ID]
		out = append(out, EmployeeCard{Employee: e, Revenue: t.Revenue, TakeHome: t.TakeHome})
	}
	return out
}

// =============================================================================
// LEADERBOARD
// =============================================================================

type LeaderboardEntry struct {
	Rank     int
	Employee roster.Employee
	Revenue  decimal.Decimal
	TakeHome decimal.Decimal
	Progress decimal.Decimal // Revenue / target, clamped to [0, 1]
	OverGoal bool
}

// Leaderboard ranks every employee by revenue, highest first. Employees
// with no lines appear with zero totals; ties keep directory order.
func Leaderboard(employees []roster.Employee, lines []PayoutLine, target decimal.Decimal) []LeaderboardEntry {
	totals := TotalsByEmployee(lines)

	entries := make([]LeaderboardEntry, 0, len(employees))
	for _, e := range employees {
		t := totals[e.ID]
		entries = append(entries, LeaderboardEntry{
			Employee: e,
			Revenue:  t.Revenue,
			TakeHome: t.TakeHome,
			Progress: progress(t.Revenue, target),
			OverGoal: t.Revenue.GreaterThan(target),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Revenue.GreaterThan(entries[j].Revenue)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func progress(value, target decimal.Decimal) decimal.Decimal {
	if !target.IsPositive() {
		target = decimal.NewFromInt(1)
	}
	p := value.Div(target)
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return p
}
