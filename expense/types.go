/*
Package expense tracks company spending against company revenue.

EXPENSES:
  One record per purchase: category, vendor, description, amount and the
  day it was spent. Amounts are positive. Records are added and deleted,
  never edited.

CATEGORIES:
  A fixed list in tab order. Records carrying an unknown or empty category
  (older data) count towards Other in the totals.

ORDER:
  Lists are newest first: by expense date, then by creation time.

SEE ALSO:
  - totals.go: Category totals and revenue vs expenses
  - export.go: CSV export
  - ledger/aggregate.go: CompanyRevenue, the revenue side of the summary
*/
package expense

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/calendar"
)

// =============================================================================
// CATEGORIES
// =============================================================================

type Category string

const (
	Technology      Category = "Technology"       // domain names, third-party software
	CompanyPerks    Category = "Company Perks"    // tickets, lunches
	Marketing       Category = "Marketing"        // influencers, ads, acquisitions
	CompanyTravel   Category = "Company Travel"
	Dinner          Category = "Dinner"
	CameraEquipment Category = "Camera Equipment"
	Other           Category = "Other"
)

var categories = []Category{Technology, CompanyPerks, Marketing, CompanyTravel, Dinner, CameraEquipment, Other}

// Categories returns every category in tab order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// ParseCategory matches a category name, ignoring case and surrounding space.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range categories {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidExpense, s)
}

func (c Category) known() bool {
	for _, k := range categories {
		if c == k {
			return true
		}
	}
	return false
}

// =============================================================================
// EXPENSE
// =============================================================================

type Expense struct {
	ID             string
	Category       Category
	Vendor         string
	Description    string
	Amount         decimal.Decimal
	Date           calendar.Date // day of the purchase
	CreatedAt      time.Time     // assigned by the store
	CreatedBy      string        // principal uid
	CreatedByEmail string
}

// Validate checks the fields a new expense needs.
func (e Expense) Validate() error {
	switch {
	case !e.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be greater than 0", ErrInvalidExpense)
	case !e.Category.known():
		return fmt.Errorf("%w: unknown category %q", ErrInvalidExpense, e.Category)
	case e.Date.IsZero():
		return fmt.Errorf("%w: date is required", ErrInvalidExpense)
	}
	return nil
}

// Store persists expenses. ListExpenses is newest first; DeleteExpense
// fails with ErrExpenseNotFound for an unknown id.
type Store interface {
	AddExpense(ctx context.Context, e Expense) (Expense, error)
	ListExpenses(ctx context.Context) ([]Expense, error)
	DeleteExpense(ctx context.Context, id string) error
}

// Sort orders list newest first in place: by Date, then CreatedAt. Records
// without a date sort by creation time alone.
func Sort(list []Expense) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].sortKey(), list[j].sortKey()
		if !a.Equal(b) {
			return a.After(b)
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

func (e Expense) sortKey() time.Time {
	if e.Date.IsZero() {
		return e.CreatedAt
	}
	return e.Date.Time
}
