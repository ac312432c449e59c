package expense

import "github.com/shopspring/decimal"

// =============================================================================
// TOTALS
// =============================================================================

// Total sums every amount in list.
func Total(list []Expense) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range list {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// InCategory keeps the expenses filed under c, in list order.
func InCategory(list []Expense, c Category) []Expense {
	var out []Expense
	for _, e := range list {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

type CategoryTotal struct {
	Category Category
	Total    decimal.Decimal
	Count    int
}

// ByCategory totals list per category. Every category is present, in tab
// order, with zero when nothing was spent. Unknown categories count as Other.
func ByCategory(list []Expense) []CategoryTotal {
	out := make([]CategoryTotal, len(categories))
	index := make(map[Category]int, len(categories))
	for i, c := range categories {
		out[i] = CategoryTotal{Category: c, Total: decimal.Zero}
		index[c] = i
	}
	for _, e := range list {
		i, ok := index[e.Category]
		if !ok {
			i = index[Other]
		}
		out[i].Total = out[i].Total.Add(e.Amount)
		out[i].Count++
	}
	return out
}

// =============================================================================
// REVENUE VS EXPENSES
// =============================================================================

type Summary struct {
	Revenue    decimal.Decimal // company take-home
	Expenses   decimal.Decimal
	Net        decimal.Decimal
	Profitable bool // Net >= 0
	Categories []CategoryTotal
}

// Summarize compares company revenue with the expenses in list.
func Summarize(revenue decimal.Decimal, list []Expense) Summary {
	spent := Total(list)
	net := revenue.Sub(spent)
	return Summary{
		Revenue:    revenue,
		Expenses:   spent,
		Net:        net,
		Profitable: !net.IsNegative(),
		Categories: ByCategory(list),
	}
}
