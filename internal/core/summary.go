package core

import (
	"sort"
	"time"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"` // 1-12
	Total      Money            `json:"total"`
	ByCategory []CategoryAmount `json:"byCategory"`
	Expenses   []Expense        `json:"-"`
}

// SortedCategories flattens a category map into a slice ordered by name.
func SortedCategories(m map[string]Money) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(m))
	for name, amt := range m {
		out = append(out, CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ExpensesInMonth filters expenses to the calendar month ym (in loc) and
// totals them. Expenses are returned oldest first.
func ExpensesInMonth(expenses []Expense, ym YearMonth, loc *time.Location) MonthOverview {
	if loc == nil {
		loc = time.UTC
	}
	ov := MonthOverview{Year: ym.Year, Month: int(ym.Month)}
	byCat := map[string]Money{}
	for _, e := range expenses {
		if e.Date.YearMonthIn(loc) != ym {
			continue
		}
		ov.Expenses = append(ov.Expenses, e)
		ov.Total = ov.Total.Add(e.Amount)
		if e.Category != "" {
			byCat[e.Category] = byCat[e.Category].Add(e.Amount)
		}
	}
	sort.SliceStable(ov.Expenses, func(i, j int) bool {
		return ov.Expenses[i].Date.Before(ov.Expenses[j].Date.Time)
	})
	ov.ByCategory = SortedCategories(byCat)
	return ov
}
