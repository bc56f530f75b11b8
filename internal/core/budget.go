package core

import (
	"sort"
	"time"
)

// BudgetLevel buckets the share of an allocation already spent.
type BudgetLevel string

const (
	LevelLow    BudgetLevel = "low"
	LevelMedium BudgetLevel = "medium"
	LevelHigh   BudgetLevel = "high"
)

// BudgetComparison is the allocated-versus-spent result for one category.
type BudgetComparison struct {
	Category     string      `json:"category"`
	Allocated    Money       `json:"allocated"`
	Spent        Money       `json:"spent"`
	Remaining    Money       `json:"remaining"`
	OverBudget   bool        `json:"overBudget"`
	PercentSpent float64     `json:"percentSpent"`
	Level        BudgetLevel `json:"level"`
}

type BudgetTotals struct {
	Allocated Money `json:"totalAllocated"`
	Spent     Money `json:"totalSpent"`
	Remaining Money `json:"remaining"`
}

// ActiveBudgets returns the budgets whose window contains now.
func ActiveBudgets(budgets []Budget, now time.Time) []Budget {
	out := make([]Budget, 0, len(budgets))
	for _, b := range budgets {
		if b.ActiveAt(now) {
			out = append(out, b)
		}
	}
	return out
}

// CompareBudgets joins per-category spend with the budgets active at now.
// Categories appear if they have spend, an active budget, or both. Several
// active budgets for one category add up. The result is ordered by category.
func CompareBudgets(byCategory map[string]Money, budgets []Budget, now time.Time) []BudgetComparison {
	allocated := map[string]Money{}
	for _, b := range ActiveBudgets(budgets, now) {
		allocated[b.Category] = allocated[b.Category].Add(b.AllocatedAmount)
	}

	cats := make(map[string]struct{}, len(byCategory)+len(allocated))
	for c := range byCategory {
		cats[c] = struct{}{}
	}
	for c := range allocated {
		cats[c] = struct{}{}
	}

	out := make([]BudgetComparison, 0, len(cats))
	for c := range cats {
		out = append(out, compareOne(c, allocated[c], byCategory[c]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

func compareOne(category string, allocated, spent Money) BudgetComparison {
	pct := PercentSpent(allocated, spent)
	return BudgetComparison{
		Category:     category,
		Allocated:    allocated,
		Spent:        spent,
		Remaining:    allocated.Sub(spent),
		OverBudget:   spent.Cents > allocated.Cents,
		PercentSpent: pct,
		Level:        LevelFor(pct),
	}
}

// PercentSpent is spent/allocated as a percentage capped at 100. Spend
// against a zero allocation counts as fully spent.
func PercentSpent(allocated, spent Money) float64 {
	if allocated.Cents <= 0 {
		if spent.Cents > 0 {
			return 100
		}
		return 0
	}
	p := float64(spent.Cents) / float64(allocated.Cents) * 100
	if p > 100 {
		return 100
	}
	return p
}

func LevelFor(pct float64) BudgetLevel {
	switch {
	case pct <= 50:
		return LevelLow
	case pct <= 75:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// SumComparisons totals a comparison for the budget page header.
func SumComparisons(cmp []BudgetComparison) BudgetTotals {
	var t BudgetTotals
	for _, c := range cmp {
		t.Allocated = t.Allocated.Add(c.Allocated)
		t.Spent = t.Spent.Add(c.Spent)
	}
	t.Remaining = t.Allocated.Sub(t.Spent)
	return t
}
