package core

import (
	"testing"
	"time"
)

func mayBudget(cat string, cents int64) Budget {
	return Budget{
		Category:        cat,
		AllocatedAmount: Money{Cents: cents},
		Month:           YearMonth{Year: 2025, Month: time.May},
		StartDate:       NewDate(2025, 5, 1, nil),
		EndDate:         NewDate(2025, 5, 31, nil),
	}
}

func TestCompareBudgetsOverBudget(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	got := CompareBudgets(map[string]Money{"Food": {Cents: 15000}}, []Budget{mayBudget("Food", 10000)}, now)
	if len(got) != 1 {
		t.Fatalf("expected one comparison, got %v", got)
	}
	c := got[0]
	if c.Allocated.Cents != 10000 || c.Spent.Cents != 15000 || c.Remaining.Cents != -5000 || !c.OverBudget {
		t.Fatalf("unexpected comparison %+v", c)
	}
	if c.PercentSpent != 100 || c.Level != LevelHigh {
		t.Fatalf("expected capped percentage and high level, got %v %s", c.PercentSpent, c.Level)
	}
}

func TestCompareBudgetsUnionAndOrphans(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	spend := map[string]Money{"Food": {Cents: 2000}, "Gifts": {Cents: 500}}
	budgets := []Budget{
		mayBudget("Food", 10000),
		mayBudget("Food", 5000),
		mayBudget("Travel", 30000),
	}
	expired := mayBudget("Gifts", 99999)
	expired.StartDate, expired.EndDate = NewDate(2025, 4, 1, nil), NewDate(2025, 4, 30, nil)
	budgets = append(budgets, expired)

	got := CompareBudgets(spend, budgets, now)
	want := []struct {
		cat       string
		allocated int64
		spent     int64
		over      bool
		level     BudgetLevel
	}{
		{"Food", 15000, 2000, false, LevelLow},
		{"Gifts", 0, 500, true, LevelHigh},
		{"Travel", 30000, 0, false, LevelLow},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %+v", len(want), got)
	}
	for i, w := range want {
		g := got[i]
		if g.Category != w.cat || g.Allocated.Cents != w.allocated || g.Spent.Cents != w.spent ||
			g.OverBudget != w.over || g.Level != w.level {
			t.Fatalf("row %d: got %+v, want %+v", i, g, w)
		}
	}

	tot := SumComparisons(got)
	if tot.Allocated.Cents != 45000 || tot.Spent.Cents != 2500 || tot.Remaining.Cents != 42500 {
		t.Fatalf("unexpected totals %+v", tot)
	}
}

func TestLevelBands(t *testing.T) {
	cases := []struct {
		allocated, spent int64
		level            BudgetLevel
	}{
		{100, 50, LevelLow},
		{100, 51, LevelMedium},
		{100, 75, LevelMedium},
		{100, 76, LevelHigh},
		{0, 0, LevelLow},
	}
	for _, tc := range cases {
		pct := PercentSpent(Money{Cents: tc.allocated}, Money{Cents: tc.spent})
		if got := LevelFor(pct); got != tc.level {
			t.Fatalf("%d/%d: level %s, want %s", tc.spent, tc.allocated, got, tc.level)
		}
	}
}
