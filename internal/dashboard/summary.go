package dashboard

import (
	"time"

	"budgetdash/internal/core"
)

// SkippedRecord is the reportable form of a malformed record.
type SkippedRecord struct {
	Collection core.Collection `json:"collection"`
	ID         string          `json:"id"`
	Field      string          `json:"field"`
	Reason     string          `json:"reason"`
}

// Summary is the main dashboard payload.
type Summary struct {
	core.AggregateResult
	UpcomingBills  []core.Bill       `json:"upcomingBills"`
	Skipped        int               `json:"skipped"`
	SkippedRecords []SkippedRecord   `json:"skippedRecords"`
	Unavailable    []core.Collection `json:"unavailable,omitempty"`
	Version        uint64            `json:"version"`
	AsOf           time.Time         `json:"asOf"`
}

// BudgetReport is the budget page payload.
type BudgetReport struct {
	Comparisons []core.BudgetComparison `json:"comparisons"`
	Totals      core.BudgetTotals       `json:"totals"`
	Active      []core.Budget           `json:"active"`
	Version     uint64                  `json:"version"`
	AsOf        time.Time               `json:"asOf"`
}

// BillsReport is the bills page payload.
type BillsReport struct {
	core.BillClassification
	Version uint64    `json:"version"`
	AsOf    time.Time `json:"asOf"`
}

// Summary derives the dashboard totals at now.
func (v *View) Summary(now time.Time) Summary {
	return SummaryOf(v.Inputs(), now)
}

func (v *View) Budgets(now time.Time) BudgetReport {
	return BudgetsOf(v.Inputs(), now)
}

func (v *View) Bills(now time.Time) BillsReport {
	return BillsOf(v.Inputs(), now)
}

// SummaryOf is the pure derivation behind View.Summary.
func SummaryOf(in *Inputs, now time.Time) Summary {
	s := Summary{
		AggregateResult: core.Aggregate(in.Expenses, now),
		UpcomingBills:   core.UpcomingUnpaid(in.Bills),
		Skipped:         in.SkippedCount(),
		SkippedRecords:  []SkippedRecord{},
		Version:         in.Version,
		AsOf:            now,
	}
	for _, c := range Watched {
		for _, m := range in.Skipped[c] {
			s.SkippedRecords = append(s.SkippedRecords, SkippedRecord{
				Collection: m.Collection, ID: m.ID, Field: m.Field, Reason: m.Err.Error(),
			})
		}
		if in.Errors[c] != nil {
			s.Unavailable = append(s.Unavailable, c)
		}
	}
	return s
}

func BillsOf(in *Inputs, now time.Time) BillsReport {
	return BillsReport{BillClassification: core.ClassifyBills(in.Bills, now), Version: in.Version, AsOf: now}
}

// BudgetsOf compares spend against the budgets active at now.
func BudgetsOf(in *Inputs, now time.Time) BudgetReport {
	agg := core.Aggregate(in.Expenses, now)
	cmp := core.CompareBudgets(agg.ByCategory, in.Budgets, now)
	return BudgetReport{
		Comparisons: cmp,
		Totals:      core.SumComparisons(cmp),
		Active:      core.ActiveBudgets(in.Budgets, now),
		Version:     in.Version,
		AsOf:        now,
	}
}
