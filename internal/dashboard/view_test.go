package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgetdash/internal/core"
	"budgetdash/internal/feed"
	"budgetdash/internal/storage/memory"
	"budgetdash/internal/store"
)

var rome = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		return time.FixedZone("CET", 3600)
	}
	return loc
}()

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func newRunningView(t *testing.T) (*View, store.Store) {
	t.Helper()
	hub := feed.NewHub()
	st := store.NewNotifying(memory.New(), hub)
	view := NewView(feed.NewSubscriber(st, hub, nil), time.UTC, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- view.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run returned %v", err)
		}
	})
	return view, st
}

func TestViewBecomesReadyAndTracksChanges(t *testing.T) {
	view, st := newRunningView(t)
	ctx := context.Background()

	waitFor(t, view.Ready)

	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	if _, err := st.Insert(ctx, core.CollectionExpenses, map[string]any{
		"amount": 12.5, "category": "Food", "date": "2024-03-15",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Insert(ctx, core.CollectionExpenses, map[string]any{
		"amount": "bad", "category": "Food", "date": "2024-03-15",
	}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(view.Inputs().Expenses) == 1 && view.Inputs().SkippedCount() == 1 })

	s := view.Summary(now)
	if s.TotalToDate.Cents != 1250 || s.TotalToday.Cents != 1250 {
		t.Errorf("totals = %v / %v", s.TotalToDate, s.TotalToday)
	}
	if s.Skipped != 1 || len(s.SkippedRecords) != 1 || s.SkippedRecords[0].Field != "amount" {
		t.Errorf("skipped = %+v", s.SkippedRecords)
	}
}

func TestApplyKeepsPreviousRecordsOnError(t *testing.T) {
	view := NewView(nil, time.UTC, nil, nil)
	ctx := context.Background()

	view.Apply(ctx, feed.Snapshot{Collection: core.CollectionBills, Documents: []core.Document{
		{ID: "b1", Fields: map[string]any{"name": "Rent", "amount": 100.0, "dueDate": "2024-03-20", "status": "pending"}},
	}})
	view.Apply(ctx, feed.Snapshot{Collection: core.CollectionBills, Err: errors.Join(core.ErrStoreUnavailable, errors.New("boom"))})

	in := view.Inputs()
	if len(in.Bills) != 1 {
		t.Fatalf("bills = %d, want previous record kept", len(in.Bills))
	}
	if in.Errors[core.CollectionBills] == nil {
		t.Error("error not recorded")
	}
	s := SummaryOf(in, time.Now())
	if len(s.Unavailable) != 1 || s.Unavailable[0] != core.CollectionBills {
		t.Errorf("unavailable = %v", s.Unavailable)
	}
	if in.Version != 2 {
		t.Errorf("version = %d", in.Version)
	}

	view.Apply(ctx, feed.Snapshot{Collection: core.CollectionBills})
	if view.Inputs().Errors[core.CollectionBills] != nil {
		t.Error("error not cleared by a good snapshot")
	}
}

func TestOnChangeListenersSeeNewInputs(t *testing.T) {
	view := NewView(nil, time.UTC, nil, nil)
	var got []uint64
	view.OnChange(func(_ context.Context, in *Inputs) { got = append(got, in.Version) })

	view.Apply(context.Background(), feed.Snapshot{Collection: core.CollectionBudgets})
	view.Apply(context.Background(), feed.Snapshot{Collection: core.CollectionExpenses})

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("listener versions = %v", got)
	}
	if view.Ready() {
		t.Error("ready without a bills snapshot")
	}
}

func TestBudgetsReport(t *testing.T) {
	view := NewView(nil, time.UTC, nil, nil)
	ctx := context.Background()
	now := time.Date(2024, 3, 15, 9, 0, 0, 0, rome)

	view.Apply(ctx, feed.Snapshot{Collection: core.CollectionExpenses, Documents: []core.Document{
		{ID: "e1", Fields: map[string]any{"amount": 150.0, "category": "Food", "date": "2024-03-10"}},
	}})
	view.Apply(ctx, feed.Snapshot{Collection: core.CollectionBudgets, Documents: []core.Document{
		{ID: "g1", Fields: map[string]any{"category": "Food", "allocatedAmount": 100.0, "startDate": "2024-03-01", "endDate": "2024-03-31"}},
		{ID: "g2", Fields: map[string]any{"category": "Travel", "allocatedAmount": 50.0, "startDate": "2023-01-01", "endDate": "2023-01-31"}},
	}})

	r := view.Budgets(now)
	if len(r.Active) != 1 {
		t.Fatalf("active = %d, want 1", len(r.Active))
	}
	if len(r.Comparisons) != 1 {
		t.Fatalf("comparisons = %+v", r.Comparisons)
	}
	c := r.Comparisons[0]
	if !c.OverBudget || c.Remaining.Cents != -5000 || c.PercentSpent != 100 || c.Level != core.LevelHigh {
		t.Errorf("comparison = %+v", c)
	}
	if r.Totals.Spent.Cents != 15000 || r.Totals.Allocated.Cents != 10000 {
		t.Errorf("totals = %+v", r.Totals)
	}
}

func TestExpensesInMonthCachedPerVersion(t *testing.T) {
	view := NewView(nil, time.UTC, nil, nil)
	ctx := context.Background()
	ym := core.YearMonth{Year: 2024, Month: time.March}

	view.Apply(ctx, feed.Snapshot{Collection: core.CollectionExpenses, Documents: []core.Document{
		{ID: "e1", Fields: map[string]any{"amount": 10.0, "category": "Food", "date": "2024-03-10"}},
	}})
	first := view.ExpensesInMonth(ym, time.UTC)
	again := view.ExpensesInMonth(ym, time.UTC)
	if first.Total != again.Total || first.Total.Cents != 1000 {
		t.Fatalf("totals %v / %v", first.Total, again.Total)
	}
	if hits, _ := view.MonthCache().Stats(); hits != 1 {
		t.Errorf("cache hits = %d, want 1", hits)
	}

	view.Apply(ctx, feed.Snapshot{Collection: core.CollectionExpenses, Documents: []core.Document{
		{ID: "e1", Fields: map[string]any{"amount": 10.0, "category": "Food", "date": "2024-03-10"}},
		{ID: "e2", Fields: map[string]any{"amount": 5.0, "category": "Fun", "date": "2024-03-11"}},
	}})
	if got := view.ExpensesInMonth(ym, time.UTC); got.Total.Cents != 1500 || len(got.ByCategory) != 2 {
		t.Errorf("after change = %+v", got)
	}
}

func TestBillsReportClassifies(t *testing.T) {
	view := NewView(nil, time.UTC, nil, nil)
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	view.Apply(context.Background(), feed.Snapshot{Collection: core.CollectionBills, Documents: []core.Document{
		{ID: "a", Fields: map[string]any{"name": "Rent", "amount": 500.0, "dueDate": "2024-03-20", "status": "pending"}},
		{ID: "b", Fields: map[string]any{"name": "Power", "amount": 60.0, "dueDate": "2024-04-02", "status": "pending"}},
		{ID: "c", Fields: map[string]any{"name": "Water", "amount": 20.0, "dueDate": "2024-03-01", "status": "paid"}},
	}})
	r := view.Bills(now)
	if len(r.DueThisMonth) != 1 || len(r.Upcoming) != 1 || len(r.Paid) != 1 {
		t.Errorf("classification = %+v", r.BillClassification)
	}
}
