// Package export publishes the derived dashboard to an external sink
// whenever the inputs change, at most once per interval.
package export

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"budgetdash/internal/core"
	"budgetdash/internal/dashboard"
	"budgetdash/internal/log"
	"budgetdash/internal/metrics"
)

// Report is everything a sink needs to render one export.
type Report struct {
	Summary dashboard.Summary
	Budgets dashboard.BudgetReport
	Bills   dashboard.BillsReport
	Month   core.MonthOverview
}

// Sink receives reports.
type Sink interface {
	Publish(ctx context.Context, r Report) error
}

// BuildReport derives a Report from the view at now. Every section comes
// from the same inputs version.
func BuildReport(v *dashboard.View, now time.Time) Report {
	in := v.Inputs()
	return Report{
		Summary: dashboard.SummaryOf(in, now),
		Budgets: dashboard.BudgetsOf(in, now),
		Bills:   dashboard.BillsOf(in, now),
		Month:   v.ExpensesInMonthOf(in, core.YearMonth{Year: now.Year(), Month: now.Month()}, now.Location()),
	}
}

// Loop exports the view to a sink after it changes. Figures relative to
// today are refreshed when the calendar day in loc rolls over, even without
// new data.
type Loop struct {
	view     *dashboard.View
	sink     Sink
	interval time.Duration
	loc      *time.Location
	logger   *log.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	dirty atomic.Bool

	mu          sync.Mutex
	exported    uint64 // inputs version of the last export
	exportedDay string // calendar day of the last export in loc
}

func NewLoop(v *dashboard.View, sink Sink, interval time.Duration, loc *time.Location, logger *log.Logger, m *metrics.Metrics) *Loop {
	if logger == nil {
		logger = log.Discard()
	}
	if loc == nil {
		loc = time.UTC
	}
	l := &Loop{
		view:     v,
		sink:     sink,
		interval: interval,
		loc:      loc,
		logger:   logger.WithComponent(log.ComponentExport),
		metrics:  m,
		now:      time.Now,
	}
	v.OnChange(func(context.Context, *dashboard.Inputs) { l.dirty.Store(true) })
	return l
}

// Run checks for changes every interval until ctx is done. Nothing is
// exported before the view is ready.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := l.ExportIfChanged(ctx); err != nil {
				l.logger.ErrorContext(ctx, "Export failed", log.FieldError, err, log.FieldErrorType, log.ErrorTypeNetwork)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// ExportIfChanged publishes a report when the view changed or the calendar
// day moved on since the last successful export. It reports whether an
// export happened.
func (l *Loop) ExportIfChanged(ctx context.Context) (bool, error) {
	if !l.view.Ready() {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().In(l.loc)
	day := now.Format(time.DateOnly)
	dirty := l.dirty.Swap(false)
	if !dirty && day == l.exportedDay {
		return false, nil
	}
	r := BuildReport(l.view, now)
	if r.Summary.Version == l.exported && day == l.exportedDay {
		return false, nil
	}

	start := time.Now()
	err := l.sink.Publish(ctx, r)
	l.metrics.Export(err)
	if err != nil {
		l.dirty.Store(true)
		return false, err
	}
	l.exported, l.exportedDay = r.Summary.Version, day
	l.logger.InfoContext(ctx, "Dashboard exported",
		"version", r.Summary.Version, "day", day,
		log.FieldDuration, time.Since(start).Milliseconds(), log.FieldSkipped, r.Summary.Skipped)
	return true, nil
}
