// Package dashboard keeps the latest decoded snapshots of the expense, bill
// and budget collections and derives the dashboard summaries from them on
// demand.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetdash/internal/cache"
	"budgetdash/internal/core"
	"budgetdash/internal/feed"
	"budgetdash/internal/log"
	"budgetdash/internal/metrics"
)

// Watched are the collections the view subscribes to.
var Watched = []core.Collection{core.CollectionExpenses, core.CollectionBills, core.CollectionBudgets}

// Inputs is an immutable set of decoded records. A new value replaces the
// old one on every snapshot delivery.
type Inputs struct {
	Expenses []core.Expense
	Bills    []core.Bill
	Budgets  []core.Budget

	Skipped map[core.Collection][]*core.MalformedRecordError
	Errors  map[core.Collection]error
	Seen    map[core.Collection]bool

	Version   uint64
	UpdatedAt time.Time
}

// Ready reports whether every watched collection delivered a snapshot.
func (in *Inputs) Ready() bool {
	for _, c := range Watched {
		if !in.Seen[c] {
			return false
		}
	}
	return true
}

// SkippedCount is the number of malformed records across collections.
func (in *Inputs) SkippedCount() int {
	n := 0
	for _, s := range in.Skipped {
		n += len(s)
	}
	return n
}

func (in *Inputs) clone() *Inputs {
	out := *in
	out.Skipped = make(map[core.Collection][]*core.MalformedRecordError, len(in.Skipped))
	for k, v := range in.Skipped {
		out.Skipped[k] = v
	}
	out.Errors = make(map[core.Collection]error, len(in.Errors))
	for k, v := range in.Errors {
		out.Errors[k] = v
	}
	out.Seen = make(map[core.Collection]bool, len(in.Seen))
	for k, v := range in.Seen {
		out.Seen[k] = v
	}
	return &out
}

// Listener is called after each swap with the new inputs.
type Listener func(ctx context.Context, in *Inputs)

// View owns the current Inputs. Readers never block writers: they load the
// pointer and work on an immutable value.
type View struct {
	sub     *feed.Subscriber
	loc     *time.Location
	logger  *log.Logger
	metrics *metrics.Metrics

	inputs atomic.Pointer[Inputs]
	swapMu sync.Mutex

	listenersMu sync.RWMutex
	listeners   []Listener

	months *cache.LRUCache[core.MonthOverview]
}

// NewView decodes dates without an offset as calendar dates in loc.
func NewView(sub *feed.Subscriber, loc *time.Location, logger *log.Logger, m *metrics.Metrics) *View {
	if logger == nil {
		logger = log.Discard()
	}
	if loc == nil {
		loc = time.UTC
	}
	v := &View{
		sub:     sub,
		loc:     loc,
		logger:  logger.WithComponent(log.ComponentDashboard),
		metrics: m,
		months:  cache.NewLRUCache[core.MonthOverview](64, 10*time.Minute),
	}
	v.inputs.Store(&Inputs{
		Skipped: map[core.Collection][]*core.MalformedRecordError{},
		Errors:  map[core.Collection]error{},
		Seen:    map[core.Collection]bool{},
	})
	return v
}

// OnChange registers fn to run after every swap.
func (v *View) OnChange(fn Listener) {
	v.listenersMu.Lock()
	defer v.listenersMu.Unlock()
	v.listeners = append(v.listeners, fn)
}

// MonthCache exposes the month overview cache for periodic cleanup.
func (v *View) MonthCache() *cache.LRUCache[core.MonthOverview] { return v.months }

func (v *View) Inputs() *Inputs { return v.inputs.Load() }

func (v *View) Ready() bool { return v.Inputs().Ready() }

// Run subscribes to the watched collections and applies deliveries until
// ctx is done.
func (v *View) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range Watched {
		snaps := v.sub.Subscribe(ctx, c)
		g.Go(func() error {
			for snap := range snaps {
				v.Apply(ctx, snap)
			}
			return ctx.Err()
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Apply decodes snap and swaps in new inputs. A failed read keeps the last
// good records of that collection and records the error.
func (v *View) Apply(ctx context.Context, snap feed.Snapshot) {
	start := time.Now()

	v.swapMu.Lock()
	next := v.inputs.Load().clone()
	next.Version++
	next.UpdatedAt = start

	var skipped []*core.MalformedRecordError
	if snap.Err != nil {
		next.Errors[snap.Collection] = snap.Err
	} else {
		delete(next.Errors, snap.Collection)
		next.Seen[snap.Collection] = true
		switch snap.Collection {
		case core.CollectionExpenses:
			d := core.DecodeExpenses(snap.Documents, v.loc)
			next.Expenses, skipped = d.Records, d.Skipped
		case core.CollectionBills:
			d := core.DecodeBills(snap.Documents, v.loc)
			next.Bills, skipped = d.Records, d.Skipped
		case core.CollectionBudgets:
			d := core.DecodeBudgets(snap.Documents, v.loc)
			next.Budgets, skipped = d.Records, d.Skipped
		default:
			v.swapMu.Unlock()
			v.logger.WarnContext(ctx, "Ignoring snapshot of unwatched collection", log.FieldCollection, snap.Collection)
			return
		}
		next.Skipped[snap.Collection] = skipped
	}
	v.inputs.Store(next)
	v.swapMu.Unlock()

	v.metrics.Snapshot(string(snap.Collection), len(skipped), snap.Err)
	v.metrics.ObserveRecompute(time.Since(start))

	if snap.Err != nil {
		v.logger.WarnContext(ctx, "Snapshot unavailable, keeping previous records",
			log.FieldCollection, snap.Collection, log.FieldSeq, snap.Seq, log.FieldError, snap.Err)
	} else {
		for _, s := range skipped {
			v.logger.WarnContext(ctx, "Skipping malformed record",
				log.FieldCollection, s.Collection, log.FieldDocumentID, s.ID, "field", s.Field, log.FieldError, s.Err)
		}
		v.logger.DebugContext(ctx, "Snapshot applied",
			log.FieldCollection, snap.Collection, log.FieldSeq, snap.Seq,
			"records", len(snap.Documents)-len(skipped), log.FieldSkipped, len(skipped),
			"version", next.Version)
	}

	v.listenersMu.RLock()
	ls := append([]Listener(nil), v.listeners...)
	v.listenersMu.RUnlock()
	for _, fn := range ls {
		fn(ctx, next)
	}
}

// ExpensesInMonth filters the current expenses to ym in loc. Results are
// cached per inputs version.
func (v *View) ExpensesInMonth(ym core.YearMonth, loc *time.Location) core.MonthOverview {
	return v.ExpensesInMonthOf(v.Inputs(), ym, loc)
}

// ExpensesInMonthOf is ExpensesInMonth over a given Inputs value, cached by
// its version.
func (v *View) ExpensesInMonthOf(in *Inputs, ym core.YearMonth, loc *time.Location) core.MonthOverview {
	if loc == nil {
		loc = time.UTC
	}
	key := fmt.Sprintf("%d|%s|%s", in.Version, ym, loc)
	if ov, ok := v.months.Get(key); ok {
		return ov
	}
	ov := core.ExpensesInMonth(in.Expenses, ym, loc)
	v.months.Set(key, ov)
	return ov
}
