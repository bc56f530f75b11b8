package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"budgetdash/internal/core"
	"budgetdash/internal/store"
	"budgetdash/internal/store/storetest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "budget.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openTemp(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	if err := RunMigrations(DSN(path)); err != nil {
		t.Fatalf("second migration run: %v", err)
	}
}

func TestNumbersDecodeAsJSONNumber(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	id, err := s.Insert(ctx, core.CollectionExpenses, map[string]any{"amount": 0.1, "date": "2025-01-01"})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := s.Get(ctx, core.CollectionExpenses, id)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := doc.Fields["amount"].(json.Number); !ok {
		t.Fatalf("expected json.Number, got %T", doc.Fields["amount"])
	}
	e, derr := core.DecodeExpense(doc, nil)
	if derr != nil || e.Amount.Cents != 10 {
		t.Fatalf("unexpected decode %+v %v", e, derr)
	}
}

func TestConcurrentTransactionsSerialise(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	id, err := s.Insert(ctx, core.CollectionBills, map[string]any{"status": "pending"})
	if err != nil {
		t.Fatal(err)
	}

	errAlready := errors.New("already paid")
	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
				doc, err := tx.Get(ctx, core.CollectionBills, id)
				if err != nil {
					return err
				}
				if doc.Fields["status"] == "paid" {
					return errAlready
				}
				if err := tx.Update(ctx, core.CollectionBills, id, map[string]any{"status": "paid"}); err != nil {
					return err
				}
				_, err = tx.Insert(ctx, core.CollectionExpenses, map[string]any{"billId": id})
				return err
			})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, errAlready):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one successful payment, got %d", ok)
	}
	exps, _ := s.Snapshot(ctx, core.CollectionExpenses)
	if len(exps) != 1 {
		t.Fatalf("expected one expense, got %d", len(exps))
	}
}

func TestClosedDatabaseIsUnavailable(t *testing.T) {
	s := openTemp(t)
	s.Close()
	_, err := s.Snapshot(context.Background(), core.CollectionExpenses)
	if !errors.Is(err, core.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
