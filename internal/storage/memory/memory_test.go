package memory

import (
	"context"
	"sync"
	"testing"

	"budgetdash/internal/core"
	"budgetdash/internal/store"
	"budgetdash/internal/store/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	id, _ := s.Insert(ctx, core.CollectionExpenses, map[string]any{"amount": 1.0})

	docs, _ := s.Snapshot(ctx, core.CollectionExpenses)
	docs[0].Fields["amount"] = 99.0

	doc, _ := s.Get(ctx, core.CollectionExpenses, id)
	if doc.Fields["amount"] != 1.0 {
		t.Fatalf("snapshot mutation leaked into the store")
	}
}

func TestConcurrentWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Insert(ctx, core.CollectionExpenses, map[string]any{"amount": 1.0})
		}()
	}
	wg.Wait()
	docs, _ := s.Snapshot(ctx, core.CollectionExpenses)
	if len(docs) != 50 {
		t.Fatalf("expected 50 documents, got %d", len(docs))
	}
}

func TestNotifyingKeepsTransactions(t *testing.T) {
	var mu sync.Mutex
	var got []store.Change
	n := store.NotifierFunc(func(_ context.Context, ch store.Change) {
		mu.Lock()
		got = append(got, ch)
		mu.Unlock()
	})
	s := store.NewNotifying(New(), n)
	tr, ok := s.(store.Transactor)
	if !ok {
		t.Fatalf("decorated memory store lost transaction support")
	}

	ctx := context.Background()
	id, err := s.Insert(ctx, core.CollectionBills, map[string]any{"status": "pending"})
	if err != nil {
		t.Fatal(err)
	}
	err = tr.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Update(ctx, core.CollectionBills, id, map[string]any{"status": "paid"}); err != nil {
			return err
		}
		_, err := tx.Insert(ctx, core.CollectionExpenses, map[string]any{"billId": id})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 changes, got %+v", got)
	}
	if got[1].Op != store.OpUpdate || got[1].Collection != core.CollectionBills ||
		got[2].Op != store.OpInsert || got[2].Collection != core.CollectionExpenses {
		t.Fatalf("unexpected changes %+v", got)
	}
	for _, ch := range got {
		if ch.At.IsZero() {
			t.Fatalf("change without timestamp %+v", ch)
		}
	}
}
