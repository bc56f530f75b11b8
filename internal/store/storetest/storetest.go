// Package storetest holds behaviour tests shared by every store backend.
package storetest

import (
	"context"
	"errors"
	"testing"

	"budgetdash/internal/core"
	"budgetdash/internal/store"
)

// Run exercises s against the store contract. newStore must return an empty
// store for each call.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("InsertGetSnapshot", func(t *testing.T) { testInsertGetSnapshot(t, newStore(t)) })
	t.Run("UpdateMerges", func(t *testing.T) { testUpdateMerges(t, newStore(t)) })
	t.Run("MissingDocument", func(t *testing.T) { testMissing(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("Decodable", func(t *testing.T) { testDecodable(t, newStore(t)) })
	t.Run("Transaction", func(t *testing.T) {
		s := newStore(t)
		if _, ok := s.(store.Transactor); !ok {
			t.Skip("store does not support transactions")
		}
		testTransaction(t, s)
	})
}

func testInsertGetSnapshot(t *testing.T, s store.Store) {
	ctx := context.Background()
	id, err := s.Insert(ctx, core.CollectionBills, map[string]any{"name": "Rent", "amount": 900.0})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == "" {
		t.Fatalf("expected store-assigned id")
	}
	if _, err := s.Insert(ctx, core.CollectionExpenses, map[string]any{"amount": 1.0}); err != nil {
		t.Fatalf("insert expense: %v", err)
	}

	doc, err := s.Get(ctx, core.CollectionBills, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.ID != id || doc.Fields["name"] != "Rent" {
		t.Fatalf("unexpected document %+v", doc)
	}

	docs, err := s.Snapshot(ctx, core.CollectionBills)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != id {
		t.Fatalf("snapshot leaked other collections: %+v", docs)
	}

	empty, err := s.Snapshot(ctx, core.CollectionPositions)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty snapshot, got %v %v", empty, err)
	}
}

func testUpdateMerges(t *testing.T, s store.Store) {
	ctx := context.Background()
	id, err := s.Insert(ctx, core.CollectionBills, map[string]any{"name": "Rent", "status": "pending"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Update(ctx, core.CollectionBills, id, map[string]any{"status": "paid"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	doc, err := s.Get(ctx, core.CollectionBills, id)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Fields["status"] != "paid" || doc.Fields["name"] != "Rent" {
		t.Fatalf("update did not merge: %+v", doc.Fields)
	}
}

func testMissing(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.Get(ctx, core.CollectionBills, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
	if err := s.Update(ctx, core.CollectionBills, "nope", map[string]any{"a": 1}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, core.CollectionBills, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("delete: expected ErrNotFound, got %v", err)
	}
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	id, err := s.Insert(ctx, core.CollectionDepartments, map[string]any{"name": "Ops"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, core.CollectionDepartments, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	docs, err := s.Snapshot(ctx, core.CollectionDepartments)
	if err != nil || len(docs) != 0 {
		t.Fatalf("expected empty collection after delete, got %v %v", docs, err)
	}
}

// testDecodable checks that what the core writes reads back as the same record.
func testDecodable(t *testing.T, s store.Store) {
	ctx := context.Background()
	bill := core.Bill{
		Name:        "Power",
		Amount:      core.Money{Cents: 4599},
		DueDate:     core.NewDate(2025, 6, 3, nil),
		Description: "June",
		Category:    "Utilities",
		Status:      core.BillPending,
	}
	id, err := s.Insert(ctx, core.CollectionBills, core.BillFields(bill))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := s.Get(ctx, core.CollectionBills, id)
	if err != nil {
		t.Fatal(err)
	}
	got, derr := core.DecodeBill(doc, nil)
	if derr != nil {
		t.Fatalf("decode: %v", derr)
	}
	bill.ID = id
	if got.Amount != bill.Amount || !got.DueDate.Equal(bill.DueDate.Time) || got.Category != bill.Category || got.Status != bill.Status {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, bill)
	}
}

func testTransaction(t *testing.T, s store.Store) {
	ctx := context.Background()
	tr := s.(store.Transactor)

	billID, err := s.Insert(ctx, core.CollectionBills, map[string]any{"name": "Rent", "status": "pending"})
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err = tr.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Update(ctx, core.CollectionBills, billID, map[string]any{"status": "paid"}); err != nil {
			return err
		}
		if _, err := tx.Insert(ctx, core.CollectionExpenses, map[string]any{"billId": billID}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to propagate, got %v", err)
	}
	doc, _ := s.Get(ctx, core.CollectionBills, billID)
	if doc.Fields["status"] != "pending" {
		t.Fatalf("rolled back transaction leaked status %v", doc.Fields["status"])
	}
	if exps, _ := s.Snapshot(ctx, core.CollectionExpenses); len(exps) != 0 {
		t.Fatalf("rolled back transaction leaked expenses %v", exps)
	}

	err = tr.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.Get(ctx, core.CollectionBills, billID)
		if err != nil {
			return err
		}
		if cur.Fields["status"] != "pending" {
			return errors.New("unexpected status inside transaction")
		}
		if err := tx.Update(ctx, core.CollectionBills, billID, map[string]any{"status": "paid"}); err != nil {
			return err
		}
		_, err = tx.Insert(ctx, core.CollectionExpenses, map[string]any{"billId": billID})
		return err
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	doc, _ = s.Get(ctx, core.CollectionBills, billID)
	if doc.Fields["status"] != "paid" {
		t.Fatalf("committed status not visible: %v", doc.Fields)
	}
	if exps, _ := s.Snapshot(ctx, core.CollectionExpenses); len(exps) != 1 {
		t.Fatalf("expected one committed expense, got %d", len(exps))
	}

	if err := tr.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Get(ctx, core.CollectionBills, "missing")
		return err
	}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound inside transaction, got %v", err)
	}
}
