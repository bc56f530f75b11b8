package store

import (
	"context"
	"time"

	"budgetdash/internal/core"
)

// Notifying wraps a Store and reports every successful write to a Notifier.
type Notifying struct {
	inner Store
	n     Notifier
	now   func() time.Time
}

type notifyingTransactor struct {
	*Notifying
	tx Transactor
}

// NewNotifying decorates s. The result implements Transactor exactly when s
// does, so callers can keep type-asserting for transaction support.
func NewNotifying(s Store, n Notifier) Store {
	ns := &Notifying{inner: s, n: n, now: time.Now}
	if t, ok := s.(Transactor); ok {
		return &notifyingTransactor{Notifying: ns, tx: t}
	}
	return ns
}

func (s *Notifying) notify(ctx context.Context, c core.Collection, id string, op Op) {
	s.n.Notify(ctx, Change{Collection: c, ID: id, Op: op, At: s.now()})
}

func (s *Notifying) Snapshot(ctx context.Context, c core.Collection) ([]core.Document, error) {
	return s.inner.Snapshot(ctx, c)
}

func (s *Notifying) Get(ctx context.Context, c core.Collection, id string) (core.Document, error) {
	return s.inner.Get(ctx, c, id)
}

func (s *Notifying) Insert(ctx context.Context, c core.Collection, fields map[string]any) (string, error) {
	id, err := s.inner.Insert(ctx, c, fields)
	if err != nil {
		return "", err
	}
	s.notify(ctx, c, id, OpInsert)
	return id, nil
}

func (s *Notifying) Update(ctx context.Context, c core.Collection, id string, fields map[string]any) error {
	if err := s.inner.Update(ctx, c, id, fields); err != nil {
		return err
	}
	s.notify(ctx, c, id, OpUpdate)
	return nil
}

func (s *Notifying) Delete(ctx context.Context, c core.Collection, id string) error {
	if err := s.inner.Delete(ctx, c, id); err != nil {
		return err
	}
	s.notify(ctx, c, id, OpDelete)
	return nil
}

// Unwrap returns the decorated store.
func (s *Notifying) Unwrap() Store { return s.inner }

// RunInTransaction notifies the writes of fn after the commit succeeded.
func (s *notifyingTransactor) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var pending []Change
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
		pending = pending[:0]
		return fn(ctx, &recordingTx{Tx: tx, changes: &pending})
	})
	if err != nil {
		return err
	}
	for _, ch := range pending {
		ch.At = s.now()
		s.n.Notify(ctx, ch)
	}
	return nil
}

type recordingTx struct {
	Tx
	changes *[]Change
}

func (t *recordingTx) Insert(ctx context.Context, c core.Collection, fields map[string]any) (string, error) {
	id, err := t.Tx.Insert(ctx, c, fields)
	if err == nil {
		*t.changes = append(*t.changes, Change{Collection: c, ID: id, Op: OpInsert})
	}
	return id, err
}

func (t *recordingTx) Update(ctx context.Context, c core.Collection, id string, fields map[string]any) error {
	err := t.Tx.Update(ctx, c, id, fields)
	if err == nil {
		*t.changes = append(*t.changes, Change{Collection: c, ID: id, Op: OpUpdate})
	}
	return err
}
