// Package store defines the record store the dashboard reads snapshots from
// and writes commands to. Backends live under internal/storage.
package store

import (
	"context"
	"errors"
	"time"

	"budgetdash/internal/core"
)

// ErrNotFound is returned when a document id does not exist in a collection.
var ErrNotFound = errors.New("document not found")

// Reader reads documents.
type Reader interface {
	Snapshot(ctx context.Context, c core.Collection) ([]core.Document, error)
	Get(ctx context.Context, c core.Collection, id string) (core.Document, error)
}

// Writer performs point writes. Insert assigns the document id; Update
// merges fields into the existing document.
type Writer interface {
	Insert(ctx context.Context, c core.Collection, fields map[string]any) (string, error)
	Update(ctx context.Context, c core.Collection, id string, fields map[string]any) error
	Delete(ctx context.Context, c core.Collection, id string) error
}

// Store is the full record store contract.
type Store interface {
	Reader
	Writer
}

// Tx is the view of the store inside a transaction.
type Tx interface {
	Get(ctx context.Context, c core.Collection, id string) (core.Document, error)
	Insert(ctx context.Context, c core.Collection, fields map[string]any) (string, error)
	Update(ctx context.Context, c core.Collection, id string, fields map[string]any) error
}

// Transactor is implemented by stores that can run several writes as one
// unit. fn's writes are committed only when it returns nil.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes one committed write.
type Change struct {
	Collection core.Collection `json:"collection"`
	ID         string          `json:"id"`
	Op         Op              `json:"op"`
	At         time.Time       `json:"at"`
}

// Notifier is told about committed writes.
type Notifier interface {
	Notify(ctx context.Context, ch Change)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ch Change)

func (f NotifierFunc) Notify(ctx context.Context, ch Change) { f(ctx, ch) }

// Notifiers fans a change out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, ch Change) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ctx, ch)
		}
	}
}

// CloneFields returns a shallow copy of a field map, never nil.
func CloneFields(f map[string]any) map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
