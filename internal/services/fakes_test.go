package services

import (
	"context"
	"sync"

	"budgetdash/internal/core"
	"budgetdash/internal/storage/memory"
	"budgetdash/internal/store"
)

// fakeStore is a non-transactional store that counts writes and can be told
// to fail them.
type fakeStore struct {
	inner *memory.Store

	mu         sync.Mutex
	writes     int
	failInsert map[core.Collection]error
	failUpdate error
}

func newFakeStore() *fakeStore {
	return &fakeStore{inner: memory.New(), failInsert: map[core.Collection]error{}}
}

func (f *fakeStore) Snapshot(ctx context.Context, c core.Collection) ([]core.Document, error) {
	return f.inner.Snapshot(ctx, c)
}

func (f *fakeStore) Get(ctx context.Context, c core.Collection, id string) (core.Document, error) {
	return f.inner.Get(ctx, c, id)
}

func (f *fakeStore) Insert(ctx context.Context, c core.Collection, fields map[string]any) (string, error) {
	f.mu.Lock()
	err := f.failInsert[c]
	if err == nil {
		f.writes++
	}
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	return f.inner.Insert(ctx, c, fields)
}

func (f *fakeStore) Update(ctx context.Context, c core.Collection, id string, fields map[string]any) error {
	f.mu.Lock()
	err := f.failUpdate
	if err == nil {
		f.writes++
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.inner.Update(ctx, c, id, fields)
}

func (f *fakeStore) Delete(ctx context.Context, c core.Collection, id string) error {
	f.mu.Lock()
	f.writes++
	f.mu.Unlock()
	return f.inner.Delete(ctx, c, id)
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakeStore) setFailInsert(c core.Collection, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failInsert, c)
		return
	}
	f.failInsert[c] = err
}

// seed writes directly to the underlying store without counting.
func (f *fakeStore) seed(c core.Collection, fields map[string]any) string {
	id, err := f.inner.Insert(context.Background(), c, fields)
	if err != nil {
		panic(err)
	}
	return id
}

// failingTxStore is a transactional memory store whose transactions fail on
// expense insertion.
type failingTxStore struct {
	*memory.Store
	err error
}

func (s *failingTxStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return s.Store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, &failingTx{Tx: tx, err: s.err})
	})
}

type failingTx struct {
	store.Tx
	err error
}

func (t *failingTx) Insert(ctx context.Context, c core.Collection, fields map[string]any) (string, error) {
	if c == core.CollectionExpenses {
		return "", t.err
	}
	return t.Tx.Insert(ctx, c, fields)
}
