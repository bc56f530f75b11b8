// Package memory is an in-process record store. It is the default backend
// for local runs and the reference backend in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"budgetdash/internal/core"
	"budgetdash/internal/store"
)

type collection map[string]map[string]any

// Store keeps every collection in maps guarded by one RWMutex.
type Store struct {
	mu    sync.RWMutex
	data  map[core.Collection]collection
	newID func() string
}

var (
	_ store.Store      = (*Store)(nil)
	_ store.Transactor = (*Store)(nil)
)

func New() *Store {
	return &Store{
		data:  make(map[core.Collection]collection),
		newID: uuid.NewString,
	}
}

func (s *Store) Snapshot(ctx context.Context, c core.Collection) ([]core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]core.Document, 0, len(s.data[c]))
	for id, f := range s.data[c] {
		docs = append(docs, core.Document{ID: id, Fields: store.CloneFields(f)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *Store) Get(ctx context.Context, c core.Collection, id string) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(c, id)
}

func (s *Store) get(c core.Collection, id string) (core.Document, error) {
	f, ok := s.data[c][id]
	if !ok {
		return core.Document{}, store.ErrNotFound
	}
	return core.Document{ID: id, Fields: store.CloneFields(f)}, nil
}

func (s *Store) Insert(ctx context.Context, c core.Collection, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(c, fields), nil
}

func (s *Store) insert(c core.Collection, fields map[string]any) string {
	id := s.newID()
	if s.data[c] == nil {
		s.data[c] = make(collection)
	}
	s.data[c][id] = store.CloneFields(fields)
	return id
}

func (s *Store) Update(ctx context.Context, c core.Collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(c, id, fields)
}

func (s *Store) update(c core.Collection, id string, fields map[string]any) error {
	cur, ok := s.data[c][id]
	if !ok {
		return store.ErrNotFound
	}
	merged := store.CloneFields(cur)
	for k, v := range fields {
		merged[k] = v
	}
	s.data[c][id] = merged
	return nil
}

func (s *Store) Delete(ctx context.Context, c core.Collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[c][id]; !ok {
		return store.ErrNotFound
	}
	delete(s.data[c], id)
	return nil
}

// RunInTransaction holds the write lock for the whole of fn. Writes are
// staged and applied only if fn returns nil. fn must use tx and not s.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s, staged: map[core.Collection]collection{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for c, docs := range tx.staged {
		if s.data[c] == nil {
			s.data[c] = make(collection)
		}
		for id, f := range docs {
			s.data[c][id] = f
		}
	}
	return nil
}

type memTx struct {
	s      *Store
	staged map[core.Collection]collection
}

func (t *memTx) Get(ctx context.Context, c core.Collection, id string) (core.Document, error) {
	if f, ok := t.staged[c][id]; ok {
		return core.Document{ID: id, Fields: store.CloneFields(f)}, nil
	}
	return t.s.get(c, id)
}

func (t *memTx) Insert(ctx context.Context, c core.Collection, fields map[string]any) (string, error) {
	id := t.s.newID()
	t.stage(c, id, store.CloneFields(fields))
	return id, nil
}

func (t *memTx) Update(ctx context.Context, c core.Collection, id string, fields map[string]any) error {
	cur, err := t.Get(ctx, c, id)
	if err != nil {
		return err
	}
	for k, v := range fields {
		cur.Fields[k] = v
	}
	t.stage(c, id, cur.Fields)
	return nil
}

func (t *memTx) stage(c core.Collection, id string, f map[string]any) {
	if t.staged[c] == nil {
		t.staged[c] = make(collection)
	}
	t.staged[c][id] = f
}
