// Package postgres stores document collections in a Postgres JSONB table
// through a pgx connection pool.
package postgres

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"budgetdash/internal/core"
	"budgetdash/internal/store"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	pool  *pgxpool.Pool
	newID func() string
}

var (
	_ store.Store      = (*Store)(nil)
	_ store.Transactor = (*Store)(nil)
)

// Open connects to dsn and ensures the documents table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("ping", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool, newID: uuid.NewString}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context, c core.Collection) ([]core.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, payload FROM documents WHERE collection = $1 ORDER BY id`, string(c))
	if err != nil {
		return nil, unavailable("snapshot "+string(c), err)
	}
	defer rows.Close()

	docs := []core.Document{}
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, unavailable("scan "+string(c), err)
		}
		fields, err := decodePayload(payload)
		if err != nil {
			slog.WarnContext(ctx, "Undecodable document payload",
				"collection", c, "id", id, "error", err)
			fields = map[string]any{}
		}
		docs = append(docs, core.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("snapshot "+string(c), err)
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, c core.Collection, id string) (core.Document, error) {
	return get(ctx, s.pool, c, id, false)
}

func (s *Store) Insert(ctx context.Context, c core.Collection, fields map[string]any) (string, error) {
	return insert(ctx, s.pool, s.newID(), c, fields)
}

// Update merges fields into the stored JSONB object with the || operator.
func (s *Store) Update(ctx context.Context, c core.Collection, id string, fields map[string]any) error {
	return update(ctx, s.pool, c, id, fields)
}

func (s *Store) Delete(ctx context.Context, c core.Collection, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, string(c), id)
	if err != nil {
		return unavailable("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RunInTransaction runs fn in a read-committed transaction. Reads through
// tx lock the row (SELECT ... FOR UPDATE) so a concurrent payment of the
// same bill waits and then sees the committed status.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer func() {
		// No-op after a successful commit.
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
	}()

	if err := fn(ctx, &pgTx{tx: tx, newID: s.newID}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

// querier is the subset of *pgxpool.Pool and pgx.Tx used by the helpers.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgTx struct {
	tx    pgx.Tx
	newID func() string
}

func (t *pgTx) Get(ctx context.Context, c core.Collection, id string) (core.Document, error) {
	return get(ctx, t.tx, c, id, true)
}

func (t *pgTx) Insert(ctx context.Context, c core.Collection, fields map[string]any) (string, error) {
	return insert(ctx, t.tx, t.newID(), c, fields)
}

func (t *pgTx) Update(ctx context.Context, c core.Collection, id string, fields map[string]any) error {
	return update(ctx, t.tx, c, id, fields)
}

func get(ctx context.Context, q querier, c core.Collection, id string, forUpdate bool) (core.Document, error) {
	query := `SELECT payload FROM documents WHERE collection = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var payload []byte
	err := q.QueryRow(ctx, query, string(c), id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Document{}, store.ErrNotFound
	}
	if err != nil {
		return core.Document{}, unavailable("get", err)
	}
	fields, err := decodePayload(payload)
	if err != nil {
		return core.Document{}, fmt.Errorf("decode %s/%s: %w", c, id, err)
	}
	return core.Document{ID: id, Fields: fields}, nil
}

func insert(ctx context.Context, q querier, id string, c core.Collection, fields map[string]any) (string, error) {
	payload, err := json.Marshal(store.CloneFields(fields))
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	_, err = q.Exec(ctx,
		`INSERT INTO documents (collection, id, payload) VALUES ($1, $2, $3::jsonb)`,
		string(c), id, string(payload))
	if err != nil {
		return "", unavailable("insert", err)
	}
	return id, nil
}

func update(ctx context.Context, q querier, c core.Collection, id string, fields map[string]any) error {
	payload, err := json.Marshal(store.CloneFields(fields))
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	tag, err := q.Exec(ctx,
		`UPDATE documents SET payload = payload || $3::jsonb, updated_at = now()
		 WHERE collection = $1 AND id = $2`,
		string(c), id, string(payload))
	if err != nil {
		return unavailable("update", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func decodePayload(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	fields := map[string]any{}
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// unavailable marks driver failures as store unavailability. Constraint and
// syntax errors reported by the server are passed through unchanged.
func unavailable(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreUnavailable, err)
}
