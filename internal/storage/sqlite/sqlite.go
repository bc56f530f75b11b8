// Package sqlite stores document collections in a single SQLite table with
// JSON payloads.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"budgetdash/internal/core"
	"budgetdash/internal/store"
)

// Store is a SQLite-backed record store.
type Store struct {
	db    *sql.DB
	newID func() string
}

var (
	_ store.Store      = (*Store)(nil)
	_ store.Transactor = (*Store)(nil)
)

// DSN builds the connection string used for dbPath. Transactions take the
// write lock up front so concurrent payments queue instead of failing with
// SQLITE_BUSY on upgrade.
func DSN(dbPath string) string {
	return dbPath + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, newID: uuid.NewString}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context, c core.Collection) ([]core.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload FROM documents WHERE collection = ? ORDER BY id`, string(c))
	if err != nil {
		return nil, unavailable("snapshot "+string(c), err)
	}
	defer rows.Close()

	docs := []core.Document{}
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, unavailable("scan "+string(c), err)
		}
		fields, err := decodePayload(payload)
		if err != nil {
			// A payload that is not JSON is surfaced as an empty document,
			// which the core reports as malformed.
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
	return get(ctx, s.db, c, id)
}

func (s *Store) Insert(ctx context.Context, c core.Collection, fields map[string]any) (string, error) {
	return insert(ctx, s.db, s.newID(), c, fields)
}

func (s *Store) Update(ctx context.Context, c core.Collection, id string, fields map[string]any) error {
	return s.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Update(ctx, c, id, fields)
	})
}

func (s *Store) Delete(ctx context.Context, c core.Collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, string(c), id)
	if err != nil {
		return unavailable("delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	if err := fn(ctx, &sqliteTx{tx: sqlTx, newID: s.newID}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

// execQuerier is the subset of *sql.DB and *sql.Tx used by the helpers.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteTx struct {
	tx    *sql.Tx
	newID func() string
}

func (t *sqliteTx) Get(ctx context.Context, c core.Collection, id string) (core.Document, error) {
	return get(ctx, t.tx, c, id)
}

func (t *sqliteTx) Insert(ctx context.Context, c core.Collection, fields map[string]any) (string, error) {
	return insert(ctx, t.tx, t.newID(), c, fields)
}

func (t *sqliteTx) Update(ctx context.Context, c core.Collection, id string, fields map[string]any) error {
	cur, err := get(ctx, t.tx, c, id)
	if err != nil {
		return err
	}
	for k, v := range fields {
		cur.Fields[k] = v
	}
	payload, err := json.Marshal(cur.Fields)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = t.tx.ExecContext(ctx,
		`UPDATE documents SET payload = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(payload), nowString(), string(c), id)
	if err != nil {
		return unavailable("update", err)
	}
	return nil
}

func get(ctx context.Context, q execQuerier, c core.Collection, id string) (core.Document, error) {
	var payload string
	err := q.QueryRowContext(ctx,
		`SELECT payload FROM documents WHERE collection = ? AND id = ?`, string(c), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
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

func insert(ctx context.Context, q execQuerier, id string, c core.Collection, fields map[string]any) (string, error) {
	payload, err := json.Marshal(store.CloneFields(fields))
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	now := nowString()
	_, err = q.ExecContext(ctx,
		`INSERT INTO documents (collection, id, payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		string(c), id, string(payload), now, now)
	if err != nil {
		return "", unavailable("insert", err)
	}
	return id, nil
}

// decodePayload keeps numbers as json.Number so amounts are parsed as
// decimals by the core rather than through float64.
func decodePayload(payload string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	fields := map[string]any{}
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func nowString() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreUnavailable, err)
}
