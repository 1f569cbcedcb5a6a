// Package history records every deployment attempt in a local SQLite
// database so operators can see what was pushed where, and when.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS deployments (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	payload BLOB NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS deployments_created_at ON deployments (created_at);`

const (
	defaultStoreDir = ".foundryctl"
	defaultStoreDB  = "foundryctl.db"
	defaultLimit    = 20

	// createdAtLayout is fixed width so created_at sorts as text.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Kind is the deployment type.
type Kind string

const (
	KindAgent      Kind = "agent"
	KindGuardrails Kind = "guardrails"
)

// Status is the deployment outcome.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Record is one deployment attempt.
type Record struct {
	ID          string            `json:"id"`
	Kind        Kind              `json:"kind"`
	Name        string            `json:"name"`
	Target      string            `json:"target"`
	Environment string            `json:"environment,omitempty"`
	Status      Status            `json:"status"`
	Detail      string            `json:"detail,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Recorder is the write side used by deployers.
type Recorder interface {
	Record(ctx context.Context, rec Record) (Record, error)
}

// Store persists deployment records in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultPath returns ~/.foundryctl/foundryctl.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("history: resolve user home: %w", err)
	}
	return filepath.Join(home, defaultStoreDir, defaultStoreDB), nil
}

// Open opens (or creates) the store at dsn. Parent directories of a file
// path are created.
func Open(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("history: sqlite dsn is required")
	}
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("history: create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: sqlite open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: sqlite set WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: sqlite create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Record stores rec, assigning an id and timestamp when missing.
func (s *Store) Record(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if s == nil || s.db == nil {
		return Record{}, errors.New("history: store is nil")
	}
	if strings.TrimSpace(rec.Name) == "" {
		return Record{}, errors.New("history: record name is required")
	}
	if rec.Kind == "" {
		return Record{}, errors.New("history: record kind is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = StatusSucceeded
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	payload, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("history: encode record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO deployments (id, kind, name, status, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID,
		string(rec.Kind),
		rec.Name,
		string(rec.Status),
		payload,
		rec.CreatedAt.Format(createdAtLayout),
	)
	if err != nil {
		return Record{}, fmt.Errorf("history: sqlite insert record: %w", err)
	}
	return rec, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Kind  Kind
	Name  string
	Limit int
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, errors.New("history: store is nil")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `SELECT payload FROM deployments`
	var (
		where []string
		args  []any
	)
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Name != "" {
		where = append(where, "name = ?")
		args = append(args, filter.Name)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: sqlite list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("history: sqlite scan record: %w", err)
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: sqlite record rows: %w", err)
	}
	return out, nil
}

// Get returns a record by id.
func (s *Store) Get(ctx context.Context, id string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}
	if s == nil || s.db == nil {
		return Record{}, false, errors.New("history: store is nil")
	}

	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM deployments WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("history: sqlite get record: %w", err)
	}
	rec, err := decodeRecord(payload)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func decodeRecord(payload []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, fmt.Errorf("history: decode record: %w", err)
	}
	return rec, nil
}

// Nop discards records. Used when history is disabled.
type Nop struct{}

func (Nop) Record(_ context.Context, rec Record) (Record, error) { return rec, nil }
