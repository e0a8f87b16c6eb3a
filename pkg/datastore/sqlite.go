package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteStore is a Store backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. An empty path
// or ":memory:" opens a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS entities (
			key TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			parent TEXT NOT NULL DEFAULT '',
			properties TEXT NOT NULL DEFAULT '{}',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create entities table: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind)"); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entity, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT key, kind, parent, properties FROM entities WHERE key = ?", key)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSuchEntity
	}
	return e, err
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, e *Entity) (string, error) {
	if err := validate(e); err != nil {
		return "", err
	}
	key := e.Key
	if key == "" {
		key = uuid.NewString()
	}
	props, err := json.Marshal(e.Properties)
	if err != nil {
		return "", fmt.Errorf("failed to encode properties: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (key, kind, parent, properties, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			kind = excluded.kind,
			parent = excluded.parent,
			properties = excluded.properties,
			updated_at = excluded.updated_at
	`, key, e.Kind, e.Parent, string(props))
	if err != nil {
		return "", fmt.Errorf("failed to put entity: %w", err)
	}
	return key, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM entities WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	if n == 0 {
		return ErrNoSuchEntity
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, kind string) ([]*Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, kind, parent, properties FROM entities WHERE kind = ? ORDER BY key", kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var out []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return out, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(sc scanner) (*Entity, error) {
	var e Entity
	var props string
	if err := sc.Scan(&e.Key, &e.Kind, &e.Parent, &props); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(props), &e.Properties); err != nil {
		return nil, fmt.Errorf("failed to decode properties of %q: %w", e.Key, err)
	}
	return &e, nil
}

var _ Store = (*SQLiteStore)(nil)
