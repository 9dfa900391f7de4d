package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
)

// SQLStore implements Store on database/sql.
//
// Queries use $N placeholders and INSERT ... ON CONFLICT, which PostgreSQL
// and SQLite both accept.
//
// Table Schema:
//
//	CREATE TABLE evolve_records (
//	    record_key TEXT PRIMARY KEY,
//	    record_value BYTEA NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
//
// Example:
//
//	db, _ := store.OpenPostgres(ctx, "postgres://localhost/mydb")
//	s := store.NewSQLStore(db)
//	if err := s.EnsureTable(ctx); err != nil {
//	    return err
//	}
type SQLStore struct {
	db        *sql.DB
	tableName string
	mu        sync.RWMutex
	closed    bool
}

// SQLOption configures SQLStore.
type SQLOption func(*SQLStore)

// WithTableName sets a custom table name (default: "evolve_records").
func WithTableName(name string) SQLOption {
	return func(s *SQLStore) {
		s.tableName = name
	}
}

// NewSQLStore creates a new SQL-based store.
// The database handle is owned by the caller.
func NewSQLStore(db *sql.DB, opts ...SQLOption) *SQLStore {
	s := &SQLStore{
		db:        db,
		tableName: "evolve_records",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenPostgres opens a PostgreSQL connection through the pgx driver and
// verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureTable creates the table if it does not exist.
func (s *SQLStore) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			record_key TEXT PRIMARY KEY,
			record_value BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (s *SQLStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Save writes value under key.
func (s *SQLStore) Save(ctx context.Context, key string, value []byte) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (record_key, record_value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (record_key) DO UPDATE SET
			record_value = EXCLUDED.record_value,
			updated_at = EXCLUDED.updated_at
	`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Load returns the value stored under key.
func (s *SQLStore) Load(ctx context.Context, key string) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	query := fmt.Sprintf(`SELECT record_value FROM %s WHERE record_key = $1`, s.tableName)

	var value []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return value, nil
}

// Delete removes key.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE record_key = $1`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// List returns the sorted keys starting with prefix.
func (s *SQLStore) List(ctx context.Context, prefix string) ([]string, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	query := fmt.Sprintf(`SELECT record_key FROM %s`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the store.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Compile-time check that SQLStore implements Store.
var _ Store = (*SQLStore)(nil)
