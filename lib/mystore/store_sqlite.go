package mystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const createEntitiesTable = `CREATE TABLE IF NOT EXISTS entities (
	kind  TEXT NOT NULL,
	uid   TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (kind, uid)
)`

type sqliteTransactionKey struct{}

// sqlRunner is satisfied by both *sql.DB and *sql.Tx
type sqlRunner interface {
	ExecContext(c context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(c context.Context, query string, args ...any) *sql.Row
}

type SQLiteStore[T any] struct {
	db   *sql.DB
	kind string
}

// NewSQLiteStore opens (or creates) the database file at path. Values are
// stored as JSON documents keyed by kind and uid.
func NewSQLiteStore[T any](c context.Context, path string) (*SQLiteStore[T], func(), error) {
	if strings.TrimSpace(path) == "" {
		return nil, func() {}, fmt.Errorf("sqlite path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, func() {}, fmt.Errorf("error opening sqlite db %s: %w", path, err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(c, createEntitiesTable)
	if err != nil {
		_ = db.Close()
		return nil, func() {}, fmt.Errorf("error creating entities table: %w", err)
	}

	return &SQLiteStore[T]{
			db:   db,
			kind: kindOf[T](),
		}, func() {
			_ = db.Close()
		}, nil
}

func (s *SQLiteStore[T]) runner(c context.Context) sqlRunner {
	tx, ok := c.Value(sqliteTransactionKey{}).(*sql.Tx)
	if ok {
		return tx
	}
	return s.db
}

func (s *SQLiteStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	tx, err := s.db.BeginTx(c, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	err = f(context.WithValue(c, sqliteTransactionKey{}, tx))
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

func (s *SQLiteStore[T]) Put(c context.Context, uid string, value T) error {
	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("error marshalling entity %s with uid %s: %w", s.kind, uid, err)
	}

	_, err = s.runner(c).ExecContext(c,
		`INSERT INTO entities (kind, uid, value) VALUES (?, ?, ?)
		 ON CONFLICT (kind, uid) DO UPDATE SET value = excluded.value`,
		s.kind, uid, string(jsonBytes))
	if err != nil {
		return fmt.Errorf("error storing entity %s with uid %s: %w", s.kind, uid, err)
	}

	return nil
}

func (s *SQLiteStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	var value T
	var raw string

	err := s.runner(c).QueryRowContext(c,
		`SELECT value FROM entities WHERE kind = ? AND uid = ?`,
		s.kind, uid).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return value, false, nil
		}
		return value, false, fmt.Errorf("error fetching entity %s with uid %s: %w", s.kind, uid, err)
	}

	err = json.Unmarshal([]byte(raw), &value)
	if err != nil {
		return value, false, fmt.Errorf("error unmarshalling entity %s with uid %s: %w", s.kind, uid, err)
	}

	return value, true, nil
}
