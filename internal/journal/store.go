package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultCollection is the key journal entries are stored under.
const DefaultCollection = "journalEntries"

var ErrWriteFailed = errors.New("journal write failed")

// Entry is one journal record.
type Entry struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is an append-only journal backed by SQLite.
type Store struct {
	db         *sql.DB
	collection string
}

// Open opens (or creates) the SQLite database at path and ensures the
// journal table exists.
func Open(path, collection string) (*Store, error) {
	if collection == "" {
		collection = DefaultCollection
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createTable(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, collection: collection}, nil
}

func createTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS journal_entries (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT    NOT NULL,
			text       TEXT    NOT NULL,
			created_at TEXT    NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append writes one entry. The write is a single transaction: either the
// entry is stored or nothing changes.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrWriteFailed, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO journal_entries (collection, text, created_at)
		VALUES (?, ?, ?)
	`, s.collection, e.Text, e.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("%w: insert: %v", ErrWriteFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrWriteFailed, err)
	}
	return nil
}

// Entries returns every entry of the collection, oldest first.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT text, created_at FROM journal_entries
		WHERE collection = ? ORDER BY id ASC
	`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Timestamp, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", createdAt, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
