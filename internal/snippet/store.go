// Package snippet persists saved template/context pairs in SQLite.
package snippet

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned when a snippet ID does not exist.
var ErrNotFound = errors.New("snippet not found")

// Snippet is a saved template/context pair.
type Snippet struct {
	ID        int64
	Name      string
	Template  string
	Context   string
	CreatedAt time.Time
}

// Store persists snippets in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens the snippet database, creating it if needed, and brings the
// schema up to date.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snippet database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping snippet database: %w", err)
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run snippet migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Save inserts a snippet and returns its ID.
func (s *Store) Save(name, template, context string) (int64, error) {
	// Timestamps are stored as RFC3339 text; lexical order matches
	// chronological order.
	res, err := s.db.Exec(
		`INSERT INTO snippets (name, template, context, created_at) VALUES (?, ?, ?, ?)`,
		name, template, context, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snippet: %w", err)
	}
	return res.LastInsertId()
}

// List returns all snippets, newest first.
func (s *Store) List() ([]Snippet, error) {
	rows, err := s.db.Query(
		`SELECT id, name, template, context, created_at FROM snippets ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list snippets: %w", err)
	}
	defer rows.Close()

	var snippets []Snippet
	for rows.Next() {
		var snip Snippet
		var created string
		if err := rows.Scan(&snip.ID, &snip.Name, &snip.Template, &snip.Context, &created); err != nil {
			return nil, fmt.Errorf("failed to scan snippet: %w", err)
		}
		snip.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		snippets = append(snippets, snip)
	}
	return snippets, rows.Err()
}

// Get returns one snippet by ID.
func (s *Store) Get(id int64) (Snippet, error) {
	var snip Snippet
	var created string
	err := s.db.QueryRow(
		`SELECT id, name, template, context, created_at FROM snippets WHERE id = ?`, id,
	).Scan(&snip.ID, &snip.Name, &snip.Template, &snip.Context, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Snippet{}, ErrNotFound
	}
	if err != nil {
		return Snippet{}, fmt.Errorf("failed to get snippet: %w", err)
	}
	snip.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return snip, nil
}

// Delete removes a snippet by ID.
func (s *Store) Delete(id int64) error {
	res, err := s.db.Exec(`DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snippet: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
