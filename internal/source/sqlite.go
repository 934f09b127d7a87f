package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/alnah/go-taskexport/internal/attach"
	"github.com/alnah/go-taskexport/internal/dateutil"
	"github.com/alnah/go-taskexport/internal/markup"
	"github.com/alnah/go-taskexport/internal/render"
)

// SQLite reads items from a database laid out by Migrate.
type SQLite struct {
	db *sql.DB
}

// Compile-time interface check.
var _ Source = (*SQLite)(nil)

// memoryPath names the in-memory database.
const memoryPath = ":memory:"

// OpenSQLite opens the database at path read-only; a missing file is an
// error, never created. ":memory:" gives an empty, writable in-memory
// database for seeding.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path
	if path != memoryPath {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidItems, path, err)
		}
		dsn = "file:" + path + "?mode=ro"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// In-memory databases exist per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &SQLite{db: db}, nil
}

// DB exposes the underlying handle, e.g. for seeding.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Migrate creates the item tables. It is idempotent.
func (s *SQLite) Migrate(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			parent_id TEXT,
			subject TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			assignee TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT '',
			due TEXT,
			description TEXT NOT NULL DEFAULT '',
			format TEXT NOT NULL DEFAULT 'markdown',
			position INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS attributes (
			item_id TEXT NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS attachments (
			item_id TEXT NOT NULL,
			name TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
		);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	return nil
}

// Items returns every item ordered by position, then insertion order.
func (s *SQLite) Items(ctx context.Context) ([]render.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, parent_id, subject, status, assignee, priority, due, description, format
		 FROM items ORDER BY position, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []render.Item
	byID := make(map[string]int)
	for rows.Next() {
		var (
			it          render.Item
			parent, due sql.NullString
			format      string
		)
		if err := rows.Scan(&it.ID, &parent, &it.Subject, &it.Status, &it.Assignee,
			&it.Priority, &due, &it.Description, &format); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		it.ParentID = parent.String
		if it.Format, err = markup.ParseFormat(format); err != nil {
			return nil, fmt.Errorf("%w: item %s: %v", ErrInvalidItems, it.ID, err)
		}
		if due.Valid && due.String != "" {
			if it.Due, err = dateutil.Parse(due.String); err != nil {
				return nil, fmt.Errorf("%w: item %s: %v", ErrInvalidItems, it.ID, err)
			}
		}
		byID[it.ID] = len(items)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}

	if err := s.attributes(ctx, items, byID); err != nil {
		return nil, err
	}
	if err := s.attachments(ctx, items, byID); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *SQLite) attributes(ctx context.Context, items []render.Item, byID map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, name, value FROM attributes ORDER BY item_id, position, rowid`)
	if err != nil {
		return fmt.Errorf("failed to query attributes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		var a render.Attribute
		if err := rows.Scan(&id, &a.Name, &a.Value); err != nil {
			return fmt.Errorf("failed to scan attribute: %w", err)
		}
		i, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: attribute %q of unknown item %q", ErrInvalidItems, a.Name, id)
		}
		items[i].Attributes = append(items[i].Attributes, a)
	}
	return rows.Err()
}

func (s *SQLite) attachments(ctx context.Context, items []render.Item, byID map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, name, content_type, path FROM attachments ORDER BY item_id, position, rowid`)
	if err != nil {
		return fmt.Errorf("failed to query attachments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		var a attach.Attachment
		if err := rows.Scan(&id, &a.Name, &a.ContentType, &a.Path); err != nil {
			return fmt.Errorf("failed to scan attachment: %w", err)
		}
		i, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: attachment %q of unknown item %q", ErrInvalidItems, a.Name, id)
		}
		items[i].Attachments = append(items[i].Attachments, a)
	}
	return rows.Err()
}
