// SPDX-License-Identifier: MIT

package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// Store provides SQLite persistence for media item metadata.
type Store struct {
	db *sql.DB
}

// NewStore initializes a new SQLite store and runs migrations.
// WAL mode + busy_timeout suit the read-heavy delivery workload.
func NewStore(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS media_items (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT '',
		file_path TEXT NOT NULL,
		thumbnail_path TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'uploaded' CHECK(status IN ('uploaded', 'transcoding', 'ready', 'failed')),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_media_items_status ON media_items(status);
	CREATE INDEX IF NOT EXISTS idx_media_items_created ON media_items(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Save inserts a new item or replaces an existing one with the same ID.
func (s *Store) Save(ctx context.Context, item Item) (Item, error) {
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if item.Status == "" {
		item.Status = StatusUploaded
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media_items (id, title, description, content_type, file_path, thumbnail_path, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			content_type = excluded.content_type,
			file_path = excluded.file_path,
			thumbnail_path = excluded.thumbnail_path,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		item.ID, item.Title, item.Description, item.ContentType,
		item.FilePath, item.ThumbnailPath, string(item.Status),
		item.CreatedAt.Format(time.RFC3339Nano), item.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Item{}, fmt.Errorf("save media item %s: %w", item.ID, err)
	}
	return item, nil
}

// FindByID returns the item with the given ID, or ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id string) (Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, content_type, file_path, thumbnail_path, status, created_at, updated_at
		FROM media_items WHERE id = ?`, id)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Item{}, fmt.Errorf("find media item %s: %w", id, err)
	}
	return item, nil
}

// ListAll returns all items ordered by creation time, newest first.
func (s *Store) ListAll(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, content_type, file_path, thumbnail_path, status, created_at, updated_at
		FROM media_items ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list media items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media items: %w", err)
	}
	return items, nil
}

// UpdateStatus transitions the item's pipeline status. Returns ErrNotFound if
// no row was updated.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE media_items SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("update status for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var (
		item               Item
		status             string
		createdAt, updated string
	)
	if err := row.Scan(&item.ID, &item.Title, &item.Description, &item.ContentType,
		&item.FilePath, &item.ThumbnailPath, &status, &createdAt, &updated); err != nil {
		return Item{}, err
	}
	item.Status = Status(status)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		item.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		item.UpdatedAt = t
	}
	return item, nil
}
