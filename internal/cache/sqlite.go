package cache

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

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteCache is the SQLite-backed cache for one store scope.
type SQLiteCache struct {
	db    *sql.DB
	scope string
}

// Option configures a SQLiteCache.
type Option func(*SQLiteCache)

// WithScope attaches the owning store scope for logging context.
func WithScope(scope string) Option {
	return func(c *SQLiteCache) {
		c.scope = scope
	}
}

// NewSQLiteCache opens (creating if needed) the cache database at dbPath.
// It enables WAL mode, applies pragmas, and runs migrations.
func NewSQLiteCache(dbPath string, opts ...Option) (*SQLiteCache, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	c := &SQLiteCache{db: db}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// enablePragmas applies the connection settings every scope database runs
// with. WAL keeps register reads from blocking behind worker writes.
func enablePragmas(db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// Get returns the value stored under key, or ErrNotFound.
func (c *SQLiteCache) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := c.db.QueryRowContext(ctx,
		"SELECT value FROM cache_entries WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get cache entry: %w", err)
	}
	return value, nil
}

// Set stores value under key, overwriting any previous entry.
func (c *SQLiteCache) Set(ctx context.Context, key, value string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

// Remove deletes the entry under key. Removing a missing key is not an error.
func (c *SQLiteCache) Remove(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("remove cache entry: %w", err)
	}
	return nil
}

// AppendEvent records an audit event. Detail is marshalled to JSON; a nil
// detail is stored as an empty object.
func (c *SQLiteCache) AppendEvent(ctx context.Context, kind string, detail any) (*AuditEvent, error) {
	payload := json.RawMessage("{}")
	if detail != nil {
		data, err := json.Marshal(detail)
		if err != nil {
			return nil, fmt.Errorf("marshal event detail: %w", err)
		}
		payload = data
	}

	event := &AuditEvent{
		ID:        ulid.Make().String(),
		Kind:      kind,
		Detail:    payload,
		CreatedAt: time.Now().UTC(),
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, kind, detail, created_at)
		VALUES (?, ?, ?, ?)
	`, event.ID, event.Kind, string(event.Detail), event.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("append audit event: %w", err)
	}

	return event, nil
}

// RecentEvents returns up to limit events, newest first.
func (c *SQLiteCache) RecentEvents(ctx context.Context, limit int) ([]AuditEvent, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, kind, detail, created_at, archived_at
		FROM audit_events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// UnarchivedEvents returns up to limit events not yet exported, oldest first.
func (c *SQLiteCache) UnarchivedEvents(ctx context.Context, limit int) ([]AuditEvent, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, kind, detail, created_at, archived_at
		FROM audit_events
		WHERE archived_at IS NULL
		ORDER BY id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unarchived events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// MarkArchived stamps the given events as exported at the given time.
func (c *SQLiteCache) MarkArchived(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+1)
	args = append(args, at.UTC().Format(time.RFC3339))
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := c.db.ExecContext(ctx,
		"UPDATE audit_events SET archived_at = ? WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("mark events archived: %w", err)
	}
	return nil
}

func scanEvents(rows *sql.Rows) ([]AuditEvent, error) {
	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var detail, createdAt string
		var archivedAt sql.NullString

		if err := rows.Scan(&e.ID, &e.Kind, &detail, &createdAt, &archivedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		e.Detail = json.RawMessage(detail)
		parsed, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp: %w", err)
		}
		e.CreatedAt = parsed

		if archivedAt.Valid {
			t, err := time.Parse(time.RFC3339, archivedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse archive timestamp: %w", err)
			}
			e.ArchivedAt = &t
		}

		events = append(events, e)
	}
	return events, rows.Err()
}
