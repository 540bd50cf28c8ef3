package syncqueue

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schema string

// SQLiteStore persists items in a SQLite database file.
type SQLiteStore struct {
	sqlDB *sql.DB
}

// OpenSQLite opens (or creates) a queue database at path and applies the
// schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows one writer at a time.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, item Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sync_items (id, queue, payload, enqueued_at) VALUES (?, ?, ?, ?)`,
		item.ID,
		item.Queue,
		[]byte(item.Payload),
		toMicros(item.EnqueuedAt),
	)
	if err != nil {
		if isPrimaryKeyViolation(err) {
			return ErrDuplicateItem
		}
		storeErrors.WithLabelValues("append").Inc()
		return fmt.Errorf("insert sync item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, queue string) ([]Item, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, queue, payload, enqueued_at FROM sync_items
		 WHERE queue = ?
		 ORDER BY enqueued_at, rowid`,
		queue,
	)
	if err != nil {
		storeErrors.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("query sync items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it         Item
			payload    []byte
			enqueuedAt int64
		)
		if err := rows.Scan(&it.ID, &it.Queue, &payload, &enqueuedAt); err != nil {
			return nil, fmt.Errorf("scan sync item: %w", err)
		}
		it.Payload = payload
		it.EnqueuedAt = fromMicros(enqueuedAt)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync items: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, queue string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	removed := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `DELETE FROM sync_items WHERE queue = ? AND id = ?`, queue, id)
		if err != nil {
			storeErrors.WithLabelValues("remove").Inc()
			return 0, fmt.Errorf("delete sync item %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		removed += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return removed, nil
}

func (s *SQLiteStore) Queues(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT DISTINCT queue FROM sync_items ORDER BY queue`)
	if err != nil {
		storeErrors.WithLabelValues("queues").Inc()
		return nil, fmt.Errorf("query queues: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan queue: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ Store = (*SQLiteStore)(nil)
