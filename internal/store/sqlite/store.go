// Package sqlite provides the SQLite-backed services database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mfulz/ircgeist/interfaces"
	"github.com/mfulz/ircgeist/internal/store/sqlite/migrations"
	"github.com/mfulz/ircgeist/internal/store/sqlitemigrate"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists services state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ interfaces.DataStore = (*Store)(nil)

// Open opens the database at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// ListAkills returns every akill ordered by id.
func (s *Store) ListAkills(ctx context.Context) ([]interfaces.Akill, error) {
	return s.queryAkills(ctx, `SELECT id, setter, mask, reason, time_set, duration
		FROM akills ORDER BY id`)
}

// ExpiredAkills returns the timed akills that have run out at now.
func (s *Store) ExpiredAkills(ctx context.Context, now time.Time) ([]interfaces.Akill, error) {
	return s.queryAkills(ctx, `SELECT id, setter, mask, reason, time_set, duration
		FROM akills WHERE duration > 0 AND time_set + duration <= ? ORDER BY id`, now.Unix())
}

// AddAkill inserts a and returns its id. A zero TimeSet means now.
func (s *Store) AddAkill(ctx context.Context, a interfaces.Akill) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	mask := strings.TrimSpace(a.Mask)
	if mask == "" {
		return 0, fmt.Errorf("akill mask is required")
	}
	set := a.TimeSet
	if set.IsZero() {
		set = time.Now()
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO akills (setter, mask, reason, time_set, duration) VALUES (?, ?, ?, ?, ?)`,
		a.Setter, mask, a.Reason, set.Unix(), int64(a.Duration/time.Second),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", interfaces.ErrAkillExists, mask)
		}
		return 0, fmt.Errorf("insert akill: %w", err)
	}
	return res.LastInsertId()
}

// DeleteAkill removes the akill with id.
func (s *Store) DeleteAkill(ctx context.Context, id int64) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM akills WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete akill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete akill: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", interfaces.ErrAkillNotFound, id)
	}
	return nil
}

func (s *Store) queryAkills(ctx context.Context, query string, args ...any) ([]interfaces.Akill, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query akills: %w", err)
	}
	defer rows.Close()

	var out []interfaces.Akill
	for rows.Next() {
		var (
			a        interfaces.Akill
			timeSet  int64
			duration int64
		)
		if err := rows.Scan(&a.ID, &a.Setter, &a.Mask, &a.Reason, &timeSet, &duration); err != nil {
			return nil, fmt.Errorf("scan akill: %w", err)
		}
		a.TimeSet = time.Unix(timeSet, 0).UTC()
		a.Duration = time.Duration(duration) * time.Second
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate akills: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
