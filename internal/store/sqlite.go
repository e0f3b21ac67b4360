package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/TMG-AI/tara-dashboard/internal/db"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS scored_members (
	set_key TEXT NOT NULL,
	member_hash BLOB NOT NULL,
	member TEXT NOT NULL,
	score INTEGER NOT NULL,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (set_key, member_hash)
);
CREATE INDEX IF NOT EXISTS idx_scored_members_key_score ON scored_members (set_key, score, member);
CREATE TABLE IF NOT EXISTS set_members (
	set_key TEXT NOT NULL,
	member_hash BLOB NOT NULL,
	member TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (set_key, member_hash)
);
`

// SQLite is the embedded Backend used for single-host deployments.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(trimmed); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure sqlite directory: %w", err)
		}
	}

	pragmas := url.Values{}
	pragmas.Add("_pragma", "busy_timeout(5000)")
	pragmas.Add("_pragma", "journal_mode(WAL)")
	pragmas.Add("_pragma", "synchronous(NORMAL)")
	conn, err := sql.Open("sqlite", trimmed+"?"+pragmas.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	s := &SQLite{db: conn, path: trimmed}
	if err := s.execNoResult(ctx, sqliteSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Path() string { return s.path }

func (s *SQLite) ScoredSet(key string) ScoredSet {
	return &sqliteScoredSet{parent: s, key: key}
}

func (s *SQLite) Set(key string) Set {
	return &sqliteSet{parent: s, key: key}
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *SQLite) exec(ctx context.Context, query string, args ...any) (int64, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

func (s *SQLite) execNoResult(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func (s *SQLite) queryMembers(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]string, 0, 64)
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

func (s *SQLite) count(ctx context.Context, query, key string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type sqliteScoredSet struct {
	parent *SQLite
	key    string
}

func (z *sqliteScoredSet) Add(ctx context.Context, score int64, member string) (bool, error) {
	hash := db.MemberHash(member)
	inserted, err := z.parent.exec(ctx, `
INSERT OR IGNORE INTO scored_members (set_key, member_hash, member, score)
VALUES (?, ?, ?, ?)`, z.key, hash, member, score)
	if err != nil {
		return false, fmt.Errorf("add scored member to %s: %w", z.key, err)
	}
	if inserted == 1 {
		return true, nil
	}
	if _, err := z.parent.exec(ctx, `
UPDATE scored_members SET score = ? WHERE set_key = ? AND member_hash = ?`, score, z.key, hash); err != nil {
		return false, fmt.Errorf("update scored member in %s: %w", z.key, err)
	}
	return false, nil
}

func (z *sqliteScoredSet) RangeByScore(ctx context.Context, minScore, maxScore int64) ([]string, error) {
	members, err := z.parent.queryMembers(ctx, `
SELECT member FROM scored_members
WHERE set_key = ? AND score >= ? AND score <= ?
ORDER BY score ASC, member ASC`, z.key, minScore, maxScore)
	if err != nil {
		return nil, fmt.Errorf("range %s by score: %w", z.key, err)
	}
	return members, nil
}

func (z *sqliteScoredSet) RangeByRank(ctx context.Context, start, stop int64, reverse bool) ([]string, error) {
	n, err := z.Count(ctx)
	if err != nil {
		return nil, err
	}
	offset, limit, ok := resolveRank(start, stop, n)
	if !ok {
		return []string{}, nil
	}
	order := "score ASC, member ASC"
	if reverse {
		order = "score DESC, member DESC"
	}
	members, err := z.parent.queryMembers(ctx, `
SELECT member FROM scored_members
WHERE set_key = ?
ORDER BY `+order+`
LIMIT ? OFFSET ?`, z.key, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("range %s by rank: %w", z.key, err)
	}
	return members, nil
}

func (z *sqliteScoredSet) RemoveRangeByScore(ctx context.Context, minScore, maxScore int64) (int64, error) {
	removed, err := z.parent.exec(ctx, `
DELETE FROM scored_members WHERE set_key = ? AND score >= ? AND score <= ?`, z.key, minScore, maxScore)
	if err != nil {
		return 0, fmt.Errorf("remove scored range from %s: %w", z.key, err)
	}
	return removed, nil
}

func (z *sqliteScoredSet) Remove(ctx context.Context, member string) (bool, error) {
	removed, err := z.parent.exec(ctx, `
DELETE FROM scored_members WHERE set_key = ? AND member_hash = ?`, z.key, db.MemberHash(member))
	if err != nil {
		return false, fmt.Errorf("remove scored member from %s: %w", z.key, err)
	}
	return removed > 0, nil
}

func (z *sqliteScoredSet) Count(ctx context.Context) (int64, error) {
	n, err := z.parent.count(ctx, `SELECT COUNT(*) FROM scored_members WHERE set_key = ?`, z.key)
	if err != nil {
		return 0, fmt.Errorf("count scored members in %s: %w", z.key, err)
	}
	return n, nil
}

type sqliteSet struct {
	parent *SQLite
	key    string
}

func (s *sqliteSet) Add(ctx context.Context, member string) (bool, error) {
	inserted, err := s.parent.exec(ctx, `
INSERT OR IGNORE INTO set_members (set_key, member_hash, member) VALUES (?, ?, ?)`,
		s.key, db.MemberHash(member), member)
	if err != nil {
		return false, fmt.Errorf("add set member to %s: %w", s.key, err)
	}
	return inserted == 1, nil
}

func (s *sqliteSet) Remove(ctx context.Context, member string) (bool, error) {
	removed, err := s.parent.exec(ctx, `
DELETE FROM set_members WHERE set_key = ? AND member_hash = ?`, s.key, db.MemberHash(member))
	if err != nil {
		return false, fmt.Errorf("remove set member from %s: %w", s.key, err)
	}
	return removed > 0, nil
}

func (s *sqliteSet) Contains(ctx context.Context, member string) (bool, error) {
	var one int
	err := s.parent.db.QueryRowContext(ctx, `
SELECT 1 FROM set_members WHERE set_key = ? AND member_hash = ?`, s.key, db.MemberHash(member)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check set member in %s: %w", s.key, err)
	}
	return true, nil
}

func (s *sqliteSet) Count(ctx context.Context) (int64, error) {
	n, err := s.parent.count(ctx, `SELECT COUNT(*) FROM set_members WHERE set_key = ?`, s.key)
	if err != nil {
		return 0, fmt.Errorf("count set members in %s: %w", s.key, err)
	}
	return n, nil
}

func (s *sqliteSet) Clear(ctx context.Context) (int64, error) {
	removed, err := s.parent.exec(ctx, `DELETE FROM set_members WHERE set_key = ?`, s.key)
	if err != nil {
		return 0, fmt.Errorf("clear set %s: %w", s.key, err)
	}
	return removed, nil
}
