// Package sqlite provides the local/dev store driver backed by
// modernc.org/sqlite. Schema is bootstrapped on open. Scalar columns
// exist only for filtering and ordering; the JSON document column is
// authoritative, so timestamps are written as fixed-width UTC strings
// that compare lexicographically.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/store"
)

const timeLayout = "2006-01-02 15:04:05.000"

const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id      TEXT PRIMARY KEY,
    line_user_id TEXT NOT NULL UNIQUE,
    doc          TEXT NOT NULL,
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS groups (
    group_id      TEXT PRIMARY KEY,
    line_group_id TEXT UNIQUE,
    doc           TEXT NOT NULL,
    created_at    TEXT NOT NULL,
    updated_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS warikans (
    warikan_id TEXT PRIMARY KEY,
    created_by TEXT NOT NULL,
    group_id   TEXT,
    status     TEXT NOT NULL,
    version    INTEGER NOT NULL,
    settled_at TEXT,
    doc        TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_warikans_creator ON warikans (created_by, status);
CREATE TABLE IF NOT EXISTS schedules (
    schedule_id      TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    group_id         TEXT,
    status           TEXT NOT NULL,
    start_time       TEXT NOT NULL,
    all_day          INTEGER NOT NULL DEFAULT 0,
    reminder_sent_at TEXT,
    doc              TEXT NOT NULL,
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_schedules_user_start ON schedules (user_id, start_time);
CREATE TABLE IF NOT EXISTS personal_memos (
    memo_id     TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    title       TEXT NOT NULL,
    content     TEXT NOT NULL,
    is_archived INTEGER NOT NULL DEFAULT 0,
    doc         TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_personal_memos_user ON personal_memos (user_id, created_at);
CREATE TABLE IF NOT EXISTS shared_memos (
    memo_id    TEXT PRIMARY KEY,
    group_id   TEXT NOT NULL,
    created_by TEXT NOT NULL,
    title      TEXT NOT NULL,
    content    TEXT NOT NULL,
    version    INTEGER NOT NULL,
    doc        TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_shared_memos_group ON shared_memos (group_id, created_at);
CREATE TABLE IF NOT EXISTS memo_pages (
    page_id        TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    parent_page_id TEXT,
    page_order     INTEGER NOT NULL DEFAULT 0,
    doc            TEXT NOT NULL,
    created_at     TEXT NOT NULL,
    updated_at     TEXT NOT NULL
);
`

// Open opens (and bootstraps) a SQLite database at path. ":memory:" is
// accepted for tests.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite is single-writer; serialize access through one conn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap sqlite schema: %w", err)
	}
	return db, nil
}

// NewWithDB constructs a SQLite store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &liteStore{db: db} }

type liteStore struct{ db *sql.DB }

func (s *liteStore) Users() store.Users                 { return &users{db: s.db} }
func (s *liteStore) Groups() store.Groups               { return &groups{db: s.db} }
func (s *liteStore) Warikans() store.Warikans           { return &warikans{db: s.db} }
func (s *liteStore) Schedules() store.Schedules         { return &schedules{db: s.db} }
func (s *liteStore) PersonalMemos() store.PersonalMemos { return &personalMemos{db: s.db} }
func (s *liteStore) SharedMemos() store.SharedMemos     { return &sharedMemos{db: s.db} }
func (s *liteStore) MemoPages() store.MemoPages         { return &memoPages{db: s.db} }

// HealthPing implements health.HealthPinger for the SQLite store.
func (s *liteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

func marshalDoc(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal doc: %w", err)
	}
	return b, nil
}

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fmtTime(*t)
	return &s
}
