package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"
)

const currentVersion = 1

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB

	// in-flight get-or-create calls keyed by date
	daily singleflight.Group
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	// Configure pragmas.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

// sessions.task_id is a soft reference: deleting a task leaves history intact.
func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS sessions (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		start_time       TEXT NOT NULL,
		end_time         TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		type             TEXT NOT NULL CHECK (type IN ('work', 'break', 'longBreak')),
		task_id          INTEGER,
		completed        INTEGER NOT NULL DEFAULT 0,
		interrupted      INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_start ON sessions(start_time);
	CREATE INDEX IF NOT EXISTS idx_sessions_task  ON sessions(task_id);

	CREATE TABLE IF NOT EXISTS tasks (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		title               TEXT NOT NULL CHECK (title <> ''),
		description         TEXT NOT NULL DEFAULT '',
		tags                TEXT NOT NULL DEFAULT '',
		created_at          TEXT NOT NULL,
		completed_at        TEXT,
		is_completed        INTEGER NOT NULL DEFAULT 0,
		estimated_pomodoros INTEGER NOT NULL DEFAULT 1,
		completed_pomodoros INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at);

	CREATE TABLE IF NOT EXISTS daily_stats (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		date                TEXT NOT NULL UNIQUE,
		completed_pomodoros INTEGER NOT NULL DEFAULT 0,
		completed_sessions  INTEGER NOT NULL DEFAULT 0,
		minutes_focused     INTEGER NOT NULL DEFAULT 0,
		tasks_completed     INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS settings (
		id                         INTEGER PRIMARY KEY CHECK (id = 1),
		work_duration              INTEGER NOT NULL,
		short_break_duration       INTEGER NOT NULL,
		long_break_duration        INTEGER NOT NULL,
		sessions_before_long_break INTEGER NOT NULL,
		auto_start_breaks          INTEGER NOT NULL,
		auto_start_pomodoros       INTEGER NOT NULL,
		sound_enabled              INTEGER NOT NULL,
		theme                      TEXT NOT NULL,
		daily_goal                 INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	return s.insertDefaultSettings()
}

// DefaultDBPath returns ~/.config/pomo/pomo.db
func DefaultDBPath() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "pomo", "pomo.db"), nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// nullID lets SQLite assign a fresh id when none was carried over.
func nullID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// notFound maps sql.ErrNoRows to ErrNotFound, keeping other errors as-is.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
