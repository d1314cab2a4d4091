// Package memory handles persistent local state using SQLite: the people
// directory, per-thread conversation context and the reminder log.
package memory

import (
	"context"
	"database/sql"
	"strings"
	"time"

	// SQLite driver (required for database/sql registration).
	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/paimy-ai/paimy/internal/errors"
)

// DefaultContextTTL is how long an idle thread keeps its context.
const DefaultContextTTL = 7 * 24 * time.Hour

// Store is the SQLite-backed memory. It is safe for concurrent use.
type Store struct {
	db         *sql.DB
	contextTTL time.Duration
	now        func() time.Time
}

// Open opens the database at path, creating it and its tables if needed.
// ":memory:" opens a private in-memory database. ttl <= 0 uses
// DefaultContextTTL.
func Open(path string, ttl time.Duration) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMemoryUnavailable, "open memory database", apperrors.CategorySystem)
	}
	if ttl <= 0 {
		ttl = DefaultContextTTL
	}

	s := &Store{db: db, contextTTL: ttl, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeMemoryUnavailable, "initialize memory schema", apperrors.CategorySystem)
	}
	return s, nil
}

// openDB opens a single SQLite database with the pragmas we rely on.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS people (
		id              TEXT PRIMARY KEY,
		chat_id         TEXT NOT NULL UNIQUE,
		store_id        TEXT NOT NULL DEFAULT '',
		display_name    TEXT NOT NULL DEFAULT '',
		store_name      TEXT NOT NULL DEFAULT '',
		aliases_json    TEXT NOT NULL DEFAULT '[]',
		team            TEXT NOT NULL DEFAULT '',
		is_active       INTEGER NOT NULL DEFAULT 1,
		created_at      INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at      INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_people_store ON people(store_id);
	CREATE INDEX IF NOT EXISTS idx_people_active ON people(is_active);

	CREATE TABLE IF NOT EXISTS conversation_context (
		id              TEXT PRIMARY KEY,
		thread_key      TEXT NOT NULL UNIQUE,
		channel_id      TEXT NOT NULL DEFAULT '',
		user_id         TEXT NOT NULL DEFAULT '',
		context_json    TEXT NOT NULL,
		created_at      INTEGER NOT NULL,
		updated_at      INTEGER NOT NULL,
		expires_at      INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_context_expires ON conversation_context(expires_at);

	CREATE TABLE IF NOT EXISTS reminder_log (
		id              TEXT PRIMARY KEY,
		kind            TEXT NOT NULL,
		person          TEXT NOT NULL,
		ref             TEXT NOT NULL DEFAULT '',
		sent_on         TEXT NOT NULL,
		created_at      INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		UNIQUE(kind, person, ref, sent_on)
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return ensureSchemaVersion(ctx, s.db, 1, "people, conversation context, reminder log")
}

func ensureSchemaVersion(ctx context.Context, db *sql.DB, version int, description string) error {
	var current sql.NullInt64
	if err := db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&current); err != nil {
		return err
	}

	if !current.Valid || int(current.Int64) < version {
		_, err := db.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			version,
			description,
		)
		return err
	}
	return nil
}

// SchemaVersion returns the applied schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, dbError(err, "read schema version")
	}
	return int(v.Int64), nil
}

// dbError wraps a database failure.
func dbError(err error, op string) error {
	return apperrors.Wrap(err, apperrors.CodeMemoryFailed, op, apperrors.CategoryTemporary)
}
