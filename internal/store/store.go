package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// builder renders SQLite statements.
var builder = entsql.Dialect(dialect.SQLite)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the database handle and hands out repositories.
type Store struct {
	db  *sql.DB
	seq *sequenceCounter
}

// Open creates a new Store connected to the SQLite database at dsn.
// It applies recommended pragmas and runs auto-migration.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them in force.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := migrate(context.Background(), entsql.OpenDB(dialect.SQLite, db)); err != nil {
		db.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	seq, err := newSequenceCounter(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, seq: seq}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Repos groups the repositories bound to one connection or transaction.
type Repos struct {
	Participants  ParticipantRepo
	Sessions      SessionRepo
	Conversations ConversationRepo
	Events        EventRepo
}

func (s *Store) repos(q querier) Repos {
	return Repos{
		Participants:  &participantRepo{q: q},
		Sessions:      &sessionRepo{q: q},
		Conversations: &conversationRepo{q: q},
		Events:        &eventRepo{q: q, seq: s.seq},
	}
}

// ParticipantRepo returns a ParticipantRepo backed by this store.
func (s *Store) ParticipantRepo() ParticipantRepo { return s.repos(s.db).Participants }

// SessionRepo returns a SessionRepo backed by this store.
func (s *Store) SessionRepo() SessionRepo { return s.repos(s.db).Sessions }

// ConversationRepo returns a ConversationRepo backed by this store.
func (s *Store) ConversationRepo() ConversationRepo { return s.repos(s.db).Conversations }

// EventRepo returns an EventRepo backed by this store.
func (s *Store) EventRepo() EventRepo { return s.repos(s.db).Events }

// InTx runs fn with repositories bound to a single transaction. The
// transaction commits if fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(Repos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(s.repos(tx)); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rerr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// applyPragmas configures SQLite for a small multi-reader service.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. STUDYCTL_DB environment variable
// 2. $XDG_DATA_HOME/studyctl/studyctl.db
// 3. ~/.local/share/studyctl/studyctl.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("STUDYCTL_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "studyctl", "studyctl.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
