// Package history keeps a ledger of command executions in SQLite.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/bassamadnan/mailcmd/trigger"
)

// Entry is one row of the ledger.
type Entry struct {
	ID         string    `db:"id"`
	MessageID  string    `db:"message_id"`
	Command    string    `db:"command"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
	ExitCode   int       `db:"exit_code"`
	Stdout     string    `db:"stdout"`
	Stderr     string    `db:"stderr"`
	Error      string    `db:"error"`
	MarkedRead bool      `db:"marked_read"`
	MarkError  string    `db:"mark_error"`
}

// SQLiteStore implements trigger.Recorder.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ trigger.Recorder = (*SQLiteStore)(nil)

// Open opens (or creates) the database at path and applies pending migrations.
func Open(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record inserts one execution.
func (s *SQLiteStore) Record(ctx context.Context, e trigger.Execution) error {
	entry := Entry{
		ID:         e.ID,
		MessageID:  e.MessageID,
		Command:    e.Command,
		StartedAt:  e.StartedAt.UTC(),
		FinishedAt: e.FinishedAt.UTC(),
		ExitCode:   e.ExitCode,
		Stdout:     e.Stdout,
		Stderr:     e.Stderr,
		Error:      errString(e.Err),
		MarkedRead: e.MarkedRead,
		MarkError:  errString(e.MarkErr),
	}
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO executions (
	id, message_id, command, started_at, finished_at, exit_code,
	stdout, stderr, error, marked_read, mark_error
) VALUES (
	:id, :message_id, :command, :started_at, :finished_at, :exit_code,
	:stdout, :stderr, :error, :marked_read, :mark_error
)`, entry)
	if err != nil {
		return fmt.Errorf("inserting execution %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	var entries []Entry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT * FROM executions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	return entries, nil
}

// ForMessage returns every execution for messageID, oldest first.
func (s *SQLiteStore) ForMessage(ctx context.Context, messageID string) ([]Entry, error) {
	var entries []Entry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT * FROM executions WHERE message_id = ? ORDER BY started_at, rowid`, messageID)
	if err != nil {
		return nil, fmt.Errorf("querying executions for %s: %w", messageID, err)
	}
	return entries, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
