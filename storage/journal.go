package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"mailsender/queue"
)

// Entry is one row of the delivery journal.
type Entry struct {
	ID        string    `db:"id"`
	Seq       int64     `db:"seq"`
	Recipient string    `db:"recipient"`
	Subject   string    `db:"subject"`
	Code      int       `db:"code"`
	Outcome   string    `db:"outcome"`
	QueuedAt  time.Time `db:"queued_at"`
	StartedAt time.Time `db:"started_at"`
	Finished  time.Time `db:"finished_at"`
}

// Journal persists delivery outcomes in a local SQLite database.
type Journal struct {
	db *sqlx.DB
}

// OpenJournal opens (or creates) the journal at path and applies pending
// migrations. ":memory:" gives a private in-memory journal.
func OpenJournal(path string) (*Journal, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	j := &Journal{db: db}
	if err := j.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return j, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := j.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if err := j.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := j.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// Record stores the outcome of one delivery.
func (j *Journal) Record(ctx context.Context, o queue.Outcome) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO deliveries (
			id, seq, recipient, subject, code, outcome,
			queued_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, int64(o.Seq), o.Message.Recipient, o.Message.Subject,
		int(o.Code), o.Code.String(),
		o.QueuedAt.UTC(), o.Started.UTC(), o.Finished.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording delivery %s: %w", o.ID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns every entry.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, seq, recipient, subject, code, outcome,
			queued_at, started_at, finished_at
		FROM deliveries
		ORDER BY finished_at DESC, seq DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var entries []Entry
	if err := j.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}
	return entries, nil
}
