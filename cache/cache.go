// Package cache keeps a relational copy of the event log in SQLite.
//
// The copy is derived and disposable: Rebuild is its only writer and always
// reloads it from the log as a whole.
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

	"github.com/etnz/folio"
	_ "modernc.org/sqlite"
)

// DB is the cache database.
type DB struct {
	db *sql.DB
}

// Open opens the cache at path, creating it and its tables as needed.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("setting pragma: %w", err)
	}
	for i, m := range []string{migrationEvents, migrationSyncs, migrationIndexes} {
		if _, err := sqlDB.Exec(m); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return &DB{db: sqlDB}, nil
}

// Close closes the database.
func (c *DB) Close() error { return c.db.Close() }

// Rebuild replaces the content of the events table by events, in a single
// transaction, and returns the number of rows written.
func (c *DB) Rebuild(ctx context.Context, events []folio.Event) (n int, err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning rebuild: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM events"); err != nil {
		return 0, fmt.Errorf("clearing events: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events
		(event_id, timestamp, event_type, ticker, data, reason, notes, tags, affects_cash, cash_delta, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		data, err := e.DataJSON()
		if err != nil {
			return 0, fmt.Errorf("event %d: %w", e.ID, err)
		}
		var reason, tags sql.NullString
		if e.Reason != nil {
			b, err := json.Marshal(e.Reason)
			if err != nil {
				return 0, fmt.Errorf("event %d: %w", e.ID, err)
			}
			reason = sql.NullString{String: string(b), Valid: true}
		}
		if len(e.Tags) > 0 {
			b, err := json.Marshal(e.Tags)
			if err != nil {
				return 0, fmt.Errorf("event %d: %w", e.ID, err)
			}
			tags = sql.NullString{String: string(b), Valid: true}
		}
		_, err = stmt.ExecContext(ctx,
			e.ID,
			e.Timestamp.UTC().Format(folio.TimestampFormat),
			string(e.Type),
			e.Ticker(),
			string(data),
			reason,
			e.Notes,
			tags,
			e.AffectsCash,
			e.CashDelta.String(),
			e.IsDeleted,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting event %d: %w", e.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO syncs (synced_at, event_count) VALUES (?, ?)",
		time.Now().UTC().Format(folio.TimestampFormat), len(events)); err != nil {
		return 0, fmt.Errorf("recording sync: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing rebuild: %w", err)
	}
	return len(events), nil
}

// Count returns the number of cached events.
func (c *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

// LastSync returns the time of the last rebuild, zero if there was none.
func (c *DB) LastSync(ctx context.Context) (time.Time, error) {
	var s sql.NullString
	err := c.db.QueryRowContext(ctx, "SELECT synced_at FROM syncs ORDER BY id DESC LIMIT 1").Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading last sync: %w", err)
	}
	return folio.ParseTimestamp(s.String)
}

// Events returns the cached events of ticker, every event if ticker is
// empty, in fold order.
func (c *DB) Events(ctx context.Context, ticker string) ([]folio.Event, error) {
	query := `SELECT event_id, timestamp, event_type, data, reason, notes, tags, affects_cash, cash_delta, is_deleted
		FROM events`
	var args []any
	if ticker = strings.ToUpper(strings.TrimSpace(ticker)); ticker != "" {
		query += " WHERE ticker = ?"
		args = append(args, ticker)
	}
	query += " ORDER BY timestamp, event_id"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []folio.Event
	for rows.Next() {
		var (
			r              row
			reason, tags   sql.NullString
			notes          sql.NullString
			affects, isDel bool
		)
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Type, &r.Data, &reason, &notes, &tags, &affects, &r.CashDelta, &isDel); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		r.Reason, r.Notes, r.Tags = reason.String, notes.String, tags.String
		r.AffectsCash, r.IsDeleted = affects, isDel
		e, err := r.event()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// row is an events row. Structured columns hold JSON text, which the
// lenient event decoder unwraps.
type row struct {
	ID          int64  `json:"event_id"`
	Timestamp   string `json:"timestamp"`
	Type        string `json:"event_type"`
	Data        string `json:"data"`
	Reason      string `json:"reason,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Tags        string `json:"tags,omitempty"`
	AffectsCash bool   `json:"affects_cash"`
	CashDelta   string `json:"cash_delta"`
	IsDeleted   bool   `json:"is_deleted"`
}

func (r row) event() (folio.Event, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return folio.Event{}, err
	}
	var e folio.Event
	if err := e.UnmarshalJSON(b); err != nil {
		return folio.Event{}, fmt.Errorf("event %d: %w", r.ID, err)
	}
	return e, nil
}
