// Package state manages the SQLite database that backs the local calendar
// store and keeps a journal of sync runs.
//
// Only this package may open or query the database. All other packages receive
// a [*Store] and call its methods.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/njoerd114/mohucal/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS calendar_events (
    id         TEXT PRIMARY KEY,
    tag        TEXT NOT NULL,
    title      TEXT NOT NULL,
    event_date TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT '',
    updated_at TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_events_tag_date ON calendar_events (tag, event_date);

CREATE TABLE IF NOT EXISTS sync_runs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at  TEXT    NOT NULL,
    finished_at TEXT    NOT NULL,
    address     TEXT    NOT NULL,
    category    TEXT    NOT NULL,
    fetched     INTEGER NOT NULL DEFAULT 0,
    created     INTEGER NOT NULL DEFAULT 0,
    updated     INTEGER NOT NULL DEFAULT 0,
    deleted     INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0,
    error       TEXT    NOT NULL DEFAULT ''
);
`

// ErrEventNotFound is returned when an update or delete names an unknown ID.
var ErrEventNotFound = errors.New("event not found")

// Run is one journal entry describing a sync-once invocation.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Address    string
	Category   string
	Fetched    int
	Created    int
	Updated    int
	Deleted    int
	Failed     int
	Error      string
}

// Store is the SQLite-backed calendar and journal repository.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultDBPath returns the default path for the state database:
// ~/.local/share/mohucal/state.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "mohucal", "state.db"), nil
}

// Open opens (or creates) the SQLite database at path, applies the schema, and
// configures WAL mode for better concurrent read performance.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the schema DDL idempotently (CREATE IF NOT EXISTS).
func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// --- calendar events ---------------------------------------------------------

// ListEvents returns the events carrying tag, ordered by date.
func (s *Store) ListEvents(ctx context.Context, tag string) ([]model.CalendarEvent, error) {
	const q = `
		SELECT id, tag, title, event_date
		FROM calendar_events WHERE tag = ?
		ORDER BY event_date, id`
	rows, err := s.db.QueryContext(ctx, q, tag)
	if err != nil {
		return nil, fmt.Errorf("querying events tagged %q: %w", tag, err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.CalendarEvent
	for rows.Next() {
		var ev model.CalendarEvent
		var date string
		if err := rows.Scan(&ev.ID, &ev.Tag, &ev.Title, &date); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		if ev.Date, err = model.ParseDate(date); err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CreateEvent inserts a new event and returns it with its generated ID.
func (s *Store) CreateEvent(ctx context.Context, title string, date model.Date, tag string) (model.CalendarEvent, error) {
	const q = `
		INSERT INTO calendar_events (id, tag, title, event_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	ev := model.CalendarEvent{ID: uuid.NewString(), Title: title, Date: date, Tag: tag}
	now := formatTime(s.now())
	if _, err := s.db.ExecContext(ctx, q, ev.ID, tag, title, date.String(), now, now); err != nil {
		return model.CalendarEvent{}, fmt.Errorf("inserting event for %s: %w", date, err)
	}
	return ev, nil
}

// UpdateEvent changes the title and date of the event with the given ID.
func (s *Store) UpdateEvent(ctx context.Context, id, title string, date model.Date) error {
	const q = `UPDATE calendar_events SET title = ?, event_date = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, title, date.String(), formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("updating event %s: %w", id, err)
	}
	return expectOneRow(res, id)
}

// DeleteEvent removes the event with the given ID.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	const q = `DELETE FROM calendar_events WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("deleting event %s: %w", id, err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows for event %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("event %s: %w", id, ErrEventNotFound)
	}
	return nil
}

// --- run journal -------------------------------------------------------------

// RecordRun appends r to the journal and sets its ID.
func (s *Store) RecordRun(ctx context.Context, r *Run) error {
	const q = `
		INSERT INTO sync_runs
		    (started_at, finished_at, address, category, fetched,
		     created, updated, deleted, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		formatTime(r.StartedAt),
		formatTime(r.FinishedAt),
		r.Address,
		r.Category,
		r.Fetched,
		r.Created,
		r.Updated,
		r.Deleted,
		r.Failed,
		r.Error,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		r.ID = id
	}
	return nil
}

// LastRun returns the most recent journal entry, or (nil, nil) if none.
func (s *Store) LastRun(ctx context.Context) (*Run, error) {
	const q = `
		SELECT id, started_at, finished_at, address, category, fetched,
		       created, updated, deleted, failed, error
		FROM sync_runs ORDER BY id DESC LIMIT 1`

	var r Run
	var started, finished string
	err := s.db.QueryRowContext(ctx, q).Scan(
		&r.ID, &started, &finished, &r.Address, &r.Category, &r.Fetched,
		&r.Created, &r.Updated, &r.Deleted, &r.Failed, &r.Error,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("reading last run: %w", err)
	}
	r.StartedAt, _ = parseTime(started)
	r.FinishedAt, _ = parseTime(finished)
	return &r, nil
}

// --- helpers -----------------------------------------------------------------

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
