package store

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/remindd/remindd/internal/database"
	"github.com/remindd/remindd/internal/model"
)

// EventStore owns the events database connection. All access is
// serialized by an internal mutex, so the GUI thread and the reminder
// scheduler can share one store; overlapping updates to the same event
// resolve as last write wins.
type EventStore struct {
	mu        sync.Mutex
	path      string
	reconnect bool
	db        *sql.DB
}

// NewEventStore creates a store for the database at path. When
// reconnect is true, operations reopen a closed connection on demand
// instead of failing with ErrNotConnected.
func NewEventStore(path string, reconnect bool) *EventStore {
	return &EventStore{path: path, reconnect: reconnect}
}

// Connect opens the database and runs migrations. Calling it on an
// already connected store is a no-op.
func (s *EventStore) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connect()
}

func (s *EventStore) connect() error {
	if s.db != nil {
		return nil
	}
	db, err := database.Open(s.path)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	s.db = db
	return nil
}

// Disconnect closes the connection. Calling it on a closed store is a
// no-op.
func (s *EventStore) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// IsConnected reports whether the store currently holds an open
// connection.
func (s *EventStore) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db != nil
}

// ensureOpen is the single connection-state branch point: callers of
// the store never check the connection themselves. Must be called with
// the mutex held.
func (s *EventStore) ensureOpen() error {
	if s.db != nil {
		return nil
	}
	if !s.reconnect {
		return ErrNotConnected
	}
	return s.connect()
}

// EventUpdate carries a partial update. Nil fields are left unchanged.
type EventUpdate struct {
	Title        *string
	Date         *time.Time
	Time         *time.Time
	Description  *string
	IsPast       *bool
	RepeatWeekly *bool
	Notified     *int
}

// Create inserts a new event and returns it with its assigned id.
func (s *EventStore) Create(title string, date, clock time.Time, description string, repeatWeekly, isPast bool) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, ErrEmptyTitle
	}

	result, err := s.db.Exec(
		`INSERT INTO events (title, date, time, description, is_past, repeat_weekly, is_notified)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		title, date.Format(model.DateLayout), clock.Format(model.TimeLayout),
		description, boolInt(isPast), boolInt(repeatWeekly), model.NotifiedNone,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.get(id)
}

// Get returns the event with the given id, or nil if no such row
// exists.
func (s *EventStore) Get(id int64) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	return s.get(id)
}

func (s *EventStore) get(id int64) (*model.Event, error) {
	row := s.db.QueryRow(
		`SELECT id, title, date, time, description, is_past, repeat_weekly, is_notified
		 FROM events WHERE id = ?`,
		id,
	)
	e, err := scanEvent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query event: %w", err)
	}
	return e, nil
}

// Exists reports whether an event with the given id exists.
func (s *EventStore) Exists(id int64) (bool, error) {
	e, err := s.Get(id)
	if err != nil {
		return false, err
	}
	return e != nil, nil
}

// Update applies the non-nil fields of u to the event and returns the
// updated row. A missing id fails with ErrNotFound. Concurrent updates
// to the same event are last write wins.
func (s *EventStore) Update(id int64, u EventUpdate) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	existing, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}

	var sets []string
	var args []any
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, u.Date.Format(model.DateLayout))
	}
	if u.Time != nil {
		sets = append(sets, "time = ?")
		args = append(args, u.Time.Format(model.TimeLayout))
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *u.Description)
	}
	if u.IsPast != nil {
		sets = append(sets, "is_past = ?")
		args = append(args, boolInt(*u.IsPast))
	}
	if u.RepeatWeekly != nil {
		sets = append(sets, "repeat_weekly = ?")
		args = append(args, boolInt(*u.RepeatWeekly))
	}
	if u.Notified != nil {
		sets = append(sets, "is_notified = ?")
		args = append(args, *u.Notified)
	}
	if len(sets) == 0 {
		return existing, nil
	}

	args = append(args, id)
	_, err = s.db.Exec("UPDATE events SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}

	return s.get(id)
}

// Delete removes the event with the given id. Deleting a nonexistent
// id is a no-op.
func (s *EventStore) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpen(); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM events WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// List returns all events ordered by due instant.
func (s *EventStore) List() ([]model.Event, error) {
	return s.list("", nil)
}

// ListByDate returns all events on the given day.
func (s *EventStore) ListByDate(date time.Time) ([]model.Event, error) {
	return s.list("WHERE date = ?", []any{date.Format(model.DateLayout)})
}

// ListByDateRange returns events whose date falls in
// [date, date+deltaDays], bounds inclusive. The scheduler uses it to
// pick up recurring events that lagged behind the current lead window.
func (s *EventStore) ListByDateRange(date time.Time, deltaDays int) ([]model.Event, error) {
	end := date.AddDate(0, 0, deltaDays)
	return s.list("WHERE date >= ? AND date <= ?", []any{
		date.Format(model.DateLayout), end.Format(model.DateLayout),
	})
}

// ListAt returns events matching the exact date and time pair.
func (s *EventStore) ListAt(date, clock time.Time) ([]model.Event, error) {
	return s.list("WHERE date = ? AND time = ?", []any{
		date.Format(model.DateLayout), clock.Format(model.TimeLayout),
	})
}

func (s *EventStore) list(condition string, args []any) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	query := `SELECT id, title, date, time, description, is_past, repeat_weekly, is_notified FROM events`
	if condition != "" {
		query += " " + condition
	}
	query += " ORDER BY date ASC, time ASC, id ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// Snapshot exports every event in backup wire form.
func (s *EventStore) Snapshot() ([]model.EventSnapshot, error) {
	events, err := s.List()
	if err != nil {
		return nil, err
	}
	snaps := make([]model.EventSnapshot, 0, len(events))
	for i := range events {
		snaps = append(snaps, events[i].Snapshot())
	}
	return snaps, nil
}

// RestoreSnapshot replaces the entire store contents with the given
// events inside a single transaction. Original ids are preserved.
func (s *EventStore) RestoreSnapshot(snaps []model.EventSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpen(); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin restore: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM events"); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}

	for _, snap := range snaps {
		e := snap.Event()
		_, err := tx.Exec(
			`INSERT INTO events (id, title, date, time, description, is_past, repeat_weekly, is_notified)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Title, e.Date.Format(model.DateLayout), e.Time.Format(model.TimeLayout),
			e.Description, boolInt(e.IsPast), boolInt(e.RepeatWeekly), e.Notified,
		)
		if err != nil {
			return fmt.Errorf("restore event %d: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore: %w", err)
	}
	return nil
}

type scanFunc func(dest ...any) error

func scanEvent(scan scanFunc) (*model.Event, error) {
	var e model.Event
	var dateStr, timeStr string
	var pastInt, weeklyInt int

	if err := scan(&e.ID, &e.Title, &dateStr, &timeStr, &e.Description, &pastInt, &weeklyInt, &e.Notified); err != nil {
		return nil, err
	}

	date, err := time.Parse(model.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", dateStr, err)
	}
	clock, err := time.Parse(model.TimeLayout, timeStr)
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", timeStr, err)
	}

	e.Date = date
	e.Time = clock
	e.IsPast = pastInt != 0
	e.RepeatWeekly = weeklyInt != 0
	return &e, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
