package model

import "time"

// Date and time layouts used for storage, queries and backup payloads.
// Sub-second precision is never stored; the due instant has second
// granularity at most.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Notification progress for a single occurrence. The value only moves
// forward; a weekly reschedule starts the next occurrence back at
// NotifiedNone.
const (
	NotifiedNone     = 0
	NotifiedUpcoming = 1
	NotifiedExpiry   = 2
)

// Event is a calendar reminder entry. Date carries the calendar day
// (UTC midnight) and Time the clock time on the zero date; DueAt
// combines the two.
type Event struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Date         time.Time `json:"date"`
	Time         time.Time `json:"time"`
	Description  string    `json:"description"`
	IsPast       bool      `json:"is_past"`
	RepeatWeekly bool      `json:"repeat_weekly"`
	Notified     int       `json:"is_notified"`
}

// DueAt returns the instant the event triggers.
func (e *Event) DueAt() time.Time {
	return time.Date(
		e.Date.Year(), e.Date.Month(), e.Date.Day(),
		e.Time.Hour(), e.Time.Minute(), e.Time.Second(),
		0, time.UTC,
	)
}

// EventSnapshot is the wire form of an event inside a backup payload.
// Field order is fixed; backup digests are computed over the serialized
// form, so reordering or renaming fields is a format change.
type EventSnapshot struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Description  string `json:"description"`
	IsPast       bool   `json:"is_past"`
	RepeatWeekly bool   `json:"repeat_weekly"`
	Notified     int    `json:"is_notified"`
}

// Snapshot converts the event to its backup wire form.
func (e *Event) Snapshot() EventSnapshot {
	return EventSnapshot{
		ID:           e.ID,
		Title:        e.Title,
		Date:         e.Date.Format(DateLayout),
		Time:         e.Time.Format(TimeLayout),
		Description:  e.Description,
		IsPast:       e.IsPast,
		RepeatWeekly: e.RepeatWeekly,
		Notified:     e.Notified,
	}
}

// Event converts the snapshot back to an event. Malformed date or time
// strings surface as a zero value in the respective field; the backup
// codec validates payload shape before calling this.
func (s EventSnapshot) Event() Event {
	date, _ := time.Parse(DateLayout, s.Date)
	clock, _ := time.Parse(TimeLayout, s.Time)
	return Event{
		ID:           s.ID,
		Title:        s.Title,
		Date:         date,
		Time:         clock,
		Description:  s.Description,
		IsPast:       s.IsPast,
		RepeatWeekly: s.RepeatWeekly,
		Notified:     s.Notified,
	}
}
