package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/remindd/remindd/internal/bus"
	"github.com/remindd/remindd/internal/clock"
	"github.com/remindd/remindd/internal/model"
	"github.com/remindd/remindd/internal/notify"
	"github.com/remindd/remindd/internal/settings"
	"github.com/remindd/remindd/internal/store"
)

// AppName titles every notification, matching the desktop convention
// of naming the sender rather than the event.
const AppName = "Event Reminder"

// Scheduler is the background reminder loop. Every tick it reads the
// event store, fires due and near-due notifications, and rewrites
// event state: weekly events advance to their next occurrence, expired
// one-off events are deleted or marked past. State changes are
// announced on the bus once per tick.
type Scheduler struct {
	mu       sync.RWMutex
	store    *store.EventStore
	settings *settings.Settings
	notifier notify.Notifier
	bus      *bus.Bus
	clock    clock.Clock
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a reminder scheduler ticking once per second.
func NewScheduler(st *store.EventStore, cfg *settings.Settings, n notify.Notifier, b *bus.Bus) *Scheduler {
	return &Scheduler{
		store:    st,
		settings: cfg,
		notifier: n,
		bus:      b,
		clock:    clock.System{},
		interval: time.Second,
	}
}

// SetInterval overrides the tick interval. Only meaningful before
// Start.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// Start connects the store and begins the tick loop. A failed initial
// connection is fatal: the error is returned and the loop never
// starts. One full pass over the store runs first to catch
// occurrences missed while the process was down.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.store.Connect(); err != nil {
		slog.Error("reminder: initial store connection failed, scheduler not started", "error", err)
		return fmt.Errorf("reminder: connect store: %w", err)
	}

	s.catchUp()

	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()

	return nil
}

// Stop cancels the loop and waits for the current tick to finish.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// catchUp processes every stored event once, regardless of date, so
// that weekly events which lagged behind while the app was closed are
// walked forward and stale one-off events are settled.
func (s *Scheduler) catchUp() {
	defer s.recoverTick()

	events, err := s.store.List()
	if err != nil {
		slog.Error("reminder: catch-up query failed", "error", err)
		return
	}
	s.process(events)
}

// tick runs once per interval. Any failure is logged and the loop
// continues on the next tick.
func (s *Scheduler) tick() {
	defer s.recoverTick()

	now := s.clock.Now().UTC()
	today := civilDate(now)

	// The lead window can cross midnight, so the date range query is
	// widened to whole days covering it.
	leadMinutes := s.settings.RemindTimeBeforeEvent(true)
	leadDays := leadMinutes/(24*60) + 1

	events, err := s.store.ListByDateRange(today, leadDays)
	if err != nil {
		slog.Error("reminder: tick query failed", "error", err)
		return
	}
	s.process(events)
}

func (s *Scheduler) recoverTick() {
	if r := recover(); r != nil {
		slog.Error("reminder: tick panicked", "panic", r)
	}
}

func (s *Scheduler) process(events []model.Event) {
	now := s.clock.Now().UTC()
	today := civilDate(now)
	lead := time.Duration(s.settings.RemindTimeBeforeEvent(true)) * time.Minute

	var changes bus.EventsChangedData
	changed := false

	for i := range events {
		e := &events[i]
		if e.IsPast {
			continue
		}

		due := e.DueAt()
		switch {
		case !now.Before(due):
			if s.expire(e, today) {
				changed = true
				switch {
				case e.RepeatWeekly:
					changes.Rescheduled++
				case s.settings.RemoveEventAfterTimeUp():
					changes.Deleted++
				default:
					changes.Expired++
				}
			}

		case due.Sub(now) <= lead && e.Notified == model.NotifiedNone:
			s.send(e, fmt.Sprintf("%s starts at %s", e.Title, due.Format(model.TimeLayout)))
			notified := model.NotifiedUpcoming
			if _, err := s.store.Update(e.ID, store.EventUpdate{Notified: &notified}); err != nil {
				slog.Error("reminder: mark upcoming notified", "event", e.ID, "error", err)
				continue
			}
			changes.Notified++
			changed = true
		}
	}

	if changed && s.bus != nil {
		s.bus.Publish(bus.EventsChanged, changes)
	}
}

// expire settles one overdue occurrence: at most one expiry
// notification, then reschedule, delete, or mark past. Reports whether
// any state changed.
func (s *Scheduler) expire(e *model.Event, today time.Time) bool {
	if e.Notified < model.NotifiedExpiry {
		s.send(e, e.Title)
	}

	if e.RepeatWeekly {
		nextDate, err := nextWeeklyDate(e.Date, e.Time, today)
		if err != nil {
			slog.Error("reminder: compute next occurrence", "event", e.ID, "error", err)
			return false
		}
		isPast := false
		notified := model.NotifiedNone
		_, err = s.store.Update(e.ID, store.EventUpdate{
			Date:     &nextDate,
			IsPast:   &isPast,
			Notified: &notified,
		})
		if err != nil {
			slog.Error("reminder: reschedule weekly event", "event", e.ID, "error", err)
			return false
		}
		return true
	}

	if s.settings.RemoveEventAfterTimeUp() {
		if err := s.store.Delete(e.ID); err != nil {
			slog.Error("reminder: delete expired event", "event", e.ID, "error", err)
			return false
		}
		return true
	}

	isPast := true
	notified := model.NotifiedExpiry
	if _, err := s.store.Update(e.ID, store.EventUpdate{IsPast: &isPast, Notified: &notified}); err != nil {
		slog.Error("reminder: mark event past", "event", e.ID, "error", err)
		return false
	}
	return true
}

func (s *Scheduler) send(e *model.Event, body string) {
	if e.Description != "" {
		body = body + "\n\n" + e.Description
	}
	err := s.notifier.Send(notify.Notification{
		Title:    AppName,
		Body:     body,
		Duration: s.settings.NotificationDuration(),
		Urgency:  notify.UrgencyCritical,
	})
	if err != nil {
		slog.Error("reminder: send notification", "event", e.ID, "error", err)
	}
}

// nextWeeklyDate walks a weekly occurrence forward in 7-day steps
// until its date is strictly after today. Dates only ever advance,
// never move backward.
func nextWeeklyDate(date, clockTime, today time.Time) (time.Time, error) {
	due := time.Date(
		date.Year(), date.Month(), date.Day(),
		clockTime.Hour(), clockTime.Minute(), clockTime.Second(),
		0, time.UTC,
	)

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.WEEKLY,
		Dtstart: due,
	})
	if err != nil {
		return time.Time{}, err
	}

	// Strictly after today means at or past tomorrow's midnight.
	tomorrow := today.AddDate(0, 0, 1)
	next := rule.After(tomorrow, true)
	if next.IsZero() {
		return time.Time{}, errors.New("no next weekly occurrence")
	}
	return civilDate(next), nil
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
