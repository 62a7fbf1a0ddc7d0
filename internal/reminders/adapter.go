// Package reminders wraps the go-eventkit reminders library and exposes one
// Apple Reminders list as a calendar store. Each collection date becomes a
// reminder due at local midnight of that day; the reminder notes carry the
// sync tag so that hand-made reminders in the same list are left alone.
//
// The adapter accepts context.Context on every method for consistency with
// the other stores, even though the underlying cgo calls are non-cancellable
// (sub-200ms latency).
package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ekreminders "github.com/BRO3886/go-eventkit/reminders"

	"github.com/njoerd114/mohucal/internal/model"
)

// EventKitClient is the subset of [ekreminders.Client] methods used by the
// adapter. Defining it as an interface allows mock injection in tests.
type EventKitClient interface {
	Reminders(opts ...ekreminders.ListOption) ([]ekreminders.Reminder, error)
	CreateReminder(input ekreminders.CreateReminderInput) (*ekreminders.Reminder, error)
	UpdateReminder(id string, input ekreminders.UpdateReminderInput) (*ekreminders.Reminder, error)
	DeleteReminder(id string) error
}

// Adapter stores collection reminders in a single list. Create one with
// [NewAdapter] or [NewAdapterWithClient].
type Adapter struct {
	client   EventKitClient
	listName string
	loc      *time.Location
	log      *slog.Logger
}

// NewAdapter creates an Adapter backed by a real EventKit client.
// This triggers the macOS TCC permissions prompt on first use.
func NewAdapter(listName string, logger *slog.Logger) (*Adapter, error) {
	c, err := ekreminders.New()
	if err != nil {
		return nil, fmt.Errorf("initialising reminders client: %w", err)
	}
	return NewAdapterWithClient(c, listName, logger), nil
}

// NewAdapterWithClient creates an Adapter with a caller-supplied client.
// Intended for testing with a mock [EventKitClient].
func NewAdapterWithClient(client EventKitClient, listName string, logger *slog.Logger) *Adapter {
	return &Adapter{client: client, listName: listName, loc: time.Local, log: logger}
}

// ListEvents returns the reminders of the list whose notes equal tag.
// Completed reminders are included so a ticked-off collection day is not
// recreated on the next run.
func (a *Adapter) ListEvents(ctx context.Context, tag string) ([]model.CalendarEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}

	a.log.Debug("fetching reminders", "list", a.listName)
	rems, err := a.client.Reminders(ekreminders.WithList(a.listName))
	if err != nil {
		return nil, fmt.Errorf("fetching reminders for list %q: %w", a.listName, err)
	}

	var events []model.CalendarEvent
	for i := range rems {
		if ev, ok := reminderToEvent(&rems[i], tag, a.loc); ok {
			events = append(events, ev)
		}
	}
	a.log.Debug("fetched reminders", "list", a.listName, "count", len(rems), "tagged", len(events))
	return events, nil
}

// CreateEvent adds a reminder due on date and returns it with the ID
// assigned by EventKit.
func (a *Adapter) CreateEvent(ctx context.Context, title string, date model.Date, tag string) (model.CalendarEvent, error) {
	if err := ctx.Err(); err != nil {
		return model.CalendarEvent{}, fmt.Errorf("create reminder: %w", err)
	}

	a.log.Debug("creating reminder", "title", title, "list", a.listName)
	rem, err := a.client.CreateReminder(createInput(a.listName, title, date, tag, a.loc))
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("creating reminder %q in list %q: %w", title, a.listName, err)
	}
	return model.CalendarEvent{ID: rem.ID, Title: title, Date: date, Tag: tag}, nil
}

// UpdateEvent sets the title and due date of an existing reminder. The notes,
// and with them the tag, are not touched.
func (a *Adapter) UpdateEvent(ctx context.Context, id, title string, date model.Date) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}

	a.log.Debug("updating reminder", "uid", id, "title", title)
	if _, err := a.client.UpdateReminder(id, updateInput(title, date, a.loc)); err != nil {
		return fmt.Errorf("updating reminder %q: %w", id, err)
	}
	return nil
}

// DeleteEvent permanently removes a reminder by ID.
func (a *Adapter) DeleteEvent(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}

	a.log.Debug("deleting reminder", "uid", id)
	if err := a.client.DeleteReminder(id); err != nil {
		return fmt.Errorf("deleting reminder %q: %w", id, err)
	}
	return nil
}
