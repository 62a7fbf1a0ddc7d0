// Package sync reconciles freshly fetched collection dates with the events a
// calendar store holds for them. It computes the minimal set of creates,
// updates and deletes, applies each one independently, and reports a
// per-date outcome.
//
// The package contains three main components:
//
//   - [Plan] diffs a [model.FetchResult] against the tagged events.
//   - [Synchronizer] applies a [SyncPlan] and returns a [SyncReport].
//   - [Engine] runs one fetch → plan → apply pass with tracing and metrics.
package sync

import (
	"context"

	"github.com/njoerd114/mohucal/internal/model"
)

// CalendarStore provides read/write access to the events of one calendar.
// Implemented by [state.Store], [homeassistant.Adapter] and
// [reminders.Adapter].
type CalendarStore interface {
	ListEvents(ctx context.Context, tag string) ([]model.CalendarEvent, error)
	CreateEvent(ctx context.Context, title string, date model.Date, tag string) (model.CalendarEvent, error)
	UpdateEvent(ctx context.Context, id, title string, date model.Date) error
	DeleteEvent(ctx context.Context, id string) error
}

// Fetcher resolves an address into collection dates.
// Implemented by [mohu.Driver].
type Fetcher interface {
	Fetch(ctx context.Context, addr model.AddressConstraint, category model.Category) (*model.FetchResult, error)
}
