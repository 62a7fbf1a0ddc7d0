package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	gosync "sync"

	"github.com/njoerd114/mohucal/internal/model"
)

// MaxWorkers caps the number of concurrent store calls during Apply.
const MaxWorkers = 8

// SyncApplyError records one failed mutation against the calendar store.
type SyncApplyError struct {
	Date      model.Date
	Operation Operation
	EventID   string
	Err       error
}

func (e *SyncApplyError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Date, e.Err)
}

func (e *SyncApplyError) Unwrap() error { return e.Err }

// Outcome is the result of one planned mutation. For creates EventID holds
// the ID assigned by the store. Err is a [*SyncApplyError] on failure.
type Outcome struct {
	Operation Operation
	Date      model.Date
	EventID   string
	Err       error
}

// Stats tracks the number of mutations performed in a single sync pass.
type Stats struct {
	Created int
	Updated int
	Deleted int
	Errors  int
}

// SyncReport lists one [Outcome] per planned mutation, ordered by date and
// then operation.
type SyncReport struct {
	Outcomes []Outcome
}

// Stats counts successful mutations per kind and failures.
func (r SyncReport) Stats() Stats {
	var s Stats
	for _, o := range r.Outcomes {
		if o.Err != nil {
			s.Errors++
			continue
		}
		switch o.Operation {
		case OpCreate:
			s.Created++
		case OpUpdate:
			s.Updated++
		case OpDelete:
			s.Deleted++
		}
	}
	return s
}

// Failed returns the outcomes whose mutation failed.
func (r SyncReport) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Succeeded returns the outcomes whose mutation was applied.
func (r SyncReport) Succeeded() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err == nil {
			out = append(out, o)
		}
	}
	return out
}

// Err joins the errors of all failed outcomes, or returns nil.
func (r SyncReport) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, o.Err)
	}
	return errors.Join(errs...)
}

// Synchronizer applies plans to a calendar store.
type Synchronizer struct {
	store   CalendarStore
	workers int
	log     *slog.Logger
}

// NewSynchronizer creates a Synchronizer. workers ≤ 1 applies mutations one
// after another; larger values run up to workers store calls at once (capped
// at [MaxWorkers]).
func NewSynchronizer(store CalendarStore, workers int, logger *slog.Logger) *Synchronizer {
	if workers < 1 {
		workers = 1
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}
	return &Synchronizer{store: store, workers: workers, log: logger}
}

// Apply executes every mutation of plan. A failing mutation is recorded in
// the report and does not stop the others.
func (s *Synchronizer) Apply(ctx context.Context, plan SyncPlan) SyncReport {
	ops := plan.Ops()
	report := SyncReport{Outcomes: make([]Outcome, 0, len(ops))}
	if len(ops) == 0 {
		return report
	}

	var mu gosync.Mutex
	record := func(o Outcome) {
		mu.Lock()
		report.Outcomes = append(report.Outcomes, o)
		mu.Unlock()
	}

	if s.workers == 1 {
		for _, op := range ops {
			record(s.applyOne(ctx, plan.Tag, op))
		}
	} else {
		sem := make(chan struct{}, s.workers)
		var wg gosync.WaitGroup
		for _, op := range ops {
			wg.Add(1)
			sem <- struct{}{}
			go func(op PlannedOp) {
				defer wg.Done()
				defer func() { <-sem }()
				record(s.applyOne(ctx, plan.Tag, op))
			}(op)
		}
		wg.Wait()
	}

	sort.SliceStable(report.Outcomes, func(i, j int) bool {
		a, b := report.Outcomes[i], report.Outcomes[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		return a.Operation < b.Operation
	})
	return report
}

// applyOne dispatches a single mutation to the store.
func (s *Synchronizer) applyOne(ctx context.Context, tag string, op PlannedOp) Outcome {
	out := Outcome{Operation: op.Operation, Date: op.Date, EventID: op.EventID}

	var err error
	switch op.Operation {
	case OpCreate:
		var ev model.CalendarEvent
		ev, err = s.store.CreateEvent(ctx, op.Title, op.Date, tag)
		out.EventID = ev.ID
	case OpUpdate:
		err = s.store.UpdateEvent(ctx, op.EventID, op.Title, op.Date)
	case OpDelete:
		err = s.store.DeleteEvent(ctx, op.EventID)
	default:
		err = fmt.Errorf("unknown operation %q", op.Operation)
	}

	if err != nil {
		s.log.Error("sync action failed", "action", op.Operation, "date", op.Date.String(), "event_id", op.EventID, "error", err)
		out.Err = &SyncApplyError{Date: op.Date, Operation: op.Operation, EventID: op.EventID, Err: err}
		return out
	}
	s.log.Debug("sync action applied", "action", op.Operation, "date", op.Date.String(), "event_id", out.EventID)
	return out
}
