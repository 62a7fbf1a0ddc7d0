package main

import (
	"fmt"
	"io"
	"time"

	"github.com/njoerd114/mohucal/internal/config"
	"github.com/njoerd114/mohucal/internal/model"
	"github.com/njoerd114/mohucal/internal/state"
	syncp "github.com/njoerd114/mohucal/internal/sync"
)

// journalEntry summarises one sync-once pass for the run journal.
func journalEntry(started, finished time.Time, addr model.AddressConstraint, cat model.Category, res syncp.RunResult, runErr error) *state.Run {
	stats := res.Report.Stats()
	r := &state.Run{
		StartedAt:  started,
		FinishedAt: finished,
		Address:    addr.String(),
		Category:   string(cat),
		Created:    stats.Created,
		Updated:    stats.Updated,
		Deleted:    stats.Deleted,
		Failed:     stats.Errors,
	}
	if res.Fetch != nil {
		r.Fetched = len(res.Fetch.Dates)
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	return r
}

func printDates(w io.Writer, res *model.FetchResult) {
	dates := res.DatesFor(res.Category)
	if len(dates) == 0 {
		fmt.Fprintf(w, "No %s collection dates published for %s.\n", res.Category, res.Address)
		return
	}
	fmt.Fprintf(w, "%s · %s\n", res.Category.Label(), res.Address)
	for _, d := range dates {
		fmt.Fprintf(w, "  %s  %s\n", d, d.Time().Weekday())
	}
}

func printPlan(w io.Writer, plan syncp.SyncPlan) {
	if plan.IsEmpty() {
		fmt.Fprintln(w, "Calendar is up to date, nothing to change.")
		return
	}
	fmt.Fprintf(w, "Planned changes (dry run, %d):\n", plan.Len())
	for _, op := range plan.Ops() {
		switch op.Operation {
		case syncp.OpCreate:
			fmt.Fprintf(w, "  + %s  %s\n", op.Date, op.Title)
		case syncp.OpUpdate:
			fmt.Fprintf(w, "  ~ %s  %s (event %s)\n", op.Date, op.Title, op.EventID)
		case syncp.OpDelete:
			fmt.Fprintf(w, "  - %s  event %s\n", op.Date, op.EventID)
		}
	}
}

func printReport(w io.Writer, res syncp.RunResult) {
	stats := res.Report.Stats()
	fmt.Fprintf(w, "Sync complete: %d created, %d updated, %d deleted, %d failed.\n",
		stats.Created, stats.Updated, stats.Deleted, stats.Errors)
}

func printLastRun(w io.Writer, last *state.Run) {
	if last == nil {
		fmt.Fprintln(w, "  Last run:  never")
		return
	}
	result := "ok"
	if last.Error != "" {
		result = "failed: " + last.Error
	}
	fmt.Fprintf(w, "  Last run:  %s (%s)\n", last.FinishedAt.Local().Format(time.DateTime), result)
	fmt.Fprintf(w, "             %d date(s) fetched, %d created, %d updated, %d deleted\n",
		last.Fetched, last.Created, last.Updated, last.Deleted)
}

func describeCalendar(cc config.CalendarConfig) string {
	switch cc.Backend {
	case config.BackendHomeAssistant:
		return fmt.Sprintf("Home Assistant %s at %s", cc.HomeAssistant.EntityID, cc.HomeAssistant.URL)
	case config.BackendReminders:
		return fmt.Sprintf("Reminders list %q", cc.Reminders.List)
	default:
		return "local SQLite calendar"
	}
}
