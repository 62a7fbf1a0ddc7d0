package sync

import (
	"sort"

	"github.com/njoerd114/mohucal/internal/model"
)

// Operation is the kind of mutation applied to the calendar store.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// PlannedOp is a single mutation. EventID is empty for creates.
type PlannedOp struct {
	Operation Operation
	Date      model.Date
	EventID   string
	Title     string
}

// SyncPlan lists the mutations that bring the tagged events in line with a
// fetch result. Each list is sorted by date.
type SyncPlan struct {
	Tag    string
	Create []PlannedOp
	Update []PlannedOp
	Delete []PlannedOp
}

// Len returns the total number of planned mutations.
func (p SyncPlan) Len() int {
	return len(p.Create) + len(p.Update) + len(p.Delete)
}

// IsEmpty reports whether the calendar already matches the fetch result.
func (p SyncPlan) IsEmpty() bool {
	return p.Len() == 0
}

// Ops returns all mutations: deletes, then updates, then creates.
func (p SyncPlan) Ops() []PlannedOp {
	ops := make([]PlannedOp, 0, p.Len())
	ops = append(ops, p.Delete...)
	ops = append(ops, p.Update...)
	ops = append(ops, p.Create...)
	return ops
}

// Plan diffs the dates of result against existing and returns the
// mutations for tag.
//
// Events are matched by date only. A wanted date with no event is created; an
// event whose date is no longer wanted is deleted; an event on a wanted date
// with an outdated title is updated. When several events share one date the
// first is kept and the rest are deleted. Events carrying another tag are
// never touched. Planning again after a fully successful apply returns an
// empty plan.
func Plan(result *model.FetchResult, existing []model.CalendarEvent, tag string) SyncPlan {
	plan := SyncPlan{Tag: tag}

	wanted := make(map[model.Date]string)
	for _, d := range result.DatesFor(result.Category) {
		wanted[d] = model.EventTitle(result.Category, d)
	}

	kept := make(map[model.Date]bool)
	for _, ev := range existing {
		if ev.Tag != tag {
			continue
		}
		title, ok := wanted[ev.Date]
		switch {
		case !ok || kept[ev.Date]:
			plan.Delete = append(plan.Delete, PlannedOp{Operation: OpDelete, Date: ev.Date, EventID: ev.ID, Title: ev.Title})
		case ev.Title != title:
			kept[ev.Date] = true
			plan.Update = append(plan.Update, PlannedOp{Operation: OpUpdate, Date: ev.Date, EventID: ev.ID, Title: title})
		default:
			kept[ev.Date] = true
		}
	}

	for d, title := range wanted {
		if !kept[d] {
			plan.Create = append(plan.Create, PlannedOp{Operation: OpCreate, Date: d, Title: title})
		}
	}

	sortOps(plan.Create)
	sortOps(plan.Update)
	sortOps(plan.Delete)
	return plan
}

func sortOps(ops []PlannedOp) {
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].Date != ops[j].Date {
			return ops[i].Date.Before(ops[j].Date)
		}
		return ops[i].EventID < ops[j].EventID
	})
}
