package reminders

import (
	"time"

	ekreminders "github.com/BRO3886/go-eventkit/reminders"

	"github.com/njoerd114/mohucal/internal/model"
)

// reminderToEvent converts an EventKit Reminder to a calendar event. ok is
// false when the notes do not equal tag. The due date is read in loc so a
// reminder due at local midnight maps back to the same day.
func reminderToEvent(r *ekreminders.Reminder, tag string, loc *time.Location) (model.CalendarEvent, bool) {
	if r.Notes != tag {
		return model.CalendarEvent{}, false
	}
	ev := model.CalendarEvent{ID: r.ID, Title: r.Title, Tag: tag}
	if r.DueDate != nil {
		ev.Date = model.DateOf(r.DueDate.In(loc))
	}
	return ev, true
}

// createInput builds the EventKit input for a new collection reminder.
func createInput(listName, title string, date model.Date, tag string, loc *time.Location) ekreminders.CreateReminderInput {
	due := date.In(loc)
	return ekreminders.CreateReminderInput{
		Title:    title,
		Notes:    tag,
		ListName: listName,
		DueDate:  &due,
		Priority: ekreminders.PriorityNone,
	}
}

// updateInput builds a partial patch touching only the title and due date.
func updateInput(title string, date model.Date, loc *time.Location) ekreminders.UpdateReminderInput {
	due := date.In(loc)
	return ekreminders.UpdateReminderInput{
		Title:   &title,
		DueDate: &due,
	}
}
