package homeassistant

import (
	"time"

	"github.com/njoerd114/mohucal/internal/model"
)

// HA todo service constants.
const (
	domainTodo        = "todo"
	serviceGetItems   = "get_items"
	serviceAddItem    = "add_item"
	serviceUpdateItem = "update_item"
	serviceRemoveItem = "remove_item"

	dateLayout = "2006-01-02"
)

// haTodoItem is the JSON structure for a single item returned by the HA
// todo.get_items service.
type haTodoItem struct {
	UID         string `json:"uid"`
	Summary     string `json:"summary"`
	Status      string `json:"status"` // "needs_action" or "completed"
	Description string `json:"description,omitempty"`
	Due         string `json:"due,omitempty"` // "YYYY-MM-DD" or RFC 3339
}

// haItemsResponse wraps the items array inside the service response for a
// single entity.
type haItemsResponse struct {
	Items []haTodoItem `json:"items"`
}

// haItemToEvent converts an HA todo item to a calendar event. ok is false
// when the item does not carry tag. A tagged item without a readable due date
// keeps a zero Date so the planner removes it.
func haItemToEvent(h haTodoItem, tag string) (model.CalendarEvent, bool) {
	if h.Description != tag {
		return model.CalendarEvent{}, false
	}
	ev := model.CalendarEvent{ID: h.UID, Title: h.Summary, Tag: tag}
	if h.Due != "" {
		if t, err := parseDue(h.Due); err == nil {
			ev.Date = model.DateOf(t)
		}
	}
	return ev, true
}

// buildAddItemData returns the service-call payload for todo.add_item.
func buildAddItemData(entityID, title string, date model.Date, tag string) map[string]interface{} {
	return map[string]interface{}{
		"entity_id":   entityID,
		"item":        title,
		"due_date":    formatDue(date),
		"description": tag,
	}
}

// buildUpdateItemData returns the service-call payload for todo.update_item.
// HA accepts either the summary or the UID in "item"; the UID is used so
// renames are unambiguous.
func buildUpdateItemData(entityID, uid, title string, date model.Date) map[string]interface{} {
	return map[string]interface{}{
		"entity_id": entityID,
		"item":      uid,
		"rename":    title,
		"due_date":  formatDue(date),
	}
}

// buildRemoveItemData returns the service-call payload for todo.remove_item.
func buildRemoveItemData(entityID, uid string) map[string]interface{} {
	return map[string]interface{}{
		"entity_id": entityID,
		"item":      uid,
	}
}

// buildGetItemsData returns the service-call payload for todo.get_items.
func buildGetItemsData(entityID string) map[string]interface{} {
	return map[string]interface{}{
		"entity_id": entityID,
	}
}

// parseDue parses an HA due-date string. It tries date-only format first
// ("2006-01-02"), then falls back to RFC 3339.
func parseDue(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// formatDue formats a date as the date-only string HA expects.
func formatDue(d model.Date) string {
	return d.String()
}
