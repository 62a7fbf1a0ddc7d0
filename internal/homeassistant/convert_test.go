package homeassistant

import (
	"testing"

	"github.com/njoerd114/mohucal/internal/model"
)

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestHAItemToEvent_Tagged(t *testing.T) {
	h := haTodoItem{
		UID:         "ha-uid-123",
		Summary:     "Szelektív hulladékszállítás (2025-04-08)",
		Status:      "needs_action",
		Description: "mohucal",
		Due:         "2025-04-08",
	}

	got, ok := haItemToEvent(h, "mohucal")
	if !ok {
		t.Fatal("ok = false, want true for tagged item")
	}
	if got.ID != "ha-uid-123" {
		t.Errorf("ID = %q, want %q", got.ID, "ha-uid-123")
	}
	if got.Title != h.Summary {
		t.Errorf("Title = %q, want %q", got.Title, h.Summary)
	}
	if got.Date != mustDate(t, "2025-04-08") {
		t.Errorf("Date = %v, want 2025-04-08", got.Date)
	}
	if got.Tag != "mohucal" {
		t.Errorf("Tag = %q, want mohucal", got.Tag)
	}
}

func TestHAItemToEvent_ForeignItemSkipped(t *testing.T) {
	for _, desc := range []string{"", "buy milk", "mohucal-other"} {
		h := haTodoItem{UID: "x", Summary: "Groceries", Description: desc, Due: "2025-04-08"}
		if _, ok := haItemToEvent(h, "mohucal"); ok {
			t.Errorf("description %q: ok = true, want false", desc)
		}
	}
}

func TestHAItemToEvent_RFC3339Due(t *testing.T) {
	h := haTodoItem{UID: "a", Description: "t", Due: "2025-04-22T00:00:00+00:00"}
	got, ok := haItemToEvent(h, "t")
	if !ok {
		t.Fatal("ok = false")
	}
	if got.Date != mustDate(t, "2025-04-22") {
		t.Errorf("Date = %v, want 2025-04-22", got.Date)
	}
}

func TestHAItemToEvent_BadDueKeepsZeroDate(t *testing.T) {
	for _, due := range []string{"", "not-a-date"} {
		got, ok := haItemToEvent(haTodoItem{UID: "a", Description: "t", Due: due}, "t")
		if !ok {
			t.Fatalf("due %q: ok = false", due)
		}
		if !got.Date.IsZero() {
			t.Errorf("due %q: Date = %v, want zero", due, got.Date)
		}
	}
}

func TestBuildAddItemData(t *testing.T) {
	data := buildAddItemData("todo.waste", "Title", mustDate(t, "2025-05-06"), "mohucal")

	want := map[string]string{
		"entity_id":   "todo.waste",
		"item":        "Title",
		"due_date":    "2025-05-06",
		"description": "mohucal",
	}
	for k, v := range want {
		if data[k] != v {
			t.Errorf("%s = %v, want %q", k, data[k], v)
		}
	}
	if len(data) != len(want) {
		t.Errorf("payload has %d keys, want %d", len(data), len(want))
	}
}

func TestBuildUpdateItemData(t *testing.T) {
	data := buildUpdateItemData("todo.waste", "uid-1", "New title", mustDate(t, "2025-05-20"))

	if data["item"] != "uid-1" {
		t.Errorf("item = %v, want uid-1", data["item"])
	}
	if data["rename"] != "New title" {
		t.Errorf("rename = %v, want %q", data["rename"], "New title")
	}
	if data["due_date"] != "2025-05-20" {
		t.Errorf("due_date = %v, want 2025-05-20", data["due_date"])
	}
	if _, ok := data["description"]; ok {
		t.Error("update payload must not overwrite the description tag")
	}
}

func TestBuildRemoveItemData(t *testing.T) {
	data := buildRemoveItemData("todo.waste", "uid-9")
	if data["entity_id"] != "todo.waste" || data["item"] != "uid-9" {
		t.Errorf("payload = %v", data)
	}
}

func TestParseGetItemsResponse(t *testing.T) {
	raw := []byte(`{"items":[{"uid":"a","summary":"One","status":"needs_action","due":"2025-01-02","description":"mohucal"},{"uid":"b","summary":"Two","status":"completed"}]}`)

	items, err := parseGetItemsResponse(raw, "todo.waste")
	if err != nil {
		t.Fatalf("parseGetItemsResponse: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].UID != "a" || items[0].Due != "2025-01-02" {
		t.Errorf("items[0] = %+v", items[0])
	}
}

func TestParseGetItemsResponse_Invalid(t *testing.T) {
	if _, err := parseGetItemsResponse([]byte(`not json`), "todo.waste"); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
