package setup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

func newFakeHA(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/":
			_, _ = w.Write([]byte(`{"message":"API running."}`))
		case "/api/states":
			_, _ = w.Write([]byte(`[
				{"entity_id":"todo.waste","state":"3","attributes":{"friendly_name":"Waste","supported_features":87}},
				{"entity_id":"light.kitchen","state":"on","attributes":{}},
				{"entity_id":"todo.shopping","state":"12","attributes":{"friendly_name":"Shopping","supported_features":15}},
				{"entity_id":"todo.chores","state":"0","attributes":{"supported_features":127}}
			]`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPingHA(t *testing.T) {
	srv := newFakeHA(t)
	ctx := context.Background()

	if err := PingHA(ctx, srv.URL, "good"); err != nil {
		t.Errorf("PingHA good token: %v", err)
	}
	err := PingHA(ctx, srv.URL+"/", "bad")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("PingHA bad token err = %v, want 401", err)
	}
}

func TestPingHA_NotHomeAssistant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	err := PingHA(context.Background(), srv.URL, "good")
	if err == nil || !strings.Contains(err.Error(), "does not look like") {
		t.Errorf("err = %v, want rejection of a non-HA endpoint", err)
	}
}

func TestDiscoverHATodoEntities(t *testing.T) {
	srv := newFakeHA(t)

	entities, err := DiscoverHATodoEntities(context.Background(), srv.URL, "good")
	if err != nil {
		t.Fatalf("DiscoverHATodoEntities: %v", err)
	}
	var ids []string
	for _, e := range entities {
		ids = append(ids, e.EntityID)
	}
	// Usable lists first, then the rest.
	want := []string{"todo.chores", "todo.waste", "todo.shopping"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("entities = %v, want %v", ids, want)
	}
	if got := entities[1].String(); got != "Waste (todo.waste), 3 open" {
		t.Errorf("String = %q", got)
	}
	if entities[2].Usable() {
		t.Error("todo.shopping reported usable without due dates")
	}
	if got := entities[2].Missing(); !reflect.DeepEqual(got, []string{"due dates", "descriptions"}) {
		t.Errorf("Missing = %v", got)
	}
}

func TestDiscoverHATodoEntities_BadToken(t *testing.T) {
	srv := newFakeHA(t)
	_, err := DiscoverHATodoEntities(context.Background(), srv.URL, "bad")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("err = %v, want 401", err)
	}
}

func TestSortRemindersLists(t *testing.T) {
	got := sortRemindersLists([]RemindersList{
		{Title: "work", Count: 4},
		{Title: "  ", Count: 1},
		{Title: "Hulladék", Count: 0},
		{Title: "Bevásárlás", Count: 7},
	})
	want := []RemindersList{
		{Title: "Bevásárlás", Count: 7},
		{Title: "Hulladék", Count: 0},
		{Title: "work", Count: 4},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sortRemindersLists = %v, want %v", got, want)
	}
}
