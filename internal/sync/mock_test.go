package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/njoerd114/mohucal/internal/model"
)

// --- Mock calendar store -----------------------------------------------------

type mockStore struct {
	mu     sync.Mutex
	events map[string]model.CalendarEvent // ID → event
	nextID int

	// failOn makes the given operation fail for the given date.
	failOn map[Operation]map[model.Date]error
	calls  int
}

func newMockStore(events ...model.CalendarEvent) *mockStore {
	m := &mockStore{
		events: make(map[string]model.CalendarEvent),
		failOn: make(map[Operation]map[model.Date]error),
	}
	for _, ev := range events {
		m.events[ev.ID] = ev
	}
	return m
}

func (m *mockStore) fail(op Operation, d model.Date, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn[op] == nil {
		m.failOn[op] = make(map[model.Date]error)
	}
	m.failOn[op][d] = err
}

func (m *mockStore) ListEvents(_ context.Context, tag string) ([]model.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	var out []model.CalendarEvent
	for _, ev := range m.events {
		if ev.Tag == tag {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) CreateEvent(_ context.Context, title string, date model.Date, tag string) (model.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if err := m.failOn[OpCreate][date]; err != nil {
		return model.CalendarEvent{}, err
	}
	m.nextID++
	ev := model.CalendarEvent{ID: fmt.Sprintf("ev-%03d", m.nextID), Title: title, Date: date, Tag: tag}
	m.events[ev.ID] = ev
	return ev, nil
}

func (m *mockStore) UpdateEvent(_ context.Context, id, title string, date model.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	ev, ok := m.events[id]
	if !ok {
		return fmt.Errorf("event %q not found", id)
	}
	if err := m.failOn[OpUpdate][ev.Date]; err != nil {
		return err
	}
	ev.Title = title
	ev.Date = date
	m.events[id] = ev
	return nil
}

func (m *mockStore) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	ev, ok := m.events[id]
	if !ok {
		return fmt.Errorf("event %q not found", id)
	}
	if err := m.failOn[OpDelete][ev.Date]; err != nil {
		return err
	}
	delete(m.events, id)
	return nil
}

func (m *mockStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockStore) dates(tag string) []model.Date {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Date
	for _, ev := range m.events {
		if ev.Tag == tag {
			out = append(out, ev.Date)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// --- Mock fetcher ------------------------------------------------------------

type mockFetcher struct {
	result *model.FetchResult
	err    error
	calls  int
}

func (f *mockFetcher) Fetch(_ context.Context, addr model.AddressConstraint, category model.Category) (*model.FetchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.Address = addr
	res.Category = category
	return &res, nil
}

var errStoreDown = errors.New("calendar store unavailable")
