package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/njoerd114/mohucal/internal/model"
)

var engineAddress = model.AddressConstraint{DistrictQuery: "1062", StreetQuery: "Andrássy", HouseNumber: "57"}

func TestEngine_RunOnce(t *testing.T) {
	store := newMockStore(taggedEvent("a", day(2025, 1, 12)), taggedEvent("b", day(2025, 4, 1)))
	fetcher := &mockFetcher{result: selectiveResult(day(2025, 1, 12), day(2025, 2, 9), day(2025, 3, 9))}
	e := NewEngine(fetcher, store, NewSynchronizer(store, 1, testLogger), testTag, testLogger)

	res, err := e.RunOnce(context.Background(), engineAddress, model.CategorySelective)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Fetch == nil || res.Fetch.Address != engineAddress {
		t.Errorf("Fetch = %+v, want result for %v", res.Fetch, engineAddress)
	}
	stats := res.Report.Stats()
	if stats.Created != 2 || stats.Deleted != 1 {
		t.Errorf("stats = %+v, want 2 created, 1 deleted", stats)
	}

	// A second pass over the same schedule changes nothing.
	res, err = e.RunOnce(context.Background(), engineAddress, model.CategorySelective)
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if !res.Plan.IsEmpty() {
		t.Errorf("second plan = %+v, want empty", res.Plan)
	}
}

func TestEngine_FetchFailureTouchesNothing(t *testing.T) {
	store := newMockStore(taggedEvent("a", day(2025, 1, 12)))
	fetchErr := errors.New("resolving house: no option matches")
	fetcher := &mockFetcher{err: fetchErr}
	e := NewEngine(fetcher, store, NewSynchronizer(store, 1, testLogger), testTag, testLogger)

	res, err := e.RunOnce(context.Background(), engineAddress, model.CategorySelective)
	if !errors.Is(err, fetchErr) {
		t.Fatalf("error = %v, want fetch error in chain", err)
	}
	if res.Fetch != nil {
		t.Errorf("Fetch = %+v, want nil", res.Fetch)
	}
	if store.callCount() != 0 {
		t.Errorf("calendar store calls = %d, want 0", store.callCount())
	}
}

func TestEngine_PartialFailureReported(t *testing.T) {
	store := newMockStore(taggedEvent("b", day(2025, 4, 1)))
	store.fail(OpDelete, day(2025, 4, 1), errStoreDown)
	fetcher := &mockFetcher{result: selectiveResult(day(2025, 2, 9), day(2025, 3, 9))}
	e := NewEngine(fetcher, store, NewSynchronizer(store, 1, testLogger), testTag, testLogger)

	res, err := e.RunOnce(context.Background(), engineAddress, model.CategorySelective)
	var sae *SyncApplyError
	if !errors.As(err, &sae) {
		t.Fatalf("error = %v, want *SyncApplyError in chain", err)
	}
	stats := res.Report.Stats()
	if stats.Created != 2 || stats.Errors != 1 {
		t.Errorf("stats = %+v, want 2 created, 1 error", stats)
	}
}

func TestEngine_PreviewWritesNothing(t *testing.T) {
	store := newMockStore(taggedEvent("b", day(2025, 4, 1)))
	fetcher := &mockFetcher{result: selectiveResult(day(2025, 2, 9), day(2025, 3, 9))}
	e := NewEngine(fetcher, store, NewSynchronizer(store, 1, testLogger), testTag, testLogger)

	res, err := e.Preview(context.Background(), engineAddress, model.CategorySelective)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(res.Plan.Create) != 2 || len(res.Plan.Delete) != 1 {
		t.Errorf("plan = %+v, want 2 creates and 1 delete", res.Plan)
	}
	if len(res.Report.Outcomes) != 0 {
		t.Errorf("report = %+v, want empty", res.Report)
	}
	if store.callCount() != 1 {
		t.Errorf("store calls = %d, want only the listing", store.callCount())
	}
	if got := store.dates(testTag); len(got) != 1 || got[0] != day(2025, 4, 1) {
		t.Errorf("stored dates = %v, want unchanged", got)
	}
}
