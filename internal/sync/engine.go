package sync

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/njoerd114/mohucal/internal/model"
)

const (
	otelScope      = "mohucal/sync"
	spanRun        = "mohucal.run"
	spanFetch      = "mohucal.fetch"
	spanSync       = "mohucal.sync"
	metricFetched  = "mohucal.fetch.dates"
	metricCreated  = "mohucal.sync.events.created"
	metricUpdated  = "mohucal.sync.events.updated"
	metricDeleted  = "mohucal.sync.events.deleted"
	metricErrors   = "mohucal.sync.errors"
	metricFailures = "mohucal.fetch.failures"
)

// RunResult describes one fetch → plan → apply pass. Fetch is nil when the
// cascade failed; Plan and Report are then empty.
type RunResult struct {
	Fetch  *model.FetchResult
	Plan   SyncPlan
	Report SyncReport
}

// Engine runs synchronization passes for one address. Create one with
// [NewEngine] and call [Engine.RunOnce].
type Engine struct {
	fetcher Fetcher
	store   CalendarStore
	sync    *Synchronizer
	tag     string
	log     *slog.Logger

	// OTel instruments, never nil (no-op when telemetry is disabled).
	tracer      trace.Tracer
	cntFetched  metric.Int64Counter
	cntFailures metric.Int64Counter
	cntCreated  metric.Int64Counter
	cntUpdated  metric.Int64Counter
	cntDeleted  metric.Int64Counter
	cntErrors   metric.Int64Counter
}

// NewEngine creates an Engine that fetches with fetcher and writes events
// carrying tag through synchronizer's store.
func NewEngine(fetcher Fetcher, store CalendarStore, synchronizer *Synchronizer, tag string, logger *slog.Logger) *Engine {
	tracer := otel.Tracer(otelScope)
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Engine{
		fetcher: fetcher,
		store:   store,
		sync:    synchronizer,
		tag:     tag,
		log:     logger,

		tracer:      tracer,
		cntFetched:  mustCounter(metricFetched, "Number of collection dates fetched"),
		cntFailures: mustCounter(metricFailures, "Number of failed address queries"),
		cntCreated:  mustCounter(metricCreated, "Number of events created during sync"),
		cntUpdated:  mustCounter(metricUpdated, "Number of events updated during sync"),
		cntDeleted:  mustCounter(metricDeleted, "Number of events deleted during sync"),
		cntErrors:   mustCounter(metricErrors, "Number of failed event mutations during sync"),
	}
}

// RunOnce fetches the dates for addr and reconciles the store with them.
//
// If the fetch fails the store is not touched and the fetch error is
// returned. Otherwise every planned mutation is attempted; the returned error
// joins the failed ones and the report tells which dates succeeded.
func (e *Engine) RunOnce(ctx context.Context, addr model.AddressConstraint, category model.Category) (RunResult, error) {
	ctx, span := e.tracer.Start(ctx, spanRun)
	defer span.End()

	res, err := e.plan(ctx, addr, category)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "planning failed")
		return res, err
	}

	res.Report = e.apply(ctx, res.Plan)
	stats := res.Report.Stats()
	e.log.Info("sync complete",
		"created", stats.Created,
		"updated", stats.Updated,
		"deleted", stats.Deleted,
		"errors", stats.Errors,
	)

	if err := res.Report.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "some mutations failed")
		return res, fmt.Errorf("%d of %d calendar change(s) failed: %w", stats.Errors, res.Plan.Len(), err)
	}
	return res, nil
}

// Preview fetches and plans like [Engine.RunOnce] but never writes to the
// store. The returned Report is empty.
func (e *Engine) Preview(ctx context.Context, addr model.AddressConstraint, category model.Category) (RunResult, error) {
	ctx, span := e.tracer.Start(ctx, spanRun, trace.WithAttributes(attribute.Bool("dry_run", true)))
	defer span.End()

	res, err := e.plan(ctx, addr, category)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "planning failed")
	}
	return res, err
}

// plan fetches the schedule and diffs it against the tagged events.
func (e *Engine) plan(ctx context.Context, addr model.AddressConstraint, category model.Category) (RunResult, error) {
	var res RunResult

	fetched, err := e.fetch(ctx, addr, category)
	if err != nil {
		return res, err
	}
	res.Fetch = fetched

	existing, err := e.store.ListEvents(ctx, e.tag)
	if err != nil {
		return res, fmt.Errorf("listing events tagged %q: %w", e.tag, err)
	}

	res.Plan = Plan(fetched, existing, e.tag)
	e.log.Info("sync planned",
		"existing", len(existing),
		"wanted", len(fetched.Dates),
		"create", len(res.Plan.Create),
		"update", len(res.Plan.Update),
		"delete", len(res.Plan.Delete),
	)
	return res, nil
}

// fetch runs the cascade inside its own span.
func (e *Engine) fetch(ctx context.Context, addr model.AddressConstraint, category model.Category) (*model.FetchResult, error) {
	ctx, span := e.tracer.Start(ctx, spanFetch, trace.WithAttributes(
		attribute.String("address.district", addr.DistrictQuery),
		attribute.String("address.street", addr.StreetQuery),
		attribute.String("address.house", addr.HouseNumber),
		attribute.String("category", string(category)),
	))
	defer span.End()

	res, err := e.fetcher.Fetch(ctx, addr, category)
	if err != nil {
		e.cntFailures.Add(ctx, 1)
		span.RecordError(err)
		return nil, fmt.Errorf("fetching dates for %s: %w", addr, err)
	}
	e.cntFetched.Add(ctx, int64(len(res.Dates)))
	span.SetAttributes(attribute.Int("fetch.dates", len(res.Dates)))
	return res, nil
}

// apply runs the plan inside its own span, recording metrics.
func (e *Engine) apply(ctx context.Context, plan SyncPlan) SyncReport {
	ctx, span := e.tracer.Start(ctx, spanSync)
	defer span.End()

	report := e.sync.Apply(ctx, plan)
	stats := report.Stats()

	// Counters are safe to use with no-op providers.
	if stats.Created > 0 {
		e.cntCreated.Add(ctx, int64(stats.Created))
	}
	if stats.Updated > 0 {
		e.cntUpdated.Add(ctx, int64(stats.Updated))
	}
	if stats.Deleted > 0 {
		e.cntDeleted.Add(ctx, int64(stats.Deleted))
	}
	if stats.Errors > 0 {
		e.cntErrors.Add(ctx, int64(stats.Errors))
	}

	span.SetAttributes(
		attribute.Int("sync.created", stats.Created),
		attribute.Int("sync.updated", stats.Updated),
		attribute.Int("sync.deleted", stats.Deleted),
		attribute.Int("sync.errors", stats.Errors),
	)
	return report
}
