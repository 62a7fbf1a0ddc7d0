// Package homeassistant exposes a Home Assistant todo list as a calendar
// store. Each collection date becomes a todo item whose due date is the
// collection day; the item description carries the sync tag so that items
// added by hand are never touched.
//
// REST calls go through go-ha-client and are retried with backoff.
package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	haclient "github.com/mkelcik/go-ha-client/v2"

	"github.com/njoerd114/mohucal/internal/model"
	"github.com/njoerd114/mohucal/internal/retry"
)

// RESTClient is the subset of Home Assistant REST operations used by the
// adapter. Defining it as an interface allows mock injection in tests.
type RESTClient interface {
	Ping(ctx context.Context) error
	// CallService POSTs to /api/services/<domain>/<service> without
	// return_response. Used for mutations (add, update, remove).
	CallService(ctx context.Context, domain, service string, body io.Reader) error
	// CallServiceForEntity POSTs with ?return_response=true and returns the
	// response object for entityID. Used for todo.get_items.
	CallServiceForEntity(ctx context.Context, domain, service, entityID string, body io.Reader) ([]byte, error)
}

// haClientWrapper wraps [haclient.Client] and adds a plain CallService method
// that POSTs without ?return_response. HA requires that for HA services that don't
// support responses (e.g. todo.add_item, todo.update_item, todo.remove_item).
type haClientWrapper struct {
	client  *haclient.Client
	baseURL string
	token   string
	hc      *http.Client
}

func (w *haClientWrapper) Ping(ctx context.Context) error {
	return w.client.Ping(ctx)
}

// CallService POSTs the body to /api/services/<domain>/<service> without
// appending ?return_response, so HA does not try to return data.
func (w *haClientWrapper) CallService(ctx context.Context, domain, service string, body io.Reader) error {
	endpoint := fmt.Sprintf("%s/api/services/%s/%s",
		strings.TrimRight(w.baseURL, "/"),
		url.PathEscape(domain),
		url.PathEscape(service),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("create service request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.hc.Do(req)
	if err != nil {
		return fmt.Errorf("execute service request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusBadRequest {
		var br struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&br)
		return retry.Permanent(errors.New(br.Message))
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return retry.Permanent(fmt.Errorf("HA returned 401 Unauthorized; check the access token"))
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("HA returned unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (w *haClientWrapper) CallServiceForEntity(ctx context.Context, domain, service, entityID string, body io.Reader) ([]byte, error) {
	resp, err := w.client.CallServiceWithResponse(ctx, domain, service, body)
	if err != nil {
		return nil, err
	}
	raw, ok := resp.ServiceResponse[entityID]
	if !ok {
		return nil, fmt.Errorf("no service response for entity %s", entityID)
	}
	return []byte(raw), nil
}

// Adapter implements the calendar store on one HA todo entity. Create one
// with [NewAdapter] or [NewAdapterWithClient].
type Adapter struct {
	rest     RESTClient
	entityID string
	attempts int
	logger   *slog.Logger
}

// NewAdapter creates an Adapter backed by a real HA REST client.
func NewAdapter(haURL, token, entityID string, logger *slog.Logger) (*Adapter, error) {
	rest, err := haclient.NewClient(haURL,
		haclient.WithToken(token),
		haclient.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create HA REST client: %w", err)
	}

	wrapper := &haClientWrapper{
		client:  rest,
		baseURL: haURL,
		token:   token,
		hc:      &http.Client{},
	}
	return NewAdapterWithClient(wrapper, entityID, logger), nil
}

// NewAdapterWithClient creates an Adapter with a caller-supplied REST client.
// Intended for testing with a mock [RESTClient].
func NewAdapterWithClient(rest RESTClient, entityID string, logger *slog.Logger) *Adapter {
	return &Adapter{rest: rest, entityID: entityID, attempts: retry.DefaultAttempts, logger: logger}
}

// Ping validates the HA connection and token with retry.
func (a *Adapter) Ping(ctx context.Context) error {
	err := retry.Do(ctx, a.attempts, func() error {
		return a.rest.Ping(ctx)
	})
	if err != nil {
		return fmt.Errorf("ping HA: %w", err)
	}
	return nil
}

// ListEvents returns the todo items of the entity whose description is tag.
func (a *Adapter) ListEvents(ctx context.Context, tag string) ([]model.CalendarEvent, error) {
	items, err := a.getItems(ctx)
	if err != nil {
		return nil, err
	}
	var events []model.CalendarEvent
	for _, h := range items {
		if ev, ok := haItemToEvent(h, tag); ok {
			events = append(events, ev)
		}
	}
	a.logger.Debug("fetched HA todo items", "entity", a.entityID, "items", len(items), "tagged", len(events))
	return events, nil
}

// CreateEvent adds a todo item due on date. todo.add_item does not return
// the new UID, so the items are re-read to find it.
func (a *Adapter) CreateEvent(ctx context.Context, title string, date model.Date, tag string) (model.CalendarEvent, error) {
	data := buildAddItemData(a.entityID, title, date, tag)
	err := retry.Do(ctx, a.attempts, func() error {
		return a.rest.CallService(ctx, domainTodo, serviceAddItem, serviceBody(data))
	})
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("add item %q to %s: %w", title, a.entityID, err)
	}

	items, err := a.getItems(ctx)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("refetching items from %s: %w", a.entityID, err)
	}
	for _, h := range items {
		ev, ok := haItemToEvent(h, tag)
		if ok && ev.Title == title && ev.Date == date {
			return ev, nil
		}
	}
	a.logger.Warn("created HA todo item not found on re-read; it cannot be updated or removed until the next sync",
		"entity", a.entityID, "title", title, "date", date.String())
	return model.CalendarEvent{Title: title, Date: date, Tag: tag}, nil
}

// UpdateEvent renames the item with UID id and moves its due date.
func (a *Adapter) UpdateEvent(ctx context.Context, id, title string, date model.Date) error {
	data := buildUpdateItemData(a.entityID, id, title, date)
	err := retry.Do(ctx, a.attempts, func() error {
		return a.rest.CallService(ctx, domainTodo, serviceUpdateItem, serviceBody(data))
	})
	if err != nil {
		return fmt.Errorf("update item %s in %s: %w", id, a.entityID, err)
	}
	return nil
}

// DeleteEvent removes the item with UID id.
func (a *Adapter) DeleteEvent(ctx context.Context, id string) error {
	data := buildRemoveItemData(a.entityID, id)
	err := retry.Do(ctx, a.attempts, func() error {
		return a.rest.CallService(ctx, domainTodo, serviceRemoveItem, serviceBody(data))
	})
	if err != nil {
		return fmt.Errorf("remove item %s from %s: %w", id, a.entityID, err)
	}
	return nil
}

func (a *Adapter) getItems(ctx context.Context) ([]haTodoItem, error) {
	data := buildGetItemsData(a.entityID)

	var raw []byte
	err := retry.Do(ctx, a.attempts, func() error {
		var callErr error
		raw, callErr = a.rest.CallServiceForEntity(ctx, domainTodo, serviceGetItems, a.entityID, serviceBody(data))
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("get items for %s: %w", a.entityID, err)
	}
	return parseGetItemsResponse(raw, a.entityID)
}

// serviceBody marshals data to a JSON [io.Reader] for service calls.
func serviceBody(data map[string]interface{}) io.Reader {
	b, _ := json.Marshal(data) //nolint:errcheck // map[string]interface{} always marshals
	return bytes.NewReader(b)
}

// parseGetItemsResponse decodes the items of one entity's service response.
func parseGetItemsResponse(raw []byte, entityID string) ([]haTodoItem, error) {
	var haResp haItemsResponse
	if err := json.Unmarshal(raw, &haResp); err != nil {
		return nil, fmt.Errorf("parse items response for %s: %w", entityID, err)
	}
	return haResp.Items, nil
}
