package setup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	ekreminders "github.com/BRO3886/go-eventkit/reminders"
)

// Todo list feature bits reported in the supported_features attribute.
const (
	featureCreateItem  = 1 << 0
	featureDeleteItem  = 1 << 1
	featureUpdateItem  = 1 << 2
	featureDueDate     = 1 << 4
	featureDescription = 1 << 6

	// wasteFeatures is what the calendar adapter needs: items are added,
	// renamed, moved and removed, carry a due date, and keep the sync tag in
	// their description.
	wasteFeatures = featureCreateItem | featureDeleteItem | featureUpdateItem | featureDueDate | featureDescription
)

var featureNames = []struct {
	bit  int
	name string
}{
	{featureCreateItem, "adding items"},
	{featureDeleteItem, "removing items"},
	{featureUpdateItem, "editing items"},
	{featureDueDate, "due dates"},
	{featureDescription, "descriptions"},
}

// HAEntity is a Home Assistant todo entity found during setup.
type HAEntity struct {
	EntityID     string
	FriendlyName string
	OpenItems    int
	Features     int
}

// Usable reports whether the list can hold collection days.
func (e HAEntity) Usable() bool { return e.Features&wasteFeatures == wasteFeatures }

// Missing names the required features the list lacks.
func (e HAEntity) Missing() []string {
	var out []string
	for _, f := range featureNames {
		if e.Features&f.bit == 0 {
			out = append(out, f.name)
		}
	}
	return out
}

// String returns a human-readable representation for selection prompts.
func (e HAEntity) String() string {
	name := e.EntityID
	if e.FriendlyName != "" {
		name = fmt.Sprintf("%s (%s)", e.FriendlyName, e.EntityID)
	}
	return fmt.Sprintf("%s, %d open", name, e.OpenItems)
}

// RemindersList is an Apple Reminders list found during setup.
type RemindersList struct {
	Title string
	Count int
}

func (l RemindersList) String() string {
	return fmt.Sprintf("%s (%d items)", l.Title, l.Count)
}

// haAPI is the bit of the HA REST API setup needs before a config exists.
type haAPI struct {
	base  string
	token string
	hc    *http.Client
}

func newHAAPI(haURL, token string) haAPI {
	return haAPI{base: strings.TrimRight(haURL, "/"), token: token, hc: http.DefaultClient}
}

// getJSON decodes the response to GET path into v.
func (a haAPI) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.base+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.hc.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", a.base, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("invalid access token (HTTP 401)")
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected HTTP %d from %s%s", resp.StatusCode, a.base, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parsing %s response: %w", path, err)
	}
	return nil
}

// PingHA verifies connectivity with the Home Assistant instance using the
// given URL and token. Returns nil on success.
func PingHA(ctx context.Context, haURL, haToken string) error {
	var status struct {
		Message string `json:"message"`
	}
	if err := newHAAPI(haURL, haToken).getJSON(ctx, "/api/", &status); err != nil {
		return err
	}
	if status.Message == "" {
		return fmt.Errorf("%s does not look like the Home Assistant API", haURL)
	}
	return nil
}

// haStateEntry is the minimal JSON shape of /api/states entries.
type haStateEntry struct {
	EntityID   string `json:"entity_id"`
	State      string `json:"state"`
	Attributes struct {
		FriendlyName      string `json:"friendly_name"`
		SupportedFeatures int    `json:"supported_features"`
	} `json:"attributes"`
}

// DiscoverHATodoEntities returns the todo entities of the instance. Lists
// that can hold collection days come first, each group sorted by entity ID.
func DiscoverHATodoEntities(ctx context.Context, haURL, haToken string) ([]HAEntity, error) {
	var states []haStateEntry
	if err := newHAAPI(haURL, haToken).getJSON(ctx, "/api/states", &states); err != nil {
		return nil, fmt.Errorf("fetching HA states: %w", err)
	}

	var entities []HAEntity
	for _, s := range states {
		if !strings.HasPrefix(s.EntityID, "todo.") {
			continue
		}
		// A todo entity's state is its count of open items.
		open, _ := strconv.Atoi(s.State)
		entities = append(entities, HAEntity{
			EntityID:     s.EntityID,
			FriendlyName: s.Attributes.FriendlyName,
			OpenItems:    open,
			Features:     s.Attributes.SupportedFeatures,
		})
	}

	sort.Slice(entities, func(i, j int) bool {
		if ui, uj := entities[i].Usable(), entities[j].Usable(); ui != uj {
			return ui
		}
		return entities[i].EntityID < entities[j].EntityID
	})
	return entities, nil
}

// DiscoverRemindersLists returns the Apple Reminders lists on this Mac sorted
// by title. This triggers the macOS TCC permissions prompt on first use.
func DiscoverRemindersLists(logger *slog.Logger) ([]RemindersList, error) {
	client, err := ekreminders.New()
	if err != nil {
		return nil, fmt.Errorf("initialising Reminders client: %w", err)
	}

	lists, err := client.Lists()
	if err != nil {
		return nil, fmt.Errorf("fetching Reminders lists: %w", err)
	}
	logger.Debug("discovered Reminders lists", "count", len(lists))

	out := make([]RemindersList, 0, len(lists))
	for _, l := range lists {
		out = append(out, RemindersList{Title: l.Title, Count: l.Count})
	}
	return sortRemindersLists(out), nil
}

// sortRemindersLists drops untitled lists and orders the rest by title.
func sortRemindersLists(lists []RemindersList) []RemindersList {
	out := lists[:0]
	for _, l := range lists {
		if strings.TrimSpace(l.Title) != "" {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})
	return out
}
