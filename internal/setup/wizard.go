package setup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/njoerd114/mohucal/internal/config"
	"github.com/njoerd114/mohucal/internal/fragment"
	"github.com/njoerd114/mohucal/internal/model"
)

// tokenEnvVar is the variable the wizard stores the HA token under in the
// .env file next to the config.
const tokenEnvVar = "MOHUCAL_HA_TOKEN"

// AddressLister lists the choices of each step of the address cascade.
// [mohu.Driver] implements it against the live site.
type AddressLister interface {
	Districts(ctx context.Context) ([]model.OptionRecord, error)
	Streets(ctx context.Context, districtQuery string) ([]model.OptionRecord, error)
	HouseNumbers(ctx context.Context, districtQuery, streetQuery string) ([]model.OptionRecord, error)
}

// Wizard guides the user through first-run configuration.
type Wizard struct {
	prompt *Prompter
	lister AddressLister
	logger *slog.Logger
	w      io.Writer

	// Discovery hooks, replaced in tests.
	pingHA        func(ctx context.Context, haURL, haToken string) error
	discoverHA    func(ctx context.Context, haURL, haToken string) ([]HAEntity, error)
	discoverLists func(logger *slog.Logger) ([]RemindersList, error)
}

// NewWizard creates a Wizard wired to the given I/O, site and logger.
func NewWizard(r io.Reader, w io.Writer, lister AddressLister, logger *slog.Logger) *Wizard {
	return &Wizard{
		prompt:        NewPrompter(r, w),
		lister:        lister,
		logger:        logger,
		w:             w,
		pingHA:        PingHA,
		discoverHA:    DiscoverHATodoEntities,
		discoverLists: DiscoverRemindersLists,
	}
}

// Run executes the interactive setup wizard and writes the result to
// cfgPath. It returns nil without writing when the user keeps an existing
// config.
func (wiz *Wizard) Run(ctx context.Context, cfgPath string) error {
	fmt.Fprintf(wiz.w, "\nWelcome to mohucal setup!\n")
	fmt.Fprintf(wiz.w, "This wizard looks up your address on the collection calendar site and\n")
	fmt.Fprintf(wiz.w, "configures where the collection dates are written.\n\n")

	if _, statErr := os.Stat(cfgPath); statErr == nil {
		fmt.Fprintf(wiz.w, "  Existing config found at %s\n", cfgPath)
		if !wiz.prompt.Confirm("Overwrite existing configuration?", false) {
			fmt.Fprintf(wiz.w, "\n  Keeping existing config.\n")
			return nil
		}
		fmt.Fprintf(wiz.w, "\n")
	}

	fmt.Fprintf(wiz.w, "Step 1/4 · Address\n")
	addr, err := wiz.chooseAddress(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(wiz.w, "Step 2/4 · Collection type\n")
	categories := []model.Category{model.CategorySelective, model.CategoryCommunal}
	labels := make([]string, len(categories))
	for i, c := range categories {
		labels[i] = c.Label()
	}
	idx, err := wiz.prompt.Select("Which collection", labels)
	if err != nil {
		return fmt.Errorf("selecting category: %w", err)
	}
	fmt.Fprintf(wiz.w, "\n")

	fmt.Fprintf(wiz.w, "Step 3/4 · Calendar\n")
	cal, secrets, err := wiz.chooseCalendar(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(wiz.w, "Step 4/4 · Save Configuration\n")
	cfg := &config.Config{
		Address:  addr,
		Category: string(categories[idx]),
		Calendar: cal,
	}
	if err := cfg.Write(cfgPath); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(wiz.w, "  ✓ Config written to %s\n", cfgPath)

	if len(secrets) > 0 {
		envPath := filepath.Join(filepath.Dir(cfgPath), ".env")
		if err := writeEnv(envPath, secrets); err != nil {
			return err
		}
		fmt.Fprintf(wiz.w, "  ✓ Token stored in %s\n", envPath)
	}

	fmt.Fprintf(wiz.w, "\nSetup complete!\n")
	fmt.Fprintf(wiz.w, "  Check the dates:   mohucal dates\n")
	fmt.Fprintf(wiz.w, "  Preview a sync:    mohucal sync-once --dry-run\n")
	fmt.Fprintf(wiz.w, "  Sync:              mohucal sync-once\n\n")
	return nil
}

// chooseAddress walks the cascade one step at a time, each list coming from
// a fresh site session seeded with the previous answers.
func (wiz *Wizard) chooseAddress(ctx context.Context) (config.AddressConfig, error) {
	var addr config.AddressConfig

	fmt.Fprintf(wiz.w, "  Fetching districts...\n")
	districts, err := wiz.lister.Districts(ctx)
	if err != nil {
		return addr, fmt.Errorf("listing districts: %w", err)
	}
	if addr.District, err = wiz.pick("District", districts, fragment.ResolveCode, true); err != nil {
		return addr, err
	}

	fmt.Fprintf(wiz.w, "  Fetching streets of %s...\n", addr.District)
	streets, err := wiz.lister.Streets(ctx, addr.District)
	if err != nil {
		return addr, fmt.Errorf("listing streets: %w", err)
	}
	if addr.Street, err = wiz.pick("Street", streets, fragment.Resolve, false); err != nil {
		return addr, err
	}

	fmt.Fprintf(wiz.w, "  Fetching house numbers...\n")
	houses, err := wiz.lister.HouseNumbers(ctx, addr.District, addr.Street)
	if err != nil {
		return addr, fmt.Errorf("listing house numbers: %w", err)
	}
	if addr.HouseNumber, err = wiz.pick("House number", houses, fragment.Resolve, false); err != nil {
		return addr, err
	}

	fmt.Fprintf(wiz.w, "  ✓ %s, %s %s\n\n", addr.District, addr.Street, addr.HouseNumber)
	return addr, nil
}

// resolver maps a stored query back to an option, the way the driver does
// for one cascade step.
type resolver func([]model.OptionRecord, string) (model.OptionRecord, error)

// pick lets the user choose one option and returns the query to store in the
// config: the option value when code is set, its label otherwise. A query
// that would resolve to an earlier option is rejected with a hint.
func (wiz *Wizard) pick(label string, options []model.OptionRecord, resolve resolver, code bool) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("the site offered no %s choices", label)
	}
	labels := make([]string, len(options))
	for i, o := range options {
		labels[i] = o.Label
	}

	for {
		idx, err := wiz.prompt.Search(label, labels)
		if err != nil {
			return "", fmt.Errorf("selecting %s: %w", label, err)
		}
		chosen := options[idx]
		query := chosen.Label
		if code {
			query = chosen.Value
		}
		resolved, err := resolve(options, query)
		if err == nil && resolved.Value == chosen.Value {
			return query, nil
		}
		wiz.logger.Debug("query is ambiguous", "query", query, "resolves_to", resolved.Label)
		fmt.Fprintf(wiz.w, "  ⚠ %q would match %q first; pick again or edit the config by hand.\n", query, resolved.Label)
	}
}

// chooseCalendar asks for the backend and its settings. secrets holds values
// destined for the .env file rather than the YAML.
func (wiz *Wizard) chooseCalendar(ctx context.Context) (config.CalendarConfig, map[string]string, error) {
	cal := config.CalendarConfig{Tag: config.DefaultTag}
	backends := []string{
		"Local calendar (SQLite, for testing)",
		"Home Assistant todo list",
		"Apple Reminders list",
	}
	idx, err := wiz.prompt.Select("Where should collection days go", backends)
	if err != nil {
		return cal, nil, fmt.Errorf("selecting backend: %w", err)
	}

	switch idx {
	case 0:
		cal.Backend = config.BackendLocal
		fmt.Fprintf(wiz.w, "\n")
		return cal, nil, nil
	case 1:
		cal.Backend = config.BackendHomeAssistant
		ha, token, err := wiz.chooseHomeAssistant(ctx)
		if err != nil {
			return cal, nil, err
		}
		cal.HomeAssistant = ha
		return cal, map[string]string{tokenEnvVar: token}, nil
	default:
		cal.Backend = config.BackendReminders
		cal.Reminders = &config.RemindersConfig{List: wiz.chooseRemindersList()}
		return cal, nil, nil
	}
}

func (wiz *Wizard) chooseHomeAssistant(ctx context.Context) (*config.HomeAssistantConfig, string, error) {
	haURL := wiz.prompt.String("HA URL", "http://homeassistant.local:8123")
	haToken := wiz.prompt.Secret("Access token")

	fmt.Fprintf(wiz.w, "  Connecting to Home Assistant...")
	if err := wiz.pingHA(ctx, haURL, haToken); err != nil {
		fmt.Fprintf(wiz.w, " ✗\n")
		return nil, "", fmt.Errorf("cannot reach Home Assistant: %w\n\n  Check the URL and token, then try again", err)
	}
	fmt.Fprintf(wiz.w, " ✓\n")

	var entityID string
	entities, err := wiz.discoverHA(ctx, haURL, haToken)
	if err == nil {
		entities = wiz.usableEntities(entities)
	}
	switch {
	case err != nil:
		wiz.logger.Warn("could not discover HA entities", "error", err)
		fmt.Fprintf(wiz.w, "  ⚠ Could not list HA entities, type the entity ID instead.\n")
	case len(entities) == 0:
		fmt.Fprintf(wiz.w, "  No suitable todo list found. Create a local todo list in HA, or type an ID.\n")
	default:
		names := make([]string, len(entities))
		for i, e := range entities {
			names[i] = e.String()
		}
		idx, selErr := wiz.prompt.Select("Todo list", names)
		if selErr != nil {
			return nil, "", fmt.Errorf("selecting HA entity: %w", selErr)
		}
		entityID = entities[idx].EntityID
	}
	if entityID == "" {
		entityID = wiz.prompt.String("HA entity ID", "todo.waste_collection")
	}
	fmt.Fprintf(wiz.w, "\n")

	return &config.HomeAssistantConfig{
		URL:      haURL,
		Token:    "${" + tokenEnvVar + "}",
		EntityID: entityID,
	}, haToken, nil
}

// usableEntities keeps the lists that support due dates and descriptions and
// tells the user why the others are not offered.
func (wiz *Wizard) usableEntities(entities []HAEntity) []HAEntity {
	var usable []HAEntity
	for _, e := range entities {
		if e.Usable() {
			usable = append(usable, e)
			continue
		}
		fmt.Fprintf(wiz.w, "  · skipping %s: no support for %s\n", e.EntityID, strings.Join(e.Missing(), ", "))
	}
	return usable
}

func (wiz *Wizard) chooseRemindersList() string {
	fmt.Fprintf(wiz.w, "  Discovering Reminders lists (may trigger permissions prompt)...\n")
	lists, err := wiz.discoverLists(wiz.logger)
	if err != nil || len(lists) == 0 {
		if err != nil {
			wiz.logger.Warn("could not discover Reminders lists", "error", err)
		}
		fmt.Fprintf(wiz.w, "  ⚠ Could not list Reminders, type the list name instead.\n")
		name := wiz.prompt.String("Reminders list", "Hulladék")
		fmt.Fprintf(wiz.w, "\n")
		return name
	}

	names := make([]string, len(lists))
	for i, l := range lists {
		names[i] = l.String()
	}
	idx, selErr := wiz.prompt.Select("Reminders list", names)
	fmt.Fprintf(wiz.w, "\n")
	if selErr != nil {
		return wiz.prompt.String("Reminders list", "Hulladék")
	}
	return lists[idx].Title
}

// writeEnv merges secrets into the .env file at path, keeping other entries.
func writeEnv(path string, secrets map[string]string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("reading %q: %w", path, err)
		}
		env = make(map[string]string, len(secrets))
	}
	for k, v := range secrets {
		env[k] = v
	}
	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("restricting %q: %w", path, err)
	}
	return nil
}
