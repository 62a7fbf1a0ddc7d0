// Package config loads and validates the mohucal YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/njoerd114/mohucal/internal/model"
)

// Calendar backends.
const (
	BackendLocal         = "local"
	BackendHomeAssistant = "homeassistant"
	BackendReminders     = "reminders"
)

// Defaults applied by validation.
const (
	DefaultBaseURL = "https://mohubudapest.hu/hulladeknaptar"
	DefaultTimeout = 15 * time.Second
	DefaultTag     = "mohucal"
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// Address identifies the collection point. Every query is matched as a
	// case-insensitive substring of the labels the site offers.
	Address AddressConfig `yaml:"address"`

	// Category is "selective" (default) or "communal".
	Category string `yaml:"category,omitempty"`

	Source SourceConfig `yaml:"source,omitempty"`

	Calendar CalendarConfig `yaml:"calendar"`

	// StateDB overrides the SQLite path holding the local calendar and the
	// run journal. Defaults to ~/.local/share/mohucal/state.db.
	StateDB string `yaml:"state_db,omitempty"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// AddressConfig is the district, street and house number to look up.
type AddressConfig struct {
	District    string `yaml:"district"` // postal code such as "1062", or part of the label
	Street      string `yaml:"street"`
	HouseNumber string `yaml:"house_number"`
}

// SourceConfig tunes the connection to the collection site.
type SourceConfig struct {
	BaseURL string        `yaml:"base_url,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// FetchAttempts is how many times a failed address query is re-run when
	// the failure was a transport error. 1 to 5, default 1.
	FetchAttempts int `yaml:"fetch_attempts,omitempty"`
}

// CalendarConfig selects and configures the calendar store.
type CalendarConfig struct {
	// Backend is one of "local", "homeassistant" or "reminders".
	Backend string `yaml:"backend"`

	// Tag marks the events this tool owns. Events without it are never
	// modified.
	Tag string `yaml:"tag,omitempty"`

	// Workers bounds concurrent calendar writes. 1 to 8, default 1.
	Workers int `yaml:"workers,omitempty"`

	HomeAssistant *HomeAssistantConfig `yaml:"homeassistant,omitempty"`
	Reminders     *RemindersConfig     `yaml:"reminders,omitempty"`
}

// HomeAssistantConfig points at a todo entity. The token is usually given as
// ${HA_TOKEN} and supplied through the environment or a .env file.
type HomeAssistantConfig struct {
	URL      string `yaml:"url"`
	Token    string `yaml:"token"`
	EntityID string `yaml:"entity_id"`
}

// RemindersConfig names the Apple Reminders list to write to.
type RemindersConfig struct {
	List string `yaml:"list"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure,omitempty"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "mohucal".
	ServiceName string `yaml:"service_name,omitempty"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request. Equivalent to the OTEL_EXPORTER_OTLP_HEADERS environment
	// variable. Use this for authentication tokens, e.g.:
	//   Authorization: "Bearer <token>"
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/mohucal/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "mohucal", "config.yaml"), nil
}

// Load reads and validates the configuration file at the given path. A .env
// file in the same directory is loaded first; variables already set in the
// environment win. ${VAR} references in the YAML are then expanded.
func Load(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %q: %w", envPath, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(raw))))
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Write persists the config as YAML, creating the parent directory. The file
// is private to the user because it may hold a token.
func (c *Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("writing config file %q: %w", path, err)
	}
	return nil
}

// AddressConstraint returns the configured address as a query.
func (c *Config) AddressConstraint() model.AddressConstraint {
	return model.AddressConstraint{
		DistrictQuery: c.Address.District,
		StreetQuery:   c.Address.Street,
		HouseNumber:   c.Address.HouseNumber,
	}
}

// WasteCategory returns the validated category.
func (c *Config) WasteCategory() model.Category {
	cat, _ := model.ParseCategory(c.Category) //nolint:errcheck // checked by validate
	return cat
}

// validate checks that all required fields are present and well-formed, and
// fills in defaults.
func (c *Config) validate() error {
	if c.Address.District == "" {
		return fmt.Errorf("address.district is required")
	}
	if c.Address.Street == "" {
		return fmt.Errorf("address.street is required")
	}
	if c.Address.HouseNumber == "" {
		return fmt.Errorf("address.house_number is required")
	}

	if _, err := model.ParseCategory(c.Category); err != nil {
		return err
	}

	if err := c.Source.validate(); err != nil {
		return err
	}
	if err := c.Calendar.validate(); err != nil {
		return err
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}

func (s *SourceConfig) validate() error {
	if s.BaseURL == "" {
		s.BaseURL = DefaultBaseURL
	}
	if err := validHTTPURL(s.BaseURL); err != nil {
		return fmt.Errorf("source.base_url %w", err)
	}

	if s.Timeout == 0 {
		s.Timeout = DefaultTimeout
	}
	if s.Timeout < time.Second {
		return fmt.Errorf("source.timeout %v is too short (minimum 1s)", s.Timeout)
	}
	if s.Timeout > 2*time.Minute {
		return fmt.Errorf("source.timeout %v is too long (maximum 2m)", s.Timeout)
	}

	if s.FetchAttempts == 0 {
		s.FetchAttempts = 1
	}
	if s.FetchAttempts < 1 || s.FetchAttempts > 5 {
		return fmt.Errorf("source.fetch_attempts %d out of range (1-5)", s.FetchAttempts)
	}
	return nil
}

func (cc *CalendarConfig) validate() error {
	if cc.Tag == "" {
		cc.Tag = DefaultTag
	}
	if cc.Workers == 0 {
		cc.Workers = 1
	}
	if cc.Workers < 1 || cc.Workers > 8 {
		return fmt.Errorf("calendar.workers %d out of range (1-8)", cc.Workers)
	}

	switch cc.Backend {
	case "", BackendLocal:
		cc.Backend = BackendLocal
	case BackendHomeAssistant:
		ha := cc.HomeAssistant
		if ha == nil {
			return fmt.Errorf("calendar.homeassistant is required for backend %q", cc.Backend)
		}
		if ha.URL == "" {
			return fmt.Errorf("calendar.homeassistant.url is required")
		}
		if err := validHTTPURL(ha.URL); err != nil {
			return fmt.Errorf("calendar.homeassistant.url %w", err)
		}
		if ha.Token == "" {
			return fmt.Errorf("calendar.homeassistant.token is required")
		}
		if !strings.HasPrefix(ha.EntityID, "todo.") {
			return fmt.Errorf("calendar.homeassistant.entity_id %q must be a todo entity", ha.EntityID)
		}
	case BackendReminders:
		if cc.Reminders == nil || cc.Reminders.List == "" {
			return fmt.Errorf("calendar.reminders.list is required for backend %q", cc.Backend)
		}
	default:
		return fmt.Errorf("calendar.backend %q is not one of local, homeassistant, reminders", cc.Backend)
	}
	return nil
}

func validHTTPURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%q must be a valid http or https URL", raw)
	}
	return nil
}
