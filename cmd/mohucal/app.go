package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/njoerd114/mohucal/internal/config"
	"github.com/njoerd114/mohucal/internal/fragment"
	"github.com/njoerd114/mohucal/internal/homeassistant"
	"github.com/njoerd114/mohucal/internal/mohu"
	"github.com/njoerd114/mohucal/internal/reminders"
	"github.com/njoerd114/mohucal/internal/state"
	syncp "github.com/njoerd114/mohucal/internal/sync"
	"github.com/njoerd114/mohucal/internal/telemetry"
)

// app holds what the dates and sync-once commands share: config, logger,
// telemetry and the state DB.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	journal *state.Store

	shutdownTel telemetry.ShutdownFunc
}

func newApp(cfgPath string, verbose bool) (*app, error) {
	logger := newLogger(verbose)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}
	logger.Info("config loaded",
		"address", cfg.AddressConstraint().String(),
		"category", cfg.WasteCategory(),
		"backend", cfg.Calendar.Backend,
	)

	a := &app{cfg: cfg, logger: logger, shutdownTel: func(context.Context) error { return nil }}

	if cfg.Telemetry != nil {
		shutdownTel, err := telemetry.Setup(context.Background(), cfg.Telemetry)
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			a.shutdownTel = shutdownTel
			a.logger = slog.New(telemetry.NewSlogHandler(logger.Handler(), nil))
			slog.SetDefault(a.logger)
			a.logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
		}
	}

	dbPath := cfg.StateDB
	if dbPath == "" {
		if dbPath, err = state.DefaultDBPath(); err != nil {
			a.close()
			return nil, fmt.Errorf("resolving state DB path: %w", err)
		}
	}
	if a.journal, err = state.Open(dbPath); err != nil {
		a.close()
		return nil, fmt.Errorf("opening state DB at %q: %w", dbPath, err)
	}
	logger.Debug("state DB opened", "path", dbPath)

	return a, nil
}

// close flushes telemetry and closes the state DB.
func (a *app) close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Error("closing state DB", "error", err)
		}
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdownTel(flushCtx); err != nil {
		a.logger.Error("telemetry shutdown error", "error", err)
	}
}

// fetcher builds the site driver, retrying transport failures up to
// source.fetch_attempts times.
func (a *app) fetcher() (*mohu.RetryingFetcher, error) {
	tr, err := mohu.NewHTTPTransport(a.cfg.Source.BaseURL, a.cfg.Source.Timeout, nil, a.logger)
	if err != nil {
		return nil, err
	}
	return mohu.NewRetryingFetcher(mohu.NewDriver(tr, a.logger), a.cfg.Source.FetchAttempts, a.logger), nil
}

// calendar opens the configured calendar store.
func (a *app) calendar(ctx context.Context) (syncp.CalendarStore, error) {
	cc := a.cfg.Calendar
	switch cc.Backend {
	case config.BackendHomeAssistant:
		ha, err := homeassistant.NewAdapter(cc.HomeAssistant.URL, cc.HomeAssistant.Token, cc.HomeAssistant.EntityID, a.logger)
		if err != nil {
			return nil, fmt.Errorf("initialising Home Assistant client: %w", err)
		}
		a.logger.Info("pinging Home Assistant…", "url", cc.HomeAssistant.URL)
		if err := ha.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connecting to Home Assistant at %q: %w\n\nCheck calendar.homeassistant in your config file", cc.HomeAssistant.URL, err)
		}
		return ha, nil

	case config.BackendReminders:
		a.logger.Info("initialising Apple Reminders client (may trigger permissions prompt)…")
		rem, err := reminders.NewAdapter(cc.Reminders.List, a.logger)
		if err != nil && strings.Contains(err.Error(), "access denied") {
			// macOS has denied Reminders access (TCC). Open the privacy page
			// so the user can flip the switch, then retry once.
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "⚠️  Reminders access is denied.")
			fmt.Fprintln(os.Stderr, "   Opening System Settings → Privacy & Security → Reminders…")
			_ = exec.Command("open", "x-apple.systempreferences:com.apple.preference.security?Privacy_Reminders").Start()
			fmt.Fprint(os.Stderr, "   Press Enter after granting access to retry: ")
			_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
			rem, err = reminders.NewAdapter(cc.Reminders.List, a.logger)
		}
		if err != nil {
			return nil, fmt.Errorf("initialising Reminders client: %w", err)
		}
		return rem, nil

	default:
		return a.journal, nil
	}
}

// engine wires fetcher, calendar store and synchronizer together.
func (a *app) engine(ctx context.Context) (*syncp.Engine, error) {
	fetcher, err := a.fetcher()
	if err != nil {
		return nil, err
	}
	store, err := a.calendar(ctx)
	if err != nil {
		return nil, err
	}
	synchronizer := syncp.NewSynchronizer(store, a.cfg.Calendar.Workers, a.logger)
	return syncp.NewEngine(fetcher, store, synchronizer, a.cfg.Calendar.Tag, a.logger), nil
}

// explain appends a hint for the error kinds a user can act on.
func explain(err error) error {
	var (
		are *mohu.AddressResolutionError
		te  *mohu.TransportError
		mf  *fragment.MalformedFragmentError
	)
	switch {
	case errors.As(err, &are):
		return fmt.Errorf("%w\n\n  The site has no such %s. Run 'mohucal setup' to pick the address from the site's lists", err, are.Step)
	case errors.As(err, &te):
		return fmt.Errorf("%w\n\n  The collection site could not be reached. Raise source.fetch_attempts to retry automatically", err)
	case errors.As(err, &mf):
		return fmt.Errorf("%w\n\n  The site answered with an unexpected page; its layout may have changed", err)
	default:
		return err
	}
}
