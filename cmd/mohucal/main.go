// mohucal reads the waste collection calendar of a Budapest address from the
// public MOHU site and mirrors the collection days into a calendar: a local
// SQLite calendar, a Home Assistant todo list or an Apple Reminders list.
//
// Usage:
//
//	mohucal setup [--config <path>]                   # interactive first-run wizard
//	mohucal dates [--config ...] [--category ...]     # print collection dates only
//	mohucal sync-once [--config ...] [--dry-run]      # single fetch + reconcile pass
//	mohucal status [--config <path>]                  # show config & last run
//	mohucal version                                   # print version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/njoerd114/mohucal/internal/config"
	"github.com/njoerd114/mohucal/internal/mohu"
	"github.com/njoerd114/mohucal/internal/model"
	"github.com/njoerd114/mohucal/internal/setup"
	"github.com/njoerd114/mohucal/internal/state"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// run dispatches to the appropriate subcommand.
func run(args []string) error {
	if len(args) < 1 {
		printUsage(os.Stderr)
		return errors.New("no command given")
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "setup":
		return runSetup(rest)
	case "dates":
		return runDates(rest)
	case "sync-once":
		return runSyncOnce(rest)
	case "status":
		return runStatus(rest)
	case "version":
		fmt.Println("mohucal", version)
		return nil
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return nil
	default:
		return fmt.Errorf("unknown command %q, run 'mohucal help' for usage", cmd)
	}
}

// printUsage shows help and suggests setup if no config exists.
func printUsage(w io.Writer) {
	cfgPath, _ := config.DefaultPath()
	_, cfgErr := os.Stat(cfgPath)

	fmt.Fprintln(w, "mohucal · MOHU waste collection days in your calendar")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  mohucal setup                       Interactive first-run wizard")
	fmt.Fprintln(w, "  mohucal dates [--category ...]      Print collection dates")
	fmt.Fprintln(w, "  mohucal sync-once [--dry-run]       Reconcile the calendar once")
	fmt.Fprintln(w, "  mohucal status                      Show config & last run")
	fmt.Fprintln(w, "  mohucal version                     Print version")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Common flags: --config <path>, --verbose")

	if cfgErr != nil {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "No config file found. Run 'mohucal setup' to get started.")
	}
}

// commonFlags registers --config and --verbose on fs.
func commonFlags(fs *flag.FlagSet) (cfgPath *string, verbose *bool) {
	defaultCfg, _ := config.DefaultPath()
	cfgPath = fs.String("config", defaultCfg, "path to config.yaml")
	verbose = fs.Bool("verbose", false, "enable debug logging")
	return cfgPath, verbose
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// --- Subcommands -------------------------------------------------------------

// runSetup launches the interactive setup wizard against the live site.
func runSetup(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	cfgPath, verbose := commonFlags(fs)
	baseURL := fs.String("base-url", config.DefaultBaseURL, "collection calendar page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if *verbose {
		logger = newLogger(true)
	}
	slog.SetDefault(logger)

	tr, err := mohu.NewHTTPTransport(*baseURL, config.DefaultTimeout, nil, logger)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	wiz := setup.NewWizard(os.Stdin, os.Stdout, mohu.NewDriver(tr, logger), logger)
	return wiz.Run(ctx, *cfgPath)
}

// runDates runs the cascade and prints the dates without touching any
// calendar.
func runDates(args []string) error {
	fs := flag.NewFlagSet("dates", flag.ExitOnError)
	cfgPath, verbose := commonFlags(fs)
	category := fs.String("category", "", "selective or communal (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(*cfgPath, *verbose)
	if err != nil {
		return err
	}
	defer a.close()

	cat := a.cfg.WasteCategory()
	if *category != "" {
		if cat, err = model.ParseCategory(*category); err != nil {
			return err
		}
	}

	fetcher, err := a.fetcher()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	res, err := fetcher.Fetch(ctx, a.cfg.AddressConstraint(), cat)
	if err != nil {
		return explain(err)
	}
	printDates(os.Stdout, res)
	return nil
}

// runSyncOnce performs one fetch + reconcile pass and journals the outcome.
func runSyncOnce(args []string) error {
	fs := flag.NewFlagSet("sync-once", flag.ExitOnError)
	cfgPath, verbose := commonFlags(fs)
	dryRun := fs.Bool("dry-run", false, "print the planned changes without applying them")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(*cfgPath, *verbose)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	engine, err := a.engine(ctx)
	if err != nil {
		return err
	}

	addr, cat := a.cfg.AddressConstraint(), a.cfg.WasteCategory()

	if *dryRun {
		res, err := engine.Preview(ctx, addr, cat)
		if err != nil {
			return explain(err)
		}
		printPlan(os.Stdout, res.Plan)
		return nil
	}

	started := time.Now()
	a.logger.Info("running single sync pass", "address", addr.String(), "category", cat)
	res, runErr := engine.RunOnce(ctx, addr, cat)

	entry := journalEntry(started, time.Now(), addr, cat, res, runErr)
	// The journal is written even when ctx was cancelled.
	if err := a.journal.RecordRun(context.WithoutCancel(ctx), entry); err != nil {
		a.logger.Error("recording run", "error", err)
	}

	if runErr != nil {
		return explain(runErr)
	}
	printReport(os.Stdout, res)
	return nil
}

// runStatus prints the configuration summary and the last journal entry.
func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	cfgPath, _ := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Println("mohucal status")
	fmt.Println("──────────────")

	dbPath, _ := state.DefaultDBPath()
	if _, err := os.Stat(*cfgPath); err == nil {
		if cfg, loadErr := config.Load(*cfgPath); loadErr == nil {
			fmt.Printf("  Config:    %s ✓\n", *cfgPath)
			fmt.Printf("  Address:   %s\n", cfg.AddressConstraint())
			fmt.Printf("  Category:  %s\n", cfg.WasteCategory().Label())
			fmt.Printf("  Calendar:  %s (tag %q)\n", describeCalendar(cfg.Calendar), cfg.Calendar.Tag)
			if cfg.StateDB != "" {
				dbPath = cfg.StateDB
			}
		} else {
			fmt.Printf("  Config:    %s (invalid: %v)\n", *cfgPath, loadErr)
		}
	} else {
		fmt.Printf("  Config:    not found (%s)\n", *cfgPath)
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		fmt.Printf("  State DB:  not found\n")
		return nil
	}
	fmt.Printf("  State DB:  %s (%s)\n", dbPath, humanSize(info.Size()))

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening state DB at %q: %w", dbPath, err)
	}
	defer db.Close()

	last, err := db.LastRun(context.Background())
	if err != nil {
		return err
	}
	printLastRun(os.Stdout, last)
	return nil
}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
