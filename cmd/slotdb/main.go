// Package main is the entry point for the slotdb sync agent.
//
// slotdb owns a directory of table slots (one JSON array per file) and runs
// the sync jobs configured in slotdb.yaml: recurring pulls that replace a
// table from a remote endpoint, and recurring pushes that send each record
// to one. An optional HTTP endpoint reports health and job status.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/slotdb/slotdb/internal/config"
	"github.com/slotdb/slotdb/internal/remote"
	"github.com/slotdb/slotdb/internal/slot"
	"github.com/slotdb/slotdb/internal/syncsvc"
	"github.com/slotdb/slotdb/internal/table"
	"github.com/slotdb/slotdb/internal/web"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "slotdb: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	configPath := flag.String("config", config.DefaultPath, "Path to the YAML manifest")
	dataDir := flag.String("data-dir", "", "Slot directory (overrides the manifest)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error; overrides the manifest)")
	httpAddr := flag.String("http", "", "Status endpoint address (e.g., localhost:8080); empty disables it")
	watchSlots := flag.Bool("watch-slots", false, "Log slot files changed by external writers")
	once := flag.Bool("once", false, "Run every configured job a single pass and exit")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			val := a.Value.Any()
			skip := false
			switch t := val.(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case uint64:
				skip = t == 0
			case int64:
				skip = t == 0
			case float64:
				skip = t == 0
			case time.Time:
				skip = t.IsZero()
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	// Flags win over the manifest and the environment.
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	switch cfg.LogLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", cfg.LogLevel)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	slots, err := slot.NewDirStore(cfg.DataDir)
	if err != nil {
		return err
	}
	tables := table.NewStore(slots, logger)
	client := remote.New(cfg.RateLimit)
	svc := syncsvc.New(client, tables, logger)
	defer svc.Close()

	if *once {
		return runOnce(ctx, svc, cfg.Jobs)
	}

	if *watchSlots {
		changes, err := slot.Watch(ctx, slots, logger)
		if err != nil {
			return fmt.Errorf("failed to watch slots: %w", err)
		}
		go func() {
			for name := range changes {
				slog.InfoContext(ctx, "Slot changed on disk", "slot", name)
			}
		}()
	}

	// Watch own executable for modifications (for development restarts).
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	for _, j := range cfg.Jobs {
		if err := startJob(ctx, svc, j); err != nil {
			return err
		}
	}

	buildVersion, _, _, _ := getBuildInfo()
	slog.InfoContext(ctx, "slotdb started",
		"dataDir", cfg.DataDir, "jobs", len(cfg.Jobs), "version", buildVersion)

	if *httpAddr == "" {
		<-ctx.Done()
		return nil
	}

	httpServer := &http.Server{
		Addr:              *httpAddr,
		Handler:           web.NewRouter(svc, buildVersion),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting status endpoint", "addr", *httpAddr)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}
	return nil
}

// startJob launches one configured sync loop.
func startJob(ctx context.Context, svc *syncsvc.Service, j config.Job) error {
	var err error
	switch j.Kind {
	case "pull":
		_, err = svc.StartPull(ctx, syncsvc.PullJob{
			Table:    j.Table,
			URL:      j.URL,
			Interval: time.Duration(j.Interval),
			Headers:  j.Headers,
		})
	case "push":
		_, err = svc.StartPush(ctx, syncsvc.PushJob{
			Table:    j.Table,
			URL:      j.URL,
			Interval: time.Duration(j.Interval),
			Headers:  j.Headers,
			Method:   j.Method,
		})
	default:
		err = fmt.Errorf("unknown job kind: %q", j.Kind)
	}
	return err
}

// runOnce runs a single pass of every configured job and reports how many
// failed.
func runOnce(ctx context.Context, svc *syncsvc.Service, jobs []config.Job) error {
	failed := 0
	for _, j := range jobs {
		var err error
		switch j.Kind {
		case "pull":
			err = svc.PullOnce(ctx, syncsvc.PullJob{
				Table:    j.Table,
				URL:      j.URL,
				Interval: time.Duration(j.Interval),
				Headers:  j.Headers,
			})
		case "push":
			var report syncsvc.PushReport
			report, err = svc.PushOnce(ctx, syncsvc.PushJob{
				Table:    j.Table,
				URL:      j.URL,
				Interval: time.Duration(j.Interval),
				Headers:  j.Headers,
				Method:   j.Method,
			})
			if err == nil && report.Failed > 0 {
				err = fmt.Errorf("%d of %d records failed", report.Failed, report.Sent+report.Failed)
			}
		}
		if err != nil {
			slog.ErrorContext(ctx, "Sync pass failed", "kind", j.Kind, "table", j.Table, "err", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(jobs))
	}
	return nil
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("slotdb %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// watchExecutable watches the current executable for modifications and calls
// stop to trigger graceful shutdown when detected. This enables seamless
// restarts during development.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}
