// Command wkmp-ai is the ingest core: it scans a root folder, segments and
// fingerprints each discovered audio file, identifies and flavors the
// resulting passages, and persists everything through one import session.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wkmp/core/internal/acousticbrainz"
	"github.com/wkmp/core/internal/acoustid"
	"github.com/wkmp/core/internal/buildinfo"
	"github.com/wkmp/core/internal/conf"
	"github.com/wkmp/core/internal/events"
	"github.com/wkmp/core/internal/ingest/orchestrator"
	"github.com/wkmp/core/internal/logging"
	"github.com/wkmp/core/internal/metrics"
	"github.com/wkmp/core/internal/musicbrainz"
	"github.com/wkmp/core/internal/store"
)

// version and buildDate are set via -ldflags "-X main.version=... -X main.buildDate=..."
// at release build time; both stay "unknown" for plain `go build`/`go run`.
var (
	version   = ""
	buildDate = ""
)

func main() {
	var opts conf.BootstrapOptions
	var watchIntervalSecs int
	var metricsAddr string
	var showVersion bool

	build := buildinfo.NewContext(version, buildDate, "")

	root := &cobra.Command{
		Use:   "wkmp-ai",
		Short: "WKMP ingest core: scan, segment, fingerprint, identify, and flavor a music folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Printf("wkmp-ai %s (built %s)\n", build.Version(), build.BuildDate())
				return nil
			}
			return run(opts, watchIntervalSecs, metricsAddr)
		},
	}

	root.Flags().StringVar(&opts.RootFolder, "root-folder", "", "WKMP root folder (overrides WKMP_ROOT_FOLDER and the compiled default)")
	root.Flags().StringVar(&opts.DBPath, "db-path", "", "path to the shared wkmp.db (default: <root>/wkmp.db)")
	root.Flags().StringVar(&opts.LogLevel, "log-level", "", "log level override: debug, info, warn, error")
	root.Flags().IntVar(&watchIntervalSecs, "watch-interval", 0, "if >0, re-run an import session every N seconds instead of exiting after one pass")
	root.Flags().StringVar(&metricsAddr, "metrics-addr", ":9102", "address to serve Prometheus /metrics on (empty disables it)")
	root.Flags().BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wkmp-ai: %v\n", err)
		os.Exit(1)
	}
}

func run(opts conf.BootstrapOptions, watchIntervalSecs int, metricsAddr string) error {
	settings, err := conf.Load(opts)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	var levelVar slog.LevelVar
	logPath := settings.Log.Path
	if !filepath.IsAbs(logPath) {
		logPath = filepath.Join(settings.RootFolder, logPath)
	}
	logger, closeLog, err := logging.NewFileLogger(logPath, "wkmp-ai", &levelVar, logging.FileLoggerConfig{
		Rotation:   logging.RotationPolicy(settings.Log.Rotation),
		MaxSizeMB:  settings.Log.MaxSizeMB,
		MaxBackups: settings.Log.MaxBackups,
		MaxAgeDays: settings.Log.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = closeLog() }()
	logger.Info("wkmp-ai starting", "root_folder", settings.RootFolder, "db_path", settings.DBPath)
	for _, w := range settings.Warnings {
		logger.Warn("configuration value out of range, defaulted", "detail", w)
	}

	st, err := store.Open(settings.DBPath, settings.Ingest.ExtractionWorkers, false)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = st.Close() }()

	bus, err := events.Initialize(events.DefaultConfig())
	if err != nil {
		return fmt.Errorf("initializing event bus: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := metrics.NewRegistry()
	ingestMetrics, err := metrics.NewIngestMetrics(registry)
	if err != nil {
		return fmt.Errorf("registering ingest metrics: %w", err)
	}
	if err := bus.RegisterConsumer(metrics.NewIngestConsumer(ingestMetrics)); err != nil {
		return fmt.Errorf("registering metrics consumer: %w", err)
	}
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(registry))
		metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			_ = metricsSrv.Close()
		}()
	}

	acoustIDClient := newAcoustIDClient(settings)
	mbClient := newMusicBrainzClient(settings)
	abClient := newAcousticBrainzClient(settings)

	cfg := orchestrator.Config{
		RootFolder:        settings.RootFolder,
		ExtractionWorkers: settings.Ingest.ExtractionWorkers,
		ProgressThrottle: events.ThrottleConfig{
			Interval:        time.Duration(settings.Ingest.ProgressThrottleSecs) * time.Second,
			CleanupInterval: time.Minute,
		},
		SilenceThresholdDB: settings.Ingest.SilenceThresholdDB,
		MinGapSeconds:      settings.Ingest.MinGapSeconds,
		MinPassageSeconds:  settings.Ingest.MinPassageSeconds,
		LeadInThresholdDB:  settings.Ingest.LeadInThresholdDB,
		LeadOutThresholdDB: settings.Ingest.LeadOutThresholdDB,
	}
	orch := orchestrator.New(cfg, st, bus, acoustIDClient, mbClient, abClient)

	if n, err := orch.ForceCancelOrphaned(); err != nil {
		logger.Error("failed to force-cancel orphaned import sessions", "error", err)
	} else if n > 0 {
		logger.Info("force-cancelled orphaned import sessions from a prior crash", "count", n)
	}

	if watchIntervalSecs <= 0 {
		return runOnce(ctx, orch, settings.RootFolder, logger)
	}

	ticker := time.NewTicker(time.Duration(watchIntervalSecs) * time.Second)
	defer ticker.Stop()
	if err := runOnce(ctx, orch, settings.RootFolder, logger); err != nil {
		logger.Error("import session failed", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			logger.Info("wkmp-ai shutting down")
			return nil
		case <-ticker.C:
			if err := runOnce(ctx, orch, settings.RootFolder, logger); err != nil {
				logger.Error("import session failed", "error", err)
			}
		}
	}
}

func runOnce(ctx context.Context, orch *orchestrator.Orchestrator, rootFolder string, logger *slog.Logger) error {
	sess, err := orch.Run(ctx, rootFolder)
	if err != nil {
		return err
	}
	logger.Info("import session finished", "session_id", sess.ID, "state", sess.State)
	return nil
}

func newAcoustIDClient(settings *conf.Settings) *acoustid.Client {
	if settings.Network.AcoustIDAPIKey == "" {
		return nil
	}
	return acoustid.New(acoustid.Config{
		APIKey:  settings.Network.AcoustIDAPIKey,
		BaseURL: settings.Network.AcoustIDBase,
	})
}

func newMusicBrainzClient(settings *conf.Settings) *musicbrainz.Client {
	if settings.Network.MusicBrainzBase == "" {
		return nil
	}
	return musicbrainz.New(musicbrainz.Config{
		BaseURL:   settings.Network.MusicBrainzBase,
		UserAgent: settings.Network.UserAgent,
	})
}

func newAcousticBrainzClient(settings *conf.Settings) *acousticbrainz.Client {
	if settings.Network.AcousticBrainzBase == "" {
		return nil
	}
	return acousticbrainz.New(acousticbrainz.Config{
		BaseURL: settings.Network.AcousticBrainzBase,
	})
}
