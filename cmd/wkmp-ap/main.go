// Command wkmp-ap is the playback core: it owns the output device, the
// decode worker, the buffer manager, the mixer, and the engine that turns
// a queue of passages into one continuous crossfaded audio stream.
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

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wkmp/core/internal/buildinfo"
	"github.com/wkmp/core/internal/conf"
	"github.com/wkmp/core/internal/events"
	"github.com/wkmp/core/internal/logging"
	"github.com/wkmp/core/internal/metrics"
	"github.com/wkmp/core/internal/playback/audiodevice"
	"github.com/wkmp/core/internal/playback/buffermanager"
	"github.com/wkmp/core/internal/playback/engine"
	"github.com/wkmp/core/internal/playback/mixer"
	"github.com/wkmp/core/internal/playback/validation"
	"github.com/wkmp/core/internal/playback/worker"
	"github.com/wkmp/core/internal/store"
)

// decodeDriveInterval is how often the decode worker is given a chance to
// build/advance chains between audio-callback renders.
const decodeDriveInterval = 10 * time.Millisecond

// version and buildDate are set via -ldflags "-X main.version=... -X main.buildDate=..."
// at release build time; both stay "unknown" for plain `go build`/`go run`.
var (
	version   = ""
	buildDate = ""
)

func main() {
	var opts conf.BootstrapOptions
	var deviceID string
	var metricsAddr string
	var showVersion bool

	build := buildinfo.NewContext(version, buildDate, "")

	root := &cobra.Command{
		Use:   "wkmp-ap",
		Short: "WKMP playback core: queue, crossfade engine, and audio output",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Printf("wkmp-ap %s (built %s)\n", build.Version(), build.BuildDate())
				return nil
			}
			return run(opts, deviceID, metricsAddr)
		},
	}

	root.Flags().StringVar(&opts.RootFolder, "root-folder", "", "WKMP root folder (overrides WKMP_ROOT_FOLDER and the compiled default)")
	root.Flags().StringVar(&opts.DBPath, "db-path", "", "path to the shared wkmp.db (default: <root>/wkmp.db)")
	root.Flags().StringVar(&opts.LogLevel, "log-level", "", "log level override: debug, info, warn, error")
	root.Flags().StringVar(&deviceID, "device-id", "", "playback device ID override (default: system default device)")
	root.Flags().StringVar(&metricsAddr, "metrics-addr", ":9101", "address to serve Prometheus /metrics on (empty disables it)")
	root.Flags().BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wkmp-ap: %v\n", err)
		os.Exit(1)
	}
}

func run(opts conf.BootstrapOptions, deviceIDOverride, metricsAddr string) error {
	settings, err := conf.Load(opts)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if deviceIDOverride != "" {
		settings.Audio.DeviceID = deviceIDOverride
	}

	var levelVar slog.LevelVar
	logPath := settings.Log.Path
	if !filepath.IsAbs(logPath) {
		logPath = filepath.Join(settings.RootFolder, logPath)
	}
	logger, closeLog, err := logging.NewFileLogger(logPath, "wkmp-ap", &levelVar, logging.FileLoggerConfig{
		Rotation:   logging.RotationPolicy(settings.Log.Rotation),
		MaxSizeMB:  settings.Log.MaxSizeMB,
		MaxBackups: settings.Log.MaxBackups,
		MaxAgeDays: settings.Log.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = closeLog() }()
	logger.Info("wkmp-ap starting", "root_folder", settings.RootFolder, "db_path", settings.DBPath)
	for _, w := range settings.Warnings {
		logger.Warn("configuration value out of range, defaulted", "detail", w)
	}

	st, err := store.Open(settings.DBPath, 1, false)
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
	playbackMetrics, err := metrics.NewPlaybackMetrics(registry)
	if err != nil {
		return fmt.Errorf("registering playback metrics: %w", err)
	}
	if err := bus.RegisterConsumer(metrics.NewPlaybackConsumer(playbackMetrics)); err != nil {
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

	bm := buffermanager.New(0, 0, 0)
	w := worker.New(bm, func(queueEntryID uuid.UUID, err error) {
		logger.Error("chain decode failed, dropping chain", "queue_entry_id", queueEntryID, "error", err)
	})
	mx := mixer.New(settings.Audio.SampleRate, 0, 0)
	eng := engine.New(st, w, bm, mx, bus, nil, settings.Audio.MaximumDecodeStreams)

	if err := eng.LoadQueue(); err != nil {
		return fmt.Errorf("loading queue: %w", err)
	}

	driveDone := make(chan struct{})
	go func() {
		defer close(driveDone)
		ticker := time.NewTicker(decodeDriveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for eng.DriveDecodeWorker() {
					// keep draining while the worker has ready work
				}
			}
		}
	}()

	bufferFrames := uint32(settings.Audio.SampleRate * settings.Audio.BufferSizeMS / 1000)
	dev, err := audiodevice.Open(audiodevice.Config{
		DeviceID:     settings.Audio.DeviceID,
		SampleRate:   uint32(settings.Audio.SampleRate),
		BufferFrames: bufferFrames,
	}, func(frames int) []float32 {
		return eng.RenderAudio(frames)
	})
	if err != nil {
		return fmt.Errorf("opening audio device: %w", err)
	}
	defer func() { _ = dev.Close() }()

	if settings.Audio.ValidationEnabled {
		go runValidationLoop(ctx, eng, bus, settings)
	}

	eng.Play()
	logger.Info("wkmp-ap running", "device_id", settings.Audio.DeviceID, "sample_rate", settings.Audio.SampleRate)

	<-ctx.Done()
	logger.Info("wkmp-ap shutting down")
	<-driveDone
	return nil
}

// runValidationLoop periodically checks the engine's accounted frame
// counters for drift (spec §4.10's conservation check), logging the
// service's own classification of any discrepancy.
func runValidationLoop(ctx context.Context, eng *engine.Engine, bus *events.EventBus, settings *conf.Settings) {
	svc := validation.New(bus, int64(settings.Audio.ValidationToleranceSamples))
	interval := time.Duration(settings.Audio.ValidationIntervalSecs) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.Check(eng.ValidationSnapshot())
		}
	}
}
