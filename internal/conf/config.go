// Package conf resolves and loads wkmp settings: the four-tier root-folder
// bootstrap (CLI flag, environment, TOML file, compiled default) plus the
// LogConfig and audio/validation tunables both cores read at startup.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// RotationType mirrors internal/logging's rotation policy, kept as a
// distinct type here so conf has no import dependency on logging.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// LogConfig configures the rotated log file for a core process.
type LogConfig struct {
	Path        string       `toml:"path"`
	Level       string       `toml:"level"`
	Rotation    RotationType `toml:"rotation"`
	MaxSizeMB   int          `toml:"max_size_mb"`
	MaxBackups  int          `toml:"max_backups"`
	MaxAgeDays  int          `toml:"max_age_days"`
	RotationDay time.Weekday `toml:"-"`
}

// AudioConfig configures the output stream and validation service.
type AudioConfig struct {
	SampleRate                 int     `toml:"sample_rate"`
	BufferSizeMS               int     `toml:"audio_buffer_size_ms"`
	DeviceID                   string  `toml:"device_id"`
	MasterVolume               float32 `toml:"master_volume"`
	MaximumDecodeStreams       int     `toml:"maximum_decode_streams"`
	ValidationEnabled          bool    `toml:"validation_enabled"`
	ValidationIntervalSecs     int     `toml:"validation_interval_secs"`
	ValidationToleranceSamples int     `toml:"validation_tolerance_samples"`
}

// NetworkConfig configures the three fallible external music-metadata clients.
type NetworkConfig struct {
	UserAgent          string `toml:"user_agent"`
	AcoustIDAPIKey     string `toml:"acoustid_api_key"`
	MusicBrainzBase    string `toml:"musicbrainz_base_url"`
	AcoustIDBase       string `toml:"acoustid_base_url"`
	AcousticBrainzBase string `toml:"acousticbrainz_base_url"`
}

// IngestConfig tunes the import workflow orchestrator: passage fan-out
// concurrency, progress-event throttling, and the amplitude/boundary
// detector thresholds.
type IngestConfig struct {
	ExtractionWorkers    int     `toml:"extraction_workers"` // 0 uses cpuspec's optimal thread count, or runtime.NumCPU()+1 when that is unknown
	ProgressThrottleSecs int     `toml:"progress_throttle_secs"`
	SilenceThresholdDB   float64 `toml:"silence_threshold_db"`
	MinGapSeconds        float64 `toml:"min_gap_seconds"`
	MinPassageSeconds    float64 `toml:"min_passage_seconds"`
	LeadInThresholdDB    float64 `toml:"lead_in_threshold_db"`
	LeadOutThresholdDB   float64 `toml:"lead_out_threshold_db"`
}

// Settings is the root configuration for both wkmp-ap and wkmp-ai.
type Settings struct {
	RootFolder string `toml:"-"`
	DBPath     string `toml:"-"`

	Log     LogConfig     `toml:"log"`
	Audio   AudioConfig   `toml:"audio"`
	Network NetworkConfig `toml:"network"`
	Ingest  IngestConfig  `toml:"ingest"`

	// Warnings carries any out-of-range values validateSettings clamped
	// during Load, for the caller to log at startup.
	Warnings []string `toml:"-"`
}

const (
	envRootFolderPrimary   = "WKMP_ROOT_FOLDER"
	envRootFolderShorthand = "WKMP_ROOT"
	defaultDBFileName      = "wkmp.db"
	defaultConfigFileName  = "wkmp.toml"
)

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
	loadOnce         sync.Once
)

// BootstrapOptions carries the CLI-flag-provided overrides; zero value means
// "not set on the command line" so lower-priority tiers can still apply.
type BootstrapOptions struct {
	RootFolder string
	DBPath     string
	LogLevel   string
}

// Load resolves RootFolder via the four-tier priority (CLI > env > TOML >
// compiled default), reads the TOML config file if present at the resolved
// root, applies defaults for anything left unset, and auto-creates the root
// directory. It does not open the database; see internal/store.Open.
func Load(opts BootstrapOptions) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	_ = godotenv.Load() // optional .env; absence is not an error

	root, err := resolveRootFolder(opts.RootFolder)
	if err != nil {
		return nil, fmt.Errorf("resolving root folder: %w", err)
	}

	settings := &Settings{}
	setDefaultConfig(settings)

	configPath := filepath.Join(root, defaultConfigFileName)
	if data, readErr := os.ReadFile(configPath); readErr == nil {
		if decodeErr := toml.Unmarshal(data, settings); decodeErr != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, decodeErr)
		}
	} else if !os.IsNotExist(readErr) {
		return nil, fmt.Errorf("reading config file %s: %w", configPath, readErr)
	}
	// A missing TOML file at the root is not an error (spec §6.3); defaults apply.

	settings.RootFolder = root
	if opts.DBPath != "" {
		settings.DBPath = opts.DBPath
	} else if settings.DBPath == "" {
		settings.DBPath = filepath.Join(root, defaultDBFileName)
	}
	if opts.LogLevel != "" {
		settings.Log.Level = opts.LogLevel
	}

	if err := os.MkdirAll(settings.RootFolder, 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("creating root folder %s: %w", settings.RootFolder, err)
	}

	settings.Warnings = validateSettings(settings).Warnings

	settingsInstance = settings
	return settings, nil
}

// resolveRootFolder implements the 4-tier priority from spec §6.3:
// CLI flag > WKMP_ROOT_FOLDER/WKMP_ROOT env > (TOML is read at the
// resolved root itself, so it cannot select the root) > compiled default.
func resolveRootFolder(cliValue string) (string, error) {
	if cliValue != "" {
		return cliValue, nil
	}
	if v := os.Getenv(envRootFolderPrimary); v != "" {
		return v, nil
	}
	if v := os.Getenv(envRootFolderShorthand); v != "" {
		return v, nil
	}
	return compiledDefaultRootFolder()
}

func compiledDefaultRootFolder() (string, error) {
	switch runtime.GOOS {
	case "windows":
		profile := os.Getenv("USERPROFILE")
		if profile == "" {
			return "", fmt.Errorf("USERPROFILE is not set")
		}
		return filepath.Join(profile, "Music"), nil
	case "linux", "darwin", "freebsd", "openbsd", "netbsd":
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", "wkmp_data"), nil //nolint:nilerr
		}
		return filepath.Join(home, "Music"), nil
	default:
		return filepath.Join(".", "wkmp_data"), nil
	}
}

// GetSettings returns the currently loaded settings, nil if Load has not run.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings, loading with compiled defaults on
// first access if nothing has called Load yet (mirrors the teacher's lazy
// Setting() accessor, used by packages that can't thread Settings through
// every call).
func Setting() *Settings {
	loadOnce.Do(func() {
		if GetSettings() == nil {
			if _, err := Load(BootstrapOptions{}); err != nil {
				fmt.Fprintf(os.Stderr, "conf: failed to load default settings: %v\n", err)
			}
		}
	})
	return GetSettings()
}
