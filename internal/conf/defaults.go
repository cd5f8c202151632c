package conf

import "github.com/wkmp/core/internal/buildinfo"

// setDefaultConfig fills settings with the compiled defaults named in spec
// §6: 44.1 kHz working rate, ~50ms audio buffer, validation tolerance in
// interleaved stereo samples (see RESOLVED OPEN QUESTIONS #3).
func setDefaultConfig(s *Settings) {
	s.Log = LogConfig{
		Path:       "logs/app.log",
		Level:      "info",
		Rotation:   RotationSize,
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}

	s.Audio = AudioConfig{
		SampleRate:                 44100,
		BufferSizeMS:               50,
		DeviceID:                   "",
		MasterVolume:               1.0,
		MaximumDecodeStreams:       12,
		ValidationEnabled:          true,
		ValidationIntervalSecs:     10,
		ValidationToleranceSamples: 8192,
	}

	s.Network = NetworkConfig{
		UserAgent:          "wkmp/0.1 (+https://example.invalid/wkmp)",
		MusicBrainzBase:    "https://musicbrainz.org/ws/2",
		AcoustIDBase:       "https://api.acoustid.org/v2",
		AcousticBrainzBase: "https://acousticbrainz.org",
	}

	s.Ingest = IngestConfig{
		ExtractionWorkers:    0,
		ProgressThrottleSecs: 1,
		SilenceThresholdDB:   -50.0,
		MinGapSeconds:        2.0,
		MinPassageSeconds:    5.0,
		LeadInThresholdDB:    -45.0,
		LeadOutThresholdDB:   -40.0,
	}
}

// validateSettings clamps out-of-range values to safe defaults rather than
// failing startup; invalid settings are a configuration mistake, not a
// reason to refuse to run. Each clamp is recorded as a warning so the
// caller can log what was overridden.
func validateSettings(s *Settings) *buildinfo.ValidationResult {
	result := buildinfo.NewValidationResult()

	if s.Audio.SampleRate <= 0 {
		s.Audio.SampleRate = 44100
		result.AddWarning("audio.sample_rate was <= 0, reset to 44100")
	}
	if s.Audio.BufferSizeMS <= 0 {
		s.Audio.BufferSizeMS = 50
		result.AddWarning("audio.audio_buffer_size_ms was <= 0, reset to 50")
	}
	if s.Audio.MasterVolume < 0 {
		s.Audio.MasterVolume = 0
		result.AddWarning("audio.master_volume was negative, clamped to 0")
	}
	if s.Audio.MasterVolume > 1 {
		s.Audio.MasterVolume = 1
		result.AddWarning("audio.master_volume exceeded 1, clamped to 1")
	}
	if s.Audio.MaximumDecodeStreams <= 0 {
		s.Audio.MaximumDecodeStreams = 12
		result.AddWarning("audio.maximum_decode_streams was <= 0, reset to 12")
	}
	if s.Audio.ValidationIntervalSecs <= 0 {
		s.Audio.ValidationIntervalSecs = 10
		result.AddWarning("audio.validation_interval_secs was <= 0, reset to 10")
	}
	if s.Audio.ValidationToleranceSamples <= 0 {
		s.Audio.ValidationToleranceSamples = 8192
		result.AddWarning("audio.validation_tolerance_samples was <= 0, reset to 8192")
	}
	if s.Network.UserAgent == "" {
		s.Network.UserAgent = "wkmp/0.1"
		result.AddWarning("network.user_agent was empty, reset to default")
	}
	if s.Ingest.ProgressThrottleSecs <= 0 {
		s.Ingest.ProgressThrottleSecs = 1
		result.AddWarning("ingest.progress_throttle_secs was <= 0, reset to 1")
	}
	if s.Ingest.SilenceThresholdDB == 0 {
		s.Ingest.SilenceThresholdDB = -50.0
		result.AddWarning("ingest.silence_threshold_db was unset, reset to -50.0")
	}
	if s.Ingest.MinGapSeconds <= 0 {
		s.Ingest.MinGapSeconds = 2.0
		result.AddWarning("ingest.min_gap_seconds was <= 0, reset to 2.0")
	}
	if s.Ingest.MinPassageSeconds <= 0 {
		s.Ingest.MinPassageSeconds = 5.0
		result.AddWarning("ingest.min_passage_seconds was <= 0, reset to 5.0")
	}

	return result
}
