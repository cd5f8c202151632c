// Package metrics exposes Prometheus collectors for both wkmp cores. Each
// core constructs its own *prometheus.Registry (never the global default
// registry, so tests can register cleanly and a single process can in
// principle host both cores' metrics side by side) and passes it to
// NewPlaybackMetrics / NewIngestMetrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	wkmperrors "github.com/wkmp/core/internal/errors"
)

// NewRegistry returns a fresh, empty registry. Kept as a named constructor
// (rather than callers invoking prometheus.NewRegistry directly) so the
// registration point is easy to grep for across cmd/wkmp-ap and cmd/wkmp-ai.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns the HTTP handler the control surface (out of scope here)
// mounts at /metrics.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// PlaybackMetrics covers the engine/chain/mixer/validation counters spec §5
// and §4.16 describe: chain occupancy, frames mixed, buffer underruns, and
// periodic conservation-check outcomes.
type PlaybackMetrics struct {
	chainsInUse            prometheus.Gauge
	decoderFramesPushed    *prometheus.CounterVec
	bufferSamplesWritten   *prometheus.CounterVec
	bufferSamplesRead      *prometheus.CounterVec
	mixerFramesMixed       *prometheus.CounterVec
	mixerUnderruns         *prometheus.CounterVec
	validationResults      *prometheus.CounterVec
	passagesStartedTotal   prometheus.Counter
	passagesCompletedTotal prometheus.Counter
}

// NewPlaybackMetrics registers and returns the playback-core collector set
// against registry.
func NewPlaybackMetrics(registry *prometheus.Registry) (*PlaybackMetrics, error) {
	m := &PlaybackMetrics{
		chainsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wkmp",
			Subsystem: "playback",
			Name:      "chains_in_use",
			Help:      "Number of decoder chains currently assigned to a queue entry.",
		}),
		decoderFramesPushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wkmp",
			Subsystem: "playback",
			Name:      "decoder_frames_pushed_total",
			Help:      "Frames pushed by the decoder worker into a chain's ring buffer.",
		}, []string{"chain"}),
		bufferSamplesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wkmp",
			Subsystem: "playback",
			Name:      "buffer_samples_written_total",
			Help:      "Samples written into a chain's ring buffer.",
		}, []string{"chain"}),
		bufferSamplesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wkmp",
			Subsystem: "playback",
			Name:      "buffer_samples_read_total",
			Help:      "Samples read from a chain's ring buffer by the mixer.",
		}, []string{"chain"}),
		mixerFramesMixed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wkmp",
			Subsystem: "playback",
			Name:      "mixer_frames_mixed_total",
			Help:      "Stereo frames produced by the mixer for a chain.",
		}, []string{"chain"}),
		mixerUnderruns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wkmp",
			Subsystem: "playback",
			Name:      "mixer_underruns_total",
			Help:      "Times the mixer had to substitute silence/pause-decay for a chain because its ring buffer ran dry.",
		}, []string{"chain"}),
		validationResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wkmp",
			Subsystem: "playback",
			Name:      "validation_results_total",
			Help:      "Outcomes of the periodic sample-conservation validation check.",
		}, []string{"outcome"}),
		passagesStartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wkmp",
			Subsystem: "playback",
			Name:      "passages_started_total",
			Help:      "Passage play instances that have begun mixing.",
		}),
		passagesCompletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wkmp",
			Subsystem: "playback",
			Name:      "passages_completed_total",
			Help:      "Passage play instances that have finished (fade-out, skip, or EOF).",
		}),
	}

	collectors := []prometheus.Collector{
		m.chainsInUse, m.decoderFramesPushed, m.bufferSamplesWritten,
		m.bufferSamplesRead, m.mixerFramesMixed, m.mixerUnderruns,
		m.validationResults, m.passagesStartedTotal, m.passagesCompletedTotal,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, wkmperrors.New(err).Component("metrics").Category(wkmperrors.CategoryGeneric).Context("operation", "register_playback_metrics").Build()
		}
	}
	return m, nil
}

func (m *PlaybackMetrics) SetChainsInUse(n int) { m.chainsInUse.Set(float64(n)) }

func (m *PlaybackMetrics) AddDecoderFramesPushed(chain string, frames int64) {
	m.decoderFramesPushed.WithLabelValues(chain).Add(float64(frames))
}

func (m *PlaybackMetrics) AddBufferSamplesWritten(chain string, samples int64) {
	m.bufferSamplesWritten.WithLabelValues(chain).Add(float64(samples))
}

func (m *PlaybackMetrics) AddBufferSamplesRead(chain string, samples int64) {
	m.bufferSamplesRead.WithLabelValues(chain).Add(float64(samples))
}

func (m *PlaybackMetrics) AddMixerFramesMixed(chain string, frames int64) {
	m.mixerFramesMixed.WithLabelValues(chain).Add(float64(frames))
}

func (m *PlaybackMetrics) IncMixerUnderrun(chain string) {
	m.mixerUnderruns.WithLabelValues(chain).Inc()
}

func (m *PlaybackMetrics) RecordValidationResult(outcome string) {
	m.validationResults.WithLabelValues(outcome).Inc()
}

func (m *PlaybackMetrics) IncPassageStarted()   { m.passagesStartedTotal.Inc() }
func (m *PlaybackMetrics) IncPassageCompleted() { m.passagesCompletedTotal.Inc() }

// IngestMetrics covers the scanner/extractor/fusion/validation throughput
// counters spec §4 ingest modules and §4.17's per-phase tallies describe.
type IngestMetrics struct {
	phaseDuration     *prometheus.HistogramVec
	passageOutcomes   *prometheus.CounterVec
	extractorOutcomes *prometheus.CounterVec
	qualityScore      prometheus.Histogram
	activeSessions    prometheus.Gauge
}

// NewIngestMetrics registers and returns the ingest-core collector set
// against registry.
func NewIngestMetrics(registry *prometheus.Registry) (*IngestMetrics, error) {
	m := &IngestMetrics{
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wkmp",
			Subsystem: "ingest",
			Name:      "phase_duration_seconds",
			Help:      "Wall-clock time spent in each import-session phase.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
		passageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wkmp",
			Subsystem: "ingest",
			Name:      "passage_outcomes_total",
			Help:      "Per-passage processing outcomes (success/failure/skip).",
		}, []string{"outcome"}),
		extractorOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wkmp",
			Subsystem: "ingest",
			Name:      "extractor_outcomes_total",
			Help:      "Per-extractor success/failure counts, isolated per extractor name.",
		}, []string{"extractor", "outcome"}),
		qualityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wkmp",
			Subsystem: "ingest",
			Name:      "fusion_quality_score",
			Help:      "Distribution of the fused-metadata quality score (0.0-1.0) per passage.",
			Buckets:   []float64{0.2, 0.4, 0.6, 0.8, 0.9, 1.0},
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wkmp",
			Subsystem: "ingest",
			Name:      "active_sessions",
			Help:      "Import sessions currently not in a terminal state (0 or 1; one active session at a time).",
		}),
	}

	collectors := []prometheus.Collector{
		m.phaseDuration, m.passageOutcomes, m.extractorOutcomes, m.qualityScore, m.activeSessions,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, wkmperrors.New(err).Component("metrics").Category(wkmperrors.CategoryGeneric).Context("operation", "register_ingest_metrics").Build()
		}
	}
	return m, nil
}

func (m *IngestMetrics) ObservePhaseDuration(phase string, seconds float64) {
	m.phaseDuration.WithLabelValues(phase).Observe(seconds)
}

func (m *IngestMetrics) RecordPassageOutcome(outcome string) {
	m.passageOutcomes.WithLabelValues(outcome).Inc()
}

func (m *IngestMetrics) RecordExtractorOutcome(extractor, outcome string) {
	m.extractorOutcomes.WithLabelValues(extractor, outcome).Inc()
}

func (m *IngestMetrics) ObserveQualityScore(score float64) {
	m.qualityScore.Observe(score)
}

func (m *IngestMetrics) SetActiveSessions(n int) { m.activeSessions.Set(float64(n)) }
