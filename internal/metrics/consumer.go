package metrics

import (
	"strconv"

	"github.com/wkmp/core/internal/events"
)

// PlaybackConsumer adapts PlaybackMetrics to an events.EventConsumer so a
// single bus registration keeps the collectors current without the engine
// or mixer needing to know metrics exist.
type PlaybackConsumer struct {
	metrics *PlaybackMetrics
}

// NewPlaybackConsumer wraps m for registration via EventBus.RegisterConsumer.
func NewPlaybackConsumer(m *PlaybackMetrics) *PlaybackConsumer {
	return &PlaybackConsumer{metrics: m}
}

func (c *PlaybackConsumer) Name() string { return "metrics.playback" }

func (c *PlaybackConsumer) ProcessEvent(event events.Event) error {
	switch e := event.(type) {
	case events.PassageStartedEvent:
		c.metrics.IncPassageStarted()
	case events.PassageCompletedEvent:
		c.metrics.IncPassageCompleted()
	case events.BufferUnderrunEvent:
		c.metrics.IncMixerUnderrun(strconv.Itoa(e.ChainIndex))
	case events.ValidationResultEvent:
		c.metrics.RecordValidationResult(e.Outcome)
	}
	return nil
}

func (c *PlaybackConsumer) ProcessBatch(batch []events.Event) error {
	for _, e := range batch {
		if err := c.ProcessEvent(e); err != nil {
			return err
		}
	}
	return nil
}

func (c *PlaybackConsumer) SupportsBatching() bool { return false }

// IngestConsumer adapts IngestMetrics to an events.EventConsumer, mirroring
// PlaybackConsumer for the ingest core's session/passage/extractor events.
type IngestConsumer struct {
	metrics *IngestMetrics
}

// NewIngestConsumer wraps m for registration via EventBus.RegisterConsumer.
func NewIngestConsumer(m *IngestMetrics) *IngestConsumer {
	return &IngestConsumer{metrics: m}
}

func (c *IngestConsumer) Name() string { return "metrics.ingest" }

func (c *IngestConsumer) ProcessEvent(event events.Event) error {
	switch e := event.(type) {
	case events.SessionStartedEvent:
		c.metrics.SetActiveSessions(1)
	case events.SessionCompleteEvent, events.SessionFailedEvent:
		c.metrics.SetActiveSessions(0)
	case events.ExtractionCompleteEvent:
		for i := 0; i < e.SucceededCount; i++ {
			c.metrics.RecordExtractorOutcome("fan-out", "success")
		}
		for i := 0; i < e.FailedCount; i++ {
			c.metrics.RecordExtractorOutcome("fan-out", "failure")
		}
	case events.FusionCompleteEvent:
		c.metrics.ObserveQualityScore(e.QualityScore)
	case events.ValidationCompleteEvent:
		c.metrics.RecordPassageOutcome(e.Outcome)
	case events.FileCompleteEvent:
		for i := 0; i < e.Success; i++ {
			c.metrics.RecordPassageOutcome("success")
		}
		for i := 0; i < e.Failure; i++ {
			c.metrics.RecordPassageOutcome("failure")
		}
		for i := 0; i < e.Skip; i++ {
			c.metrics.RecordPassageOutcome("skip")
		}
	}
	return nil
}

func (c *IngestConsumer) ProcessBatch(batch []events.Event) error {
	for _, e := range batch {
		if err := c.ProcessEvent(e); err != nil {
			return err
		}
	}
	return nil
}

func (c *IngestConsumer) SupportsBatching() bool { return false }
