// Package amplitude implements the Amplitude Analyzer (spec §4.16): for
// each passage, it computes 100ms-window RMS levels in dBFS and derives
// lead-in/lead-out points relative to the passage's own peak level.
package amplitude

import (
	"math"

	"github.com/wkmp/core/internal/tick"
)

const (
	defaultWindowMs           = 100
	defaultLeadInThresholdDB  = -45.0
	defaultLeadOutThresholdDB = -40.0
	defaultQuickRampSeconds   = 1.0
	defaultQuickRampFraction  = 0.75
	defaultClampFraction      = 0.25

	// silenceFloorDB is substituted for windows with zero RMS (silence),
	// since dBFS is undefined (-Inf) for a zero-amplitude window.
	silenceFloorDB = -120.0
)

// Config tunes the analyzer's thresholds; zero values take the spec's
// documented defaults.
type Config struct {
	WindowMs           int
	LeadInThresholdDB  float64
	LeadOutThresholdDB float64
	QuickRampSeconds   float64
	QuickRampFraction  float64
	ClampFraction      float64
}

func (c *Config) applyDefaults() {
	if c.WindowMs <= 0 {
		c.WindowMs = defaultWindowMs
	}
	if c.LeadInThresholdDB == 0 {
		c.LeadInThresholdDB = defaultLeadInThresholdDB
	}
	if c.LeadOutThresholdDB == 0 {
		c.LeadOutThresholdDB = defaultLeadOutThresholdDB
	}
	if c.QuickRampSeconds <= 0 {
		c.QuickRampSeconds = defaultQuickRampSeconds
	}
	if c.QuickRampFraction <= 0 {
		c.QuickRampFraction = defaultQuickRampFraction
	}
	if c.ClampFraction <= 0 {
		c.ClampFraction = defaultClampFraction
	}
}

// Result holds the computed lead-in/lead-out points, both as absolute
// ticks (passage-start + offset) and as offsets from the passage start,
// for callers that want either representation.
type Result struct {
	LeadInTick    tick.Tick
	LeadOutTick   tick.Tick
	LeadInOffset  tick.Tick
	LeadOutOffset tick.Tick
	PeakDB        float64
}

// Analyze computes lead-in/lead-out points for one passage's PCM
// (interleaved float32 stereo, at sampleRate), returning absolute ticks
// measured from passageStart.
func Analyze(samples []float32, sampleRate int, passageStart tick.Tick, cfg Config) Result {
	cfg.applyDefaults()
	if len(samples) == 0 || sampleRate <= 0 {
		return Result{LeadInTick: passageStart, LeadOutTick: passageStart, PeakDB: silenceFloorDB}
	}

	mono := downmix(samples)
	windowFrames := sampleRate * cfg.WindowMs / 1000
	if windowFrames < 1 {
		windowFrames = 1
	}

	windowsDB := windowRMSdB(mono, windowFrames)
	if len(windowsDB) == 0 {
		return Result{LeadInTick: passageStart, LeadOutTick: passageStart, PeakDB: silenceFloorDB}
	}

	peakDB := silenceFloorDB
	for _, db := range windowsDB {
		if db > peakDB {
			peakDB = db
		}
	}

	totalFrames := len(mono)
	clampFrames := int(float64(totalFrames) * cfg.ClampFraction)

	leadInFrame := leadInPoint(windowsDB, windowFrames, peakDB, cfg, sampleRate)
	if leadInFrame > clampFrames {
		leadInFrame = clampFrames
	}

	leadOutFrame := leadOutPoint(windowsDB, windowFrames, peakDB, cfg)
	minLeadOutFrame := totalFrames - clampFrames
	if leadOutFrame < minLeadOutFrame {
		leadOutFrame = minLeadOutFrame
	}
	if leadOutFrame < leadInFrame {
		leadOutFrame = leadInFrame
	}

	leadInOffset := tick.FromSampleIndex(int64(leadInFrame), sampleRate)
	leadOutOffset := tick.FromSampleIndex(int64(leadOutFrame), sampleRate)

	return Result{
		LeadInTick:    passageStart + leadInOffset,
		LeadOutTick:   passageStart + leadOutOffset,
		LeadInOffset:  leadInOffset,
		LeadOutOffset: leadOutOffset,
		PeakDB:        peakDB,
	}
}

func downmix(interleavedStereo []float32) []float32 {
	mono := make([]float32, len(interleavedStereo)/2)
	for i := range mono {
		mono[i] = (interleavedStereo[2*i] + interleavedStereo[2*i+1]) / 2
	}
	return mono
}

func windowRMSdB(mono []float32, windowFrames int) []float64 {
	count := (len(mono) + windowFrames - 1) / windowFrames
	out := make([]float64, count)
	for w := 0; w < count; w++ {
		start := w * windowFrames
		end := start + windowFrames
		if end > len(mono) {
			end = len(mono)
		}
		var sumSq float64
		for i := start; i < end; i++ {
			sumSq += float64(mono[i]) * float64(mono[i])
		}
		n := end - start
		if n == 0 {
			out[w] = silenceFloorDB
			continue
		}
		rms := math.Sqrt(sumSq / float64(n))
		if rms <= 0 {
			out[w] = silenceFloorDB
		} else {
			out[w] = 20 * math.Log10(rms)
		}
	}
	return out
}

// leadInPoint finds the first window whose level rises above
// peakDB+LeadInThresholdDB, then shortens the result if the signal
// separately crosses QuickRampFraction of peak within QuickRampSeconds
// (spec §4.16's "quick-ramp clause").
func leadInPoint(windowsDB []float64, windowFrames int, peakDB float64, cfg Config, sampleRate int) int {
	threshold := peakDB + cfg.LeadInThresholdDB
	thresholdFrame := len(windowsDB) * windowFrames
	for i, db := range windowsDB {
		if db > threshold {
			thresholdFrame = i * windowFrames
			break
		}
	}

	rampThresholdDB := peakDB + 20*math.Log10(cfg.QuickRampFraction)
	rampWindowLimit := int(cfg.QuickRampSeconds * float64(sampleRate) / float64(windowFrames))
	for i, db := range windowsDB {
		if i > rampWindowLimit {
			break
		}
		if db > rampThresholdDB {
			rampFrame := i * windowFrames
			if rampFrame < thresholdFrame {
				return rampFrame
			}
			break
		}
	}
	return thresholdFrame
}

// leadOutPoint finds the last window whose level is still above
// peakDB+LeadOutThresholdDB (spec §4.16).
func leadOutPoint(windowsDB []float64, windowFrames int, peakDB float64, cfg Config) int {
	threshold := peakDB + cfg.LeadOutThresholdDB
	last := 0
	for i, db := range windowsDB {
		if db > threshold {
			last = (i + 1) * windowFrames
		}
	}
	return last
}
