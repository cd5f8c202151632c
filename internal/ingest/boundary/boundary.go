// Package boundary implements the ingest pipeline's silence-gap passage
// segmentation (the "Boundary Detector" component): splitting one decoded
// file into candidate passages wherever a sustained quiet gap separates
// two tracks with no container-level markers of their own.
package boundary

import (
	"math"

	"github.com/wkmp/core/internal/tick"
)

const (
	defaultWindowMs           = 100
	defaultSilenceThresholdDB = -50.0
	defaultMinGapSeconds      = 2.0
	defaultMinPassageSeconds  = 5.0

	silenceFloorDB = -120.0
)

// Config tunes gap detection; zero values take the documented defaults.
type Config struct {
	WindowMs           int
	SilenceThresholdDB float64
	MinGapSeconds      float64
	MinPassageSeconds  float64
}

func (c *Config) applyDefaults() {
	if c.WindowMs <= 0 {
		c.WindowMs = defaultWindowMs
	}
	if c.SilenceThresholdDB == 0 {
		c.SilenceThresholdDB = defaultSilenceThresholdDB
	}
	if c.MinGapSeconds <= 0 {
		c.MinGapSeconds = defaultMinGapSeconds
	}
	if c.MinPassageSeconds <= 0 {
		c.MinPassageSeconds = defaultMinPassageSeconds
	}
}

// Passage is one candidate segment of a file, expressed as absolute ticks.
type Passage struct {
	StartTick tick.Tick
	EndTick   tick.Tick
}

// Detect splits samples (interleaved stereo, at sampleRate) into candidate
// passages wherever a run of consecutive silent windows lasts at least
// MinGapSeconds. Adjacent passages shorter than MinPassageSeconds are
// merged into their following neighbour, since a lone quiet breath between
// two sections of the same track shouldn't produce a throwaway passage.
// fileStart is the absolute tick this buffer's first frame corresponds to.
func Detect(samples []float32, sampleRate int, fileStart tick.Tick, cfg Config) []Passage {
	cfg.applyDefaults()
	totalFrames := len(samples) / 2
	if totalFrames == 0 || sampleRate <= 0 {
		return nil
	}

	mono := downmix(samples)
	windowFrames := sampleRate * cfg.WindowMs / 1000
	if windowFrames < 1 {
		windowFrames = 1
	}
	windowsDB := windowRMSdB(mono, windowFrames)

	minGapWindows := int(cfg.MinGapSeconds * float64(sampleRate) / float64(windowFrames))
	if minGapWindows < 1 {
		minGapWindows = 1
	}

	cutFrames := gapMidpoints(windowsDB, windowFrames, cfg.SilenceThresholdDB, minGapWindows)

	bounds := append([]int{0}, cutFrames...)
	bounds = append(bounds, totalFrames)
	bounds = mergeShortSpans(bounds, sampleRate, cfg.MinPassageSeconds)

	passages := make([]Passage, 0, len(bounds)-1)
	for i := 0; i < len(bounds)-1; i++ {
		passages = append(passages, Passage{
			StartTick: fileStart + tick.FromSampleIndex(int64(bounds[i]), sampleRate),
			EndTick:   fileStart + tick.FromSampleIndex(int64(bounds[i+1]), sampleRate),
		})
	}
	return passages
}

// gapMidpoints returns, for every run of at least minGapWindows consecutive
// silent windows, the sample-frame index at the run's midpoint — the cut
// point that splits the gap evenly between the passage before and after it.
func gapMidpoints(windowsDB []float64, windowFrames int, silenceThresholdDB float64, minGapWindows int) []int {
	var cuts []int
	runStart := -1
	for i := 0; i <= len(windowsDB); i++ {
		silent := i < len(windowsDB) && windowsDB[i] <= silenceThresholdDB
		if silent {
			if runStart == -1 {
				runStart = i
			}
			continue
		}
		if runStart != -1 {
			runLen := i - runStart
			if runLen >= minGapWindows {
				midWindow := runStart + runLen/2
				cuts = append(cuts, midWindow*windowFrames)
			}
			runStart = -1
		}
	}
	return cuts
}

// mergeShortSpans drops any interior boundary that would leave either
// adjacent span shorter than minPassageSeconds, preferring to extend the
// earlier passage rather than produce a sliver.
func mergeShortSpans(bounds []int, sampleRate int, minPassageSeconds float64) []int {
	minFrames := int(minPassageSeconds * float64(sampleRate))
	if minFrames <= 0 || len(bounds) <= 2 {
		return bounds
	}

	out := []int{bounds[0]}
	for i := 1; i < len(bounds)-1; i++ {
		if bounds[i]-out[len(out)-1] < minFrames {
			continue // merge this short leading span into the next one
		}
		out = append(out, bounds[i])
	}
	out = append(out, bounds[len(bounds)-1])

	// If the final span came out too short, fold it into its predecessor
	// rather than emit a trailing sliver.
	if len(out) > 2 && out[len(out)-1]-out[len(out)-2] < minFrames {
		out = append(out[:len(out)-2], out[len(out)-1])
	}
	return out
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
