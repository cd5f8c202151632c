// Package fader applies a passage's baked-in fade envelope to decoded,
// resampled samples before they reach the ring buffer (spec §4.4). The
// mixer performs zero fade arithmetic at runtime — everything it sums is
// already at its final gain.
package fader

import (
	"github.com/wkmp/core/internal/curve"
	"github.com/wkmp/core/internal/tick"
)

// Fader computes the gain envelope for one passage's absolute tick bounds
// and applies it to interleaved stereo frames as they stream past.
type Fader struct {
	start, fadeIn, fadeOut, end tick.Tick
	fadeInCurve, fadeOutCurve   curve.FadeCurve
	sampleRate                  int

	position tick.Tick // absolute tick of the next frame to be processed
}

// New constructs a Fader for frames arriving at sampleRate, which sets how
// many ticks each processed frame advances the position. end must be the passage's absolute end tick (already
// resolved from file length if the passage had no explicit end).
func New(start, fadeIn, fadeOut, end tick.Tick, fadeInCurve, fadeOutCurve curve.FadeCurve, sampleRate int) *Fader {
	return &Fader{
		start: start, fadeIn: fadeIn, fadeOut: fadeOut, end: end,
		fadeInCurve: fadeInCurve, fadeOutCurve: fadeOutCurve,
		sampleRate: sampleRate,
		position:   start,
	}
}

// Seek repositions the fader's internal tick cursor, used when the engine
// reseeks a passage mid-play (spec §4.9 seek()).
func (f *Fader) Seek(position tick.Tick) { f.position = position }

// Gain returns the envelope multiplier at absolute tick t: 0 outside
// [start, end]; ramping via fadeInCurve over [start, fadeIn]; 1.0 over
// [fadeIn, fadeOut]; ramping via fadeOutCurve over [fadeOut, end].
func (f *Fader) Gain(t tick.Tick) float32 {
	switch {
	case t < f.start || t > f.end:
		return 0
	case t < f.fadeIn:
		if f.fadeIn <= f.start {
			return 1
		}
		p := float32(t-f.start) / float32(f.fadeIn-f.start)
		return f.fadeInCurve.CalculateFadeIn(p)
	case t < f.fadeOut:
		return 1
	default: // fadeOut <= t <= end
		if f.end <= f.fadeOut {
			return 1
		}
		p := float32(t-f.fadeOut) / float32(f.end-f.fadeOut)
		return f.fadeOutCurve.CalculateFadeOut(p)
	}
}

// PassThrough reports whether this chunk's tick range never enters a fade
// region, letting the chain skip the per-frame gain loop entirely.
func (f *Fader) PassThrough(frames int) bool {
	chunkEnd := f.position + tick.FromSampleIndex(int64(frames), f.sampleRate)
	inFadeIn := f.position < f.fadeIn
	inFadeOut := chunkEnd > f.fadeOut
	return !inFadeIn && !inFadeOut
}

// ProcessChunk applies the envelope to interleaved stereo samples starting
// at the fader's current tick position, advancing that position by the
// number of frames processed.
func (f *Fader) ProcessChunk(samples []float32) []float32 {
	frames := len(samples) / 2
	if frames == 0 {
		return samples
	}

	if f.PassThrough(frames) {
		f.position += tick.FromSampleIndex(int64(frames), f.sampleRate)
		return samples
	}

	out := make([]float32, len(samples))
	for i := 0; i < frames; i++ {
		g := f.Gain(f.position + tick.FromSampleIndex(int64(i), f.sampleRate))
		out[2*i] = samples[2*i] * g
		out[2*i+1] = samples[2*i+1] * g
	}
	f.position += tick.FromSampleIndex(int64(frames), f.sampleRate)
	return out
}
