package fader

import (
	"testing"

	"github.com/wkmp/core/internal/curve"
	"github.com/wkmp/core/internal/tick"
)

func TestGainZeroOutsideBounds(t *testing.T) {
	f := New(100, 110, 190, 200, curve.Exponential, curve.Logarithmic, 44100)
	if g := f.Gain(50); g != 0 {
		t.Errorf("before start: gain = %v, want 0", g)
	}
	if g := f.Gain(250); g != 0 {
		t.Errorf("after end: gain = %v, want 0", g)
	}
}

func TestGainFullyOpenBetweenFades(t *testing.T) {
	f := New(100, 110, 190, 200, curve.Linear, curve.Linear, 44100)
	if g := f.Gain(150); g != 1 {
		t.Errorf("mid-passage: gain = %v, want 1", g)
	}
}

func TestGainRampsMonotonicallyDuringFadeIn(t *testing.T) {
	f := New(0, 100, 900, 1000, curve.Linear, curve.Linear, 44100)
	prev := float32(-1)
	for at := tick.Tick(0); at <= 100; at += 10 {
		g := f.Gain(at)
		if g < prev {
			t.Fatalf("fade-in gain decreased at tick %d: %v < %v", at, g, prev)
		}
		prev = g
	}
	if g := f.Gain(0); g != 0 {
		t.Errorf("gain at start of fade-in = %v, want 0", g)
	}
	if g := f.Gain(100); g != 1 {
		t.Errorf("gain at end of fade-in = %v, want 1", g)
	}
}

func TestPassThroughSkipsGainLoopOutsideFadeRegions(t *testing.T) {
	frame := func(n int64) tick.Tick { return tick.FromSampleIndex(n, 44100) }
	f := New(0, frame(100), frame(900), frame(1000), curve.Linear, curve.Linear, 44100)
	f.Seek(frame(200))
	if !f.PassThrough(50) {
		t.Error("expected pass-through in the fully-open middle region")
	}
	f.Seek(frame(80))
	if f.PassThrough(50) {
		t.Error("expected non-pass-through when the chunk crosses into fade-in")
	}
}

func TestProcessChunkAppliesEnvelope(t *testing.T) {
	frame := func(n int64) tick.Tick { return tick.FromSampleIndex(n, 44100) }
	f := New(0, frame(10), frame(90), frame(100), curve.Linear, curve.Linear, 44100)
	samples := make([]float32, 20) // 10 frames
	for i := range samples {
		samples[i] = 1.0
	}
	out := f.ProcessChunk(samples)
	if out[0] != 0 {
		t.Errorf("first frame at tick 0 should be silent, got %v", out[0])
	}
	if out[len(out)-2] <= 0 {
		t.Errorf("last frame approaching fade-in end should have nonzero gain, got %v", out[len(out)-2])
	}
}
