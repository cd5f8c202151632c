package resampler

import (
	"math"
	"testing"
)

func TestPassThroughWhenRatesMatch(t *testing.T) {
	r := New(44100, 44100, 2, 4096)
	in := []float32{0.1, 0.2, 0.3, 0.4}
	out := r.ProcessChunk(in)
	if len(out) != len(in) {
		t.Fatalf("pass-through length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("pass-through[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func dcSignal(frames, channels int, value float32) []float32 {
	out := make([]float32, frames*channels)
	for i := range out {
		out[i] = value
	}
	return out
}

func TestDCSignalPreservedAcrossResample(t *testing.T) {
	r := New(44100, 48000, 2, 4096)
	in := dcSignal(44100, 2, 0.5)

	var out []float32
	for off := 0; off < len(in); off += 2048 {
		end := off + 2048
		if end > len(in) {
			end = len(in)
		}
		out = append(out, r.ProcessChunk(in[off:end])...)
	}

	if len(out) < 1000 {
		t.Fatalf("expected substantial output, got %d samples", len(out))
	}
	// skip the filter's transient startup region
	for i := len(out) / 4; i < len(out); i++ {
		if math.Abs(float64(out[i]-0.5)) > 0.02 {
			t.Fatalf("sample %d = %v, want close to 0.5", i, out[i])
		}
	}
}

func TestOutputLengthApproximatesRatio(t *testing.T) {
	r := New(44100, 48000, 1, 4096)
	in := make([]float32, 44100)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 44100))
	}
	var out []float32
	for off := 0; off < len(in); off += 4096 {
		end := off + 4096
		if end > len(in) {
			end = len(in)
		}
		out = append(out, r.ProcessChunk(in[off:end])...)
	}

	want := 48000
	diff := len(out) - want
	if diff < 0 {
		diff = -diff
	}
	if diff > defaultTaps*2 {
		t.Errorf("output length = %d, want close to %d", len(out), want)
	}
}

func TestConcatenationInvariantHoldsAcrossChunkBoundaries(t *testing.T) {
	channels := 1
	in := make([]float32, 8000)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 300 * float64(i) / 16000))
	}

	rWhole := New(16000, 32000, channels, 8192)
	whole := rWhole.ProcessChunk(in)

	rSplit := New(16000, 32000, channels, 8192)
	var split []float32
	split = append(split, rSplit.ProcessChunk(in[:1000])...)
	split = append(split, rSplit.ProcessChunk(in[1000:3333])...)
	split = append(split, rSplit.ProcessChunk(in[3333:8000])...)

	if len(whole) != len(split) {
		t.Fatalf("output length differs: whole=%d split=%d", len(whole), len(split))
	}
	for i := range whole {
		if math.Abs(float64(whole[i]-split[i])) > 1e-5 {
			t.Fatalf("sample %d differs: whole=%v split=%v", i, whole[i], split[i])
		}
	}
}

func TestKernelZeroOutsideSupport(t *testing.T) {
	if kernel(halfTaps) != 0 {
		t.Error("kernel at +halfTaps should be zero")
	}
	if kernel(-halfTaps) != 0 {
		t.Error("kernel at -halfTaps should be zero")
	}
	if kernel(0) == 0 {
		t.Error("kernel at 0 should be nonzero (peak of sinc)")
	}
}
