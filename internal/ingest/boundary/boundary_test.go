package boundary

import (
	"math"
	"testing"

	"github.com/wkmp/core/internal/tick"
)

const testSampleRate = 44100

func toneSeconds(sampleRate int, seconds float64) []float32 {
	frames := int(float64(sampleRate) * seconds)
	out := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		v := float32(math.Sin(2 * math.Pi * 440 * float64(i) / float64(sampleRate)))
		out[2*i] = v
		out[2*i+1] = v
	}
	return out
}

func silenceSeconds(sampleRate int, seconds float64) []float32 {
	frames := int(float64(sampleRate) * seconds)
	return make([]float32, frames*2)
}

func concat(chunks ...[]float32) []float32 {
	var out []float32
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func TestDetectEmptyReturnsNil(t *testing.T) {
	got := Detect(nil, testSampleRate, tick.Tick(0), Config{})
	if got != nil {
		t.Errorf("expected nil for empty input, got %+v", got)
	}
}

func TestDetectNoGapYieldsSinglePassage(t *testing.T) {
	samples := toneSeconds(testSampleRate, 10)
	got := Detect(samples, testSampleRate, tick.Tick(0), Config{})
	if len(got) != 1 {
		t.Fatalf("expected exactly one passage with no silence, got %d: %+v", len(got), got)
	}
	if got[0].StartTick != 0 {
		t.Errorf("expected passage to start at 0, got %v", got[0].StartTick)
	}
}

func TestDetectSplitsOnSustainedGap(t *testing.T) {
	samples := concat(
		toneSeconds(testSampleRate, 8),
		silenceSeconds(testSampleRate, 3),
		toneSeconds(testSampleRate, 8),
	)
	cfg := Config{MinPassageSeconds: 1}
	got := Detect(samples, testSampleRate, tick.Tick(0), cfg)
	if len(got) != 2 {
		t.Fatalf("expected two passages split by the silent gap, got %d: %+v", len(got), got)
	}
	if got[0].EndTick != got[1].StartTick {
		t.Errorf("expected passages to be contiguous, got end=%v start=%v", got[0].EndTick, got[1].StartTick)
	}
}

func TestDetectIgnoresBriefGap(t *testing.T) {
	samples := concat(
		toneSeconds(testSampleRate, 8),
		silenceSeconds(testSampleRate, 0.2), // well under MinGapSeconds default of 2s
		toneSeconds(testSampleRate, 8),
	)
	got := Detect(samples, testSampleRate, tick.Tick(0), Config{})
	if len(got) != 1 {
		t.Errorf("expected a brief gap to not split the passage, got %d passages", len(got))
	}
}

func TestDetectMergesShortTrailingSpan(t *testing.T) {
	samples := concat(
		toneSeconds(testSampleRate, 8),
		silenceSeconds(testSampleRate, 3),
		toneSeconds(testSampleRate, 1), // shorter than MinPassageSeconds
	)
	cfg := Config{MinPassageSeconds: 5}
	got := Detect(samples, testSampleRate, tick.Tick(0), cfg)
	if len(got) != 1 {
		t.Fatalf("expected the short trailing span to merge back in, got %d passages: %+v", len(got), got)
	}
}

func TestDetectOffsetsAreAbsoluteFromFileStart(t *testing.T) {
	samples := toneSeconds(testSampleRate, 5)
	fileStart := tick.Tick(12345)
	got := Detect(samples, testSampleRate, fileStart, Config{})
	if len(got) != 1 || got[0].StartTick != fileStart {
		t.Errorf("expected passage start to equal fileStart, got %+v", got)
	}
}

func TestGapMidpointsFindsCenterOfRun(t *testing.T) {
	windowsDB := []float64{0, 0, -80, -80, -80, -80, 0, 0}
	cuts := gapMidpoints(windowsDB, 100, -50, 4)
	if len(cuts) != 1 {
		t.Fatalf("expected one cut, got %d: %v", len(cuts), cuts)
	}
	if cuts[0] != 400 { // midWindow = 2 + 4/2 = 4, times windowFrames 100
		t.Errorf("expected cut at frame 400, got %d", cuts[0])
	}
}
