package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/wkmp/core/internal/tick"
)

func writeTestWAV(t *testing.T, sampleRate, channels, frames int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wav")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create temp wav: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	data := make([]int, frames*channels)
	for i := range data {
		data[i] = (i % 2000) - 1000
	}
	buf := &audio.IntBuffer{Data: data, Format: &audio.Format{SampleRate: sampleRate, NumChannels: channels}}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav encoder: %v", err)
	}
	return path
}

func TestLoadResamplesToTargetRate(t *testing.T) {
	path := writeTestWAV(t, 22050, 2, 22050) // 1 second native

	result, err := Load(path, 0, 0, Config{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.SampleRate != defaultTargetSampleRate {
		t.Errorf("SampleRate = %d, want %d", result.SampleRate, defaultTargetSampleRate)
	}
	if result.NativeRate != 22050 {
		t.Errorf("NativeRate = %d, want 22050", result.NativeRate)
	}

	gotFrames := len(result.Samples) / 2
	wantFrames := defaultTargetSampleRate // ~1 second, resampler introduces small edge effects
	if diff := gotFrames - wantFrames; diff < -100 || diff > 100 {
		t.Errorf("got %d resampled frames, want close to %d", gotFrames, wantFrames)
	}
}

func TestLoadHonorsTickRange(t *testing.T) {
	path := writeTestWAV(t, 44100, 2, 44100*2) // 2 seconds native

	start := tick.FromSeconds(0.5)
	end := tick.FromSeconds(1.5)
	result, err := Load(path, start, end, Config{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	gotFrames := len(result.Samples) / 2
	wantFrames := defaultTargetSampleRate // ~1 second window
	if diff := gotFrames - wantFrames; diff < -200 || diff > 200 {
		t.Errorf("got %d frames for a 1s window, want close to %d", gotFrames, wantFrames)
	}
	if result.StartTick != start {
		t.Errorf("StartTick = %v, want %v", result.StartTick, start)
	}
}

func TestLoadUpmixesMono(t *testing.T) {
	path := writeTestWAV(t, 44100, 1, 4410)

	result, err := Load(path, 0, 0, Config{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(result.Samples) == 0 {
		t.Fatal("expected non-empty output for a mono source")
	}
	if len(result.Samples)%2 != 0 {
		t.Error("output must always be interleaved stereo, even from a mono source")
	}
}

func TestLoadCustomTargetRate(t *testing.T) {
	path := writeTestWAV(t, 44100, 2, 4410)

	result, err := Load(path, 0, 0, Config{TargetSampleRate: 48000})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", result.SampleRate)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.wav"), 0, 0, Config{}); err == nil {
		t.Error("expected an error opening a nonexistent file")
	}
}
