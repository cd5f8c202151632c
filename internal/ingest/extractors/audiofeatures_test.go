package extractors

import (
	"context"
	"math"
	"testing"
)

func sineWave(freq float64, sampleRate, frames int) []float32 {
	out := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		out[2*i] = v
		out[2*i+1] = v
	}
	return out
}

func TestAudioFeaturesFailsOnEmptyPCM(t *testing.T) {
	e := NewAudioFeatures()
	_, err := e.Extract(context.Background(), Context{})
	if err == nil {
		t.Fatal("expected error for empty PCM")
	}
}

func TestAudioFeaturesProducesClampedVector(t *testing.T) {
	e := NewAudioFeatures()
	samples := sineWave(440, 44100, 44100)
	result, err := e.Extract(context.Background(), Context{PCM: samples, SampleRate: 44100})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if result.Flavor == nil {
		t.Fatal("expected flavor opinion")
	}
	for c, v := range result.Flavor.Vector {
		if v < 0 || v > 1 {
			t.Errorf("component %s out of range: %v", c, v)
		}
	}
}

func TestRMSOfSilenceIsZero(t *testing.T) {
	samples := make([]float32, 1000)
	if rmsOf(samples) != 0 {
		t.Errorf("expected zero RMS for silence")
	}
}

func TestZeroCrossingRateOfAlternatingSignal(t *testing.T) {
	samples := []float32{1, -1, 1, -1, 1}
	zcr := zeroCrossingRate(samples)
	if zcr != 1.0 {
		t.Errorf("expected ZCR 1.0 for fully alternating signal, got %v", zcr)
	}
}

func TestToMonoAveragesChannels(t *testing.T) {
	stereo := []float32{1, -1, 0.5, 0.5}
	mono := toMono(stereo)
	if len(mono) != 2 {
		t.Fatalf("expected 2 mono samples, got %d", len(mono))
	}
	if mono[0] != 0 {
		t.Errorf("expected first sample averaged to 0, got %v", mono[0])
	}
	if mono[1] != 0.5 {
		t.Errorf("expected second sample averaged to 0.5, got %v", mono[1])
	}
}
