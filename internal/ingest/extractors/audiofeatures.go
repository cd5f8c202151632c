package extractors

import (
	"context"
	"math"

	wkmperrors "github.com/wkmp/core/internal/errors"
	"github.com/wkmp/core/internal/ingest/flavor"
)

const (
	dftWindowSize = 1024
	dftBins       = 64 // only the lowest bins matter for a centroid/flatness estimate
)

// AudioFeatures computes a handful of cheap signal-level statistics
// directly from decoded PCM (spec §4.13, 0.65 confidence): RMS energy,
// crest factor, zero-crossing rate, a spectral-centroid approximation,
// spectral flatness, and peak level, each normalised to [0, 1].
type AudioFeatures struct{}

func NewAudioFeatures() *AudioFeatures { return &AudioFeatures{} }

func (e *AudioFeatures) Name() string            { return "audio-derived-features" }
func (e *AudioFeatures) BaseConfidence() float64 { return 0.65 }

func (e *AudioFeatures) Extract(_ context.Context, pctx Context) (Result, error) {
	if len(pctx.PCM) == 0 {
		return Result{}, wkmperrors.Newf("no PCM samples supplied").
			Component("audio-derived-features").
			Category(wkmperrors.CategoryExtraction).
			Build()
	}
	mono := toMono(pctx.PCM)

	rms := rmsOf(mono)
	peak := peakOf(mono)
	crest := 0.0
	if rms > 0 {
		crest = peak / rms
	}
	zcr := zeroCrossingRate(mono)
	centroid, flatness := spectralStats(mono, pctx.SampleRate)

	vec := flavor.Vector{
		// Higher crest factor (more dynamic range) reads as less "party"
		// and less danceable — a compressed, loud track reads as more so.
		flavor.Danceable: clamp01(1 - normalizeCrest(crest)),
		flavor.Energetic: clamp01(rms * 4),
		flavor.Acoustic:  clamp01(1 - centroid),
		flavor.Tonal:     clamp01(1 - flatness),
		flavor.Happy:     clamp01(centroid),
		flavor.Party:     clamp01(zcr * 2),
	}.Clamp01()

	return Result{
		Source:     e.Name(),
		Confidence: e.BaseConfidence(),
		Flavor: &flavor.Opinion{
			Source:     e.Name(),
			Vector:     vec,
			Confidence: e.BaseConfidence(),
		},
	}, nil
}

func toMono(interleavedStereo []float32) []float32 {
	mono := make([]float32, len(interleavedStereo)/2)
	for i := range mono {
		mono[i] = (interleavedStereo[2*i] + interleavedStereo[2*i+1]) / 2
	}
	return mono
}

func rmsOf(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range samples {
		sumSq += float64(s) * float64(s)
	}
	return math.Sqrt(sumSq / float64(len(samples)))
}

func peakOf(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

func zeroCrossingRate(samples []float32) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}

// normalizeCrest squashes an unbounded crest-factor ratio into [0, 1] with
// a soft knee around a ratio of 10 (a typical loud-to-moderately-dynamic
// boundary for mastered music).
func normalizeCrest(crest float64) float64 {
	return clamp01(crest / (crest + 10))
}

// spectralStats estimates a spectral centroid (normalised to the Nyquist
// frequency) and a spectral flatness (geometric/arithmetic mean ratio of
// the magnitude spectrum) by averaging a direct per-bin DFT over
// non-overlapping windows. This is intentionally a coarse approximation —
// only the lowest dftBins matter for the centroid/flatness measures the
// flavor space needs, so a full FFT is unnecessary.
func spectralStats(samples []float32, sampleRate int) (centroid, flatness float64) {
	if len(samples) < dftWindowSize || sampleRate <= 0 {
		return 0, 0
	}

	mag := make([]float64, dftBins)
	windows := 0
	for start := 0; start+dftWindowSize <= len(samples); start += dftWindowSize {
		windows++
		for k := 0; k < dftBins; k++ {
			var re, im float64
			for n := 0; n < dftWindowSize; n++ {
				angle := -2 * math.Pi * float64(k) * float64(n) / float64(dftWindowSize)
				s := float64(samples[start+n])
				re += s * math.Cos(angle)
				im += s * math.Sin(angle)
			}
			mag[k] += math.Hypot(re, im)
		}
	}
	if windows == 0 {
		return 0, 0
	}
	for k := range mag {
		mag[k] /= float64(windows)
	}

	var weightedSum, magSum, logSum float64
	nonZero := 0
	for k, m := range mag {
		weightedSum += float64(k) * m
		magSum += m
		if m > 1e-9 {
			logSum += math.Log(m)
			nonZero++
		}
	}
	if magSum > 0 {
		centroid = (weightedSum / magSum) / float64(dftBins)
	}
	if nonZero > 0 && magSum > 0 {
		geoMean := math.Exp(logSum / float64(nonZero))
		arithMean := magSum / float64(dftBins)
		if arithMean > 0 {
			flatness = clamp01(geoMean / arithMean)
		}
	}
	return centroid, flatness
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
