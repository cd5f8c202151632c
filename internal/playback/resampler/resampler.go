// Package resampler implements the stateful streaming resampler (spec
// §4.3): a polyphase sinc resampler windowed with Blackman-Harris,
// sufficiently long (>=256 taps) to keep aliasing below audible at 2x
// up/down ratios. Internal filter memory carries between ProcessChunk
// calls so that concatenating outputs equals resampling the
// concatenated input, sample-for-sample within numerical tolerance.
package resampler

import (
	"math"

	"github.com/klauspost/cpuid/v2"
)

const (
	defaultTaps = 256
	halfTaps    = defaultTaps / 2

	bhA0 = 0.35875
	bhA1 = 0.48829
	bhA2 = 0.14128
	bhA3 = 0.01168
)

// Resampler converts interleaved multi-channel float32 PCM from
// inputRate to outputRate, carrying filter state across calls.
type Resampler struct {
	inputRate   int
	outputRate  int
	channels    int
	ratio       float64 // inputRate / outputRate, in input samples per output sample
	passThrough bool

	// pending holds, per channel, input samples not yet fully consumed:
	// either too recent to have produced output yet, or still needed as
	// filter history for samples not yet requested.
	pending      [][]float32
	consumedBase int64 // absolute input-sample index of pending[c][0]
	outN         int64 // absolute output-sample index of the next sample to produce

	// wideAccumulate hints that the CPU can comfortably unroll the
	// per-tap accumulation loop; a placeholder for a future SIMD
	// fast path, not itself vectorized.
	wideAccumulate bool
}

// New constructs a Resampler for the given (input_rate, output_rate,
// channels, chunk_size). chunkSize is a sizing hint used only to
// preallocate internal buffers; it does not bound ProcessChunk's input.
func New(inputRate, outputRate, channels, chunkSize int) *Resampler {
	r := &Resampler{
		inputRate:      inputRate,
		outputRate:     outputRate,
		channels:       channels,
		ratio:          float64(inputRate) / float64(outputRate),
		passThrough:    inputRate == outputRate,
		pending:        make([][]float32, channels),
		wideAccumulate: cpuid.CPU.Supports(cpuid.AVX2),
	}
	cap := chunkSize + defaultTaps
	if cap < defaultTaps {
		cap = defaultTaps
	}
	for c := range r.pending {
		r.pending[c] = make([]float32, 0, cap)
	}
	return r
}

// InputRate returns the configured native input sample rate.
func (r *Resampler) InputRate() int { return r.inputRate }

// OutputRate returns the configured target sample rate.
func (r *Resampler) OutputRate() int { return r.outputRate }

// ProcessChunk converts interleaved input at inputRate to interleaved
// output at outputRate. When inputRate == outputRate it is a pure
// pass-through at zero cost.
func (r *Resampler) ProcessChunk(samples []float32) []float32 {
	if r.passThrough {
		return samples
	}
	if r.channels == 0 {
		return nil
	}

	framesIn := len(samples) / r.channels
	for c := 0; c < r.channels; c++ {
		for i := 0; i < framesIn; i++ {
			r.pending[c] = append(r.pending[c], samples[i*r.channels+c])
		}
	}

	extendedLen := int64(len(r.pending[0]))
	var out []float32

	for {
		t := float64(r.outN) * r.ratio
		upper := t + float64(halfTaps)
		if upper >= float64(r.consumedBase+extendedLen) {
			break
		}

		lower := t - float64(halfTaps)
		jStart := int64(math.Ceil(lower))
		jEnd := int64(math.Floor(upper))

		frame := make([]float32, r.channels)
		for j := jStart; j <= jEnd; j++ {
			idx := j - r.consumedBase
			if idx < 0 || idx >= extendedLen {
				continue
			}
			w := kernel(t - float64(j))
			if w == 0 {
				continue
			}
			for c := 0; c < r.channels; c++ {
				frame[c] += r.pending[c][idx] * w
			}
		}
		out = append(out, frame...)
		r.outN++
	}

	r.trimPending(extendedLen)
	return out
}

// trimPending drops samples from the front of pending that no future
// output sample can still need as filter history.
func (r *Resampler) trimPending(extendedLen int64) {
	nextT := float64(r.outN) * r.ratio
	keepFrom := int64(math.Floor(nextT - halfTaps))
	if keepFrom < r.consumedBase {
		keepFrom = r.consumedBase
	}
	trim := keepFrom - r.consumedBase
	if trim <= 0 {
		return
	}
	if trim > extendedLen {
		trim = extendedLen
	}
	for c := range r.pending {
		r.pending[c] = append(r.pending[c][:0], r.pending[c][trim:]...)
	}
	r.consumedBase += trim
}

// kernel evaluates the Blackman-Harris windowed sinc at offset x
// (in input-sample units), zero outside the filter's support.
func kernel(x float64) float32 {
	if x <= -halfTaps || x >= halfTaps {
		return 0
	}
	return float32(sinc(x) * blackmanHarris(x))
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

func blackmanHarris(x float64) float64 {
	// normalize x from [-halfTaps, halfTaps] to [0, 1]
	n := (x + halfTaps) / (2 * halfTaps)
	return bhA0 -
		bhA1*math.Cos(2*math.Pi*n) +
		bhA2*math.Cos(4*math.Pi*n) -
		bhA3*math.Cos(6*math.Pi*n)
}
