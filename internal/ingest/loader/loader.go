// Package loader implements the ingest pipeline's Audio Loader (spec
// §4.12): open a file, probe its codec, decode the packets inside a tick
// range, and hand back float32 stereo PCM resampled to the pipeline's
// target analysis rate. It is a thin orchestration layer over the same
// decoder and resampler packages the playback core uses — ingest and
// playback decode audio identically, they just consume the result
// differently (a full in-memory buffer for analysis vs. a streaming chain).
package loader

import (
	"github.com/wkmp/core/internal/playback/decoder"
	"github.com/wkmp/core/internal/playback/resampler"
	"github.com/wkmp/core/internal/tick"
)

// defaultTargetSampleRate is the rate every extractor and analyzer downstream
// of the loader assumes its PCM arrives at.
const defaultTargetSampleRate = 44100

// decodeChunkMs mirrors the playback chain's own per-call decode size
// (spec §4.2); there's no reason for ingest to pull in smaller or larger
// increments than playback already does.
const decodeChunkMs = 1000

// Result is one file region's fully decoded, resampled PCM plus the
// bookkeeping needed to translate extractor/analyzer offsets back to
// absolute ticks.
type Result struct {
	Samples        []float32 // interleaved stereo, at SampleRate
	SampleRate     int       // always defaultTargetSampleRate unless overridden via Config
	NativeRate     int       // the file's own sample rate, before resampling
	StartTick      tick.Tick // absolute tick this buffer's first frame corresponds to
	EndTick        tick.Tick // absolute tick this buffer's last frame corresponds to (exclusive)
	TruncatedEarly bool      // true if a decoded chunk carried EndTickMs; the internal/playback/decoder decoders never set it, so this stays false
}

// Config parameterizes one Load call.
type Config struct {
	TargetSampleRate int // 0 uses defaultTargetSampleRate
}

// Load opens path, decodes every packet between startTick and endTick, and
// resamples the result (mono upmixed to stereo by the decoder layer already)
// to the target rate. endTick of 0 means "to end of file."
func Load(path string, startTick, endTick tick.Tick, cfg Config) (Result, error) {
	targetRate := cfg.TargetSampleRate
	if targetRate <= 0 {
		targetRate = defaultTargetSampleRate
	}

	startMs := startTick.ToMillis()
	var endMs int64
	if endTick > 0 {
		endMs = endTick.ToMillis()
	}

	dec, err := decoder.Open(path, startMs, endMs)
	if err != nil {
		return Result{}, err
	}
	defer dec.Close()

	nativeRate := dec.SampleRate()
	rs := resampler.New(nativeRate, targetRate, 2, nativeRate/2)

	var out []float32
	truncated := false

	for {
		chunk, err := dec.DecodeChunk(decodeChunkMs)
		if err != nil {
			return Result{}, err
		}
		if len(chunk.Samples) > 0 {
			out = append(out, rs.ProcessChunk(chunk.Samples)...)
		}
		if chunk.EndTickMs != nil {
			truncated = true
		}
		if chunk.Done {
			break
		}
	}

	actualEndTick := startTick + tick.FromSampleIndex(int64(len(out)/2), targetRate)
	return Result{
		Samples:        out,
		SampleRate:     targetRate,
		NativeRate:     nativeRate,
		StartTick:      startTick,
		EndTick:        actualEndTick,
		TruncatedEarly: truncated,
	}, nil
}
