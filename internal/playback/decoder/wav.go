package decoder

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	wkmperrors "github.com/wkmp/core/internal/errors"
)

type wavDecoder struct {
	file       *os.File
	dec        *wav.Decoder
	divisor    float32
	sampleRate int
	channels   int

	startSamples int64
	endSamples   int64 // -1 means to end of file
	consumed     int64 // native-rate samples consumed so far (post-seek)
	state        State
}

func openWAV(path string, startMs, endMs int64) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryFileIO).Context("operation", "open_wav").Context("path", path).Build()
	}

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		_ = f.Close()
		return nil, wkmperrors.Newf("not a valid WAV file").Component("decoder").Category(wkmperrors.CategoryDecode).Context("path", path).Build()
	}

	var divisor float32
	switch dec.BitDepth {
	case 8:
		divisor = 128.0
	case 16:
		divisor = 32768.0
	case 24:
		divisor = 8388608.0
	case 32:
		divisor = 2147483648.0
	default:
		_ = f.Close()
		return nil, wkmperrors.Newf("unsupported WAV bit depth %d", dec.BitDepth).Component("decoder").Category(wkmperrors.CategoryDecode).Context("path", path).Build()
	}

	sampleRate := int(dec.SampleRate)
	startSamples := int64(float64(startMs) / 1000.0 * float64(sampleRate))
	var endSamples int64 = -1
	if endMs > 0 {
		endSamples = int64(float64(endMs) / 1000.0 * float64(sampleRate))
	}

	wd := &wavDecoder{
		file: f, dec: dec, divisor: divisor,
		sampleRate: sampleRate, channels: int(dec.NumChans),
		startSamples: startSamples, endSamples: endSamples,
		state: NotStarted,
	}

	if startSamples > 0 {
		if err := wd.discard(startSamples); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	wd.state = Decoding
	return wd, nil
}

func (d *wavDecoder) discard(nativeSamples int64) error {
	const chunk = 65536
	remaining := nativeSamples
	buf := &audio.IntBuffer{Data: make([]int, chunk*d.channels), Format: &audio.Format{SampleRate: d.sampleRate, NumChannels: d.channels}}
	for remaining > 0 {
		want := int64(chunk)
		if remaining < want {
			want = remaining
		}
		buf.Data = buf.Data[:want*int64(d.channels)]
		n, err := d.dec.PCMBuffer(buf)
		if err != nil {
			return wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryDecode).Context("operation", "seek_discard").Build()
		}
		if n == 0 {
			return nil // file shorter than requested seek point
		}
		framesRead := int64(n / d.channels)
		remaining -= framesRead
	}
	return nil
}

func (d *wavDecoder) DecodeChunk(durationMs int) (ChunkResult, error) {
	if d.state == Finished {
		return ChunkResult{SampleRate: d.sampleRate, Done: true}, nil
	}

	framesWanted := int64(float64(durationMs) / 1000.0 * float64(d.sampleRate))
	if d.endSamples >= 0 {
		remaining := d.endSamples - (d.startSamples + d.consumed)
		if remaining <= 0 {
			d.state = Finished
			return ChunkResult{SampleRate: d.sampleRate, Done: true}, nil
		}
		framesWanted = min64(framesWanted, remaining)
	}

	buf := &audio.IntBuffer{Data: make([]int, framesWanted*int64(d.channels)), Format: &audio.Format{SampleRate: d.sampleRate, NumChannels: d.channels}}
	n, err := d.dec.PCMBuffer(buf)
	if err != nil {
		return ChunkResult{}, wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryDecode).Context("operation", "decode_chunk").Build()
	}
	if n == 0 {
		d.state = Finished
		return ChunkResult{SampleRate: d.sampleRate, Done: true}, nil
	}

	framesRead := n / d.channels
	d.consumed += int64(framesRead)

	mono := make([]float32, 0)
	stereo := make([]float32, 0, framesRead*2)
	switch d.channels {
	case 1:
		mono = make([]float32, framesRead)
		for i := 0; i < framesRead; i++ {
			mono[i] = float32(buf.Data[i]) / d.divisor
		}
		stereo = upmixMono(mono)
	default: // stereo or multi-channel: keep first two channels interleaved
		for i := 0; i < framesRead; i++ {
			l := float32(buf.Data[i*d.channels]) / d.divisor
			r := float32(buf.Data[i*d.channels+1]) / d.divisor
			stereo = append(stereo, l, r)
		}
	}

	done := d.endSamples >= 0 && d.startSamples+d.consumed >= d.endSamples
	if done {
		d.state = Finished
	}
	return ChunkResult{Samples: stereo, SampleRate: d.sampleRate, Done: false}, nil
}

func (d *wavDecoder) SampleRate() int { return d.sampleRate }
func (d *wavDecoder) State() State    { return d.state }
func (d *wavDecoder) Close() error    { return d.file.Close() }

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
