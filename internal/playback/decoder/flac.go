package decoder

import (
	"io"
	"os"

	"github.com/tphakala/flac"

	wkmperrors "github.com/wkmp/core/internal/errors"
)

type flacDecoder struct {
	file   *os.File
	stream *flac.Stream

	sampleRate int
	channels   int
	shift      float32 // normalization divisor for BitsPerSample

	startSamples int64
	endSamples   int64 // -1 = to end of file
	consumed     int64
	state        State
}

func openFLAC(path string, startMs, endMs int64) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryFileIO).Context("operation", "open_flac").Context("path", path).Build()
	}

	stream, err := flac.New(f)
	if err != nil {
		_ = f.Close()
		return nil, wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryDecode).Context("operation", "parse_flac_stream").Context("path", path).Build()
	}

	sampleRate := int(stream.Info.SampleRate)
	channels := int(stream.Info.NChannels)
	shift := float32(int64(1) << (stream.Info.BitsPerSample - 1))

	startSamples := int64(float64(startMs) / 1000.0 * float64(sampleRate))
	var endSamples int64 = -1
	if endMs > 0 {
		endSamples = int64(float64(endMs) / 1000.0 * float64(sampleRate))
	}

	fd := &flacDecoder{
		file: f, stream: stream,
		sampleRate: sampleRate, channels: channels, shift: shift,
		startSamples: startSamples, endSamples: endSamples,
		state: Decoding,
	}

	if startSamples > 0 {
		if err := fd.discard(startSamples); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return fd, nil
}

func (d *flacDecoder) discard(nativeSamples int64) error {
	remaining := nativeSamples
	for remaining > 0 {
		frame, err := d.stream.ParseNext()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryDecode).Context("operation", "seek_discard").Build()
		}
		if len(frame.Subframes) == 0 {
			continue
		}
		remaining -= int64(len(frame.Subframes[0].Samples))
	}
	return nil
}

func (d *flacDecoder) DecodeChunk(durationMs int) (ChunkResult, error) {
	if d.state == Finished {
		return ChunkResult{SampleRate: d.sampleRate, Done: true}, nil
	}

	framesWanted := int64(float64(durationMs) / 1000.0 * float64(d.sampleRate))
	var stereo []float32

	for int64(len(stereo)/2) < framesWanted {
		if d.endSamples >= 0 && d.startSamples+d.consumed >= d.endSamples {
			d.state = Finished
			break
		}

		frame, err := d.stream.ParseNext()
		if err == io.EOF {
			d.state = Finished
			break
		}
		if err != nil {
			return ChunkResult{}, wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryDecode).Context("operation", "decode_chunk").Build()
		}
		if len(frame.Subframes) == 0 {
			continue
		}

		blockSize := len(frame.Subframes[0].Samples)
		d.consumed += int64(blockSize)

		if d.channels == 1 {
			mono := make([]float32, blockSize)
			for i := 0; i < blockSize; i++ {
				mono[i] = float32(frame.Subframes[0].Samples[i]) / d.shift
			}
			stereo = append(stereo, upmixMono(mono)...)
		} else {
			left := frame.Subframes[0].Samples
			right := frame.Subframes[1].Samples
			for i := 0; i < blockSize; i++ {
				stereo = append(stereo, float32(left[i])/d.shift, float32(right[i])/d.shift)
			}
		}
	}

	if len(stereo) == 0 {
		return ChunkResult{SampleRate: d.sampleRate, Done: true}, nil
	}
	return ChunkResult{Samples: stereo, SampleRate: d.sampleRate, Done: false}, nil
}

func (d *flacDecoder) SampleRate() int { return d.sampleRate }
func (d *flacDecoder) State() State    { return d.state }
func (d *flacDecoder) Close() error    { return d.file.Close() }
