package decoder

import (
	"io"
	"os"

	"github.com/jfreymuth/oggvorbis"

	wkmperrors "github.com/wkmp/core/internal/errors"
)

// oggVorbisDecoder wraps jfreymuth/oggvorbis, which decodes directly to
// float32 PCM in the file's native channel layout.
type oggVorbisDecoder struct {
	file   *os.File
	reader *oggvorbis.Reader

	sampleRate int
	channels   int

	startSamples int64
	endSamples   int64 // -1 = to end of stream
	consumed     int64
	state        State
}

func openOggVorbis(path string, startMs, endMs int64) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryFileIO).Context("operation", "open_ogg_vorbis").Context("path", path).Build()
	}

	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryDecode).Context("operation", "new_oggvorbis_reader").Context("path", path).Build()
	}

	sampleRate := reader.SampleRate()
	channels := reader.Channels()

	startSamples := int64(float64(startMs) / 1000.0 * float64(sampleRate))
	var endSamples int64 = -1
	if endMs > 0 {
		endSamples = int64(float64(endMs) / 1000.0 * float64(sampleRate))
	}

	d := &oggVorbisDecoder{
		file: f, reader: reader,
		sampleRate: sampleRate, channels: channels,
		startSamples: startSamples, endSamples: endSamples,
		state: Decoding,
	}

	if startSamples > 0 {
		if err := d.discard(startSamples); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return d, nil
}

func (d *oggVorbisDecoder) discard(nativeSamples int64) error {
	buf := make([]float32, 4096*d.channels)
	remaining := nativeSamples
	for remaining > 0 {
		want := int64(4096)
		if remaining < want {
			want = remaining
		}
		n, err := d.reader.Read(buf[:want*int64(d.channels)])
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryDecode).Context("operation", "seek_discard").Build()
		}
		if n == 0 {
			return nil
		}
		remaining -= int64(n / d.channels)
	}
	return nil
}

func (d *oggVorbisDecoder) DecodeChunk(durationMs int) (ChunkResult, error) {
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
		if remaining < framesWanted {
			framesWanted = remaining
		}
	}

	raw := make([]float32, framesWanted*int64(d.channels))
	n, err := d.reader.Read(raw)
	if err != nil && err != io.EOF {
		return ChunkResult{}, wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryDecode).Context("operation", "decode_chunk").Build()
	}
	if n == 0 {
		d.state = Finished
		return ChunkResult{SampleRate: d.sampleRate, Done: true}, nil
	}

	framesRead := n / d.channels
	d.consumed += int64(framesRead)
	raw = raw[:n]

	var stereo []float32
	switch d.channels {
	case 1:
		stereo = upmixMono(raw)
	case 2:
		stereo = raw
	default: // keep first two channels
		stereo = make([]float32, framesRead*2)
		for i := 0; i < framesRead; i++ {
			stereo[2*i] = raw[i*d.channels]
			stereo[2*i+1] = raw[i*d.channels+1]
		}
	}

	if err == io.EOF || (d.endSamples >= 0 && d.startSamples+d.consumed >= d.endSamples) {
		d.state = Finished
	}
	return ChunkResult{Samples: stereo, SampleRate: d.sampleRate, Done: false}, nil
}

func (d *oggVorbisDecoder) SampleRate() int { return d.sampleRate }
func (d *oggVorbisDecoder) State() State    { return d.state }
func (d *oggVorbisDecoder) Close() error    { return d.file.Close() }
