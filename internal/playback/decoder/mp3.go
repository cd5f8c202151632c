package decoder

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"

	wkmperrors "github.com/wkmp/core/internal/errors"
)

// mp3Decoder wraps hajimehoshi/go-mp3, which always decodes to 16-bit
// little-endian stereo PCM regardless of the source channel count, and
// exposes the decoded stream as an io.ReadSeeker over raw PCM bytes.
type mp3Decoder struct {
	file *os.File
	dec  *mp3.Decoder

	sampleRate int
	endByte    int64 // -1 = to end of stream
	state      State
}

func openMP3(path string, startMs, endMs int64) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryFileIO).Context("operation", "open_mp3").Context("path", path).Build()
	}

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		_ = f.Close()
		return nil, wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryDecode).Context("operation", "new_mp3_decoder").Context("path", path).Build()
	}

	sampleRate := dec.SampleRate()
	const bytesPerFrame = 4 // 2 channels * 16-bit

	if startMs > 0 {
		startByte := int64(float64(startMs)/1000.0*float64(sampleRate)) * bytesPerFrame
		if _, err := dec.Seek(startByte, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryDecode).Context("operation", "seek_mp3").Build()
		}
	}

	endByte := int64(-1)
	if endMs > 0 {
		endByte = int64(float64(endMs)/1000.0*float64(sampleRate)) * bytesPerFrame
	}

	return &mp3Decoder{file: f, dec: dec, sampleRate: sampleRate, endByte: endByte, state: Decoding}, nil
}

func (d *mp3Decoder) DecodeChunk(durationMs int) (ChunkResult, error) {
	if d.state == Finished {
		return ChunkResult{SampleRate: d.sampleRate, Done: true}, nil
	}

	framesWanted := int64(float64(durationMs) / 1000.0 * float64(d.sampleRate))
	bytesWanted := framesWanted * 4
	if d.endByte >= 0 {
		pos, _ := d.dec.Seek(0, io.SeekCurrent)
		remaining := d.endByte - pos
		if remaining <= 0 {
			d.state = Finished
			return ChunkResult{SampleRate: d.sampleRate, Done: true}, nil
		}
		if remaining < bytesWanted {
			bytesWanted = remaining
		}
	}

	raw := make([]byte, bytesWanted)
	n, err := io.ReadFull(d.dec, raw)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return ChunkResult{}, wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryDecode).Context("operation", "decode_chunk").Build()
	}
	if n == 0 {
		d.state = Finished
		return ChunkResult{SampleRate: d.sampleRate, Done: true}, nil
	}

	frames := n / 4
	stereo := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(raw[i*4:]))
		r := int16(binary.LittleEndian.Uint16(raw[i*4+2:]))
		stereo[2*i] = float32(l) / 32768.0
		stereo[2*i+1] = float32(r) / 32768.0
	}

	if err == io.EOF || err == io.ErrUnexpectedEOF || n < len(raw) {
		d.state = Finished
	}
	return ChunkResult{Samples: stereo, SampleRate: d.sampleRate, Done: false}, nil
}

func (d *mp3Decoder) SampleRate() int { return d.sampleRate }
func (d *mp3Decoder) State() State    { return d.state }
func (d *mp3Decoder) Close() error    { return d.file.Close() }
