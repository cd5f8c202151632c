// Package decoder implements the streaming decoder contract (spec §4.2):
// opened with (file_path, start_ms, end_ms), repeated DecodeChunk calls
// yield interleaved float32 PCM at the file's native sample rate, always
// normalized to stereo (mono sources are duplicated across both channels)
// since every downstream stage — resampler, fader, ring buffer — assumes
// stereo-interleaved frames.
package decoder

import (
	"io"
	"os"

	wkmperrors "github.com/wkmp/core/internal/errors"
)

// State is the decoder's state machine position; it never regresses.
type State int

const (
	NotStarted State = iota
	Decoding
	Finished
)

// Format identifies a decodable container/codec, detected by magic bytes.
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatFLAC
	FormatMP3
	FormatOggVorbis
	FormatOggOpus
	FormatMP4AAC
)

// ChunkResult is one DecodeChunk call's output.
type ChunkResult struct {
	Samples    []float32 // interleaved stereo
	SampleRate int
	Done       bool   // true once the requested range is exhausted
	EndTickMs  *int64 // the decoders in this package always leave this nil
}

// Decoder is implemented by each format-specific decoder.
type Decoder interface {
	// DecodeChunk yields roughly durationMs of interleaved stereo PCM at the
	// file's native sample rate, or Done=true when start_ms..end_ms is
	// exhausted.
	DecodeChunk(durationMs int) (ChunkResult, error)

	// SampleRate returns the file's native sample rate.
	SampleRate() int

	// State returns the decoder's current lifecycle state.
	State() State

	// Close releases the underlying file handle.
	Close() error
}

// DetectFormat reads the first 12 bytes of path and matches known magic
// signatures (spec §4.11's scanner uses the same signatures for
// verification; kept duplicated here rather than shared, since the
// scanner only needs a boolean "looks like audio" and the decoder needs
// the precise format to dispatch on).
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryFileIO).Context("operation", "open_for_sniff").Context("path", path).Build()
	}
	defer f.Close()

	header := make([]byte, 12)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return FormatUnknown, wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryDecode).Context("operation", "read_magic_bytes").Context("path", path).Build()
	}
	header = header[:n]
	return sniff(header), nil
}

func sniff(header []byte) Format {
	switch {
	case len(header) >= 4 && string(header[0:3]) == "ID3":
		return FormatMP3
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return FormatMP3
	case len(header) >= 4 && string(header[0:4]) == "fLaC":
		return FormatFLAC
	case len(header) >= 4 && string(header[0:4]) == "OggS":
		return sniffOgg(header)
	case len(header) >= 12 && string(header[4:8]) == "ftyp":
		return FormatMP4AAC
	case len(header) >= 12 && string(header[0:4]) == "RIFF" && string(header[8:12]) == "WAVE":
		return FormatWAV
	default:
		return FormatUnknown
	}
}

// sniffOgg cannot fully distinguish Vorbis from Opus from only the first 12
// bytes (the codec identifier lives in the first logical page's payload,
// past this prefix); callers needing the distinction re-open with the
// codec-specific decoder and fall back on ErrUnsupportedFormat if it
// mismatches. Default to Vorbis, the more common case.
func sniffOgg(header []byte) Format {
	return FormatOggVorbis
}

// Open dispatches to the format-specific decoder for path, windowed to
// [startMs, endMs). endMs of 0 means "to end of file."
func Open(path string, startMs, endMs int64) (Decoder, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatWAV:
		return openWAV(path, startMs, endMs)
	case FormatFLAC:
		return openFLAC(path, startMs, endMs)
	case FormatMP3:
		return openMP3(path, startMs, endMs)
	case FormatOggVorbis:
		return openOggVorbis(path, startMs, endMs)
	case FormatOggOpus, FormatMP4AAC:
		return openViaFFmpeg(path, startMs, endMs)
	default:
		return nil, wkmperrors.Newf("unrecognized audio format").
			Component("decoder").
			Category(wkmperrors.CategoryDecode).
			Context("path", path).
			Build()
	}
}

// upmixMono duplicates single-channel samples across both stereo channels.
func upmixMono(mono []float32) []float32 {
	out := make([]float32, len(mono)*2)
	for i, v := range mono {
		out[2*i] = v
		out[2*i+1] = v
	}
	return out
}

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Decoding:
		return "decoding"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}
