package decoder

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"

	wkmperrors "github.com/wkmp/core/internal/errors"
)

// ffmpegDecoder covers formats with no pure-Go decoder in reach (Opus,
// MP4/AAC): it shells out to ffmpeg, asking it to decode straight to
// signed 16-bit little-endian stereo PCM resampled to 44.1 kHz
// (ffmpegDecodeSampleRate), and reads that PCM back over a pipe. Unlike
// the other decoders, its SampleRate reports that fixed 44.1 kHz rather
// than the source's native rate. Grounded on the same
// exec.CommandContext/StdoutPipe idiom as the audiocore ffmpeg process
// runner, simplified to a one-shot decode instead of a managed
// long-lived process.
type ffmpegDecoder struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout *bufio.Reader

	sampleRate int
	state      State
}

const ffmpegDecodeSampleRate = 44100

func openViaFFmpeg(path string, startMs, endMs int64) (Decoder, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, wkmperrors.New(err).
			Component("decoder").
			Category(wkmperrors.CategoryConfiguration).
			Context("operation", "locate_ffmpeg").
			Build()
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	if startMs > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", float64(startMs)/1000.0))
	}
	args = append(args, "-i", path)
	if endMs > 0 {
		durationMs := endMs - startMs
		if durationMs > 0 {
			args = append(args, "-t", fmt.Sprintf("%.3f", float64(durationMs)/1000.0))
		}
	}
	args = append(args,
		"-f", "s16le",
		"-ac", "2",
		"-ar", fmt.Sprintf("%d", ffmpegDecodeSampleRate),
		"pipe:1",
	)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryConfiguration).Context("operation", "create_ffmpeg_stdout_pipe").Build()
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryConfiguration).Context("operation", "start_ffmpeg").Context("path", path).Build()
	}

	return &ffmpegDecoder{
		cmd:        cmd,
		cancel:     cancel,
		stdout:     bufio.NewReaderSize(stdout, 64*1024),
		sampleRate: ffmpegDecodeSampleRate,
		state:      Decoding,
	}, nil
}

func (d *ffmpegDecoder) DecodeChunk(durationMs int) (ChunkResult, error) {
	if d.state == Finished {
		return ChunkResult{SampleRate: d.sampleRate, Done: true}, nil
	}

	framesWanted := int64(float64(durationMs) / 1000.0 * float64(d.sampleRate))
	raw := make([]byte, framesWanted*4) // stereo, 16-bit
	n, err := io.ReadFull(d.stdout, raw)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return ChunkResult{}, wkmperrors.New(err).Component("decoder").Category(wkmperrors.CategoryDecode).Context("operation", "read_ffmpeg_pipe").Build()
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

	if n < len(raw) {
		d.state = Finished
	}
	return ChunkResult{Samples: stereo, SampleRate: d.sampleRate, Done: false}, nil
}

func (d *ffmpegDecoder) SampleRate() int { return d.sampleRate }
func (d *ffmpegDecoder) State() State    { return d.state }

func (d *ffmpegDecoder) Close() error {
	d.cancel()
	return d.cmd.Wait()
}
