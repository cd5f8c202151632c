package chain

import (
	"testing"

	"github.com/google/uuid"

	"github.com/wkmp/core/internal/curve"
	"github.com/wkmp/core/internal/playback/decoder"
	"github.com/wkmp/core/internal/playback/fader"
	"github.com/wkmp/core/internal/playback/resampler"
	"github.com/wkmp/core/internal/playback/ringbuffer"
	"github.com/wkmp/core/internal/tick"
)

// fakeDecoder yields a fixed sequence of stereo chunks, then reports Done.
type fakeDecoder struct {
	chunks []decoder.ChunkResult
	pos    int
	state  decoder.State
	closed bool
}

func newFakeDecoder(framesPerChunk, numChunks, sampleRate int) *fakeDecoder {
	fd := &fakeDecoder{state: decoder.Decoding}
	for i := 0; i < numChunks; i++ {
		samples := make([]float32, framesPerChunk*2)
		for j := range samples {
			samples[j] = 0.5
		}
		fd.chunks = append(fd.chunks, decoder.ChunkResult{Samples: samples, SampleRate: sampleRate})
	}
	return fd
}

func (f *fakeDecoder) DecodeChunk(durationMs int) (decoder.ChunkResult, error) {
	if f.pos >= len(f.chunks) {
		f.state = decoder.Finished
		return decoder.ChunkResult{SampleRate: 44100, Done: true}, nil
	}
	chunk := f.chunks[f.pos]
	f.pos++
	if f.pos >= len(f.chunks) {
		chunk.Done = true
		f.state = decoder.Finished
	}
	return chunk, nil
}

func (f *fakeDecoder) SampleRate() int      { return 44100 }
func (f *fakeDecoder) State() decoder.State { return f.state }
func (f *fakeDecoder) Close() error         { f.closed = true; return nil }

func newTestChain(framesPerChunk, numChunks int) (*Chain, *ringbuffer.RingBuffer) {
	fd := newFakeDecoder(framesPerChunk, numChunks, 44100)
	rs := resampler.New(44100, 44100, 2, 4096)                              // identity, keeps test deterministic
	fdr := fader.New(0, 0, 1<<30, 1<<31, curve.Linear, curve.Linear, 44100) // effectively always-open
	buf := ringbuffer.New(0, 0)
	c := New(0, uuid.New(), fd, rs, fdr, buf)
	return c, buf
}

func TestProcessChunkReportsProcessedThenFinished(t *testing.T) {
	c, buf := newTestChain(100, 2)

	res, err := c.ProcessChunk()
	if err != nil {
		t.Fatalf("ProcessChunk: %v", err)
	}
	if res.Kind != Processed {
		t.Fatalf("first chunk: Kind = %v, want Processed", res.Kind)
	}
	if res.FramesPushed != 100 {
		t.Errorf("first chunk: FramesPushed = %d, want 100", res.FramesPushed)
	}

	res, err = c.ProcessChunk()
	if err != nil {
		t.Fatalf("ProcessChunk: %v", err)
	}
	if res.Kind != Finished {
		t.Fatalf("second chunk: Kind = %v, want Finished", res.Kind)
	}
	if res.TotalFrames != 200 {
		t.Errorf("TotalFrames = %d, want 200", res.TotalFrames)
	}
	if !buf.IsFinalized() {
		t.Error("expected buffer to be finalized on Finished")
	}
}

func TestProcessChunkAfterFinishedIsIdempotent(t *testing.T) {
	c, _ := newTestChain(50, 1)
	_, _ = c.ProcessChunk()      // Processed
	first, _ := c.ProcessChunk() // Finished
	second, err := c.ProcessChunk()
	if err != nil {
		t.Fatalf("ProcessChunk after finished: %v", err)
	}
	if second.Kind != Finished || second.TotalFrames != first.TotalFrames {
		t.Errorf("expected repeated Finished with same total, got %+v", second)
	}
}

func TestProcessChunkYieldsOnBufferFull(t *testing.T) {
	fd := newFakeDecoder(1000, 1, 44100)
	rs := resampler.New(44100, 44100, 2, 4096)
	fdr := fader.New(0, 0, tick.Tick(1)<<30, tick.Tick(1)<<31, curve.Linear, curve.Linear, 44100)
	buf := ringbuffer.New(200, 1) // far smaller than the 1000-frame chunk
	c := New(0, uuid.New(), fd, rs, fdr, buf)

	res, err := c.ProcessChunk()
	if err != nil {
		t.Fatalf("ProcessChunk: %v", err)
	}
	if res.Kind != BufferFull {
		t.Fatalf("Kind = %v, want BufferFull", res.Kind)
	}
	if res.FramesPushed == 0 || res.FramesPushed >= 1000 {
		t.Errorf("FramesPushed = %d, want a partial count between 0 and 1000", res.FramesPushed)
	}
}

func TestCloseReleasesDecoder(t *testing.T) {
	fd := newFakeDecoder(10, 1, 44100)
	rs := resampler.New(44100, 44100, 2, 4096)
	fdr := fader.New(0, 0, tick.Tick(1)<<30, tick.Tick(1)<<31, curve.Linear, curve.Linear, 44100)
	buf := ringbuffer.New(0, 0)
	c := New(0, uuid.New(), fd, rs, fdr, buf)

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fd.closed {
		t.Error("expected underlying decoder to be closed")
	}
}
