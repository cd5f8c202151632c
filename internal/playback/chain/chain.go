// Package chain implements the Decoder Chain (spec §4.5): a
// composition of {Decoder, Resampler, Fader, ring buffer} owned by a
// specific queue entry. ProcessChunk executes one iteration of the
// pipeline; it is the only point at which resampling and fading run,
// and it is strictly single-threaded within a chain.
package chain

import (
	"github.com/google/uuid"

	"github.com/wkmp/core/internal/playback/decoder"
	"github.com/wkmp/core/internal/playback/fader"
	"github.com/wkmp/core/internal/playback/resampler"
	"github.com/wkmp/core/internal/playback/ringbuffer"
)

const channelsPerFrame = 2

const defaultChunkDurationMs = 1000

// ResultKind reports what ProcessChunk accomplished in one iteration.
type ResultKind int

const (
	Processed ResultKind = iota
	BufferFull
	Finished
)

func (k ResultKind) String() string {
	switch k {
	case Processed:
		return "processed"
	case BufferFull:
		return "buffer-full"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Result is ProcessChunk's outcome for one iteration.
type Result struct {
	Kind         ResultKind
	FramesPushed int
	TotalFrames  int64 // set only when Kind == Finished
}

// Chain binds a decoder/resampler/fader/ring-buffer pipeline to one
// queue entry, identified by its chain index.
type Chain struct {
	ChainIndex   int
	QueueEntryID uuid.UUID

	decoder   decoder.Decoder
	resampler *resampler.Resampler
	fader     *fader.Fader
	buffer    *ringbuffer.RingBuffer

	chunkDurationMs int

	pending            []float32 // faded samples decoded but not yet pushed
	decodeDone         bool
	finished           bool
	totalFramesPushed  int64
	totalFramesDecoded int64 // resampler+fader output, counted before the buffer push attempt
}

// New composes a chain from its already-constructed stages.
func New(chainIndex int, queueEntryID uuid.UUID, dec decoder.Decoder, rs *resampler.Resampler, fd *fader.Fader, buf *ringbuffer.RingBuffer) *Chain {
	return &Chain{
		ChainIndex:      chainIndex,
		QueueEntryID:    queueEntryID,
		decoder:         dec,
		resampler:       rs,
		fader:           fd,
		buffer:          buf,
		chunkDurationMs: defaultChunkDurationMs,
	}
}

// ProcessChunk executes one pipeline iteration: if there are faded
// samples left over from a buffer-full yield, it tries to drain those
// first rather than decoding more; otherwise it pulls one chunk from
// the decoder, resamples, fades, and pushes to the ring buffer.
func (c *Chain) ProcessChunk() (Result, error) {
	if c.finished {
		return Result{Kind: Finished, TotalFrames: c.totalFramesPushed}, nil
	}

	if len(c.pending) == 0 && !c.decodeDone {
		chunk, err := c.decoder.DecodeChunk(c.chunkDurationMs)
		if err != nil {
			return Result{}, err
		}
		if len(chunk.Samples) > 0 {
			resampled := c.resampler.ProcessChunk(chunk.Samples)
			c.pending = c.fader.ProcessChunk(resampled)
			c.totalFramesDecoded += int64(len(c.pending) / channelsPerFrame)
		}
		if chunk.Done {
			c.decodeDone = true
		}
	}

	if len(c.pending) > 0 {
		result := c.pushPending()
		if len(c.pending) == 0 && c.decodeDone {
			return c.finish(), nil
		}
		return result, nil
	}

	if c.decodeDone {
		return c.finish(), nil
	}

	return Result{Kind: Processed}, nil
}

func (c *Chain) pushPending() Result {
	pushed := c.buffer.Push(c.pending)
	c.totalFramesPushed += int64(pushed)

	framesInPending := len(c.pending) / channelsPerFrame
	if pushed < framesInPending {
		c.pending = c.pending[pushed*channelsPerFrame:]
		return Result{Kind: BufferFull, FramesPushed: pushed}
	}
	c.pending = nil
	return Result{Kind: Processed, FramesPushed: pushed}
}

func (c *Chain) finish() Result {
	c.buffer.Finalize(c.totalFramesPushed)
	c.finished = true
	return Result{Kind: Finished, TotalFrames: c.totalFramesPushed}
}

// Seek recreates the chain's decoder bound to a new window, flushing
// resampler/fader state, per the engine's seek contract (spec §4.9).
func (c *Chain) Seek(newDecoder decoder.Decoder, newResampler *resampler.Resampler, newFader *fader.Fader) {
	_ = c.decoder.Close()
	c.decoder = newDecoder
	c.resampler = newResampler
	c.fader = newFader
	c.pending = nil
	c.decodeDone = false
	c.finished = false
}

// Close releases the chain's decoder resources.
func (c *Chain) Close() error {
	return c.decoder.Close()
}

// Buffer exposes the chain's ring buffer for the mixer to consume.
func (c *Chain) Buffer() *ringbuffer.RingBuffer { return c.buffer }

// DecodedFrames returns the cumulative frame count the resampler+fader
// stage has produced, counted before each frame's buffer push is
// attempted — the validation service's decoder_frames_pushed counter.
func (c *Chain) DecodedFrames() int64 { return c.totalFramesDecoded }

// PushedFrames returns the cumulative frame count successfully pushed to
// the ring buffer (equal to Buffer().FramesPushed()).
func (c *Chain) PushedFrames() int64 { return c.totalFramesPushed }
