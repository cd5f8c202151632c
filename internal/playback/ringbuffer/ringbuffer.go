// Package ringbuffer implements the single-producer/single-consumer
// stereo-interleaved float32 ring buffer each decoder chain owns (spec
// §4.1). It stores samples as raw bytes in a smallnest/ringbuffer byte
// ring and only ever asks for exactly the number of bytes known to be
// free (on push) or available (on pop), so partial pushes are always a
// contiguous prefix of the submitted block and pops never ask the
// underlying buffer to block.
package ringbuffer

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/smallnest/ringbuffer"
)

const bytesPerSample = 4 // float32
const channelsPerFrame = 2

// defaultCapacityFrames is ~15s at 44.1kHz stereo (spec §4.1 default).
const defaultCapacityFrames = 661_941

// defaultHeadroomFrames covers late resampler outputs beyond nominal capacity.
const defaultHeadroomFrames = 4_410

// RingBuffer is a fixed-capacity stereo interleaved float32 SPSC buffer.
type RingBuffer struct {
	buf            *ringbuffer.RingBuffer
	capacityFrames int

	producerIndex atomic.Int64 // monotonic frame count pushed
	consumerIndex atomic.Int64 // monotonic frame count popped

	finalized  atomic.Bool
	finalTotal atomic.Int64 // valid once finalized
}

// New creates a ring buffer sized to hold capacityFrames stereo frames plus
// headroomFrames of slack. Pass 0 for either to use the spec defaults.
func New(capacityFrames, headroomFrames int) *RingBuffer {
	if capacityFrames <= 0 {
		capacityFrames = defaultCapacityFrames
	}
	if headroomFrames <= 0 {
		headroomFrames = defaultHeadroomFrames
	}
	total := capacityFrames + headroomFrames
	return &RingBuffer{
		buf:            ringbuffer.New(total * channelsPerFrame * bytesPerSample),
		capacityFrames: total,
	}
}

// Push accepts up to len(samples)/2 interleaved stereo frames, writing only
// as many complete frames as currently fit, and returns the frame count
// actually accepted. A partial push is always a contiguous prefix of
// samples.
func (rb *RingBuffer) Push(samples []float32) int {
	framesRequested := len(samples) / channelsPerFrame
	if framesRequested == 0 {
		return 0
	}

	freeBytes := rb.buf.Free()
	freeFrames := freeBytes / (channelsPerFrame * bytesPerSample)
	framesToWrite := min(framesRequested, freeFrames)
	if framesToWrite == 0 {
		return 0
	}

	payload := make([]byte, framesToWrite*channelsPerFrame*bytesPerSample)
	for i := 0; i < framesToWrite*channelsPerFrame; i++ {
		binary.LittleEndian.PutUint32(payload[i*bytesPerSample:], math.Float32bits(samples[i]))
	}
	n, _ := rb.buf.Write(payload)
	framesWritten := n / (channelsPerFrame * bytesPerSample)
	rb.producerIndex.Add(int64(framesWritten))
	return framesWritten
}

// Pop returns up to nFrames of interleaved stereo samples currently
// available, or a zero-length slice if the buffer is empty.
func (rb *RingBuffer) Pop(nFrames int) []float32 {
	if nFrames <= 0 {
		return nil
	}

	availBytes := rb.buf.Length()
	availFrames := availBytes / (channelsPerFrame * bytesPerSample)
	framesToRead := min(nFrames, availFrames)
	if framesToRead == 0 {
		return nil
	}

	raw := make([]byte, framesToRead*channelsPerFrame*bytesPerSample)
	n, _ := rb.buf.Read(raw)
	framesRead := n / (channelsPerFrame * bytesPerSample)

	samples := make([]float32, framesRead*channelsPerFrame)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*bytesPerSample:]))
	}
	rb.consumerIndex.Add(int64(framesRead))
	return samples
}

// Finalize marks the producer complete, permitting the consumer to detect
// EOF once it has drained totalFrames of pushed data.
func (rb *RingBuffer) Finalize(totalFrames int64) {
	rb.finalTotal.Store(totalFrames)
	rb.finalized.Store(true)
}

// IsFinalized reports whether the producer has called Finalize.
func (rb *RingBuffer) IsFinalized() bool { return rb.finalized.Load() }

// Drained reports whether decode is finalized and every pushed frame has
// been popped — the buffer-level EOF condition spec §4.8 checks before
// emitting EndOfFile / EndOfFileBeforeLeadOut.
func (rb *RingBuffer) Drained() bool {
	return rb.finalized.Load() && rb.consumerIndex.Load() >= rb.finalTotal.Load()
}

// OccupiedFrames returns frames currently buffered and not yet popped.
func (rb *RingBuffer) OccupiedFrames() int {
	return rb.buf.Length() / (channelsPerFrame * bytesPerSample)
}

// CapacityFrames returns the total frame capacity including headroom.
func (rb *RingBuffer) CapacityFrames() int { return rb.capacityFrames }

// FramesPushed returns the monotonic count of frames ever pushed.
func (rb *RingBuffer) FramesPushed() int64 { return rb.producerIndex.Load() }

// FramesPopped returns the monotonic count of frames ever popped.
func (rb *RingBuffer) FramesPopped() int64 { return rb.consumerIndex.Load() }
