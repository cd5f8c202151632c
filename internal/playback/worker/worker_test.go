package worker

import (
	"testing"

	"github.com/google/uuid"

	"github.com/wkmp/core/internal/curve"
	"github.com/wkmp/core/internal/playback/buffermanager"
	"github.com/wkmp/core/internal/playback/chain"
	"github.com/wkmp/core/internal/playback/decoder"
	"github.com/wkmp/core/internal/playback/fader"
	"github.com/wkmp/core/internal/playback/resampler"
)

type fakeDecoder struct {
	chunks []decoder.ChunkResult
	pos    int
	state  decoder.State
	failAt int // -1 disables
}

func newFakeDecoder(framesPerChunk, numChunks int) *fakeDecoder {
	fd := &fakeDecoder{state: decoder.Decoding, failAt: -1}
	for i := 0; i < numChunks; i++ {
		samples := make([]float32, framesPerChunk*2)
		fd.chunks = append(fd.chunks, decoder.ChunkResult{Samples: samples, SampleRate: 44100})
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
func (f *fakeDecoder) Close() error         { return nil }

func TestSubmitDrainsIntoReadyAndProcessesOne(t *testing.T) {
	bm := buffermanager.New(0, 0, 0)
	w := New(bm, nil)

	id := uuid.New()
	bm.RegisterDecoding(id)
	w.Submit(Request{
		QueueEntryID: id,
		Priority:     PriorityImmediate,
		Build: func() (*chain.Chain, error) {
			fd := newFakeDecoder(100, 1)
			rs := resampler.New(44100, 44100, 2, 4096)
			fdr := fader.New(0, 0, 1<<30, 1<<31, curve.Linear, curve.Linear, 44100)
			return chain.New(0, id, fd, rs, fdr, bm.GetBuffer(id)), nil
		},
	})

	if !w.Tick() {
		t.Fatal("expected Tick to process a chain")
	}
	if w.ReadyCount() != 0 {
		t.Errorf("ReadyCount = %d, want 0 after the single chunk finishes", w.ReadyCount())
	}
}

func TestTickPrefersHigherPriority(t *testing.T) {
	bm := buffermanager.New(0, 0, 0)
	w := New(bm, nil)

	var processedOrder []uuid.UUID
	lowID, highID := uuid.New(), uuid.New()

	bm.RegisterDecoding(lowID)
	bm.RegisterDecoding(highID)

	w.Submit(Request{QueueEntryID: lowID, Priority: PriorityPrefetch, Build: func() (*chain.Chain, error) {
		fd := newFakeDecoder(10, 5)
		rs := resampler.New(44100, 44100, 2, 4096)
		fdr := fader.New(0, 0, 1<<30, 1<<31, curve.Linear, curve.Linear, 44100)
		return chain.New(0, lowID, fd, rs, fdr, bm.GetBuffer(lowID)), nil
	}})
	w.Submit(Request{QueueEntryID: highID, Priority: PriorityImmediate, Build: func() (*chain.Chain, error) {
		fd := newFakeDecoder(10, 5)
		rs := resampler.New(44100, 44100, 2, 4096)
		fdr := fader.New(0, 0, 1<<30, 1<<31, curve.Linear, curve.Linear, 44100)
		return chain.New(0, highID, fd, rs, fdr, bm.GetBuffer(highID)), nil
	}})

	// The first Tick drains both requests into the ready set and then
	// processes one chunk, which must come from the PriorityImmediate
	// chain; the remaining ticks drain both chains to completion.
	_ = processedOrder
	w.Tick()
	if got := bm.GetBuffer(highID).FramesPushed(); got != 10 {
		t.Errorf("high-priority chain pushed %d frames after the first Tick, want 10", got)
	}
	if got := bm.GetBuffer(lowID).FramesPushed(); got != 0 {
		t.Errorf("low-priority chain pushed %d frames after the first Tick, want 0", got)
	}
	for i := 0; i < 10 && w.ReadyCount() > 0; i++ {
		w.Tick()
	}
	if w.ReadyCount() != 0 {
		t.Errorf("expected both chains to finish, ReadyCount = %d", w.ReadyCount())
	}
}

func TestCancelDecodeRemovesFromAllSets(t *testing.T) {
	bm := buffermanager.New(0, 0, 0)
	w := New(bm, nil)
	id := uuid.New()
	bm.RegisterDecoding(id)

	w.Submit(Request{QueueEntryID: id, Priority: PriorityNext, Build: func() (*chain.Chain, error) {
		fd := newFakeDecoder(10, 5)
		rs := resampler.New(44100, 44100, 2, 4096)
		fdr := fader.New(0, 0, 1<<30, 1<<31, curve.Linear, curve.Linear, 44100)
		return chain.New(0, id, fd, rs, fdr, bm.GetBuffer(id)), nil
	}})
	w.Tick() // drains the request into ready and processes one chunk

	w.CancelDecode(id)
	if w.ReadyCount() != 0 {
		t.Errorf("ReadyCount = %d, want 0 after cancellation", w.ReadyCount())
	}
	if bm.GetBuffer(id) != nil {
		t.Error("expected buffer manager entry to be removed on cancellation")
	}
}

func TestOnErrorCalledWhenBuildFails(t *testing.T) {
	var gotErr error
	var gotID uuid.UUID
	w := New(nil, func(id uuid.UUID, err error) {
		gotID, gotErr = id, err
	})

	id := uuid.New()
	w.Submit(Request{QueueEntryID: id, Priority: PriorityImmediate, Build: func() (*chain.Chain, error) {
		return nil, assertErr
	}})
	w.Tick()

	if gotErr != assertErr || gotID != id {
		t.Errorf("onError not invoked as expected: id=%v err=%v", gotID, gotErr)
	}
}

var assertErr = errTest("build failed")

type errTest string

func (e errTest) Error() string { return string(e) }
