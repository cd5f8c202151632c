package engine

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/wkmp/core/internal/curve"
	"github.com/wkmp/core/internal/events"
	"github.com/wkmp/core/internal/model"
	"github.com/wkmp/core/internal/playback/buffermanager"
	"github.com/wkmp/core/internal/playback/chain"
	"github.com/wkmp/core/internal/playback/decoder"
	"github.com/wkmp/core/internal/playback/fader"
	"github.com/wkmp/core/internal/playback/mixer"
	"github.com/wkmp/core/internal/playback/resampler"
	"github.com/wkmp/core/internal/playback/ringbuffer"
	"github.com/wkmp/core/internal/playback/worker"
	"github.com/wkmp/core/internal/store"
	"github.com/wkmp/core/internal/tick"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "wkmp.db"), 2, false)
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestBus(t *testing.T) *events.EventBus {
	t.Helper()
	bus, err := events.Initialize(events.DefaultConfig())
	if err != nil {
		t.Fatalf("events.Initialize failed: %v", err)
	}
	return bus
}

// fakeDecoder yields a fixed number of fixed-size constant-value stereo
// chunks, mirroring the fakes used by chain/worker/mixer's own tests.
type fakeDecoder struct {
	chunks []decoder.ChunkResult
	pos    int
	state  decoder.State
}

func newFakeDecoder(framesPerChunk, numChunks int, value float32) *fakeDecoder {
	fd := &fakeDecoder{state: decoder.Decoding}
	for i := 0; i < numChunks; i++ {
		samples := make([]float32, framesPerChunk*2)
		for j := range samples {
			samples[j] = value
		}
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

// fakeChainFactoryFor builds a ChainFactory whose chains are backed by an
// in-memory fakeDecoder instead of opening entry.FilePath, keyed by
// passage ID so each queue entry gets its own distinct sample value.
func fakeChainFactoryFor(values map[uuid.UUID]float32, framesPerChunk, numChunks int) ChainFactory {
	return func(entry model.QueueEntry, chainIndex int, origin tick.Tick, buf *ringbuffer.RingBuffer) (*chain.Chain, error) {
		v := values[entry.PassageID]
		fd := newFakeDecoder(framesPerChunk, numChunks, v)
		rs := resampler.New(44100, outputSampleRate, 2, 4096)
		fd2 := fader.New(
			tick.Tick(entry.StartTick), tick.Tick(entry.FadeInTick),
			tick.Tick(entry.FadeOutTick), faderEndTick(entry),
			entry.FadeInCurve, entry.FadeOutCurve, outputSampleRate,
		)
		fd2.Seek(origin)
		return chain.New(chainIndex, entry.ID, fd, rs, fd2, buf), nil
	}
}

// shortPassage builds a Passage spanning 0..2s with no fades/lead regions
// (fade_in == lead_in == start and lead_out == fade_out == end, so it never
// enters a fade ramp and schedules no crossfade).
func shortPassage(fileHash string, durationTicks int64) *model.Passage {
	end := durationTicks
	return &model.Passage{
		ID:           uuid.New(),
		FileHash:     fileHash,
		StartTick:    0,
		EndTick:      &end,
		FadeInTick:   0,
		LeadInTick:   0,
		LeadOutTick:  end,
		FadeOutTick:  end,
		FadeInCurve:  curve.Linear,
		FadeOutCurve: curve.Linear,
	}
}

func newTestEngine(t *testing.T, values map[uuid.UUID]float32) (*Engine, *store.Store) {
	t.Helper()
	st := openTestStore(t)
	bm := buffermanager.New(0, 0, 0)
	w := worker.New(bm, nil)
	mx := mixer.New(outputSampleRate, 0, 0)
	bus := newTestBus(t)
	factory := fakeChainFactoryFor(values, 4410, 1) // 100ms per chunk, one chunk
	e := New(st, w, bm, mx, bus, factory, 4)
	return e, st
}

func driveWorkerUntilIdle(e *Engine, maxTicks int) {
	for i := 0; i < maxTicks; i++ {
		if !e.DriveDecodeWorker() {
			return
		}
	}
}

func TestLoadQueueAssignsCurrentAndNext(t *testing.T) {
	values := make(map[uuid.UUID]float32)
	e, st := newTestEngine(t, values)

	pA := shortPassage("hashA", int64(tick.FromMillis(2000)))
	pB := shortPassage("hashB", int64(tick.FromMillis(2000)))
	values[pA.ID] = 0.4
	values[pB.ID] = 0.1

	if _, err := st.EnqueuePassage(pA, "/music/a.flac"); err != nil {
		t.Fatalf("enqueue A: %v", err)
	}
	if _, err := st.EnqueuePassage(pB, "/music/b.flac"); err != nil {
		t.Fatalf("enqueue B: %v", err)
	}

	if err := e.LoadQueue(); err != nil {
		t.Fatalf("LoadQueue: %v", err)
	}

	snap := e.QueueSnapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 queue entries, got %d", len(snap))
	}

	driveWorkerUntilIdle(e, 20)

	out := e.RenderAudio(100)
	for i, v := range out {
		if v != 0.4 {
			t.Fatalf("out[%d] = %v, want 0.4 (passage A's current chain)", i, v)
		}
	}
}

func TestEnqueueAssignsFreeChain(t *testing.T) {
	values := make(map[uuid.UUID]float32)
	e, st := newTestEngine(t, values)

	p := shortPassage("hashA", int64(tick.FromMillis(2000)))
	values[p.ID] = 0.5

	entry, err := e.Enqueue(p, "/music/a.flac")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if entry == nil {
		t.Fatal("Enqueue returned nil entry")
	}

	stored, err := st.ListQueueOrdered()
	if err != nil {
		t.Fatalf("ListQueueOrdered: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 persisted queue entry, got %d", len(stored))
	}

	driveWorkerUntilIdle(e, 20)
	out := e.RenderAudio(10)
	for _, v := range out {
		if v != 0.5 {
			t.Fatalf("got %v, want 0.5", v)
		}
	}
}

func TestSkipNextAdvancesToFollowingPassage(t *testing.T) {
	values := make(map[uuid.UUID]float32)
	e, st := newTestEngine(t, values)

	pA := shortPassage("hashA", int64(tick.FromMillis(2000)))
	pB := shortPassage("hashB", int64(tick.FromMillis(2000)))
	values[pA.ID] = 0.7
	values[pB.ID] = 0.2

	if _, err := st.EnqueuePassage(pA, "/music/a.flac"); err != nil {
		t.Fatalf("enqueue A: %v", err)
	}
	if _, err := st.EnqueuePassage(pB, "/music/b.flac"); err != nil {
		t.Fatalf("enqueue B: %v", err)
	}
	if err := e.LoadQueue(); err != nil {
		t.Fatalf("LoadQueue: %v", err)
	}
	driveWorkerUntilIdle(e, 20)

	e.SkipNext()
	driveWorkerUntilIdle(e, 20)

	snap := e.QueueSnapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 remaining queue entry after skip, got %d", len(snap))
	}
	if snap[0].PassageID != pB.ID {
		t.Fatalf("expected passage B to be current after skip, got %v", snap[0].PassageID)
	}

	out := e.RenderAudio(10)
	for _, v := range out {
		if v != 0.2 {
			t.Fatalf("got %v, want 0.2 (passage B now playing)", v)
		}
	}
}

func TestSkipNextOnEmptyQueueIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	e.SkipNext() // must not panic
	if len(e.QueueSnapshot()) != 0 {
		t.Fatal("expected queue to remain empty")
	}
}

func TestSeekRejectedWhenQueueEmpty(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	if err := e.Seek(1000); err == nil {
		t.Fatal("expected Seek to fail with an empty queue")
	}
}

func TestPlayPauseAreIdempotent(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	e.Play()
	e.Play()
	e.Pause()
	e.Pause()
	// No assertions beyond "did not panic" — idempotency is structural
	// here since Mixer.Play/Pause just set an enum.
}
