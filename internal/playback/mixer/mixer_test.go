package mixer

import (
	"testing"

	"github.com/google/uuid"

	"github.com/wkmp/core/internal/curve"
	"github.com/wkmp/core/internal/playback/chain"
	"github.com/wkmp/core/internal/playback/decoder"
	"github.com/wkmp/core/internal/playback/fader"
	"github.com/wkmp/core/internal/playback/resampler"
	"github.com/wkmp/core/internal/playback/ringbuffer"
	"github.com/wkmp/core/internal/tick"
)

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

func buildChainWithData(framesPerChunk, numChunks int, value float32) *chain.Chain {
	fd := newFakeDecoder(framesPerChunk, numChunks, value)
	rs := resampler.New(44100, 44100, 2, 4096)
	fdr := fader.New(0, 0, 1<<30, 1<<31, curve.Linear, curve.Linear, 44100)
	buf := ringbuffer.New(0, 0)
	c := chain.New(0, uuid.New(), fd, rs, fdr, buf)
	// drive the chain until fully decoded so the buffer has data to pop
	for {
		res, err := c.ProcessChunk()
		if err != nil {
			panic(err)
		}
		if res.Kind == chain.Finished {
			break
		}
	}
	return c
}

func TestMixSingleProducesSamples(t *testing.T) {
	m := New(44100, 0, 0)
	c := buildChainWithData(1000, 1, 0.5)
	m.SetCurrentChain(c, 0)

	out, _ := m.MixFrames(100)
	if len(out) != 200 {
		t.Fatalf("len(out) = %d, want 200", len(out))
	}
	for i, v := range out {
		if v != 0.5 {
			t.Fatalf("out[%d] = %v, want 0.5", i, v)
		}
	}
}

func TestMasterVolumeScalesOutput(t *testing.T) {
	m := New(44100, 0, 0)
	m.SetMasterVolume(0.5)
	c := buildChainWithData(1000, 1, 1.0)
	m.SetCurrentChain(c, 0)

	out, _ := m.MixFrames(10)
	for i, v := range out {
		if v != 0.5 {
			t.Fatalf("out[%d] = %v, want 0.5 after master volume", i, v)
		}
	}
}

func TestPauseDecaysTowardZero(t *testing.T) {
	m := New(44100, 0.5, 0.01) // aggressive decay for a fast test
	c := buildChainWithData(1000, 1, 1.0)
	m.SetCurrentChain(c, 0)
	m.MixFrames(1) // establish a nonzero last sample
	m.Pause()

	out, signals := m.MixFrames(20)
	if signals != nil {
		t.Errorf("expected no signals while paused, got %v", signals)
	}
	if out[0] == 0 {
		t.Error("expected decay to start from a nonzero value")
	}
	if out[len(out)-1] != 0 && out[len(out)-1] >= 0.01 {
		t.Errorf("expected decay to reach the floor by frame 20, got %v", out[len(out)-1])
	}
}

func TestCrossfadeSumsBothChains(t *testing.T) {
	m := New(44100, 0, 0)
	a := buildChainWithData(1000, 1, 0.3)
	b := buildChainWithData(1000, 1, 0.2)
	m.SetCurrentChain(a, 0)
	m.SetNextChain(b)
	m.ActivateCrossfade()

	out, _ := m.MixFrames(10)
	for i, v := range out {
		if v < 0.49 || v > 0.51 {
			t.Fatalf("out[%d] = %v, want ~0.5 (0.3+0.2)", i, v)
		}
	}
}

func TestEndOfFileSignalWhenNoUnreachableMarkers(t *testing.T) {
	m := New(44100, 0, 0)
	c := buildChainWithData(50, 1, 0.1) // 50 frames total, less than one callback
	m.SetCurrentChain(c, 0)

	_, signals := m.MixFrames(200)
	found := false
	for _, s := range signals {
		if s.Kind == SignalEndOfFile {
			found = true
		}
	}
	if !found {
		t.Errorf("expected SignalEndOfFile, got %v", signals)
	}
}

func TestEndOfFileBeforeLeadOutWhenCrossfadeMarkerUnreachable(t *testing.T) {
	m := New(44100, 0, 0)
	c := buildChainWithData(50, 1, 0.1)
	m.SetCurrentChain(c, 0)
	nextID := uuid.New()
	m.ScheduleMarker(Marker{Tick: tick.FromMillis(10_000), Kind: MarkerStartCrossfade, NextQueueEntryID: nextID})

	_, signals := m.MixFrames(200)
	found := false
	for _, s := range signals {
		if s.Kind == SignalEndOfFileBeforeLeadOut && s.NextQueueEntryID == nextID {
			found = true
		}
	}
	if !found {
		t.Errorf("expected SignalEndOfFileBeforeLeadOut naming %v, got %v", nextID, signals)
	}
}

func TestPositionUpdateMarkerFiresWithinWindow(t *testing.T) {
	m := New(44100, 0, 0)
	c := buildChainWithData(10000, 1, 0.1)
	m.SetCurrentChain(c, 0)
	m.ScheduleMarker(Marker{Tick: tick.FromSampleIndex(50, 44100), Kind: MarkerPositionUpdate})

	_, signals := m.MixFrames(100)
	found := false
	for _, s := range signals {
		if s.Kind == SignalPositionUpdate {
			found = true
		}
	}
	if !found {
		t.Errorf("expected SignalPositionUpdate within the 100-frame window, got %v", signals)
	}
}

func TestResumeFadeRampsThenClears(t *testing.T) {
	m := New(44100, 0, 0)
	c := buildChainWithData(1000, 1, 1.0)
	m.SetCurrentChain(c, 0)
	m.StartResumeFade(10, curve.Linear)

	out, _ := m.MixFrames(5)
	if out[0] != 0 {
		t.Errorf("first resume-fade frame should start near 0, got %v", out[0])
	}

	out2, _ := m.MixFrames(10)
	last := out2[len(out2)-2]
	if last < 0.9 {
		t.Errorf("resume fade should have reached near full gain by frame 15, got %v", last)
	}
}
