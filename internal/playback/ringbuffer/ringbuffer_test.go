package ringbuffer

import "testing"

func TestPushPopRoundTrip(t *testing.T) {
	rb := New(16, 0)
	frames := []float32{0.1, -0.1, 0.2, -0.2, 0.3, -0.3}
	n := rb.Push(frames)
	if n != 3 {
		t.Fatalf("expected 3 frames accepted, got %d", n)
	}

	out := rb.Pop(3)
	if len(out) != 6 {
		t.Fatalf("expected 6 samples popped, got %d", len(out))
	}
	for i, v := range frames {
		if out[i] != v {
			t.Errorf("sample %d: got %v, want %v", i, out[i], v)
		}
	}
}

func TestPushPartialWhenNearlyFull(t *testing.T) {
	rb := New(1, 1)
	frames := make([]float32, 8) // 4 frames requested into a 2-frame buffer
	n := rb.Push(frames)
	if n != 2 {
		t.Errorf("expected partial push of 2 frames, got %d", n)
	}
}

func TestPopEmptyReturnsZeroLength(t *testing.T) {
	rb := New(4, 0)
	out := rb.Pop(10)
	if len(out) != 0 {
		t.Errorf("expected empty pop, got %d samples", len(out))
	}
}

func TestFinalizeAndDrained(t *testing.T) {
	rb := New(4, 0)
	rb.Push([]float32{1, 1, 2, 2})
	rb.Finalize(2)
	if rb.Drained() {
		t.Error("expected not drained before consumer catches up")
	}
	rb.Pop(2)
	if !rb.Drained() {
		t.Error("expected drained once finalized frames are all popped")
	}
}

func TestMonotonicCounters(t *testing.T) {
	rb := New(8, 0)
	rb.Push([]float32{1, 1, 2, 2, 3, 3})
	rb.Pop(2)
	if rb.FramesPushed() != 3 {
		t.Errorf("FramesPushed = %d, want 3", rb.FramesPushed())
	}
	if rb.FramesPopped() != 2 {
		t.Errorf("FramesPopped = %d, want 2", rb.FramesPopped())
	}
	if rb.OccupiedFrames() != 1 {
		t.Errorf("OccupiedFrames = %d, want 1", rb.OccupiedFrames())
	}
}
