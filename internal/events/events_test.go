package events

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type recordingConsumer struct {
	name     string
	mu       sync.Mutex
	received []Event
	batching bool
}

func (c *recordingConsumer) Name() string { return c.name }

func (c *recordingConsumer) ProcessEvent(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, event)
	return nil
}

func (c *recordingConsumer) ProcessBatch(evts []Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, evts...)
	return nil
}

func (c *recordingConsumer) SupportsBatching() bool { return c.batching }

func (c *recordingConsumer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

func newTestBus(t *testing.T) *EventBus {
	t.Helper()
	resetForTest()
	eb, err := Initialize(&Config{BufferSize: 16, Workers: 2, Enabled: true})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() {
		_ = eb.Shutdown(time.Second)
		resetForTest()
	})
	return eb
}

func TestTryPublishRequiresConsumer(t *testing.T) {
	eb := newTestBus(t)
	if eb.TryPublish(NewPlaybackStateEvent(StatePlaying, nil, 0)) {
		t.Error("expected TryPublish to return false with no registered consumers")
	}
}

func TestTryPublishDeliversToConsumer(t *testing.T) {
	eb := newTestBus(t)
	c := &recordingConsumer{name: "test"}
	if err := eb.RegisterConsumer(c); err != nil {
		t.Fatalf("RegisterConsumer failed: %v", err)
	}

	qid := uuid.New()
	if !eb.TryPublish(NewPassageStartedEvent(qid, uuid.New(), 0)) {
		t.Fatal("expected TryPublish to accept the event")
	}

	deadline := time.After(time.Second)
	for c.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("consumer never received the event")
		case <-time.After(time.Millisecond):
		}
	}

	stats := eb.GetStats()
	if stats.EventsReceived != 1 || stats.EventsProcessed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRegisterConsumerRejectsDuplicateName(t *testing.T) {
	eb := newTestBus(t)
	c1 := &recordingConsumer{name: "dup"}
	c2 := &recordingConsumer{name: "dup"}
	if err := eb.RegisterConsumer(c1); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if err := eb.RegisterConsumer(c2); err == nil {
		t.Error("expected duplicate-name registration to fail")
	}
}

func TestTryPublishDropsWhenBufferFull(t *testing.T) {
	resetForTest()
	eb, err := Initialize(&Config{BufferSize: 1, Workers: 1, Enabled: true})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(resetForTest)

	blocker := &blockingConsumer{started: make(chan struct{}), release: make(chan struct{})}
	if err := eb.RegisterConsumer(blocker); err != nil {
		t.Fatalf("RegisterConsumer failed: %v", err)
	}

	eb.TryPublish(NewBufferUnderrunEvent(0))
	<-blocker.started

	// Worker is now blocked draining the channel into blocker; buffer
	// capacity 1 means the channel itself still has a slot for exactly one
	// more in-flight send before TryPublish starts reporting false.
	eb.TryPublish(NewBufferUnderrunEvent(1))
	accepted := eb.TryPublish(NewBufferUnderrunEvent(2))

	close(blocker.release)
	if accepted {
		t.Error("expected at least one publish to be dropped once the buffer filled")
	}
	stats := eb.GetStats()
	if stats.EventsDropped == 0 {
		t.Errorf("expected EventsDropped > 0, got %+v", stats)
	}
}

type blockingConsumer struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (c *blockingConsumer) Name() string { return "blocking" }
func (c *blockingConsumer) ProcessEvent(event Event) error {
	c.once.Do(func() { close(c.started) })
	<-c.release
	return nil
}
func (c *blockingConsumer) ProcessBatch(events []Event) error { return nil }
func (c *blockingConsumer) SupportsBatching() bool            { return false }

func TestShutdownWaitsForInFlightWork(t *testing.T) {
	resetForTest()
	eb, err := Initialize(&Config{BufferSize: 4, Workers: 1, Enabled: true})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	c := &recordingConsumer{name: "shutdown-test"}
	if err := eb.RegisterConsumer(c); err != nil {
		t.Fatalf("RegisterConsumer failed: %v", err)
	}
	eb.TryPublish(NewPlaybackStateEvent(StateStopped, nil, 0))

	if err := eb.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if c.count() != 1 {
		t.Errorf("expected the in-flight event to be processed before shutdown, got count=%d", c.count())
	}
}

func TestDisabledConfigReturnsNilBus(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)
	eb, err := Initialize(&Config{Enabled: false})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if eb != nil {
		t.Error("expected nil bus when Enabled is false")
	}
	if IsInitialized() {
		t.Error("expected IsInitialized to report false")
	}
}
