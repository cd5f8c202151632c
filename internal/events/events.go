// Package events provides an asynchronous, non-blocking event bus shared by
// both wkmp cores. Playback and ingest components publish lifecycle events
// (playback state, passage start/complete, import-session phases, ...) that
// the SSE control-surface layer (out of scope here) and internal consumers
// such as metrics subscribe to, without the publisher ever blocking on a
// slow or absent subscriber.
package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/wkmp/core/internal/logging"
)

// Event is anything that can be carried on the bus. Concrete event types
// live in playback_events.go and ingest_events.go.
type Event interface {
	// Kind is a stable, lower-kebab-case identifier (e.g. "passage-started")
	// suitable for use as an SSE "kind" field or a metrics label.
	Kind() string

	// Occurred returns when the event was constructed.
	Occurred() time.Time
}

// EventConsumer processes events delivered by the bus.
type EventConsumer interface {
	// Name identifies the consumer for registration and logging.
	Name() string

	// ProcessEvent handles a single event.
	ProcessEvent(event Event) error

	// ProcessBatch handles multiple events at once, for consumers that
	// benefit from batching (e.g. writing a batch of SSE frames).
	ProcessBatch(events []Event) error

	// SupportsBatching reports whether ProcessBatch should be preferred.
	SupportsBatching() bool
}

// EventBusStats contains runtime statistics for monitoring.
type EventBusStats struct {
	EventsReceived  uint64
	EventsThrottled uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}

// Config holds event bus configuration.
type Config struct {
	BufferSize int
	Workers    int
	Enabled    bool
}

// DefaultConfig returns the default event bus configuration.
func DefaultConfig() *Config {
	return &Config{
		BufferSize: 4096,
		Workers:    2,
		Enabled:    true,
	}
}

// EventBus provides asynchronous event delivery with non-blocking publish.
type EventBus struct {
	eventChan chan Event

	bufferSize int
	workers    int

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	initialized atomic.Bool
	running     atomic.Bool
	mu          sync.Mutex

	consumers []EventConsumer

	stats EventBusStats

	logger *slog.Logger
}

var (
	globalEventBus *EventBus
	globalMutex    sync.Mutex
)

// Initialize creates or returns the global event bus instance.
func Initialize(config *Config) (*EventBus, error) {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	if globalEventBus != nil {
		return globalEventBus, nil
	}

	if config == nil {
		config = DefaultConfig()
	}
	if !config.Enabled {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	eb := &EventBus{
		eventChan:  make(chan Event, config.BufferSize),
		bufferSize: config.BufferSize,
		workers:    config.Workers,
		ctx:        ctx,
		cancel:     cancel,
		consumers:  make([]EventConsumer, 0),
		logger:     logging.ForService("events"),
	}
	if eb.logger == nil {
		eb.logger = slog.Default()
	}
	eb.initialized.Store(true)
	globalEventBus = eb

	eb.logger.Info("event bus initialized", "buffer_size", config.BufferSize, "workers", config.Workers)
	return eb, nil
}

// GetEventBus returns the global event bus instance, or nil if never
// initialized or initialized with Enabled: false.
func GetEventBus() *EventBus {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	return globalEventBus
}

// IsInitialized reports whether the global event bus is active.
func IsInitialized() bool {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	return globalEventBus != nil && globalEventBus.initialized.Load()
}

// resetForTest tears down the global event bus so tests can reinitialize it
// in isolation.
func resetForTest() {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	globalEventBus = nil
}

// RegisterConsumer adds a new event consumer and starts the worker pool the
// first time a consumer is registered.
func (eb *EventBus) RegisterConsumer(consumer EventConsumer) error {
	if eb == nil {
		return fmt.Errorf("event bus not initialized")
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, existing := range eb.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}
	eb.consumers = append(eb.consumers, consumer)

	eb.logger.Info("registered event consumer", "consumer", consumer.Name(), "supports_batching", consumer.SupportsBatching())

	if len(eb.consumers) == 1 && !eb.running.Load() {
		eb.start()
	}
	return nil
}

// TryPublish attempts to publish an event without blocking. It returns true
// if the event was accepted onto the channel, false if there were no
// consumers or the buffer was full (the event is then dropped, never
// blocking the caller — publishers run on audio-critical or scan-critical
// paths that must never stall on a slow subscriber).
func (eb *EventBus) TryPublish(event Event) bool {
	if eb == nil || !eb.initialized.Load() || !eb.running.Load() {
		return false
	}

	eb.mu.Lock()
	hasConsumers := len(eb.consumers) > 0
	eb.mu.Unlock()
	if !hasConsumers {
		return false
	}

	select {
	case eb.eventChan <- event:
		atomic.AddUint64(&eb.stats.EventsReceived, 1)
		return true
	default:
		atomic.AddUint64(&eb.stats.EventsDropped, 1)
		if eb.logger != nil {
			eb.logger.Debug("event dropped due to full buffer", "kind", event.Kind())
		}
		return false
	}
}

func (eb *EventBus) start() {
	if eb.running.Swap(true) {
		return
	}
	eb.logger.Info("starting event bus workers", "count", eb.workers)
	for i := 0; i < eb.workers; i++ {
		eb.wg.Add(1)
		go eb.worker(i)
	}
}

func (eb *EventBus) worker(id int) {
	defer eb.wg.Done()
	logger := eb.logger.With("worker_id", id)
	logger.Debug("worker started")

	for {
		select {
		case <-eb.ctx.Done():
			for {
				select {
				case event, ok := <-eb.eventChan:
					if !ok {
						return
					}
					eb.processEvent(event, logger)
				default:
					logger.Debug("worker stopping due to context cancellation")
					return
				}
			}
		case event, ok := <-eb.eventChan:
			if !ok {
				logger.Debug("worker stopping due to channel closure")
				return
			}
			eb.processEvent(event, logger)
		}
	}
}

func (eb *EventBus) processEvent(event Event, logger *slog.Logger) {
	eb.mu.Lock()
	consumers := make([]EventConsumer, len(eb.consumers))
	copy(consumers, eb.consumers)
	eb.mu.Unlock()

	for _, consumer := range consumers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
					logger.Error("consumer panicked", "consumer", consumer.Name(), "panic", r, "kind", event.Kind())
				}
			}()

			if err := consumer.ProcessEvent(event); err != nil {
				atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
				logger.Error("consumer error", "consumer", consumer.Name(), "error", err, "kind", event.Kind())
			} else {
				atomic.AddUint64(&eb.stats.EventsProcessed, 1)
			}
		}()
	}
}

// Shutdown gracefully drains in-flight events and stops the worker pool,
// returning an error if workers have not exited within timeout.
func (eb *EventBus) Shutdown(timeout time.Duration) error {
	if eb == nil || !eb.initialized.Load() {
		return nil
	}

	eb.logger.Info("shutting down event bus", "timeout", timeout)
	eb.running.Store(false)
	eb.cancel()

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		eb.logger.Info("event bus shutdown complete")
		return nil
	case <-time.After(timeout):
		eb.logger.Warn("event bus shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// GetStats returns current event bus statistics.
func (eb *EventBus) GetStats() EventBusStats {
	if eb == nil {
		return EventBusStats{}
	}
	return EventBusStats{
		EventsReceived:  atomic.LoadUint64(&eb.stats.EventsReceived),
		EventsThrottled: atomic.LoadUint64(&eb.stats.EventsThrottled),
		EventsProcessed: atomic.LoadUint64(&eb.stats.EventsProcessed),
		EventsDropped:   atomic.LoadUint64(&eb.stats.EventsDropped),
		ConsumerErrors:  atomic.LoadUint64(&eb.stats.ConsumerErrors),
	}
}
