// Package buffermanager implements the Buffer Manager (spec §4.7):
// custodian of ring buffers keyed by queue_entry_id.
package buffermanager

import (
	"sync"

	"github.com/google/uuid"

	"github.com/wkmp/core/internal/playback/ringbuffer"
)

// defaultResumeHysteresisFrames is one decoder-resume-hysteresis
// worth of buffered audio (44,100 samples, per spec §4.6's example).
const defaultResumeHysteresisFrames = 44_100

// Manager owns one ring buffer per queue entry currently decoding or
// playing, plus the hysteresis threshold governing decoder resume.
type Manager struct {
	mu               sync.RWMutex
	buffers          map[uuid.UUID]*ringbuffer.RingBuffer
	resumeHysteresis int
	capacityFrames   int
	headroomFrames   int
}

// New constructs a Manager. capacityFrames/headroomFrames of 0 use the
// ring buffer package's own defaults.
func New(capacityFrames, headroomFrames, resumeHysteresisFrames int) *Manager {
	if resumeHysteresisFrames <= 0 {
		resumeHysteresisFrames = defaultResumeHysteresisFrames
	}
	return &Manager{
		buffers:          make(map[uuid.UUID]*ringbuffer.RingBuffer),
		resumeHysteresis: resumeHysteresisFrames,
		capacityFrames:   capacityFrames,
		headroomFrames:   headroomFrames,
	}
}

// RegisterDecoding creates a fresh ring buffer for id, replacing any
// prior buffer under the same id.
func (m *Manager) RegisterDecoding(id uuid.UUID) *ringbuffer.RingBuffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := ringbuffer.New(m.capacityFrames, m.headroomFrames)
	m.buffers[id] = buf
	return buf
}

// PushSamples forwards samples to id's ring buffer, returning the
// number of frames accepted. Returns 0 if id is not registered.
func (m *Manager) PushSamples(id uuid.UUID, samples []float32) int {
	m.mu.RLock()
	buf, ok := m.buffers[id]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return buf.Push(samples)
}

// FinalizeBuffer marks id's buffer as decode-complete at totalSamples
// frames. A no-op if id is not registered.
func (m *Manager) FinalizeBuffer(id uuid.UUID, totalSamples int64) {
	m.mu.RLock()
	buf, ok := m.buffers[id]
	m.mu.RUnlock()
	if !ok {
		return
	}
	buf.Finalize(totalSamples)
}

// GetBuffer returns the consumer-facing handle for id, or nil if
// unregistered.
func (m *Manager) GetBuffer(id uuid.UUID) *ringbuffer.RingBuffer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buffers[id]
}

// RemoveBuffer destroys id's buffer.
func (m *Manager) RemoveBuffer(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buffers, id)
}

// CanDecoderResume reports whether id's buffer occupancy has fallen
// enough below the hysteresis threshold to re-admit its decoder chain
// to the worker's active set. Unregistered ids cannot resume.
func (m *Manager) CanDecoderResume(id uuid.UUID) bool {
	m.mu.RLock()
	buf, ok := m.buffers[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return buf.OccupiedFrames() < m.resumeHysteresis
}
