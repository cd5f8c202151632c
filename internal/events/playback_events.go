package events

import (
	"time"

	"github.com/google/uuid"
)

// Playback state reported by PlaybackStateEvent.
const (
	StatePlaying = "playing"
	StatePaused  = "paused"
	StateStopped = "stopped"
)

// PlaybackStateEvent reports a transition of overall engine playback state
// (control surface "playback-state").
type PlaybackStateEvent struct {
	State        string
	QueueEntryID *uuid.UUID
	PositionMS   int64
	occurred     time.Time
}

func NewPlaybackStateEvent(state string, queueEntryID *uuid.UUID, positionMS int64) PlaybackStateEvent {
	return PlaybackStateEvent{State: state, QueueEntryID: queueEntryID, PositionMS: positionMS, occurred: time.Now()}
}

func (e PlaybackStateEvent) Kind() string        { return "playback-state" }
func (e PlaybackStateEvent) Occurred() time.Time { return e.occurred }

// PassageStartedEvent fires exactly once per play instance of a passage,
// when its chain begins mixing it (spec invariant: paired 1:1 with
// PassageCompletedEvent, with PositionUpdateEvent strictly between).
type PassageStartedEvent struct {
	QueueEntryID uuid.UUID
	PassageID    uuid.UUID
	ChainIndex   int
	occurred     time.Time
}

func NewPassageStartedEvent(queueEntryID, passageID uuid.UUID, chainIndex int) PassageStartedEvent {
	return PassageStartedEvent{QueueEntryID: queueEntryID, PassageID: passageID, ChainIndex: chainIndex, occurred: time.Now()}
}

func (e PassageStartedEvent) Kind() string        { return "passage-started" }
func (e PassageStartedEvent) Occurred() time.Time { return e.occurred }

// PassageCompletedEvent fires exactly once per play instance of a passage,
// when its fade-out (or truncation) finishes and the chain is released.
type PassageCompletedEvent struct {
	QueueEntryID uuid.UUID
	PassageID    uuid.UUID
	ChainIndex   int
	Reason       string // "fade-out-complete", "skipped", "end-of-file"
	occurred     time.Time
}

func NewPassageCompletedEvent(queueEntryID, passageID uuid.UUID, chainIndex int, reason string) PassageCompletedEvent {
	return PassageCompletedEvent{QueueEntryID: queueEntryID, PassageID: passageID, ChainIndex: chainIndex, Reason: reason, occurred: time.Now()}
}

func (e PassageCompletedEvent) Kind() string        { return "passage-completed" }
func (e PassageCompletedEvent) Occurred() time.Time { return e.occurred }

// PositionUpdateEvent reports the current playback position of the
// passage currently playing, in milliseconds (control-surface boundary
// unit; internal storage stays in ticks).
type PositionUpdateEvent struct {
	QueueEntryID uuid.UUID
	PositionMS   int64
	occurred     time.Time
}

func NewPositionUpdateEvent(queueEntryID uuid.UUID, positionMS int64) PositionUpdateEvent {
	return PositionUpdateEvent{QueueEntryID: queueEntryID, PositionMS: positionMS, occurred: time.Now()}
}

func (e PositionUpdateEvent) Kind() string        { return "position-update" }
func (e PositionUpdateEvent) Occurred() time.Time { return e.occurred }

// BufferUnderrunEvent reports that the mixer had to fall back to silence
// (or the pause-decay tail) for a chain because the ring buffer ran dry.
type BufferUnderrunEvent struct {
	ChainIndex int
	occurred   time.Time
}

func NewBufferUnderrunEvent(chainIndex int) BufferUnderrunEvent {
	return BufferUnderrunEvent{ChainIndex: chainIndex, occurred: time.Now()}
}

func (e BufferUnderrunEvent) Kind() string        { return "buffer-underrun" }
func (e BufferUnderrunEvent) Occurred() time.Time { return e.occurred }

// Validation outcomes reported by ValidationResultEvent.
const (
	ValidationOutcomeSuccess = "validation-success"
	ValidationOutcomeWarning = "validation-warning"
	ValidationOutcomeFailure = "validation-failure"
)

// ValidationResultEvent reports the outcome of one periodic sample
// conservation check (decoder frames pushed vs. buffer written/read vs.
// mixer frames mixed).
type ValidationResultEvent struct {
	Outcome       string
	ChainIndex    int
	Discrepancy   int64
	ToleranceUsed int64
	occurred      time.Time
}

func NewValidationResultEvent(outcome string, chainIndex int, discrepancy, tolerance int64) ValidationResultEvent {
	return ValidationResultEvent{Outcome: outcome, ChainIndex: chainIndex, Discrepancy: discrepancy, ToleranceUsed: tolerance, occurred: time.Now()}
}

func (e ValidationResultEvent) Kind() string        { return e.Outcome }
func (e ValidationResultEvent) Occurred() time.Time { return e.occurred }
