package events

import (
	"time"

	"github.com/google/uuid"
)

// FilesDiscoveredEvent fires once Phase 1 of the scanner (the depth-bounded
// recursive walk) has finished enumerating audio-extension candidates under
// a root folder, before Phase 2's magic-byte verification begins.
type FilesDiscoveredEvent struct {
	SessionID  uuid.UUID
	RootFolder string
	FileCount  int
	occurred   time.Time
}

func NewFilesDiscoveredEvent(sessionID uuid.UUID, rootFolder string, fileCount int) FilesDiscoveredEvent {
	return FilesDiscoveredEvent{SessionID: sessionID, RootFolder: rootFolder, FileCount: fileCount, occurred: time.Now()}
}

func (e FilesDiscoveredEvent) Kind() string        { return "files-discovered" }
func (e FilesDiscoveredEvent) Occurred() time.Time { return e.occurred }

// ScanCompleteEvent fires once Phase 2 (parallel magic-byte verification)
// has finished, reporting how many candidates were confirmed audio files
// versus rejected for lacking a recognized signature.
type ScanCompleteEvent struct {
	SessionID     uuid.UUID
	RootFolder    string
	VerifiedCount int
	SkippedCount  int
	occurred      time.Time
}

func NewScanCompleteEvent(sessionID uuid.UUID, rootFolder string, verifiedCount, skippedCount int) ScanCompleteEvent {
	return ScanCompleteEvent{SessionID: sessionID, RootFolder: rootFolder, VerifiedCount: verifiedCount, SkippedCount: skippedCount, occurred: time.Now()}
}

func (e ScanCompleteEvent) Kind() string        { return "scan-complete" }
func (e ScanCompleteEvent) Occurred() time.Time { return e.occurred }

// PassagesDiscoveredEvent fires once per file, after boundary detection has
// split it into candidate passages and before per-passage extraction begins.
type PassagesDiscoveredEvent struct {
	SessionID    uuid.UUID
	FilePath     string
	PassageCount int
	occurred     time.Time
}

func NewPassagesDiscoveredEvent(sessionID uuid.UUID, filePath string, passageCount int) PassagesDiscoveredEvent {
	return PassagesDiscoveredEvent{SessionID: sessionID, FilePath: filePath, PassageCount: passageCount, occurred: time.Now()}
}

func (e PassagesDiscoveredEvent) Kind() string        { return "passages-discovered" }
func (e PassagesDiscoveredEvent) Occurred() time.Time { return e.occurred }

// SongStartedEvent fires when per-song processing (extraction through
// flavoring) begins for one passage.
type SongStartedEvent struct {
	SessionID uuid.UUID
	PassageID uuid.UUID
	occurred  time.Time
}

func NewSongStartedEvent(sessionID, passageID uuid.UUID) SongStartedEvent {
	return SongStartedEvent{SessionID: sessionID, PassageID: passageID, occurred: time.Now()}
}

func (e SongStartedEvent) Kind() string        { return "song-started" }
func (e SongStartedEvent) Occurred() time.Time { return e.occurred }

// ExtractionCompleteEvent fires once the parallel extractor fan-out for a
// passage has finished (successes and failures alike; per-extractor errors
// are isolated and recorded on the session, not surfaced here).
type ExtractionCompleteEvent struct {
	SessionID      uuid.UUID
	PassageID      uuid.UUID
	SucceededCount int
	FailedCount    int
	occurred       time.Time
}

func NewExtractionCompleteEvent(sessionID, passageID uuid.UUID, succeeded, failed int) ExtractionCompleteEvent {
	return ExtractionCompleteEvent{SessionID: sessionID, PassageID: passageID, SucceededCount: succeeded, FailedCount: failed, occurred: time.Now()}
}

func (e ExtractionCompleteEvent) Kind() string        { return "extraction-complete" }
func (e ExtractionCompleteEvent) Occurred() time.Time { return e.occurred }

// FusionCompleteEvent fires once extractor outputs have been merged into a
// single confidence-weighted record for the passage.
type FusionCompleteEvent struct {
	SessionID    uuid.UUID
	PassageID    uuid.UUID
	QualityScore float64
	occurred     time.Time
}

func NewFusionCompleteEvent(sessionID, passageID uuid.UUID, qualityScore float64) FusionCompleteEvent {
	return FusionCompleteEvent{SessionID: sessionID, PassageID: passageID, QualityScore: qualityScore, occurred: time.Now()}
}

func (e FusionCompleteEvent) Kind() string        { return "fusion-complete" }
func (e FusionCompleteEvent) Occurred() time.Time { return e.occurred }

// Validation outcomes reported by ValidationCompleteEvent (ingest side;
// distinct from the playback core's ValidationResultEvent).
const (
	IngestValidationPass    = "pass"
	IngestValidationWarning = "warning"
	IngestValidationFail    = "fail"
)

// ValidationCompleteEvent fires once fused metadata for a passage has been
// checked against the quality thresholds.
type ValidationCompleteEvent struct {
	SessionID uuid.UUID
	PassageID uuid.UUID
	Outcome   string
	occurred  time.Time
}

func NewValidationCompleteEvent(sessionID, passageID uuid.UUID, outcome string) ValidationCompleteEvent {
	return ValidationCompleteEvent{SessionID: sessionID, PassageID: passageID, Outcome: outcome, occurred: time.Now()}
}

func (e ValidationCompleteEvent) Kind() string        { return "validation-complete" }
func (e ValidationCompleteEvent) Occurred() time.Time { return e.occurred }

// SongCompleteEvent fires when a passage has been fully processed and
// persisted.
type SongCompleteEvent struct {
	SessionID uuid.UUID
	PassageID uuid.UUID
	occurred  time.Time
}

func NewSongCompleteEvent(sessionID, passageID uuid.UUID) SongCompleteEvent {
	return SongCompleteEvent{SessionID: sessionID, PassageID: passageID, occurred: time.Now()}
}

func (e SongCompleteEvent) Kind() string        { return "song-complete" }
func (e SongCompleteEvent) Occurred() time.Time { return e.occurred }

// SongFailedEvent fires when a passage could not be processed at all (as
// opposed to a Warning-tier quality result, which still completes). The
// orchestrator records Error in the session's errors list and continues
// with the next passage.
type SongFailedEvent struct {
	SessionID uuid.UUID
	PassageID uuid.UUID
	Error     string
	occurred  time.Time
}

func NewSongFailedEvent(sessionID, passageID uuid.UUID, errMsg string) SongFailedEvent {
	return SongFailedEvent{SessionID: sessionID, PassageID: passageID, Error: errMsg, occurred: time.Now()}
}

func (e SongFailedEvent) Kind() string        { return "song-failed" }
func (e SongFailedEvent) Occurred() time.Time { return e.occurred }

// FileComplete reports that every passage discovered in one file has
// reached a terminal state (SongComplete or SongFailed).
type FileCompleteEvent struct {
	SessionID uuid.UUID
	FilePath  string
	Success   int
	Failure   int
	Skip      int
	occurred  time.Time
}

func NewFileCompleteEvent(sessionID uuid.UUID, filePath string, success, failure, skip int) FileCompleteEvent {
	return FileCompleteEvent{SessionID: sessionID, FilePath: filePath, Success: success, Failure: failure, Skip: skip, occurred: time.Now()}
}

func (e FileCompleteEvent) Kind() string        { return "file-complete" }
func (e FileCompleteEvent) Occurred() time.Time { return e.occurred }

// SessionStartedEvent fires once when an import session begins, before the
// Scanning phase's own FilesDiscoveredEvent.
type SessionStartedEvent struct {
	SessionID  uuid.UUID
	RootFolder string
	occurred   time.Time
}

func NewSessionStartedEvent(sessionID uuid.UUID, rootFolder string) SessionStartedEvent {
	return SessionStartedEvent{SessionID: sessionID, RootFolder: rootFolder, occurred: time.Now()}
}

func (e SessionStartedEvent) Kind() string        { return "session-started" }
func (e SessionStartedEvent) Occurred() time.Time { return e.occurred }

// SessionCompleteEvent fires once an import session reaches the terminal
// Completed state.
type SessionCompleteEvent struct {
	SessionID    uuid.UUID
	FilesScanned int
	occurred     time.Time
}

func NewSessionCompleteEvent(sessionID uuid.UUID, filesScanned int) SessionCompleteEvent {
	return SessionCompleteEvent{SessionID: sessionID, FilesScanned: filesScanned, occurred: time.Now()}
}

func (e SessionCompleteEvent) Kind() string        { return "session-complete" }
func (e SessionCompleteEvent) Occurred() time.Time { return e.occurred }

// SessionFailedEvent fires when the orchestrator itself cannot continue
// (as opposed to a per-passage SongFailedEvent, which doesn't halt the
// session).
type SessionFailedEvent struct {
	SessionID uuid.UUID
	Error     string
	occurred  time.Time
}

func NewSessionFailedEvent(sessionID uuid.UUID, errMsg string) SessionFailedEvent {
	return SessionFailedEvent{SessionID: sessionID, Error: errMsg, occurred: time.Now()}
}

func (e SessionFailedEvent) Kind() string        { return "session-failed" }
func (e SessionFailedEvent) Occurred() time.Time { return e.occurred }
