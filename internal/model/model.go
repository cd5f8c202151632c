// Package model defines the persisted data shapes shared by both wkmp
// cores: audio files, passages, the playback queue, settings, import
// sessions/provenance, and the song/flavor identities ingest produces.
// GORM struct tags follow the teacher's datastore conventions (named
// composite indexes, uniqueIndex, foreignKey+cascade, gorm:"-" for
// runtime-only fields).
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/wkmp/core/internal/curve"
	"github.com/wkmp/core/internal/tick"
)

// AudioFile is a scanned, deduplicated source file. Identity is the SHA-256
// of its contents; Path is a secondary unique key (one filesystem record
// per path).
type AudioFile struct {
	Hash       string    `gorm:"primaryKey;size:64"`
	Path       string    `gorm:"uniqueIndex;size:4096;not null"`
	DurationTk *int64    `gorm:"column:duration_ticks"` // nil when unknown
	Format     string    `gorm:"size:16"`
	SampleRate int       `gorm:"not null"`
	Channels   int       `gorm:"not null"`
	ByteSize   int64     `gorm:"not null"`
	ModTime    time.Time `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (AudioFile) TableName() string { return "files" }

// Passage is an immutable time window inside a file, bounded by tick
// positions satisfying start ≤ fade_in ≤ lead_in ≤ lead_out ≤ fade_out ≤ end.
type Passage struct {
	ID           uuid.UUID       `gorm:"primaryKey;type:text"`
	FileHash     string          `gorm:"index;size:64;not null"`
	StartTick    int64           `gorm:"column:start_tick;not null;check:chk_passage_lead_order,start_tick <= lead_in_tick AND lead_in_tick <= lead_out_tick AND (end_tick IS NULL OR lead_out_tick <= end_tick)"`
	EndTick      *int64          `gorm:"column:end_tick"` // nil = file end
	FadeInTick   int64           `gorm:"column:fade_in_tick;not null"`
	LeadInTick   int64           `gorm:"column:lead_in_tick;not null"`
	LeadOutTick  int64           `gorm:"column:lead_out_tick;not null"`
	FadeOutTick  int64           `gorm:"column:fade_out_tick;not null"`
	FadeInCurve  curve.FadeCurve `gorm:"column:fade_in_curve;size:20;not null"`
	FadeOutCurve curve.FadeCurve `gorm:"column:fade_out_curve;size:20;not null"`
	CreatedAt    time.Time
}

func (Passage) TableName() string { return "passages" }

// Bounds returns the six tick fields as tick.Tick values, for convenient
// invariant checking against spec §8's ordering property.
func (p Passage) Bounds() (start, fadeIn, leadIn, leadOut, fadeOut tick.Tick, end *tick.Tick) {
	start = tick.Tick(p.StartTick)
	fadeIn = tick.Tick(p.FadeInTick)
	leadIn = tick.Tick(p.LeadInTick)
	leadOut = tick.Tick(p.LeadOutTick)
	fadeOut = tick.Tick(p.FadeOutTick)
	if p.EndTick != nil {
		e := tick.Tick(*p.EndTick)
		end = &e
	}
	return
}

// QueueEntry is a scheduled instance of a passage for playback, ordered by
// PlayOrder (gaps of 10 reserved for cheap reordering).
type QueueEntry struct {
	ID           uuid.UUID `gorm:"primaryKey;type:text;column:queue_entry_id"`
	PassageID    uuid.UUID `gorm:"index;type:text;not null"`
	FilePath     string    `gorm:"size:4096;not null"` // denormalised from the file record
	StartTick    int64     `gorm:"not null"`
	EndTick      *int64
	FadeInTick   int64           `gorm:"not null"`
	LeadInTick   int64           `gorm:"not null"`
	LeadOutTick  int64           `gorm:"not null"`
	FadeOutTick  int64           `gorm:"not null"`
	FadeInCurve  curve.FadeCurve `gorm:"size:20;not null"`
	FadeOutCurve curve.FadeCurve `gorm:"size:20;not null"`
	PlayOrder    int64           `gorm:"uniqueIndex;not null"`
	ChainIndex   *int            `gorm:"column:chain_index"` // nil when unassigned
	CreatedAt    time.Time
}

func (QueueEntry) TableName() string { return "queue" }

// ImportSessionState is the forward-only lifecycle of an ingest run.
type ImportSessionState string

const (
	ImportScanning       ImportSessionState = "scanning"
	ImportExtracting     ImportSessionState = "extracting"
	ImportSegmenting     ImportSessionState = "segmenting"
	ImportFingerprinting ImportSessionState = "fingerprinting"
	ImportIdentifying    ImportSessionState = "identifying"
	ImportAnalyzing      ImportSessionState = "analyzing"
	ImportFlavoring      ImportSessionState = "flavoring"
	ImportCompleted      ImportSessionState = "completed"
	ImportCancelled      ImportSessionState = "cancelled"
	ImportFailed         ImportSessionState = "failed"
)

// IsTerminal reports whether this state ends the session's lifecycle.
func (s ImportSessionState) IsTerminal() bool {
	switch s {
	case ImportCompleted, ImportCancelled, ImportFailed:
		return true
	default:
		return false
	}
}

// PhaseCounters tallies success/failure/skip for one ingest phase, used to
// color the per-phase progress indicator (green ≥95%, yellow 85-95%, red <85%).
type PhaseCounters struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Skip    int `json:"skip"`
}

// SuccessRatio returns the fraction of attempted work that succeeded, or 1.0
// when nothing has been attempted yet.
func (c PhaseCounters) SuccessRatio() float64 {
	total := c.Success + c.Failure + c.Skip
	if total == 0 {
		return 1.0
	}
	return float64(c.Success) / float64(total)
}

// ImportSession is a persisted ingest workflow run.
type ImportSession struct {
	ID         uuid.UUID          `gorm:"primaryKey;type:text"`
	RootFolder string             `gorm:"size:4096;not null"`
	State      ImportSessionState `gorm:"size:20;index;not null"`
	Phases     string             `gorm:"type:text"` // JSON-encoded map[string]PhaseCounters
	Errors     string             `gorm:"type:text"` // JSON-encoded []string
	StartedAt  time.Time          `gorm:"not null"`
	EndedAt    *time.Time         // non-nil iff State.IsTerminal()
}

func (ImportSession) TableName() string { return "import_sessions" }

// ImportProvenance records one extractor's contribution to a fused passage
// identity, for audit and confidence-weighted fusion review.
type ImportProvenance struct {
	ID            uint      `gorm:"primaryKey"`
	ImportSession uuid.UUID `gorm:"index;type:text;not null"`
	PassageID     uuid.UUID `gorm:"index;type:text;not null"`
	SourceName    string    `gorm:"size:64;not null"` // e.g. "id3", "musicbrainz", "acoustid"
	Field         string    `gorm:"size:64;not null"` // e.g. "artist", "title"
	Value         string    `gorm:"type:text"`
	Confidence    float64   `gorm:"not null"`
	Accepted      bool      `gorm:"not null"` // true if fusion selected this value
	CreatedAt     time.Time
}

func (ImportProvenance) TableName() string { return "import_provenance" }

// Song is a fused musical identity: the result of confidence-weighted
// merging across extractor sources, plus a compressed "musical flavor"
// feature vector fused from the extractors' flavor opinions.
type Song struct {
	ID             uuid.UUID `gorm:"primaryKey;type:text"`
	Title          string    `gorm:"size:500"`
	Artist         string    `gorm:"size:500"`
	Album          string    `gorm:"size:500"`
	MusicBrainzID  string    `gorm:"index;size:64"`
	AcoustIDFinger string    `gorm:"type:text"`
	FlavorVector   string    `gorm:"type:text"` // JSON; falls back to a neutral vector if invalid
	QualityScore   float64   `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Song) TableName() string { return "songs" }

// PassageSong places a Song within a passage's timeline (a passage may
// cover more than one song, e.g. a medley).
type PassageSong struct {
	ID         uint      `gorm:"primaryKey"`
	PassageID  uuid.UUID `gorm:"index;type:text;not null"`
	SongID     uuid.UUID `gorm:"index;type:text;not null"`
	StartTick  int64     `gorm:"not null"`
	EndTick    *int64
	SequenceNo int `gorm:"not null"` // ordering within the passage
}

func (PassageSong) TableName() string { return "passage_songs" }

// Setting is a persisted key/value configuration row. RestartRequired marks
// the subset of settings that only take effect on process restart (spec §6
// Persistence layout: "settings (key/value, \"restart-required\" subset)").
type Setting struct {
	Key             string `gorm:"primaryKey;size:128"`
	Value           string `gorm:"type:text"`
	RestartRequired bool   `gorm:"not null;default:false"`
	UpdatedAt       time.Time
}

func (Setting) TableName() string { return "settings" }
