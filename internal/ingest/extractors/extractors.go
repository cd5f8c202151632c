// Package extractors implements the Source Extractors (spec §4.13): a set
// of independent, fallible analyzers that each propose a partial view of a
// passage's metadata, identity, or musical flavor. Fusion (internal/ingest/
// fusion) later reconciles their competing Results into one Song.
package extractors

import (
	"context"

	"github.com/google/uuid"

	"github.com/wkmp/core/internal/ingest/flavor"
)

// Context is everything an extractor may need about the passage under
// analysis. Not every extractor uses every field — the ID3 reader only
// needs FilePath, the audio-derived-features extractor only needs PCM.
type Context struct {
	PassageID   uuid.UUID
	FilePath    string
	StartTick   int64
	EndTick     int64
	SampleRate  int // PCM's sample rate, when PCM is populated
	PCM         []float32
	KnownMBID   string // populated on the MusicBrainz second pass
	Fingerprint string // populated once a fingerprint has been computed
	DurationSec int
}

// Metadata holds free-text fields an extractor proposes for the fused Song.
type Metadata struct {
	Title       string
	Artist      string
	Album       string
	ReleaseDate string
	TrackNumber int
	Duration    int // seconds
}

// Identity is a proposed recording identity.
type Identity struct {
	MusicBrainzID string
}

// Result is one extractor's opinion on a single passage. Any of the three
// payload fields may be nil/zero when that extractor has nothing to say
// about it — an ID3 genre mapper, for instance, only ever populates Flavor.
type Result struct {
	Source     string
	Confidence float64
	Metadata   *Metadata
	Identity   *Identity
	Flavor     *flavor.Opinion
}

// Extractor is the uniform capability every source extractor implements.
// Extractors are fallible and independent: a failure returned by one never
// blocks fusion from consuming the others' results (spec §4.13).
type Extractor interface {
	Name() string
	BaseConfidence() float64
	Extract(ctx context.Context, pctx Context) (Result, error)
}
