package extractors

import (
	"context"

	wkmperrors "github.com/wkmp/core/internal/errors"
	"github.com/wkmp/core/internal/musicbrainz"
)

// MusicBrainzExtractor wraps musicbrainz.Client as a second-pass extractor:
// it only has something to contribute once fusion has resolved an MBID for
// the passage (spec §4.13, "Used in a second pass after fusion resolves the
// MBID").
type MusicBrainzExtractor struct {
	client *musicbrainz.Client
}

func NewMusicBrainzExtractor(client *musicbrainz.Client) *MusicBrainzExtractor {
	return &MusicBrainzExtractor{client: client}
}

func (e *MusicBrainzExtractor) Name() string            { return "musicbrainz" }
func (e *MusicBrainzExtractor) BaseConfidence() float64 { return musicbrainz.BaseConfidence }

func (e *MusicBrainzExtractor) Extract(ctx context.Context, pctx Context) (Result, error) {
	if pctx.KnownMBID == "" {
		return Result{}, wkmperrors.Newf("no resolved MBID to look up").
			Component("musicbrainz").
			Category(wkmperrors.CategoryExtraction).
			Build()
	}
	rec, err := e.client.Lookup(ctx, pctx.KnownMBID)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Source:     e.Name(),
		Confidence: e.BaseConfidence(),
		Metadata: &Metadata{
			Title:  rec.Title,
			Artist: rec.ArtistName,
			Album:  rec.ReleaseTitle,
		},
		Identity: &Identity{MusicBrainzID: rec.MBID},
	}, nil
}
