package extractors

import (
	"context"
	"fmt"
	"os"

	"github.com/dhowden/tag"

	wkmperrors "github.com/wkmp/core/internal/errors"
)

// ID3Reader reads embedded title/artist/album tags (spec §4.13, "basic
// tags", 0.7 confidence). It does not read an embedded MusicBrainz
// recording ID, so it never proposes an identity.
type ID3Reader struct{}

func NewID3Reader() *ID3Reader { return &ID3Reader{} }

func (e *ID3Reader) Name() string            { return "id3-tag-reader" }
func (e *ID3Reader) BaseConfidence() float64 { return 0.7 }

func (e *ID3Reader) Extract(_ context.Context, pctx Context) (Result, error) {
	f, err := os.Open(pctx.FilePath)
	if err != nil {
		return Result{}, wkmperrors.New(err).
			Component("id3-tag-reader").
			Category(wkmperrors.CategoryExtraction).
			Context("path", pctx.FilePath).
			Build()
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return Result{}, wkmperrors.New(err).
			Component("id3-tag-reader").
			Category(wkmperrors.CategoryExtraction).
			Context("path", pctx.FilePath).
			Build()
	}

	trackNum, _ := m.Track()
	result := Result{
		Source:     e.Name(),
		Confidence: e.BaseConfidence(),
		Metadata: &Metadata{
			Title:       m.Title(),
			Artist:      m.Artist(),
			Album:       m.Album(),
			TrackNumber: trackNum,
		},
	}
	if y := m.Year(); y > 0 {
		result.Metadata.ReleaseDate = fmt.Sprintf("%04d-01-01", y)
	}
	// Some taggers stash a MusicBrainz recording ID in a custom raw frame;
	// tag.Metadata doesn't surface it directly, so we only ever propose
	// empty identity here — the AcoustID/MusicBrainz clients resolve it.
	return result, nil
}
