package extractors

import (
	"context"

	"github.com/wkmp/core/internal/acousticbrainz"
	wkmperrors "github.com/wkmp/core/internal/errors"
	"github.com/wkmp/core/internal/ingest/flavor"
)

// AcousticBrainzExtractor wraps acousticbrainz.Client, converting its
// high-level feature document into a flavor vector. Confidence is carried
// straight through from the feature document, which the client always
// fills with 1.0.
type AcousticBrainzExtractor struct {
	client *acousticbrainz.Client
}

func NewAcousticBrainzExtractor(client *acousticbrainz.Client) *AcousticBrainzExtractor {
	return &AcousticBrainzExtractor{client: client}
}

func (e *AcousticBrainzExtractor) Name() string            { return "acousticbrainz" }
func (e *AcousticBrainzExtractor) BaseConfidence() float64 { return 1.0 }

func (e *AcousticBrainzExtractor) Extract(ctx context.Context, pctx Context) (Result, error) {
	if pctx.KnownMBID == "" {
		return Result{}, wkmperrors.Newf("no resolved MBID to look up").
			Component("acousticbrainz").
			Category(wkmperrors.CategoryExtraction).
			Build()
	}
	fv, err := e.client.FetchHighLevel(ctx, pctx.KnownMBID)
	if err != nil {
		return Result{}, err
	}

	vec := flavor.Vector{
		flavor.Danceable: fv.Danceable,
		flavor.Energetic: fv.Energetic,
		flavor.Acoustic:  fv.Acoustic,
		flavor.Tonal:     fv.Tonal,
		flavor.Happy:     fv.Happy,
		flavor.Party:     fv.Party,
	}.Clamp01()

	return Result{
		Source:     e.Name(),
		Confidence: fv.Confidence,
		Flavor: &flavor.Opinion{
			Source:     e.Name(),
			Vector:     vec,
			Confidence: fv.Confidence,
		},
	}, nil
}
