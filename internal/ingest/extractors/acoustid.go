package extractors

import (
	"context"
	"sort"

	"github.com/wkmp/core/internal/acoustid"
	wkmperrors "github.com/wkmp/core/internal/errors"
)

// AcoustIDExtractor submits a previously-computed Chromaprint fingerprint
// to the AcoustID web service and proposes the best-scoring recording
// MBID (spec §4.13, 0.8 confidence). Fingerprint computation itself is a
// separate step (see Fingerprinter) since it requires the PCM/file, not
// just a lookup key.
type AcoustIDExtractor struct {
	client *acoustid.Client
}

func NewAcoustIDExtractor(client *acoustid.Client) *AcoustIDExtractor {
	return &AcoustIDExtractor{client: client}
}

func (e *AcoustIDExtractor) Name() string            { return "acoustid" }
func (e *AcoustIDExtractor) BaseConfidence() float64 { return acoustid.BaseConfidence }

func (e *AcoustIDExtractor) Extract(ctx context.Context, pctx Context) (Result, error) {
	if pctx.Fingerprint == "" {
		return Result{}, wkmperrors.Newf("no fingerprint available").
			Component("acoustid").
			Category(wkmperrors.CategoryExtraction).
			Build()
	}
	matches, err := e.client.Lookup(ctx, pctx.Fingerprint, pctx.DurationSec)
	if err != nil {
		return Result{}, err
	}
	if len(matches) == 0 || len(matches[0].RecordingMBIDs) == 0 {
		return Result{}, wkmperrors.Newf("no recording match for fingerprint").
			Component("acoustid").
			Category(wkmperrors.CategoryExtraction).
			Build()
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.Score > best.Score {
			best = m
		}
	}
	mbids := append([]string(nil), best.RecordingMBIDs...)
	sort.Strings(mbids)

	return Result{
		Source:     e.Name(),
		Confidence: e.BaseConfidence() * best.Score,
		Identity:   &Identity{MusicBrainzID: mbids[0]},
	}, nil
}
