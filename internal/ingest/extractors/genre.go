package extractors

import (
	"context"
	"os"

	"github.com/dhowden/tag"

	wkmperrors "github.com/wkmp/core/internal/errors"
	"github.com/wkmp/core/internal/ingest/flavor"
)

// GenreMapper maps a file's free-text ID3 genre tag to a six-dimensional
// flavor vector via flavor.MapGenre's fixed table and substring fallback
// (spec §4.13, 0.5 confidence).
type GenreMapper struct{}

func NewGenreMapper() *GenreMapper { return &GenreMapper{} }

func (e *GenreMapper) Name() string            { return "id3-genre-mapper" }
func (e *GenreMapper) BaseConfidence() float64 { return 0.5 }

func (e *GenreMapper) Extract(_ context.Context, pctx Context) (Result, error) {
	f, err := os.Open(pctx.FilePath)
	if err != nil {
		return Result{}, wkmperrors.New(err).
			Component("id3-genre-mapper").
			Category(wkmperrors.CategoryExtraction).
			Context("path", pctx.FilePath).
			Build()
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return Result{}, wkmperrors.New(err).
			Component("id3-genre-mapper").
			Category(wkmperrors.CategoryExtraction).
			Context("path", pctx.FilePath).
			Build()
	}

	genre := m.Genre()
	vec, ok := flavor.MapGenre(genre)
	if !ok {
		return Result{}, wkmperrors.Newf("no flavor mapping for genre %q", genre).
			Component("id3-genre-mapper").
			Category(wkmperrors.CategoryExtraction).
			Context("path", pctx.FilePath).
			Build()
	}

	return Result{
		Source:     e.Name(),
		Confidence: e.BaseConfidence(),
		Flavor: &flavor.Opinion{
			Source:     e.Name(),
			Vector:     vec,
			Confidence: e.BaseConfidence(),
		},
	}, nil
}
