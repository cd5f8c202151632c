package extractors

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"

	wkmperrors "github.com/wkmp/core/internal/errors"
	"github.com/wkmp/core/internal/ingest/flavor"
)

// essentiaOutput mirrors the handful of fields we read out of Essentia's
// streaming_extractor_music JSON profile output (its "highlevel" block,
// shaped the same way as AcousticBrainz's own API since AcousticBrainz's
// corpus was generated by this same tool).
type essentiaOutput struct {
	Highlevel struct {
		Danceability struct {
			All map[string]float64 `json:"all"`
		} `json:"danceability"`
		MoodAcoustic struct {
			All map[string]float64 `json:"all"`
		} `json:"mood_acoustic"`
		MoodAggressive struct {
			All map[string]float64 `json:"all"`
		} `json:"mood_aggressive"`
		MoodHappy struct {
			All map[string]float64 `json:"all"`
		} `json:"mood_happy"`
		MoodParty struct {
			All map[string]float64 `json:"all"`
		} `json:"mood_party"`
		TonalAtonal struct {
			All map[string]float64 `json:"all"`
		} `json:"tonal_atonal"`
	} `json:"highlevel"`
}

// Essentia spawns the locally installed Essentia command-line extractor to
// compute the same class of high-level features AcousticBrainz publishes.
// It runs on every extraction pass whether or not AcousticBrainz returned
// data for the recording (spec §4.13, "variable"
// confidence — Essentia's own output carries no confidence figure, so a
// fixed value reflecting "ran locally, no corroboration" is used).
type Essentia struct {
	binaryName string
}

func NewEssentia() *Essentia { return &Essentia{binaryName: "essentia_streaming_extractor_music"} }

func (e *Essentia) Name() string            { return "essentia-fallback" }
func (e *Essentia) BaseConfidence() float64 { return 0.55 }

func (e *Essentia) Extract(ctx context.Context, pctx Context) (Result, error) {
	binPath, err := exec.LookPath(e.binaryName)
	if err != nil {
		return Result{}, wkmperrors.New(err).
			Component("essentia-fallback").
			Category(wkmperrors.CategoryConfiguration).
			Context("operation", "locate_essentia_binary").
			Build()
	}

	outFile, err := os.CreateTemp("", "essentia-*.json")
	if err != nil {
		return Result{}, wkmperrors.New(err).
			Component("essentia-fallback").
			Category(wkmperrors.CategoryExtraction).
			Build()
	}
	outPath := outFile.Name()
	outFile.Close()
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, binPath, pctx.FilePath, outPath)
	if err := cmd.Run(); err != nil {
		return Result{}, wkmperrors.New(err).
			Component("essentia-fallback").
			Category(wkmperrors.CategoryExtraction).
			Context("path", pctx.FilePath).
			Build()
	}

	raw, err := os.ReadFile(outPath)
	if err != nil {
		return Result{}, wkmperrors.New(err).
			Component("essentia-fallback").
			Category(wkmperrors.CategoryExtraction).
			Build()
	}

	var doc essentiaOutput
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Result{}, wkmperrors.New(err).
			Component("essentia-fallback").
			Category(wkmperrors.CategoryIntegration).
			Build()
	}

	vec := flavor.Vector{
		flavor.Danceable: doc.Highlevel.Danceability.All["danceable"],
		flavor.Energetic: doc.Highlevel.MoodAggressive.All["aggressive"],
		flavor.Acoustic:  doc.Highlevel.MoodAcoustic.All["acoustic"],
		flavor.Tonal:     doc.Highlevel.TonalAtonal.All["tonal"],
		flavor.Happy:     doc.Highlevel.MoodHappy.All["happy"],
		flavor.Party:     doc.Highlevel.MoodParty.All["party"],
	}.Clamp01()

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
