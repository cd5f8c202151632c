// Package validators implements the three pass/warning/fail checks run
// against a fused passage (spec §4.15): completeness, consistency, and an
// overall quality score combining both with reliability and usability.
package validators

import "github.com/wkmp/core/internal/ingest/fusion"

// Status is a validator's pass/warning/fail verdict.
type Status string

const (
	StatusPass    Status = "pass"
	StatusWarning Status = "warning"
	StatusFail    Status = "fail"
)

// fieldWeights are the weighted-presence weights for the Completeness
// check (spec §4.15).
var fieldWeights = map[string]float64{
	"title":        1.0,
	"artist":       1.0,
	"album":        0.7,
	"release_date": 0.5,
	"track_number": 0.3,
	"duration":     0.3,
}

// FieldConfidence reports, per weighted field, whether it's present and
// what confidence fusion assigned it — completeness needs both.
type FieldConfidence struct {
	Present    bool
	Confidence float64
}

// Input is everything the validators need about one fused passage.
type Input struct {
	Fields             map[string]FieldConfidence // keys match fieldWeights
	ConflictCount      int
	HasMBID            bool
	FlavorCompleteness float64 // fraction of flavor components with a non-neutral, corroborated value
}

// Result is the outcome of running all three checks against one passage.
type Result struct {
	Completeness float64
	Consistency  float64
	Quality      float64
	Status       Status
}

// Completeness computes weighted presence × confidence over the fixed
// field-weight table, normalised by the sum of weights (spec §4.15).
func Completeness(in Input) float64 {
	var weightedSum, totalWeight float64
	for field, weight := range fieldWeights {
		totalWeight += weight
		fc, ok := in.Fields[field]
		if !ok || !fc.Present {
			continue
		}
		weightedSum += weight * fc.Confidence
	}
	if totalWeight == 0 {
		return 0
	}
	return clamp01(weightedSum / totalWeight)
}

// Consistency derives from fusion's conflict count: 0 conflicts -> 1.0;
// up to 2 -> 0.8; more than 2 -> 0.5 (spec §4.15).
func Consistency(conflictCount int) float64 {
	switch {
	case conflictCount == 0:
		return 1.0
	case conflictCount <= 2:
		return 0.8
	default:
		return 0.5
	}
}

// usability is a weighted check that an MBID is present, title and artist
// are present, and flavor completeness clears 0.3 (spec §4.15).
func usability(in Input) float64 {
	score := 0.0
	const hasMBIDWeight, hasTitleArtistWeight, hasFlavorWeight = 0.4, 0.4, 0.2
	if in.HasMBID {
		score += hasMBIDWeight
	}
	title, hasTitle := in.Fields["title"]
	artist, hasArtist := in.Fields["artist"]
	if hasTitle && title.Present && hasArtist && artist.Present {
		score += hasTitleArtistWeight
	}
	if in.FlavorCompleteness >= 0.3 {
		score += hasFlavorWeight
	}
	return score
}

// Quality computes the overall 0.35·reliability + 0.30·richness +
// 0.20·consistency + 0.15·usability score (spec §4.15). "Reliability" is
// read as the average confidence of present fields, and "richness" as
// Completeness itself — the two halves of the completeness computation
// spec §4.15 otherwise leaves undistinguished.
func Quality(in Input) float64 {
	completeness := Completeness(in)
	consistency := Consistency(in.ConflictCount)
	reliability := averageConfidence(in)
	usable := usability(in)

	const reliabilityWeight, richnessWeight, consistencyWeight, usabilityWeight = 0.35, 0.30, 0.20, 0.15
	return clamp01(reliabilityWeight*reliability + richnessWeight*completeness + consistencyWeight*consistency + usabilityWeight*usable)
}

func averageConfidence(in Input) float64 {
	var sum float64
	count := 0
	for _, fc := range in.Fields {
		if fc.Present {
			sum += fc.Confidence
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// Validate runs all three checks and derives the overall status: Pass at
// or above 0.80, Warning at or above 0.60, otherwise Fail (spec §4.15).
func Validate(in Input) Result {
	completeness := Completeness(in)
	consistency := Consistency(in.ConflictCount)
	quality := Quality(in)

	var status Status
	switch {
	case quality >= 0.80:
		status = StatusPass
	case quality >= 0.60:
		status = StatusWarning
	default:
		status = StatusFail
	}

	return Result{Completeness: completeness, Consistency: consistency, Quality: quality, Status: status}
}

// InputFromFused builds a validators.Input from a fusion.Fused result and
// the flavor-completeness fraction computed separately (since fusion's
// output doesn't itself track which flavor components were corroborated
// versus filled in neutrally).
func InputFromFused(f fusion.Fused, flavorCompleteness float64) Input {
	fields := map[string]FieldConfidence{}
	for _, field := range []string{"title", "artist", "album", "release_date", "track_number", "duration"} {
		conf, present := f.Metadata.Confidences[field]
		fields[field] = FieldConfidence{Present: present, Confidence: conf}
	}
	return Input{
		Fields:             fields,
		ConflictCount:      len(f.Conflicts),
		HasMBID:            f.Identity.Resolved,
		FlavorCompleteness: flavorCompleteness,
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
