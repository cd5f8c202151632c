package validators

import (
	"testing"

	"github.com/wkmp/core/internal/ingest/fusion"
)

func fullInput() Input {
	return Input{
		Fields: map[string]FieldConfidence{
			"title":        {Present: true, Confidence: 0.9},
			"artist":       {Present: true, Confidence: 0.9},
			"album":        {Present: true, Confidence: 0.8},
			"release_date": {Present: true, Confidence: 0.7},
			"track_number": {Present: true, Confidence: 0.7},
			"duration":     {Present: true, Confidence: 0.7},
		},
		ConflictCount:      0,
		HasMBID:            true,
		FlavorCompleteness: 1.0,
	}
}

func TestCompletenessAllFieldsPresent(t *testing.T) {
	c := Completeness(fullInput())
	if c < 0.7 || c > 1.0 {
		t.Errorf("completeness = %v, expected near-maximal", c)
	}
}

func TestCompletenessNoFieldsIsZero(t *testing.T) {
	c := Completeness(Input{})
	if c != 0 {
		t.Errorf("completeness = %v, want 0", c)
	}
}

func TestConsistencyThresholds(t *testing.T) {
	cases := []struct {
		conflicts int
		want      float64
	}{
		{0, 1.0},
		{1, 0.8},
		{2, 0.8},
		{3, 0.5},
		{10, 0.5},
	}
	for _, tc := range cases {
		got := Consistency(tc.conflicts)
		if got != tc.want {
			t.Errorf("Consistency(%d) = %v, want %v", tc.conflicts, got, tc.want)
		}
	}
}

func TestValidatePassesOnStrongInput(t *testing.T) {
	result := Validate(fullInput())
	if result.Status != StatusPass {
		t.Errorf("status = %v, want pass (quality=%v)", result.Status, result.Quality)
	}
}

func TestValidateFailsOnEmptyInput(t *testing.T) {
	result := Validate(Input{})
	if result.Status != StatusFail {
		t.Errorf("status = %v, want fail", result.Status)
	}
}

func TestValidateWarnsOnPartialInput(t *testing.T) {
	in := Input{
		Fields: map[string]FieldConfidence{
			"title":  {Present: true, Confidence: 0.7},
			"artist": {Present: true, Confidence: 0.7},
		},
		ConflictCount:      1,
		HasMBID:            false,
		FlavorCompleteness: 0.5,
	}
	result := Validate(in)
	if result.Status == StatusFail {
		t.Errorf("expected at least warning status for partial-but-present input, got fail (quality=%v)", result.Quality)
	}
}

func TestInputFromFusedCarriesConfidences(t *testing.T) {
	fused := fusion.Fused{
		Metadata: fusion.Metadata{
			Title:       "T",
			Artist:      "A",
			Confidences: map[string]float64{"title": 0.9, "artist": 0.85},
		},
		Identity: fusion.Identity{Resolved: true},
	}
	in := InputFromFused(fused, 0.6)
	if !in.Fields["title"].Present || in.Fields["title"].Confidence != 0.9 {
		t.Errorf("unexpected title field: %+v", in.Fields["title"])
	}
	if in.Fields["album"].Present {
		t.Error("expected album to be absent")
	}
	if !in.HasMBID {
		t.Error("expected HasMBID true")
	}
}
