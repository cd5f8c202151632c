package extractors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wkmp/core/internal/acousticbrainz"
)

func TestAcousticBrainzExtractorRequiresKnownMBID(t *testing.T) {
	client := acousticbrainz.New(acousticbrainz.Config{})
	defer client.Close()

	e := NewAcousticBrainzExtractor(client)
	_, err := e.Extract(context.Background(), Context{})
	if err == nil {
		t.Fatal("expected error when no MBID is known yet")
	}
}

func TestAcousticBrainzExtractorConvertsFeatureVector(t *testing.T) {
	const body = `{
		"highlevel": {
			"danceability": {"all": {"danceable": 0.7, "not_danceable": 0.3}},
			"mood_acoustic": {"all": {"acoustic": 0.55, "not_acoustic": 0.45}},
			"mood_aggressive": {"all": {"aggressive": 0.2, "not_aggressive": 0.8}},
			"mood_happy": {"all": {"happy": 0.65, "not_happy": 0.35}},
			"mood_party": {"all": {"party": 0.3, "not_party": 0.7}},
			"tonal_atonal": {"all": {"tonal": 0.8, "atonal": 0.2}}
		}
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	client := acousticbrainz.New(acousticbrainz.Config{BaseURL: srv.URL, RateLimitMS: 1})
	defer client.Close()

	e := NewAcousticBrainzExtractor(client)
	result, err := e.Extract(context.Background(), Context{KnownMBID: "mbid-1"})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if result.Flavor == nil {
		t.Fatal("expected flavor opinion")
	}
	if result.Flavor.Vector["danceable"] != 0.7 {
		t.Errorf("danceable = %v, want 0.7", result.Flavor.Vector["danceable"])
	}
}
