package extractors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wkmp/core/internal/acoustid"
)

func TestAcoustIDExtractorRequiresFingerprint(t *testing.T) {
	client := acoustid.New(acoustid.Config{APIKey: "key"})
	defer client.Close()

	e := NewAcoustIDExtractor(client)
	_, err := e.Extract(context.Background(), Context{})
	if err == nil {
		t.Fatal("expected error when no fingerprint is supplied")
	}
}

func TestAcoustIDExtractorPicksHighestScoringMatch(t *testing.T) {
	const body = `{
		"status": "ok",
		"results": [
			{"id": "r1", "score": 0.4, "recordings": [{"id": "low-score-mbid"}]},
			{"id": "r2", "score": 0.95, "recordings": [{"id": "high-score-mbid"}]}
		]
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	client := acoustid.New(acoustid.Config{APIKey: "key", BaseURL: srv.URL, RateLimitMS: 1})
	defer client.Close()

	e := NewAcoustIDExtractor(client)
	result, err := e.Extract(context.Background(), Context{Fingerprint: "fp", DurationSec: 180})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if result.Identity == nil || result.Identity.MusicBrainzID != "high-score-mbid" {
		t.Errorf("expected highest-scoring match, got %+v", result.Identity)
	}
}

func TestAcoustIDExtractorFailsWhenNoRecordingsMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "ok", "results": []}`))
	}))
	defer srv.Close()

	client := acoustid.New(acoustid.Config{APIKey: "key", BaseURL: srv.URL, RateLimitMS: 1})
	defer client.Close()

	e := NewAcoustIDExtractor(client)
	_, err := e.Extract(context.Background(), Context{Fingerprint: "fp", DurationSec: 180})
	if err == nil {
		t.Fatal("expected error for no matches")
	}
}
