// Package acousticbrainz provides a client for the AcousticBrainz
// precomputed-feature-vector web service (spec §4.13's AcousticBrainz
// client extractor): given a recording MBID, fetch its high-level mood and
// genre probabilities. Confidence is always reported as 1.0; it does not
// vary with the number of community submissions behind the data.
package acousticbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	wkmperrors "github.com/wkmp/core/internal/errors"
	"github.com/wkmp/core/internal/httpclient"
	"github.com/wkmp/core/internal/logging"
)

const (
	defaultBaseURL     = "https://acousticbrainz.org"
	defaultRateLimitMS = 1000
	defaultCacheTTL    = 24 * time.Hour
)

// FeatureVector is the subset of AcousticBrainz's high-level output this
// client maps onto the pipeline's six-dimensional flavor space. Values are
// probabilities in [0, 1]; Confidence is fixed at 1.0, since the response
// does not carry the number of submissions AcousticBrainz aggregated.
type FeatureVector struct {
	Danceable  float64
	Energetic  float64 // derived from the "mood_aggressive"/"mood_relaxed" axis
	Acoustic   float64
	Tonal      float64
	Happy      float64
	Party      float64
	Confidence float64
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	RateLimitMS int
	CacheTTL    time.Duration
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.RateLimitMS <= 0 {
		c.RateLimitMS = defaultRateLimitMS
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
}

// Client is a rate-limited, caching AcousticBrainz lookup client.
type Client struct {
	cfg         Config
	http        *httpclient.Client
	cache       *cache.Cache
	rateLimiter *rate.Limiter
	log         *slog.Logger
}

func New(cfg Config) *Client {
	cfg.applyDefaults()
	interval := time.Duration(cfg.RateLimitMS) * time.Millisecond
	return &Client{
		cfg:         cfg,
		http:        httpclient.New(&httpclient.Config{DefaultTimeout: 10 * time.Second}),
		cache:       cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		rateLimiter: rate.NewLimiter(rate.Every(interval), 1),
		log:         logging.ForService("acousticbrainz"),
	}
}

func (c *Client) Close() {
	c.http.Close()
}

// highLevelResponse mirrors the subset of AcousticBrainz's
// /api/v1/{mbid}/high-level JSON document this client consumes.
type highLevelResponse struct {
	HighLevel struct {
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
	Metadata struct {
		AudioProperties struct {
			BitRate int `json:"bit_rate"`
		} `json:"audio_properties"`
	} `json:"metadata"`
}

// FetchHighLevel retrieves precomputed mood/genre probabilities for mbid.
// Returns a not-found error when AcousticBrainz has no submission for it
// (expected and non-fatal — the orchestrator keeps the other extractors'
// results; Essentia runs on every pass regardless).
func (c *Client) FetchHighLevel(ctx context.Context, mbid string) (FeatureVector, error) {
	if cached, found := c.cache.Get(mbid); found {
		if fv, ok := cached.(FeatureVector); ok {
			return fv, nil
		}
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return FeatureVector{}, wkmperrors.New(err).
			Component("acousticbrainz").
			Category(wkmperrors.CategoryNetwork).
			Context("mbid", mbid).
			Build()
	}

	reqURL := fmt.Sprintf("%s/api/v1/%s/high-level", c.cfg.BaseURL, url.PathEscape(mbid))
	resp, err := c.http.Get(ctx, reqURL)
	if err != nil {
		return FeatureVector{}, wkmperrors.New(err).
			Component("acousticbrainz").
			Category(wkmperrors.CategoryNetwork).
			Context("mbid", mbid).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return FeatureVector{}, wkmperrors.Newf("no acousticbrainz data for recording %s", mbid).
			Component("acousticbrainz").
			Category(wkmperrors.CategoryNotFound).
			Context("mbid", mbid).
			Build()
	}
	if resp.StatusCode >= 400 {
		return FeatureVector{}, wkmperrors.Newf("acousticbrainz request failed: status %d", resp.StatusCode).
			Component("acousticbrainz").
			Category(wkmperrors.CategoryNetwork).
			Context("mbid", mbid).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var body highLevelResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return FeatureVector{}, wkmperrors.New(err).
			Component("acousticbrainz").
			Category(wkmperrors.CategoryIntegration).
			Context("operation", "decode_highlevel").
			Build()
	}

	fv := FeatureVector{
		Danceable:  body.HighLevel.Danceability.All["danceable"],
		Energetic:  body.HighLevel.MoodAggressive.All["aggressive"],
		Acoustic:   body.HighLevel.MoodAcoustic.All["acoustic"],
		Tonal:      body.HighLevel.TonalAtonal.All["tonal"],
		Happy:      body.HighLevel.MoodHappy.All["happy"],
		Party:      body.HighLevel.MoodParty.All["party"],
		Confidence: 1.0, // AcousticBrainz's JSON doesn't expose submission count directly
	}

	c.cache.Set(mbid, fv, cache.DefaultExpiration)
	if c.log != nil {
		c.log.Debug("acousticbrainz high-level features resolved", "mbid", mbid)
	}
	return fv, nil
}
