// Package acoustid provides a client for the AcoustID fingerprint-lookup
// web service (spec §4.13's AcoustID client extractor): submit a
// Chromaprint-style fingerprint and get back candidate recording MBIDs
// ranked by match score.
package acoustid

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
	defaultBaseURL     = "https://api.acoustid.org/v2"
	defaultRateLimitMS = 334 // AcoustID's documented limit is ~3 req/s per API key
	defaultCacheTTL    = 24 * time.Hour
)

// BaseConfidence is the extractor's advertised confidence (spec §4.13).
const BaseConfidence = 0.8

// Match is one ranked candidate recording for a submitted fingerprint.
type Match struct {
	Score          float64
	RecordingMBIDs []string
}

// Config configures a Client.
type Config struct {
	APIKey      string
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

// Client is a rate-limited, caching AcoustID lookup client.
type Client struct {
	cfg         Config
	http        *httpclient.Client
	cache       *cache.Cache
	rateLimiter *rate.Limiter
	log         *slog.Logger
}

// New constructs a Client. An empty APIKey is allowed at construction time
// (the caller may be running in a mode where this extractor is simply
// skipped); Lookup fails fast if it's still empty when called.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	interval := time.Duration(cfg.RateLimitMS) * time.Millisecond
	return &Client{
		cfg:         cfg,
		http:        httpclient.New(&httpclient.Config{DefaultTimeout: 10 * time.Second}),
		cache:       cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		rateLimiter: rate.NewLimiter(rate.Every(interval), 1),
		log:         logging.ForService("acoustid"),
	}
}

func (c *Client) Close() {
	c.http.Close()
}

type lookupResponse struct {
	Status  string `json:"status"`
	Results []struct {
		ID         string  `json:"id"`
		Score      float64 `json:"score"`
		Recordings []struct {
			ID string `json:"id"`
		} `json:"recordings"`
	} `json:"results"`
}

// Lookup submits a Chromaprint fingerprint plus its duration (in whole
// seconds, as required by the AcoustID API) and returns candidate matches
// ordered highest-score-first, as the API itself returns them.
func (c *Client) Lookup(ctx context.Context, fingerprint string, durationSeconds int) ([]Match, error) {
	if c.cfg.APIKey == "" {
		return nil, wkmperrors.Newf("acoustid: no API key configured").
			Component("acoustid").
			Category(wkmperrors.CategoryConfiguration).
			Build()
	}

	cacheKey := fmt.Sprintf("%s:%d", fingerprint, durationSeconds)
	if cached, found := c.cache.Get(cacheKey); found {
		if matches, ok := cached.([]Match); ok {
			return matches, nil
		}
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, wkmperrors.New(err).
			Component("acoustid").
			Category(wkmperrors.CategoryNetwork).
			Build()
	}

	q := url.Values{}
	q.Set("client", c.cfg.APIKey)
	q.Set("duration", fmt.Sprintf("%d", durationSeconds))
	q.Set("fingerprint", fingerprint)
	q.Set("meta", "recordings")
	q.Set("format", "json")

	reqURL := fmt.Sprintf("%s/lookup?%s", c.cfg.BaseURL, q.Encode())
	resp, err := c.http.Get(ctx, reqURL)
	if err != nil {
		return nil, wkmperrors.New(err).
			Component("acoustid").
			Category(wkmperrors.CategoryNetwork).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, wkmperrors.Newf("acoustid request failed: status %d", resp.StatusCode).
			Component("acoustid").
			Category(wkmperrors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, wkmperrors.New(err).
			Component("acoustid").
			Category(wkmperrors.CategoryIntegration).
			Context("operation", "decode_lookup").
			Build()
	}
	if body.Status != "ok" {
		return nil, wkmperrors.Newf("acoustid returned status %q", body.Status).
			Component("acoustid").
			Category(wkmperrors.CategoryIntegration).
			Build()
	}

	matches := make([]Match, 0, len(body.Results))
	for _, r := range body.Results {
		m := Match{Score: r.Score}
		for _, rec := range r.Recordings {
			m.RecordingMBIDs = append(m.RecordingMBIDs, rec.ID)
		}
		matches = append(matches, m)
	}

	c.cache.Set(cacheKey, matches, cache.DefaultExpiration)
	if c.log != nil {
		c.log.Debug("acoustid lookup resolved", "candidates", len(matches))
	}
	return matches, nil
}
