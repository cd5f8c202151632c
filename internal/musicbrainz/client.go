// Package musicbrainz provides a thin, rate-limited client for the
// MusicBrainz web service (spec §4.13's MusicBrainz client extractor):
// given a recording MBID, fetch its canonical title/artist/album and
// release MBID. Used in a second pass after fusion has resolved an MBID
// from the other extractors.
package musicbrainz

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
	defaultBaseURL   = "https://musicbrainz.org/ws/2"
	defaultUserAgent = "wkmp/1.0 ( https://github.com/wkmp )"

	// MusicBrainz's published rate limit is 1 request/second per client.
	defaultRateLimitMS = 1000

	defaultCacheTTL = 24 * time.Hour
)

// BaseConfidence is the extractor's advertised confidence (spec §4.13).
const BaseConfidence = 0.9

// Recording is the subset of a MusicBrainz recording lookup this client
// exposes to fusion.
type Recording struct {
	MBID         string
	Title        string
	ArtistName   string
	ArtistMBID   string
	ReleaseMBID  string
	ReleaseTitle string
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	UserAgent   string
	RateLimitMS int
	CacheTTL    time.Duration
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.RateLimitMS <= 0 {
		c.RateLimitMS = defaultRateLimitMS
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
}

// Client is a rate-limited, caching MusicBrainz lookup client.
type Client struct {
	cfg         Config
	http        *httpclient.Client
	cache       *cache.Cache
	rateLimiter *rate.Limiter
	log         *slog.Logger
}

// New constructs a Client, applying defaults for any zero-valued Config field.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	interval := time.Duration(cfg.RateLimitMS) * time.Millisecond
	return &Client{
		cfg:         cfg,
		http:        httpclient.New(&httpclient.Config{DefaultTimeout: 10 * time.Second, UserAgent: cfg.UserAgent}),
		cache:       cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		rateLimiter: rate.NewLimiter(rate.Every(interval), 1),
		log:         logging.ForService("musicbrainz"),
	}
}

// Close releases the underlying connection pool.
func (c *Client) Close() {
	c.http.Close()
}

// recordingResponse mirrors the subset of MusicBrainz's JSON recording
// representation this client consumes (?inc=artist-credits+releases).
type recordingResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ArtistCredit []struct {
		Name   string `json:"name"`
		Artist struct {
			ID string `json:"id"`
		} `json:"artist"`
	} `json:"artist-credit"`
	Releases []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"releases"`
}

// Lookup fetches canonical recording metadata for mbid, rate-limited to
// one request per second and cached for CacheTTL.
func (c *Client) Lookup(ctx context.Context, mbid string) (Recording, error) {
	if cached, found := c.cache.Get(mbid); found {
		if rec, ok := cached.(Recording); ok {
			return rec, nil
		}
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return Recording{}, wkmperrors.New(err).
			Component("musicbrainz").
			Category(wkmperrors.CategoryNetwork).
			Context("mbid", mbid).
			Build()
	}

	reqURL := fmt.Sprintf("%s/recording/%s?inc=artist-credits+releases&fmt=json", c.cfg.BaseURL, url.PathEscape(mbid))
	resp, err := c.http.Get(ctx, reqURL)
	if err != nil {
		return Recording{}, wkmperrors.New(err).
			Component("musicbrainz").
			Category(wkmperrors.CategoryNetwork).
			Context("mbid", mbid).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return Recording{}, wkmperrors.Newf("recording not found: %s", mbid).
			Component("musicbrainz").
			Category(wkmperrors.CategoryNotFound).
			Context("mbid", mbid).
			Build()
	}
	if resp.StatusCode >= 400 {
		return Recording{}, wkmperrors.Newf("musicbrainz request failed: status %d", resp.StatusCode).
			Component("musicbrainz").
			Category(wkmperrors.CategoryNetwork).
			Context("mbid", mbid).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var body recordingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Recording{}, wkmperrors.New(err).
			Component("musicbrainz").
			Category(wkmperrors.CategoryIntegration).
			Context("operation", "decode_recording").
			Build()
	}

	rec := Recording{MBID: body.ID, Title: body.Title}
	if len(body.ArtistCredit) > 0 {
		rec.ArtistName = body.ArtistCredit[0].Name
		rec.ArtistMBID = body.ArtistCredit[0].Artist.ID
	}
	if len(body.Releases) > 0 {
		rec.ReleaseMBID = body.Releases[0].ID
		rec.ReleaseTitle = body.Releases[0].Title
	}

	c.cache.Set(mbid, rec, cache.DefaultExpiration)
	if c.log != nil {
		c.log.Debug("musicbrainz recording resolved", "mbid", mbid, "title", rec.Title, "artist", rec.ArtistName)
	}
	return rec, nil
}
