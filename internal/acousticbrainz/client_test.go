package acousticbrainz

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

func setupHTTPMock(t *testing.T, c *Client) {
	t.Helper()
	httpmock.ActivateNonDefault(c.http.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
}

func TestFetchHighLevelParsesFeatureVector(t *testing.T) {
	c := New(Config{RateLimitMS: 1})
	defer c.Close()
	setupHTTPMock(t, c)

	const body = `{
		"highlevel": {
			"danceability": {"all": {"danceable": 0.8, "not_danceable": 0.2}},
			"mood_acoustic": {"all": {"acoustic": 0.6, "not_acoustic": 0.4}},
			"mood_aggressive": {"all": {"aggressive": 0.3, "not_aggressive": 0.7}},
			"mood_happy": {"all": {"happy": 0.55, "not_happy": 0.45}},
			"mood_party": {"all": {"party": 0.2, "not_party": 0.8}},
			"tonal_atonal": {"all": {"tonal": 0.9, "atonal": 0.1}}
		},
		"metadata": {"audio_properties": {"bit_rate": 320000}}
	}`
	httpmock.RegisterResponder("GET", `=~^https://acousticbrainz\.org/api/v1/mbid-1/high-level`,
		httpmock.NewStringResponder(200, body))

	fv, err := c.FetchHighLevel(context.Background(), "mbid-1")
	require.NoError(t, err)
	require.InDelta(t, 0.8, fv.Danceable, 0.001)
	require.InDelta(t, 0.6, fv.Acoustic, 0.001)
	require.InDelta(t, 0.9, fv.Tonal, 0.001)
}

func TestFetchHighLevelReturnsNotFound(t *testing.T) {
	c := New(Config{RateLimitMS: 1})
	defer c.Close()
	setupHTTPMock(t, c)

	httpmock.RegisterResponder("GET", `=~^https://acousticbrainz\.org/api/v1/unknown-mbid/high-level`,
		httpmock.NewStringResponder(404, ""))

	_, err := c.FetchHighLevel(context.Background(), "unknown-mbid")
	require.Error(t, err)
}

func TestFetchHighLevelCachesResult(t *testing.T) {
	c := New(Config{RateLimitMS: 1})
	defer c.Close()
	setupHTTPMock(t, c)

	calls := 0
	httpmock.RegisterResponder("GET", `=~^https://acousticbrainz\.org/api/v1/mbid-1/high-level`,
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(200, `{"highlevel": {}}`), nil
		})

	_, err := c.FetchHighLevel(context.Background(), "mbid-1")
	require.NoError(t, err)
	_, err = c.FetchHighLevel(context.Background(), "mbid-1")
	require.NoError(t, err)

	require.Equal(t, 1, calls)
}
