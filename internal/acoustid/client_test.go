package acoustid

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

func TestLookupRequiresAPIKey(t *testing.T) {
	c := New(Config{})
	defer c.Close()

	_, err := c.Lookup(context.Background(), "fp", 180)
	require.Error(t, err)
}

func TestLookupParsesMatches(t *testing.T) {
	c := New(Config{APIKey: "test-key", RateLimitMS: 1})
	defer c.Close()
	setupHTTPMock(t, c)

	const body = `{
		"status": "ok",
		"results": [
			{"id": "r1", "score": 0.95, "recordings": [{"id": "mbid-1"}, {"id": "mbid-2"}]},
			{"id": "r2", "score": 0.4, "recordings": [{"id": "mbid-3"}]}
		]
	}`
	httpmock.RegisterResponder("GET", `=~^https://api\.acoustid\.org/v2/lookup`,
		httpmock.NewStringResponder(200, body))

	matches, err := c.Lookup(context.Background(), "fingerprint-data", 180)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, 0.95, matches[0].Score)
	require.Equal(t, []string{"mbid-1", "mbid-2"}, matches[0].RecordingMBIDs)
}

func TestLookupRejectsNonOKStatus(t *testing.T) {
	c := New(Config{APIKey: "test-key", RateLimitMS: 1})
	defer c.Close()
	setupHTTPMock(t, c)

	httpmock.RegisterResponder("GET", `=~^https://api\.acoustid\.org/v2/lookup`,
		httpmock.NewStringResponder(200, `{"status": "error", "error": {"message": "invalid fingerprint"}}`))

	_, err := c.Lookup(context.Background(), "bad-fp", 180)
	require.Error(t, err)
}

func TestLookupCachesByFingerprintAndDuration(t *testing.T) {
	c := New(Config{APIKey: "test-key", RateLimitMS: 1})
	defer c.Close()
	setupHTTPMock(t, c)

	calls := 0
	httpmock.RegisterResponder("GET", `=~^https://api\.acoustid\.org/v2/lookup`,
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(200, `{"status": "ok", "results": []}`), nil
		})

	_, err := c.Lookup(context.Background(), "fp", 180)
	require.NoError(t, err)
	_, err = c.Lookup(context.Background(), "fp", 180)
	require.NoError(t, err)

	require.Equal(t, 1, calls)
}
