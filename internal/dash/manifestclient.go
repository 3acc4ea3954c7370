package dash

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jmylchreest/streamrelay/internal/relayerr"
)

// ManifestFetcher is the narrow HTTP surface the manifest-URL API and MPD
// fetch need.
type ManifestFetcher interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// manifestURLResponse is the operator's manifest-URL API response shape
// (§6, "Manifest-URL API").
type manifestURLResponse struct {
	Data   string `json:"data"`
	Expiry int64  `json:"expiry"`
}

// ManifestClient resolves the live MPD URL via the operator-supplied
// manifest-URL API and fetches the MPD body.
type ManifestClient struct {
	fetcher   ManifestFetcher
	urlFormat string
}

// NewManifestClient constructs a ManifestClient against the given
// apiformat_mpd URL template.
func NewManifestClient(fetcher ManifestFetcher, urlFormat string) *ManifestClient {
	return &ManifestClient{fetcher: fetcher, urlFormat: urlFormat}
}

// ResolveManifestURL calls the manifest-URL API and returns the resolved
// MPD URL and its expiry time.
func (c *ManifestClient) ResolveManifestURL(ctx context.Context, service, id string) (mpdURL string, expiry time.Time, err error) {
	url := strings.ReplaceAll(c.urlFormat, "{service}", service)
	url = strings.ReplaceAll(url, "{id}", id)

	resp, getErr := c.fetcher.Get(ctx, url)
	if getErr != nil {
		return "", time.Time{}, relayerr.Wrap(relayerr.CategoryNetwork, relayerr.CodeOperationAborted, "manifest-URL API request failed", getErr)
	}
	defer func() { _ = resp.Body.Close() }()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return "", time.Time{}, relayerr.Wrap(relayerr.CategoryNetwork, relayerr.CodeOperationAborted, "reading manifest-URL API response", readErr)
	}

	var parsed manifestURLResponse
	if jsonErr := json.Unmarshal(body, &parsed); jsonErr != nil {
		return "", time.Time{}, relayerr.Wrap(relayerr.CategoryNetwork, relayerr.CodeOperationAborted, "parsing manifest-URL API response", jsonErr)
	}

	return parsed.Data, time.Unix(parsed.Expiry, 0), nil
}

// FetchMPD fetches the MPD document body from mpdURL.
func (c *ManifestClient) FetchMPD(ctx context.Context, mpdURL string) ([]byte, error) {
	resp, err := c.fetcher.Get(ctx, mpdURL)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.CategoryNetwork, relayerr.CodeOperationAborted, "MPD fetch failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.CategoryNetwork, relayerr.CodeOperationAborted, "reading MPD response body", err)
	}
	return body, nil
}
