package mpd

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/jmylchreest/streamrelay/internal/relayerr"
)

// RangeFetcher is the narrow HTTP surface segment-info resolution needs to
// retrieve byte ranges (SIDX index boxes, WebM init segments) ahead of time.
type RangeFetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// fetchRange issues a byte-range GET for [start, end] (inclusive), as used
// by SegmentBase's index-range and init-segment fetches (§4.5).
func fetchRange(ctx context.Context, client RangeFetcher, url string, start, end int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.CategoryNetwork, relayerr.CodeOperationAborted, "building range request", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := client.Do(req)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.CategoryNetwork, relayerr.CodeOperationAborted, "range request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return nil, relayerr.New(relayerr.CategoryNetwork, relayerr.CodeOperationAborted,
			fmt.Sprintf("unexpected status %d fetching range", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.CategoryNetwork, relayerr.CodeOperationAborted, "reading range response body", err)
	}
	return body, nil
}
