package mpd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// utcTimingFetcher is the narrow HTTP surface UTCTiming resolution needs.
type utcTimingFetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// resolveUTCTiming issues a single request against one of the supported
// UTCTiming schemes and returns the resulting clock offset as a duration
// (now subtracted from the server's reported time), per §4.4's final
// paragraph. Unrecognized schemes return (0, warning).
func resolveUTCTiming(ctx context.Context, client utcTimingFetcher, timing *utcTimingXML, now time.Time) (time.Duration, string) {
	if timing == nil {
		return 0, ""
	}
	scheme := timing.SchemeIDURI

	switch {
	case strings.HasPrefix(scheme, "urn:mpeg:dash:utc:http-head:"):
		return headOffset(ctx, client, timing.Value, now)
	case strings.HasPrefix(scheme, "urn:mpeg:dash:utc:http-xsdate:"):
		return httpBodyOffset(ctx, client, timing.Value, now, parseDateTime)
	case strings.HasPrefix(scheme, "urn:mpeg:dash:utc:http-iso:"):
		return httpBodyOffset(ctx, client, timing.Value, now, parseDateTime)
	case strings.HasPrefix(scheme, "urn:mpeg:dash:utc:direct:"):
		t, err := parseDateTime(timing.Value)
		if err != nil {
			return 0, fmt.Sprintf("UTCTiming direct value unparseable: %v", err)
		}
		return t.Sub(now), ""
	default:
		return 0, fmt.Sprintf("unrecognized UTCTiming scheme %q", scheme)
	}
}

func headOffset(ctx context.Context, client utcTimingFetcher, url string, now time.Time) (time.Duration, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Sprintf("UTCTiming HEAD request construction failed: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Sprintf("UTCTiming HEAD request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	dateHeader := resp.Header.Get("Date")
	if dateHeader == "" {
		return 0, "UTCTiming HEAD response missing Date header"
	}
	t, err := http.ParseTime(dateHeader)
	if err != nil {
		return 0, fmt.Sprintf("UTCTiming HEAD Date header unparseable: %v", err)
	}
	return t.Sub(now), ""
}

func httpBodyOffset(ctx context.Context, client utcTimingFetcher, url string, now time.Time, parse func(string) (time.Time, error)) (time.Duration, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Sprintf("UTCTiming GET request construction failed: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Sprintf("UTCTiming GET request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Sprintf("UTCTiming GET body read failed: %v", err)
	}
	t, err := parse(strings.TrimSpace(string(body)))
	if err != nil {
		return 0, fmt.Sprintf("UTCTiming GET body unparseable: %v", err)
	}
	return t.Sub(now), ""
}
