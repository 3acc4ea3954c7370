package mpd

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmylchreest/streamrelay/internal/mp4box"
	"github.com/jmylchreest/streamrelay/internal/relayerr"
	"github.com/jmylchreest/streamrelay/internal/segment"
	"github.com/jmylchreest/streamrelay/internal/urlutil"
	"github.com/jmylchreest/streamrelay/internal/webm"
)

// container identifies the media container a SegmentBase resolves against.
type container string

const (
	containerMP4  container = "mp4"
	containerWebM container = "webm"
)

// detectContainer guesses the container from a Representation/AdaptationSet
// MIME type (§4.5, "Supported containers: mp4 and webm").
func detectContainer(mimeType string) (container, bool) {
	mimeType = strings.ToLower(mimeType)
	switch {
	case strings.Contains(mimeType, "mp4"):
		return containerMP4, true
	case strings.Contains(mimeType, "webm"):
		return containerWebM, true
	default:
		return "", false
	}
}

// parseRange parses an "@indexRange"/"range" attribute of the form
// "start-end" into inclusive byte bounds.
func parseRange(s string) (start, end int64, ok bool) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	st, err1 := strconv.ParseInt(parts[0], 10, 64)
	en, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return st, en, true
}

// resolveSegmentBase builds the SegmentIndex factory for a SegmentBase
// element, fetching the index range (and, for WebM, the init segment for
// Cues+Info) lazily on first SegmentIndex() access (§4.5).
func resolveSegmentBase(ctx context.Context, client RangeFetcher, sb *segmentBaseXML, mimeType string, baseURLs []string, timestampOffset float64) (func() (*segment.Index, error), error) {
	cont, ok := detectContainer(mimeType)
	if !ok {
		return nil, relayerr.New(relayerr.CategoryManifest, relayerr.CodeUnsupportedContainer,
			"SegmentBase: unsupported container for mimeType "+mimeType)
	}

	var baseURL string
	if len(baseURLs) > 0 {
		baseURL = baseURLs[0]
	}

	var initURI string
	var indexRangeStr string
	if sb.Initialization != nil {
		u, err := urlutil.Resolve(baseURL, sb.Initialization.SourceURL)
		if err != nil {
			return nil, err
		}
		initURI = u
	} else if cont == containerWebM {
		return nil, relayerr.New(relayerr.CategoryManifest, relayerr.CodeWebMMissingInit,
			"SegmentBase: WebM representation without Initialization element")
	}

	if sb.IndexRange != "" {
		indexRangeStr = sb.IndexRange
	} else if sb.RepresentationIndex != nil {
		indexRangeStr = sb.RepresentationIndex.Range
	}
	if indexRangeStr == "" {
		return nil, relayerr.New(relayerr.CategoryManifest, relayerr.CodeNoSegmentInfo,
			"SegmentBase: missing indexRange and RepresentationIndex")
	}
	indexStart, indexEnd, ok := parseRange(indexRangeStr)
	if !ok {
		return nil, relayerr.New(relayerr.CategoryManifest, relayerr.CodeNoSegmentInfo,
			"SegmentBase: malformed indexRange "+indexRangeStr)
	}

	mediaURI, err := urlutil.Resolve(baseURL, sb.SourceURL)
	if err != nil {
		return nil, err
	}

	return func() (*segment.Index, error) {
		indexBytes, err := fetchRange(ctx, client, mediaURI, indexStart, indexEnd)
		if err != nil {
			return nil, err
		}

		switch cont {
		case containerMP4:
			refs, err := mp4box.ParseSIDX(indexBytes, mp4box.ParseSIDXOptions{
				SIDXOffset:      indexStart,
				TimestampOffset: timestampOffset,
				URIs:            []string{mediaURI},
			})
			if err != nil {
				return nil, err
			}
			return segment.NewIndex(refs), nil
		case containerWebM:
			initBytes, err := fetchRange(ctx, client, initURI, 0, indexEnd-indexStart+4096)
			if err != nil {
				return nil, err
			}
			refs, err := webm.ParseCues(initBytes, timestampOffset, func() []string { return []string{mediaURI} })
			if err != nil {
				return nil, err
			}
			return segment.NewIndex(refs), nil
		}
		return nil, relayerr.New(relayerr.CategoryManifest, relayerr.CodeUnsupportedContainer, "unreachable container")
	}, nil
}
