package mpd

import (
	"math"

	"github.com/jmylchreest/streamrelay/internal/relayerr"
	"github.com/jmylchreest/streamrelay/internal/segment"
	"github.com/jmylchreest/streamrelay/internal/urlutil"
)

// resolveSegmentList builds the SegmentIndex factory for a SegmentList
// element (§4.5). existing, when non-nil, is a previously-observed stream's
// index for the same (period.id, representation.id) to merge into instead
// of building a fresh one on every refresh.
func resolveSegmentList(sl *segmentListXML, baseURLs []string, periodStart, periodDuration float64, hasPeriodDuration bool, timescale int64, existing *segment.Index) (func() (*segment.Index, error), error) {
	if timescale == 0 {
		timescale = 1
	}

	var baseURL string
	if len(baseURLs) > 0 {
		baseURL = baseURLs[0]
	}

	nSegments := len(sl.SegmentURL)
	hasDuration := sl.Duration != ""
	hasTimeline := sl.Timeline != nil

	if sl.Timeline != nil && len(sl.Timeline.S) == 0 {
		return nil, relayerr.New(relayerr.CategoryManifest, relayerr.CodeNoSegmentInfo,
			"SegmentList: explicit empty SegmentTimeline")
	}
	if nSegments > 1 && !hasDuration && !hasTimeline {
		return nil, relayerr.New(relayerr.CategoryManifest, relayerr.CodeNoSegmentInfo,
			"SegmentList: multiple segments require @duration or SegmentTimeline")
	}
	if nSegments == 1 && !hasDuration && !hasTimeline && !hasPeriodDuration {
		return nil, relayerr.New(relayerr.CategoryManifest, relayerr.CodeNoSegmentInfo,
			"SegmentList: single segment requires @duration, SegmentTimeline, or a period duration")
	}

	return func() (*segment.Index, error) {
		var newRefs []*segment.Reference

		times := make([]struct{ start, end float64 }, 0, nSegments)
		switch {
		case hasTimeline:
			elements := make([]sElement, len(sl.Timeline.S))
			for i, s := range sl.Timeline.S {
				elements[i] = sElement{t: parseIntPtr(s.T), d: parseIntPtr(s.D), r: parseIntOrDefault(s.R, 0)}
			}
			entries, _ := expandTimeline(elements, 0, timescale, periodDuration, hasPeriodDuration)
			secs := entriesToSeconds(entries, timescale, periodStart)
			for _, e := range secs {
				times = append(times, struct{ start, end float64 }{e.Start, e.End})
			}
		case hasDuration:
			dur, _ := parseFloat(sl.Duration)
			dur = dur / float64(timescale)
			cur := periodStart
			for i := 0; i < nSegments; i++ {
				times = append(times, struct{ start, end float64 }{cur, cur + dur})
				cur += dur
			}
		default:
			end := periodStart + periodDuration
			times = append(times, struct{ start, end float64 }{periodStart, end})
		}

		n := nSegments
		if len(times) < n {
			n = len(times)
		}

		var initRef *segment.InitSegmentReference
		if sl.Initialization != nil {
			u, err := urlutil.Resolve(baseURL, sl.Initialization.SourceURL)
			if err != nil {
				return nil, err
			}
			initRef = &segment.InitSegmentReference{URIs: []string{u}}
		}

		for i := 0; i < n; i++ {
			su := sl.SegmentURL[i]
			mediaURI, err := urlutil.Resolve(baseURL, su.Media)
			if err != nil {
				return nil, err
			}
			ref := segment.NewReference(times[i].start, times[i].end, []string{mediaURI})
			ref.InitSegment = initRef
			if su.MediaRange != "" {
				if start, end, ok := parseRange(su.MediaRange); ok {
					ref.StartByte = start
					e := end
					ref.EndByte = &e
				}
			}
			newRefs = append(newRefs, ref)
		}

		periodEnd := periodStart + periodDuration
		if !hasPeriodDuration {
			periodEnd = math.Inf(1)
		}
		if existing != nil {
			existing.Merge(newRefs)
			existing.Fit(periodStart, periodEnd, false)
			return existing, nil
		}

		idx := segment.NewIndex(newRefs)
		idx.Fit(periodStart, periodEnd, true)
		return idx, nil
	}, nil
}
