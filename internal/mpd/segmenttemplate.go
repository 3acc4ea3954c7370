package mpd

import (
	"github.com/jmylchreest/streamrelay/internal/segment"
	"github.com/jmylchreest/streamrelay/internal/urlutil"
)

// resolveSegmentTemplate builds the SegmentIndex factory for a
// SegmentTemplate element, either expanding a SegmentTimeline or deriving
// segment times from @duration (§4.5).
func resolveSegmentTemplate(st *segmentTemplateXML, baseURLs []string, representationID string, bandwidth int64, periodStart, periodDuration float64, hasPeriodDuration, isLastPeriod bool, existing *segment.Index) (func() (*segment.Index, error), []string) {
	var warnings []string

	var baseURL string
	if len(baseURLs) > 0 {
		baseURL = baseURLs[0]
	}

	timescale := parseIntOrDefault(st.Timescale, 1)
	if timescale == 0 {
		timescale = 1
	}
	startNumber := parseIntOrDefault(st.StartNumber, 1)
	if startNumber == 0 {
		warnings = append(warnings, "SegmentTemplate: @startNumber=0 treated as 1")
		startNumber = 1
	}
	pto := parseIntOrDefault(st.PresentationTimeOffset, 0)

	var initURI string
	if st.Initialization != "" {
		uri, tw := expandTemplate(st.Initialization, templateParams{RepresentationID: representationID, Bandwidth: &bandwidth})
		warnings = append(warnings, tw...)
		resolved, err := urlutil.Resolve(baseURL, uri)
		if err == nil {
			initURI = resolved
		}
	}

	factory := func() (*segment.Index, error) {
		var newRefs []*segment.Reference
		initRef := &segment.InitSegmentReference{URIs: []string{initURI}}

		emit := func(number, startUnscaled, durUnscaled int64) {
			start := periodStart + float64(startUnscaled-pto)/float64(timescale)
			end := start + float64(durUnscaled)/float64(timescale)
			n := number
			tVal := startUnscaled
			media, tw := expandTemplate(st.Media, templateParams{
				RepresentationID: representationID,
				Bandwidth:        &bandwidth,
				Number:           &n,
				Time:             &tVal,
			})
			warnings = append(warnings, tw...)
			uri, err := urlutil.Resolve(baseURL, media)
			if err != nil {
				return
			}
			ref := segment.NewReference(start, end, []string{uri})
			ref.InitSegment = initRef
			newRefs = append(newRefs, ref)
		}

		if st.Timeline != nil {
			elements := make([]sElement, len(st.Timeline.S))
			for i, s := range st.Timeline.S {
				elements[i] = sElement{t: parseIntPtr(s.T), d: parseIntPtr(s.D), r: parseIntOrDefault(s.R, 0)}
			}
			effectiveHasDuration := hasPeriodDuration || !isLastPeriod
			entries, ew := expandTimeline(elements, pto, timescale, periodDuration, effectiveHasDuration)
			warnings = append(warnings, ew...)
			number := startNumber
			for _, e := range entries {
				emit(number, e.unscaledStart+pto, e.end-e.start)
				number++
			}
		} else if st.Duration != "" {
			dur := parseIntOrDefault(st.Duration, 0)
			if dur > 0 && hasPeriodDuration {
				total := int64(periodDuration * float64(timescale))
				count := total / dur
				number := startNumber
				for i := int64(0); i < count; i++ {
					unscaledStart := i*dur + pto
					emit(number, unscaledStart, dur)
					number++
				}
			}
		}

		if existing != nil {
			existing.Merge(newRefs)
			return existing, nil
		}
		idx := segment.NewIndex(newRefs)
		return idx, nil
	}

	return factory, warnings
}
