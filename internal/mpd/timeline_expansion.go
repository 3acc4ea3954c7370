package mpd

import "math"

// timelineEntry is one expanded SegmentTimeline entry in timescale units.
type timelineEntry struct {
	start         int64
	end           int64
	unscaledStart int64
}

// sElement is one parsed <S t= d= r=> element, with absence of t/r tracked
// explicitly (both may legally be zero).
type sElement struct {
	t    *int64
	d    *int64
	r    int64
}

// expandTimeline implements the §4.5.1 SegmentTimeline expansion algorithm.
// unscaledPTO is the presentation time offset in timescale units.
func expandTimeline(elements []sElement, unscaledPTO int64, timescale int64, periodDuration float64, hasPeriodDuration bool) ([]timelineEntry, []string) {
	var warnings []string
	var entries []timelineEntry
	lastEnd := -unscaledPTO

	for idx, el := range elements {
		if el.d == nil {
			warnings = append(warnings, "SegmentTimeline: S element missing @d, dropping remainder")
			break
		}
		d := *el.d

		var start int64
		if el.t != nil {
			start = *el.t - unscaledPTO
		} else {
			start = lastEnd
		}

		repeat := el.r
		if repeat < 0 {
			var next *sElement
			if idx+1 < len(elements) {
				next = &elements[idx+1]
			}
			switch {
			case next != nil && next.t != nil:
				nextT := *next.t - unscaledPTO
				if start >= nextT {
					warnings = append(warnings, "SegmentTimeline: negative @r start at/after next @t, dropping remainder")
					return entries, warnings
				}
				repeat = int64(math.Ceil(float64(nextT-start)/float64(d))) - 1
			case next != nil:
				warnings = append(warnings, "SegmentTimeline: negative @r with no @t on next S, dropping remainder")
				return entries, warnings
			default:
				if !hasPeriodDuration {
					warnings = append(warnings, "SegmentTimeline: negative @r on last S requires a finite period duration, dropping remainder")
					return entries, warnings
				}
				totalUnscaled := int64(periodDuration * float64(timescale))
				repeat = int64(math.Ceil(float64(totalUnscaled-start)/float64(d))) - 1
			}
			if repeat < 0 {
				repeat = 0
			}
		}

		if math.Abs(float64(start-lastEnd))/float64(timescale) >= 1.0/15.0 {
			warnings = append(warnings, "SegmentTimeline: gap or overlap at S element boundary")
			if len(entries) > 0 {
				entries[len(entries)-1].end = start
			}
		}

		cur := start
		for r := int64(0); r <= repeat; r++ {
			end := cur + d
			entries = append(entries, timelineEntry{start: cur, end: end, unscaledStart: cur})
			cur = end
			lastEnd = end
		}
	}

	return entries, warnings
}

// entriesToSeconds converts timeline entries from timescale units to
// seconds, applying periodStart as the base offset.
func entriesToSeconds(entries []timelineEntry, timescale int64, periodStart float64) []struct{ Start, End float64 } {
	out := make([]struct{ Start, End float64 }, len(entries))
	for i, e := range entries {
		out[i] = struct{ Start, End float64 }{
			Start: periodStart + float64(e.start)/float64(timescale),
			End:   periodStart + float64(e.end)/float64(timescale),
		}
	}
	return out
}
