// Package timeline implements the PresentationTimeline (§3): the
// availability window, clock offset, and live/static state shared by every
// Variant's segment index.
package timeline

import (
	"sync"
	"time"

	"github.com/jmylchreest/streamrelay/internal/segment"
)

// PresentationTimeline tracks the current segment-availability window for a
// live or static presentation.
type PresentationTimeline struct {
	mu sync.RWMutex

	availabilityStart time.Time
	clockOffset       time.Duration
	segmentAvailabilityDuration float64 // seconds; +Inf for VOD
	duration                    float64
	static                      bool
	maxSegmentDuration          float64
	presentationDelay           float64
}

// New constructs a PresentationTimeline with the given availability-start
// wall time and a max segment duration floor of 1 second (§3 invariant:
// "max_segment_duration >= 1").
func New(availabilityStart time.Time) *PresentationTimeline {
	return &PresentationTimeline{
		availabilityStart:  availabilityStart,
		maxSegmentDuration: 1,
	}
}

// SetStatic marks the presentation as static (VOD-like) or dynamic (live).
func (t *PresentationTimeline) SetStatic(static bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.static = static
}

// IsStatic reports whether the presentation is static.
func (t *PresentationTimeline) IsStatic() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.static
}

// SetClockOffset records the offset between server wall-clock and local
// wall-clock, in milliseconds, as resolved by UTCTiming (§4.4).
func (t *PresentationTimeline) SetClockOffset(ms int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clockOffset = time.Duration(ms) * time.Millisecond
}

// ClockOffset returns the currently recorded clock offset.
func (t *PresentationTimeline) ClockOffset() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.clockOffset
}

// SetDuration sets the total presentation duration in seconds (§3).
func (t *PresentationTimeline) SetDuration(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.duration = seconds
}

// Duration returns the total presentation duration in seconds.
func (t *PresentationTimeline) Duration() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.duration
}

// SetSegmentAvailabilityDuration sets the time-shift buffer depth (seconds);
// callers should pass +Inf for VOD content, per the §3 invariant.
func (t *PresentationTimeline) SetSegmentAvailabilityDuration(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	t.segmentAvailabilityDuration = seconds
}

// SetPresentationDelay sets the suggestedPresentationDelay, in seconds.
func (t *PresentationTimeline) SetPresentationDelay(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.presentationDelay = seconds
}

// PresentationDelay returns the suggestedPresentationDelay, in seconds.
func (t *PresentationTimeline) PresentationDelay() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.presentationDelay
}

// NotifyMaxSegmentDuration raises the known maximum segment duration,
// never lowering it below the 1-second floor.
func (t *PresentationTimeline) NotifyMaxSegmentDuration(d float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d > t.maxSegmentDuration {
		t.maxSegmentDuration = d
	}
}

// MaxSegmentDuration returns the current max segment duration estimate.
func (t *PresentationTimeline) MaxSegmentDuration() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.maxSegmentDuration
}

// NotifySegments updates the max-segment-duration estimate from a freshly
// parsed reference batch (§3, "notifySegments(refs)").
func (t *PresentationTimeline) NotifySegments(refs []*segment.Reference) {
	for _, r := range refs {
		t.NotifyMaxSegmentDuration(r.EndTime - r.StartTime)
	}
}

// GetSegmentAvailabilityEnd returns the wall-clock-derived presentation time
// (seconds since availabilityStart, offset-adjusted) up to which segments
// are expected to be available: now + clockOffset − availabilityStart, for
// a dynamic presentation; the full duration for a static one.
func (t *PresentationTimeline) GetSegmentAvailabilityEnd(now time.Time) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.static {
		return t.duration
	}
	elapsed := now.Add(t.clockOffset).Sub(t.availabilityStart).Seconds()
	return elapsed
}

// GetSegmentAvailabilityStart returns the earliest presentation time still
// within the time-shift buffer, i.e. the minimum a SegmentIndex should
// retain (§3, "evict(minAvailabilityStart)").
func (t *PresentationTimeline) GetSegmentAvailabilityStart(now time.Time) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.static || t.segmentAvailabilityDuration == 0 {
		return 0
	}
	end := now.Add(t.clockOffset).Sub(t.availabilityStart).Seconds()
	start := end - t.segmentAvailabilityDuration
	if start < 0 {
		return 0
	}
	return start
}
