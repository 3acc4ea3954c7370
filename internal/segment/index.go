package segment

import (
	"math"
	"sort"
)

// AdjacencyTolerance is the maximum allowed gap/overlap between adjacent
// references before a warning is emitted (§8 invariant: "< 1/15 s").
const AdjacencyTolerance = 1.0 / 15.0

// Index is an ordered, gap-free sequence of References. References are kept
// non-overlapping within one index, with start < end for every entry.
type Index struct {
	references []*Reference

	// updateTimerCancel, if non-nil, cancels the weak update timer a
	// template-sourced live index was built with. release() invokes it.
	updateTimerCancel func()
	released          bool
}

// NewIndex builds an Index from an already-ordered reference slice.
func NewIndex(refs []*Reference) *Index {
	return &Index{references: refs}
}

// Len returns the number of references currently held.
func (idx *Index) Len() int { return len(idx.references) }

// At returns the reference at position i (no bounds checking, mirroring the
// reference implementation's indexable references[i]).
func (idx *Index) At(i int) *Reference { return idx.references[i] }

// All returns the full slice of references in order. Callers must not
// mutate the returned slice.
func (idx *Index) All() []*Reference { return idx.references }

// IsEmpty reports whether the index holds no references.
func (idx *Index) IsEmpty() bool { return len(idx.references) == 0 }

// SetUpdateTimerCancel registers the cancel function for a weak update
// timer backing a live, template-sourced index (§5, "Lifecycle of
// indexes").
func (idx *Index) SetUpdateTimerCancel(cancel func()) { idx.updateTimerCancel = cancel }

// Release cancels any update timer and marks the index released. After
// Release, Merge (and so the merge step of MergeAndEvict) is a no-op;
// Evict and Fit still change the index.
func (idx *Index) Release() {
	if idx.updateTimerCancel != nil {
		idx.updateTimerCancel()
	}
	idx.released = true
}

// Merge appends new references to the index in order, preserving existing
// entries and rejecting references that overlap an existing one by more
// than AdjacencyTolerance. Merge is a no-op after Release.
func (idx *Index) Merge(newRefs []*Reference) []string {
	if idx.released {
		return nil
	}
	var warnings []string
	for _, nr := range newRefs {
		if len(idx.references) > 0 {
			last := idx.references[len(idx.references)-1]
			if nr.StartTime < last.EndTime-AdjacencyTolerance {
				// Overlap beyond tolerance: drop the stale reference.
				warnings = append(warnings, "merge: dropped overlapping reference")
				continue
			}
		}
		idx.references = append(idx.references, nr)
	}
	return warnings
}

// MergeAndEvict merges newRefs like Merge, then drops any reference (old or
// new) whose end time precedes minAvailabilityStart.
func (idx *Index) MergeAndEvict(newRefs []*Reference, minAvailabilityStart float64) []string {
	warnings := idx.Merge(newRefs)
	idx.Evict(minAvailabilityStart)
	return warnings
}

// Evict drops every reference whose end time precedes minAvailabilityStart.
func (idx *Index) Evict(minAvailabilityStart float64) {
	i := 0
	for i < len(idx.references) && idx.references[i].EndTime < minAvailabilityStart {
		i++
	}
	if i > 0 {
		idx.references = idx.references[i:]
	}
}

// Fit truncates the index to [periodStart, periodEnd]. When isNew is true
// and periodEnd is the sentinel +Inf (an unknown-duration last period), no
// truncation happens — per the spec's Open Question (i), such periods are
// treated as infinite and fitting is skipped.
func (idx *Index) Fit(periodStart, periodEnd float64, isNew bool) {
	if isNew && math.IsInf(periodEnd, 1) {
		return
	}
	var kept []*Reference
	for _, r := range idx.references {
		if r.EndTime <= periodStart || r.StartTime >= periodEnd {
			continue
		}
		if r.StartTime < periodStart {
			r.StartTime = periodStart
		}
		if r.EndTime > periodEnd {
			r.EndTime = periodEnd
		}
		kept = append(kept, r)
	}
	idx.references = kept
}

// ForEachTopLevelReference invokes fn for every reference in order.
func (idx *Index) ForEachTopLevelReference(fn func(*Reference)) {
	for _, r := range idx.references {
		fn(r)
	}
}

// AdjacencyWarnings reports references whose gap to the next reference
// exceeds AdjacencyTolerance, for the §8 invariant check.
func AdjacencyWarnings(refs []*Reference) []string {
	var warnings []string
	for i := 0; i+1 < len(refs); i++ {
		gap := refs[i+1].StartTime - refs[i].EndTime
		if gap < 0 {
			gap = -gap
		}
		if gap >= AdjacencyTolerance {
			warnings = append(warnings, "non-adjacent segment references")
		}
	}
	return warnings
}

// SortByStartTime sorts refs ascending by StartTime, used when concatenating
// per-period indexes into a Variant-level timeline (§4.6).
func SortByStartTime(refs []*Reference) {
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].StartTime < refs[j].StartTime })
}

// ShiftTime returns a copy of refs with StartTime/EndTime shifted by delta
// seconds, used to splice a period's local index onto a Variant's global
// timeline at the period's start offset.
func ShiftTime(refs []*Reference, delta float64) []*Reference {
	shifted := make([]*Reference, len(refs))
	for i, r := range refs {
		cp := *r
		cp.StartTime += delta
		cp.EndTime += delta
		shifted[i] = &cp
	}
	return shifted
}
