package dash

import (
	"sync"

	"github.com/jmylchreest/streamrelay/internal/combiner"
	"github.com/jmylchreest/streamrelay/internal/timeline"
)

// Presentation is the root entity (§3): one per ingest, holding the
// presentation timeline, the ordered Variant list, and the text/image
// stream lists (unused by the emission path). Created once per ingest,
// mutated on every manifest refresh, destroyed on Stop.
type Presentation struct {
	mu sync.RWMutex

	Timeline     *timeline.PresentationTimeline
	Variants     []*combiner.Variant
	TextStreams  []combiner.TextStream
	ImageStreams []combiner.ImageStream

	// SequenceMode is always false: the engine addresses segments by
	// explicit timestamp, never by append-sequence.
	SequenceMode bool

	MinBufferTime float64
}

// NewPresentation constructs an empty Presentation around tl.
func NewPresentation(tl *timeline.PresentationTimeline) *Presentation {
	return &Presentation{Timeline: tl}
}

// Replace atomically swaps in the combiner output from a fresh parse/combine
// cycle.
func (p *Presentation) Replace(variants []*combiner.Variant, texts []combiner.TextStream, images []combiner.ImageStream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Variants = variants
	p.TextStreams = texts
	p.ImageStreams = images
}

// VariantsSnapshot returns the current Variant list.
func (p *Presentation) VariantsSnapshot() []*combiner.Variant {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*combiner.Variant, len(p.Variants))
	copy(out, p.Variants)
	return out
}
