// Package segment holds the container-agnostic segment reference and index
// types shared by the MP4/SIDX parser, the WebM Cues parser, the MPD
// segment-info resolvers, the presentation timeline, and the period
// combiner.
package segment

// QualityDescriptor describes the stream carried by an InitSegmentReference,
// used by the HLS master-playlist writer to fill in CODECS/RESOLUTION/etc.
type QualityDescriptor struct {
	Bandwidth     int
	Codecs        string
	Width, Height int
	FrameRate     float64
	SampleRate    int
	ChannelCount  int
}

// InitSegmentReference describes the initialization segment shared by every
// media segment in a SegmentIndex: a URL list (for CDN fallback), an
// optional byte range, and a quality descriptor.
type InitSegmentReference struct {
	URIs              []string
	StartByte         int64
	EndByte           *int64 // nil = "to EOF"
	Quality           QualityDescriptor
}

// Reference is one entry in a SegmentIndex. Times are seconds on the
// presentation timeline; StartByte/EndByte address bytes within the media
// container this reference was sourced from (EndByte nil means "to EOF").
type Reference struct {
	StartTime float64
	EndTime   float64

	uris func() []string

	StartByte int64
	EndByte   *int64

	InitSegment *InitSegmentReference

	// TimestampOffset is added to the container-internal PTS, seconds.
	TimestampOffset float64

	AppendWindowStart float64
	AppendWindowEnd   float64
}

// NewReference constructs a Reference with a pre-resolved, static URI list.
func NewReference(start, end float64, uris []string) *Reference {
	return &Reference{StartTime: start, EndTime: end, uris: func() []string { return uris }}
}

// NewLazyReference constructs a Reference whose URIs are only resolved when
// GetURIs is called, e.g. because resolution depends on CDN failover state
// evaluated at fetch time.
func NewLazyReference(start, end float64, uriFn func() []string) *Reference {
	return &Reference{StartTime: start, EndTime: end, uris: uriFn}
}

// GetURIs lazily resolves the candidate URL list for this reference.
func (r *Reference) GetURIs() []string {
	if r.uris == nil {
		return nil
	}
	return r.uris()
}

// Valid reports whether the reference satisfies its invariants: StartTime <=
// EndTime, and StartByte < EndByte whenever EndByte is set.
func (r *Reference) Valid() bool {
	if r.StartTime > r.EndTime {
		return false
	}
	if r.EndByte != nil && r.StartByte >= *r.EndByte {
		return false
	}
	return true
}
