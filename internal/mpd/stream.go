package mpd

import (
	"sync"

	"github.com/jmylchreest/streamrelay/internal/drm"
	"github.com/jmylchreest/streamrelay/internal/segment"
)

// ContentType classifies a Stream by its MPD AdaptationSet contentType.
type ContentType string

const (
	ContentTypeAudio       ContentType = "audio"
	ContentTypeVideo       ContentType = "video"
	ContentTypeText        ContentType = "text"
	ContentTypeImage       ContentType = "image"
	ContentTypeApplication ContentType = "application"
)

// VideoRange is the HDR hint derived from a CICP transfer-characteristics
// SupplementalProperty (§4.4 step 5).
type VideoRange string

const (
	VideoRangeSDR VideoRange = "SDR"
	VideoRangePQ  VideoRange = "PQ"
	VideoRangeHLG VideoRange = "HLG"
)

// OriginID identifies the MPD element a Stream was built from.
type OriginID struct {
	PeriodID         string
	RepresentationID string
}

var streamIDCounter struct {
	mu   sync.Mutex
	next int
}

func nextStreamID() int {
	streamIDCounter.mu.Lock()
	defer streamIDCounter.mu.Unlock()
	streamIDCounter.next++
	return streamIDCounter.next
}

// Stream is one Representation resolved into the engine's domain model
// (§3, "Stream").
type Stream struct {
	ID       int
	Origin   OriginID
	MimeType string

	ContentType  ContentType
	Codecs       string
	Language     string
	Label        string
	Roles        []string
	ForcedSubtitle bool

	Width, Height int
	FrameRate     float64
	ChannelCount  int
	SamplingRate  int
	Bandwidth     int
	VideoRange    VideoRange
	TrickModeFor  string

	DrmInfos []drm.DrmInfo
	KeyIDs   []string
	Encrypted bool

	index        *segment.Index
	indexFactory func() (*segment.Index, error)
	indexOnce    sync.Once
	indexErr     error
}

// NewStream allocates a Stream with a fresh globally-unique ID.
func NewStream(origin OriginID) *Stream {
	return &Stream{ID: nextStreamID(), Origin: origin}
}

// SetSegmentIndexFactory registers the lazy factory used to build this
// Stream's SegmentIndex on first access (§3, "lazy segmentIndex").
func (s *Stream) SetSegmentIndexFactory(factory func() (*segment.Index, error)) {
	s.indexFactory = factory
}

// SegmentIndex lazily resolves and caches this Stream's SegmentIndex,
// invoking the registered factory exactly once.
func (s *Stream) SegmentIndex() (*segment.Index, error) {
	s.indexOnce.Do(func() {
		if s.indexFactory == nil {
			return
		}
		s.index, s.indexErr = s.indexFactory()
	})
	return s.index, s.indexErr
}

// RawIndexFactory returns the factory registered by the MPD parser, before
// any later override (e.g. by the period combiner splicing per-period
// streams into one cross-period index). Used by the combiner to read each
// constituent period's own segments without recursing into a stream whose
// factory it is about to replace.
func (s *Stream) RawIndexFactory() func() (*segment.Index, error) {
	return s.indexFactory
}

// codecBase returns the prefix before the first dot, lower-cased, used for
// cross-period stream matching and trickmode association (§4.4, "Codec-base
// comparison").
func codecBase(codecs string) string {
	for i := 0; i < len(codecs); i++ {
		if codecs[i] == '.' {
			return toLowerASCII(codecs[:i])
		}
	}
	return toLowerASCII(codecs)
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
