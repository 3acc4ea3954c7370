package hls

import (
	"fmt"
	"math"
	"strings"
)

// playlistEntry is one #EXTINF line in a rolling media playlist.
type playlistEntry struct {
	name     string
	duration float64
}

// MediaPlaylist is the rolling per-track HLS media playlist (§4.11,
// "rolling media playlist"). Entries are evicted from the front once the
// window exceeds maxSegmentNum.
type MediaPlaylist struct {
	targetDuration int
	mediaSequence  int
	entries        []playlistEntry
	maxSegmentNum  int
	bufferFull     bool
}

// NewMediaPlaylist constructs an empty rolling playlist.
func NewMediaPlaylist(targetDuration, maxSegmentNum int) *MediaPlaylist {
	return &MediaPlaylist{targetDuration: targetDuration, maxSegmentNum: maxSegmentNum}
}

// Append adds a new segment entry, evicting the eldest entry (and
// incrementing MEDIA-SEQUENCE) when the window now exceeds maxSegmentNum.
// Returns the name of the evicted entry, or "" if nothing was evicted.
func (p *MediaPlaylist) Append(name string, duration float64) (evicted string) {
	p.entries = append(p.entries, playlistEntry{name: name, duration: duration})
	if len(p.entries) > p.maxSegmentNum {
		evicted = p.entries[0].name
		p.entries = p.entries[1:]
		p.mediaSequence++
		p.bufferFull = true
	}
	return evicted
}

// BufferFull reports whether at least one eviction has happened (§4.11,
// "Pacing").
func (p *MediaPlaylist) BufferFull() bool {
	return p.bufferFull
}

// MediaSequence returns the current #EXT-X-MEDIA-SEQUENCE value.
func (p *MediaPlaylist) MediaSequence() int {
	return p.mediaSequence
}

// Render produces the bit-exact media playlist text (§6).
func (p *MediaPlaylist) Render() string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:7\n")
	b.WriteString("#EXT-X-PLAYLIST-TYPE:EVENT\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", p.targetDuration)
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", p.mediaSequence)
	for _, e := range p.entries {
		fmt.Fprintf(&b, "#EXTINF:%s,\n%s\n", formatDuration(e.duration), e.name)
	}
	return b.String()
}

// formatDuration renders a segment duration with no trailing zeros beyond
// what is needed, matching the reference player's EXTINF rendering.
func formatDuration(d float64) string {
	s := fmt.Sprintf("%.6f", d)
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}

// TargetDurationFromUpdatePeriod floors a manifest update period (seconds)
// to an integer target duration (§6, "#EXT-X-TARGETDURATION:<floor(updatePeriod)>").
func TargetDurationFromUpdatePeriod(updatePeriod float64) int {
	return int(math.Floor(updatePeriod))
}

// MasterPlaylistParams describes the values substituted into the master
// playlist template (§6).
type MasterPlaylistParams struct {
	Language   string
	Bandwidth  int
	Width      int
	Height     int
	Codecs     string
	FrameRate  float64
}

// RenderMasterPlaylist produces the bit-exact master playlist text (§6),
// written once per ingest.
func RenderMasterPlaylist(p MasterPlaylistParams) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:7\n")
	fmt.Fprintf(&b, "#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID=\"audio\",LANGUAGE=%q,NAME=%q,AUTOSELECT=YES,URI=\"audio/audioVariant.m3u8\"\n", p.Language, p.Language)
	fmt.Fprintf(&b, "#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=%d,RESOLUTION=%dx%d,CODECS=%q,FRAME-RATE=%s,AUDIO=\"audio\"\n", p.Bandwidth, p.Width, p.Height, p.Codecs, formatFrameRate(p.FrameRate))
	b.WriteString("video/videoVariant.m3u8\n")
	return b.String()
}

func formatFrameRate(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
