// Package combiner merges per-period streams into cross-period Variants
// (audio+video pairs) and text/image lists (§4.6). It is re-invoked on
// every manifest refresh.
package combiner

import (
	"sort"
	"strings"

	"github.com/jmylchreest/streamrelay/internal/mpd"
	"github.com/jmylchreest/streamrelay/internal/segment"
)

// Variant is an audio+video pair spanning every period, with aggregate
// bandwidth and a lazily-concatenated, cross-period SegmentIndex for each
// member stream (§3, "Variant").
type Variant struct {
	Audio     *mpd.Stream
	Video     *mpd.Stream
	Bandwidth int
	Language  string
}

// TextStream and ImageStream are carried through for completeness (§3) but
// are not exercised by the emission path.
type TextStream struct{ Stream *mpd.Stream }
type ImageStream struct{ Stream *mpd.Stream }

// matchKey is the tuple used to associate a stream with its cross-period
// partner: (language, roleSet, channelCount, label, codecBase).
type matchKey struct {
	language     string
	roleSet      string
	channelCount int
	label        string
	codecBase    string
}

func keyFor(s *mpd.Stream) matchKey {
	roles := append([]string(nil), s.Roles...)
	sort.Strings(roles)
	return matchKey{
		language:     strings.ToLower(s.Language),
		roleSet:      strings.Join(roles, ","),
		channelCount: s.ChannelCount,
		label:        s.Label,
		codecBase:    codecBase(s.Codecs),
	}
}

func codecBase(codecs string) string {
	if idx := strings.IndexByte(codecs, '.'); idx >= 0 {
		return strings.ToLower(codecs[:idx])
	}
	return strings.ToLower(codecs)
}

// streamGroup collects one match key's member streams across periods,
// along with the start time of the period each member came from.
type streamGroup struct {
	key          matchKey
	streams      []*mpd.Stream
	periodStarts []float64
}

// Combine merges the streams from every period into global Variants, text
// streams, and image streams (§4.6). Matching discipline across periods
// uses the (language, roleSet, channelCount, label, codecBase) tuple;
// streams that cannot be matched to a partner fall back to the
// most-codec-compatible remaining group.
func Combine(periods []mpd.Period) (variants []*Variant, texts []TextStream, images []ImageStream) {
	audioGroups := map[matchKey]*streamGroup{}
	videoGroups := map[matchKey]*streamGroup{}

	for _, p := range periods {
		for _, s := range p.Streams {
			switch s.ContentType {
			case mpd.ContentTypeAudio:
				addToGroup(audioGroups, s, p.Start)
			case mpd.ContentTypeVideo:
				addToGroup(videoGroups, s, p.Start)
			case mpd.ContentTypeText:
				texts = append(texts, TextStream{Stream: s})
			case mpd.ContentTypeImage:
				images = append(images, ImageStream{Stream: s})
			}
		}
	}

	matchedVideoKeys := map[matchKey]bool{}
	for ak, ag := range audioGroups {
		vg, ok := videoGroups[ak]
		if !ok {
			vg, ok = bestFallback(ak, videoGroups, matchedVideoKeys)
		}
		if ok {
			matchedVideoKeys[vg.key] = true
		}
		variants = append(variants, buildVariant(ag, vg))
	}
	for vk, vg := range videoGroups {
		if matchedVideoKeys[vk] {
			continue
		}
		variants = append(variants, buildVariant(nil, vg))
	}

	return variants, texts, images
}

func addToGroup(groups map[matchKey]*streamGroup, s *mpd.Stream, periodStart float64) {
	k := keyFor(s)
	g, ok := groups[k]
	if !ok {
		g = &streamGroup{key: k}
		groups[k] = g
	}
	g.streams = append(g.streams, s)
	g.periodStarts = append(g.periodStarts, periodStart)
}

// bestFallback finds an unused video group for an audio group (or vice
// versa) when no exact (language, roleSet, channelCount, label, codecBase)
// match exists (§4.6, "most-compatible fallback"). Audio and video codec
// bases never coincide (e.g. "mp4a" vs "avc1"), so an equal-codecBase
// candidate is preferred when one happens to exist, but any remaining
// unused group is an acceptable pairing rather than leaving a stream
// unmatched.
func bestFallback(k matchKey, groups map[matchKey]*streamGroup, used map[matchKey]bool) (*streamGroup, bool) {
	var any *streamGroup
	for gk, g := range groups {
		if used[gk] {
			continue
		}
		if gk.codecBase == k.codecBase {
			return g, true
		}
		if any == nil {
			any = g
		}
	}
	if any != nil {
		return any, true
	}
	return nil, false
}

func buildVariant(audioGroup, videoGroup *streamGroup) *Variant {
	v := &Variant{}
	if audioGroup != nil && len(audioGroup.streams) > 0 {
		v.Audio = audioGroup.streams[0]
		v.Language = audioGroup.streams[0].Language
		v.Bandwidth += audioGroup.streams[0].Bandwidth
		concatenateIndexes(v.Audio, audioGroup.streams, audioGroup.periodStarts)
	}
	if videoGroup != nil && len(videoGroup.streams) > 0 {
		v.Video = videoGroup.streams[0]
		v.Bandwidth += videoGroup.streams[0].Bandwidth
		concatenateIndexes(v.Video, videoGroup.streams, videoGroup.periodStarts)
	}
	return v
}

// concatenateIndexes splices each period-local stream's SegmentIndex onto a
// single representative stream's factory, time-shifted by that period's
// start relative to the first period in the group (§4.6, "time-shifted by
// each period's start").
func concatenateIndexes(representative *mpd.Stream, streams []*mpd.Stream, periodStarts []float64) {
	rawFactories := make([]func() (*segment.Index, error), len(streams))
	for i, s := range streams {
		rawFactories[i] = s.RawIndexFactory()
	}

	representative.SetSegmentIndexFactory(func() (*segment.Index, error) {
		var all []*segment.Reference
		base := periodStarts[0]
		for i, factory := range rawFactories {
			if factory == nil {
				continue
			}
			idx, err := factory()
			if err != nil {
				return nil, err
			}
			if idx == nil {
				continue
			}
			all = append(all, segment.ShiftTime(idx.All(), periodStarts[i]-base)...)
		}
		segment.SortByStartTime(all)
		return segment.NewIndex(all), nil
	})
}
