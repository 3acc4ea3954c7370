package mpd

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/streamrelay/internal/drm"
	"github.com/jmylchreest/streamrelay/internal/relayerr"
	"github.com/jmylchreest/streamrelay/internal/segment"
)

// Period is one parsed <Period>, holding every Stream derived from its
// AdaptationSets/Representations.
type Period struct {
	ID           string
	Start        float64
	Duration     float64
	HasDuration  bool
	IsLastPeriod bool
	Streams      []*Stream
}

// ParseResult is the MPD parser's output (§4.4): manifest-level attributes
// plus the period/stream list, ready for the period combiner (§4.6) and the
// presentation timeline.
type ParseResult struct {
	Dynamic                    bool
	MinBufferTime              float64
	MinimumUpdatePeriod        float64 // -1 sentinel: absent
	AvailabilityStartTime      time.Time
	TimeShiftBufferDepth       float64
	SuggestedPresentationDelay float64
	MaxSegmentDuration         float64
	MediaPresentationDuration  float64
	HasMediaPresentationDuration bool
	Profiles                   []string
	ClockOffset                time.Duration

	Periods  []Period
	Warnings []string
}

// ExistingIndexLookup resolves a previously-built SegmentIndex for
// (period.id, representation.id), used to merge SegmentList/SegmentTemplate
// updates into the live stream's index across manifest refreshes.
type ExistingIndexLookup func(periodID, representationID string) *segment.Index

// Options configures one Parse invocation.
type Options struct {
	Client       RangeFetcher
	BaseURL      string
	ExistingIdx  ExistingIndexLookup
	Now          time.Time
}

// Parse parses MPD XML bytes into a ParseResult (§4.4).
func Parse(ctx context.Context, data []byte, opts Options) (*ParseResult, error) {
	var root mpdXML
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, relayerr.Wrap(relayerr.CategoryManifest, relayerr.CodeInvalidXML, "parsing MPD XML", err)
	}
	if root.XMLName.Local != "MPD" {
		return nil, relayerr.New(relayerr.CategoryManifest, relayerr.CodeInvalidXML, "root element is not MPD")
	}

	result := &ParseResult{
		Dynamic:             root.Type == "dynamic",
		MinimumUpdatePeriod: -1,
	}

	result.MinBufferTime, _ = parseISODuration(root.MinBufferTime)
	if root.MinimumUpdatePeriod != "" {
		if v, err := parseISODuration(root.MinimumUpdatePeriod); err == nil {
			result.MinimumUpdatePeriod = v
		}
	}
	if root.AvailabilityStartTime != "" {
		if t, err := parseDateTime(root.AvailabilityStartTime); err == nil {
			result.AvailabilityStartTime = t
		}
	}
	result.TimeShiftBufferDepth, _ = parseISODuration(root.TimeShiftBufferDepth)
	if root.SuggestedPresentationDelay != "" {
		result.SuggestedPresentationDelay, _ = parseISODuration(root.SuggestedPresentationDelay)
	} else {
		result.SuggestedPresentationDelay = 1.5 * result.MinBufferTime
	}
	result.MaxSegmentDuration, _ = parseISODuration(root.MaxSegmentDuration)
	if root.MediaPresentationDuration != "" {
		if d, err := parseISODuration(root.MediaPresentationDuration); err == nil {
			result.MediaPresentationDuration = d
			result.HasMediaPresentationDuration = true
		}
	}
	if root.Profiles != "" {
		result.Profiles = strings.Split(root.Profiles, ",")
	}

	rootBaseURLs, _, err := resolveBaseURLs([]string{opts.BaseURL}, root.BaseURL)
	if err != nil {
		return nil, err
	}

	if root.UTCTiming != nil && opts.Client != nil {
		offset, warn := resolveUTCTiming(ctx, opts.Client, root.UTCTiming, opts.Now)
		if warn != "" {
			result.Warnings = append(result.Warnings, warn)
		}
		result.ClockOffset = offset
	}

	periodStart := 0.0
	for i, pxml := range root.Periods {
		period, warnings, perr := parsePeriod(ctx, opts, pxml, i, root.Periods, periodStart, rootBaseURLs, result)
		if perr != nil {
			return nil, perr
		}
		result.Warnings = append(result.Warnings, warnings...)
		result.Periods = append(result.Periods, *period)
		periodStart = period.Start + period.Duration
	}

	if result.Dynamic {
		seen := map[string]bool{}
		for _, p := range result.Periods {
			for _, s := range p.Streams {
				key := p.ID + "\x00" + s.Origin.RepresentationID
				if seen[key] {
					return nil, relayerr.New(relayerr.CategoryManifest, relayerr.CodeDuplicateRepresentationID,
						"duplicate representation ID "+s.Origin.RepresentationID+" in period "+p.ID)
				}
				seen[key] = true
			}
		}
	}

	return result, nil
}

func parsePeriod(ctx context.Context, opts Options, pxml periodXML, index int, allPeriods []periodXML, defaultStart float64, rootBaseURLs []string, result *ParseResult) (*Period, []string, error) {
	var warnings []string

	start := defaultStart
	if pxml.Start != "" {
		if v, err := parseISODuration(pxml.Start); err == nil {
			start = v
		}
	}

	var duration float64
	hasDuration := false
	isLast := index == len(allPeriods)-1

	if index+1 < len(allPeriods) {
		nextStart := start
		if allPeriods[index+1].Start != "" {
			if v, err := parseISODuration(allPeriods[index+1].Start); err == nil {
				nextStart = v
			}
		}
		duration = nextStart - start
		hasDuration = true
	} else if result.HasMediaPresentationDuration {
		duration = result.MediaPresentationDuration - start
		hasDuration = true
	} else if pxml.Duration != "" {
		if v, err := parseISODuration(pxml.Duration); err == nil {
			duration = v
			hasDuration = true
		}
	}

	id := pxml.ID
	if id == "" {
		id = fmt.Sprintf("__sp_period_%v", start)
	}

	periodBaseURLs, periodATO, err := resolveBaseURLs(rootBaseURLs, pxml.BaseURL)
	if err != nil {
		return nil, nil, err
	}

	period := &Period{ID: id, Start: start, Duration: duration, HasDuration: hasDuration, IsLastPeriod: isLast}

	trickmodeTargets := map[string]*Stream{} // codecBase -> stream carrying trickModeFor

	for _, axml := range pxml.AdaptationSets {
		streams, asWarnings, dropped, err := parseAdaptationSet(ctx, opts, axml, id, start, duration, hasDuration, isLast, periodBaseURLs, periodATO)
		warnings = append(warnings, asWarnings...)
		if err != nil {
			return nil, nil, err
		}
		if dropped {
			continue
		}
		period.Streams = append(period.Streams, streams...)
		for _, s := range streams {
			if s.TrickModeFor != "" {
				trickmodeTargets[codecBase(s.Codecs)] = s
			}
		}
	}

	if len(period.Streams) == 0 {
		warnings = append(warnings, "period "+id+" has no streams")
	}

	return period, warnings, nil
}

func parseAdaptationSet(ctx context.Context, opts Options, axml adaptationSetXML, periodID string, periodStart, periodDuration float64, hasPeriodDuration, isLastPeriod bool, periodBaseURLs []string, periodATO float64) (streams []*Stream, warnings []string, dropped bool, err error) {
	asBaseURLs, asATO, err := resolveBaseURLs(periodBaseURLs, axml.BaseURL)
	if err != nil {
		return nil, nil, false, err
	}
	totalATO := periodATO + asATO

	var roles []string
	forced := false
	for _, r := range axml.Role {
		if r.SchemeIDURI == "urn:mpeg:dash:role:2011" {
			roles = append(roles, r.Value)
		}
		if strings.EqualFold(r.Value, "forced_subtitle") || strings.EqualFold(r.Value, "forced-subtitle") {
			forced = true
		}
	}

	trickModeFor := ""
	videoRange := VideoRangeSDR
	for _, ep := range axml.EssentialProperty {
		switch ep.SchemeIDURI {
		case "http://dashif.org/guidelines/trickmode":
			trickModeFor = ep.Value
		default:
			return nil, nil, true, nil // unrecognized EssentialProperty: drop silently
		}
	}
	for _, sp := range axml.SupplementalProperty {
		if sp.SchemeIDURI == "urn:mpeg:mpegB:cicp:TransferCharacteristics" {
			videoRange = cicpVideoRange(sp.Value)
		}
	}

	contentType := axml.ContentType
	if contentType == "" || contentType == "application" {
		if len(axml.Representations) > 0 && axml.MimeType != "" {
			contentType = mimePrefix(axml.MimeType)
		}
	}

	channelCount := 0
	for _, acc := range axml.AudioChannelConfig {
		if v := parseIntOrDefault(acc.Value, 0); v > 0 {
			channelCount = int(v)
		}
	}

	var asDrmInfos []drm.DrmInfo
	var asDefaultKID string
	var asDefaultInitData []drm.InitData
	if len(axml.ContentProtection) > 0 {
		elements := toDrmElements(axml.ContentProtection)
		asDrmInfos, asDefaultKID, asDefaultInitData, err = drm.ResolveAdaptationSet(elements)
		if err != nil {
			return nil, nil, false, err
		}
	}

	for _, rxml := range axml.Representations {
		s, repWarnings, rerr := parseRepresentation(ctx, opts, rxml, axml, periodID, periodStart, periodDuration, hasPeriodDuration, isLastPeriod, asBaseURLs, totalATO, contentType)
		warnings = append(warnings, repWarnings...)
		if rerr != nil {
			return nil, nil, false, rerr
		}
		s.ContentType = ContentType(contentType)
		s.Language = axml.Lang
		s.Label = axml.Label
		s.Roles = roles
		s.ForcedSubtitle = forced
		s.TrickModeFor = trickModeFor
		s.VideoRange = videoRange
		if axml.Codecs != "" {
			s.Codecs = axml.Codecs
		}
		if channelCount > 0 {
			s.ChannelCount = channelCount
		}

		repDrmInfos, repDefaultKID, repDefaultInitData, rerr2 := resolveRepresentationDrm(rxml, asDrmInfos, asDefaultKID, asDefaultInitData)
		if rerr2 != nil {
			return nil, nil, false, rerr2
		}
		for i := range repDrmInfos {
			if len(repDrmInfos[i].InitData) == 0 {
				repDrmInfos[i].InitData = repDefaultInitData
			}
		}
		s.DrmInfos = repDrmInfos
		s.Encrypted = len(repDrmInfos) > 0
		if repDefaultKID != "" {
			s.KeyIDs = append(s.KeyIDs, repDefaultKID)
		}

		streams = append(streams, s)
	}

	if len(streams) == 0 {
		warnings = append(warnings, "AdaptationSet produced no representations")
	}

	return streams, warnings, false, nil
}

func resolveRepresentationDrm(rxml representationXML, asDrmInfos []drm.DrmInfo, asDefaultKID string, asDefaultInitData []drm.InitData) ([]drm.DrmInfo, string, []drm.InitData, error) {
	if len(rxml.ContentProtection) == 0 {
		return asDrmInfos, asDefaultKID, asDefaultInitData, nil
	}
	elements := toDrmElements(rxml.ContentProtection)
	repDrmInfos, repKID, repInitData, err := drm.ResolveAdaptationSet(elements)
	if err != nil {
		return nil, "", nil, err
	}
	intersected, err := drm.IntersectRepresentation(asDrmInfos, repDrmInfos)
	if err != nil {
		return nil, "", nil, err
	}
	kid := asDefaultKID
	if repKID != "" {
		kid = repKID
	}
	return intersected, kid, append(asDefaultInitData, repInitData...), nil
}

func toDrmElements(cps []contentProtectionXML) []drm.Element {
	elements := make([]drm.Element, len(cps))
	for i, cp := range cps {
		elements[i] = drm.Element{
			SchemeIDURI:   cp.SchemeIDURI,
			DefaultKID:    cp.DefaultKID,
			PSSHBase64:    strings.TrimSpace(cp.PSSH),
			WidevineLaurl: cp.LicenseURL.LicenseURL,
			ClearKeyLaurl: strings.TrimSpace(cp.ClearKeyLaurl),
			PROBase64:     strings.TrimSpace(cp.PROValue),
		}
	}
	return elements
}

func parseRepresentation(ctx context.Context, opts Options, rxml representationXML, axml adaptationSetXML, periodID string, periodStart, periodDuration float64, hasPeriodDuration, isLastPeriod bool, asBaseURLs []string, ato float64, contentType string) (*Stream, []string, error) {
	var warnings []string

	repBaseURLs, _, err := resolveBaseURLs(asBaseURLs, rxml.BaseURL)
	if err != nil {
		return nil, nil, err
	}

	s := NewStream(OriginID{PeriodID: periodID, RepresentationID: rxml.ID})
	s.Bandwidth = int(parseIntOrDefault(rxml.Bandwidth, 0))
	s.Codecs = rxml.Codecs
	s.MimeType = rxml.MimeType
	if s.MimeType == "" {
		s.MimeType = axml.MimeType
	}
	s.Width = int(parseIntOrDefault(rxml.Width, int64(parseIntOrDefault(axml.Width, 0))))
	s.Height = int(parseIntOrDefault(rxml.Height, int64(parseIntOrDefault(axml.Height, 0))))
	if rxml.FrameRate != "" {
		s.FrameRate = parseFrameRate(rxml.FrameRate)
	} else if axml.FrameRate != "" {
		s.FrameRate = parseFrameRate(axml.FrameRate)
	}
	s.SamplingRate = int(parseIntOrDefault(rxml.AudioSamplingRate, 0))

	nSources := 0
	if rxml.SegmentBase != nil {
		nSources++
	}
	if rxml.SegmentList != nil {
		nSources++
	}
	if rxml.SegmentTemplate != nil {
		nSources++
	}
	if nSources == 0 {
		if axml.SegmentBase != nil {
			rxml.SegmentBase = axml.SegmentBase
			nSources++
		} else if axml.SegmentList != nil {
			rxml.SegmentList = axml.SegmentList
			nSources++
		} else if axml.SegmentTemplate != nil {
			rxml.SegmentTemplate = axml.SegmentTemplate
			nSources++
		}
	}

	if nSources != 1 {
		if contentType == string(ContentTypeText) || contentType == string(ContentTypeApplication) {
			return s, warnings, nil
		}
		return nil, nil, relayerr.New(relayerr.CategoryManifest, relayerr.CodeNoSegmentInfo,
			fmt.Sprintf("representation %s must have exactly one segment source, found %d", rxml.ID, nSources))
	}

	var existing *segment.Index
	if opts.ExistingIdx != nil {
		existing = opts.ExistingIdx(periodID, rxml.ID)
	}

	switch {
	case rxml.SegmentBase != nil:
		factory, err := resolveSegmentBase(ctx, opts.Client, rxml.SegmentBase, s.MimeType, repBaseURLs, 0)
		if err != nil {
			return nil, nil, err
		}
		s.SetSegmentIndexFactory(factory)
	case rxml.SegmentList != nil:
		timescale := parseIntOrDefault(rxml.SegmentList.Timescale, 1)
		factory, err := resolveSegmentList(rxml.SegmentList, repBaseURLs, periodStart, periodDuration, hasPeriodDuration, timescale, existing)
		if err != nil {
			return nil, nil, err
		}
		s.SetSegmentIndexFactory(factory)
	case rxml.SegmentTemplate != nil:
		factory, tw := resolveSegmentTemplate(rxml.SegmentTemplate, repBaseURLs, rxml.ID, int64(s.Bandwidth), periodStart, periodDuration, hasPeriodDuration, isLastPeriod, existing)
		warnings = append(warnings, tw...)
		s.SetSegmentIndexFactory(factory)
	}

	return s, warnings, nil
}

func mimePrefix(mimeType string) string {
	if idx := strings.IndexByte(mimeType, '/'); idx >= 0 {
		return mimeType[:idx]
	}
	return mimeType
}

func parseFrameRate(s string) float64 {
	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		num, err1 := parseFloat(s[:idx])
		den, err2 := parseFloat(s[idx+1:])
		if err1 == nil && err2 == nil && den != 0 {
			return num / den
		}
		return 0
	}
	v, _ := parseFloat(s)
	return v
}

func cicpVideoRange(value string) VideoRange {
	switch value {
	case "16":
		return VideoRangePQ
	case "18":
		return VideoRangeHLG
	default:
		return VideoRangeSDR
	}
}

