// Package mpd parses DASH MPD XML into a Presentation: an inheritance
// frame stack (Period -> AdaptationSet -> Representation) resolving
// BaseURLs, segment descriptors, codecs, language, and roles (§4.4).
package mpd

import "encoding/xml"

// mpdXML is the root <MPD> element.
type mpdXML struct {
	XMLName                   xml.Name           `xml:"MPD"`
	Type                      string             `xml:"type,attr"`
	MinBufferTime             string             `xml:"minBufferTime,attr"`
	MinimumUpdatePeriod       string             `xml:"minimumUpdatePeriod,attr"`
	AvailabilityStartTime     string             `xml:"availabilityStartTime,attr"`
	TimeShiftBufferDepth      string             `xml:"timeShiftBufferDepth,attr"`
	SuggestedPresentationDelay string            `xml:"suggestedPresentationDelay,attr"`
	MaxSegmentDuration        string             `xml:"maxSegmentDuration,attr"`
	MediaPresentationDuration string             `xml:"mediaPresentationDuration,attr"`
	Profiles                  string             `xml:"profiles,attr"`
	BaseURL                   []baseURLXML       `xml:"BaseURL"`
	UTCTiming                 *utcTimingXML      `xml:"UTCTiming"`
	Periods                   []periodXML        `xml:"Period"`
}

type baseURLXML struct {
	Value                  string `xml:",chardata"`
	AvailabilityTimeOffset string `xml:"availabilityTimeOffset,attr"`
}

type utcTimingXML struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	Value       string `xml:"value,attr"`
}

type periodXML struct {
	ID             string             `xml:"id,attr"`
	Start          string             `xml:"start,attr"`
	Duration       string             `xml:"duration,attr"`
	BaseURL        []baseURLXML       `xml:"BaseURL"`
	AdaptationSets []adaptationSetXML `xml:"AdaptationSet"`
}

type adaptationSetXML struct {
	ID                     string                  `xml:"id,attr"`
	ContentType            string                  `xml:"contentType,attr"`
	MimeType               string                  `xml:"mimeType,attr"`
	Codecs                 string                  `xml:"codecs,attr"`
	FrameRate              string                  `xml:"frameRate,attr"`
	PixelAspectRatio       string                  `xml:"par,attr"`
	Lang                   string                  `xml:"lang,attr"`
	Width                  string                  `xml:"width,attr"`
	Height                 string                  `xml:"height,attr"`
	AudioChannelConfig     []audioChannelConfigXML `xml:"AudioChannelConfiguration"`
	BaseURL                []baseURLXML            `xml:"BaseURL"`
	Role                   []roleXML               `xml:"Role"`
	Label                  string                  `xml:"Label"`
	EssentialProperty      []propertyXML           `xml:"EssentialProperty"`
	SupplementalProperty   []propertyXML           `xml:"SupplementalProperty"`
	ContentProtection      []contentProtectionXML  `xml:"ContentProtection"`
	SegmentBase            *segmentBaseXML         `xml:"SegmentBase"`
	SegmentList            *segmentListXML         `xml:"SegmentList"`
	SegmentTemplate        *segmentTemplateXML     `xml:"SegmentTemplate"`
	Representations        []representationXML     `xml:"Representation"`
}

type audioChannelConfigXML struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	Value       string `xml:"value,attr"`
}

type roleXML struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	Value       string `xml:"value,attr"`
}

type propertyXML struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	Value       string `xml:"value,attr"`
}

type representationXML struct {
	ID                string                 `xml:"id,attr"`
	Bandwidth         string                 `xml:"bandwidth,attr"`
	Codecs            string                 `xml:"codecs,attr"`
	MimeType          string                 `xml:"mimeType,attr"`
	Width             string                 `xml:"width,attr"`
	Height            string                 `xml:"height,attr"`
	FrameRate         string                 `xml:"frameRate,attr"`
	AudioSamplingRate string                 `xml:"audioSamplingRate,attr"`
	BaseURL           []baseURLXML           `xml:"BaseURL"`
	ContentProtection []contentProtectionXML `xml:"ContentProtection"`
	SegmentBase       *segmentBaseXML        `xml:"SegmentBase"`
	SegmentList       *segmentListXML        `xml:"SegmentList"`
	SegmentTemplate   *segmentTemplateXML    `xml:"SegmentTemplate"`
}

type contentProtectionXML struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	DefaultKID  string `xml:"default_KID,attr"`
	PSSH        string `xml:"pssh"`
	LicenseURL  licenseURLXML `xml:"laurl"`
	PROValue    string `xml:"pro"`
	ClearKeyLaurl string `xml:"Laurl"`
}

type licenseURLXML struct {
	LicenseURL string `xml:"licenseUrl,attr"`
}

type segmentBaseXML struct {
	IndexRange             string          `xml:"indexRange,attr"`
	Timescale              string          `xml:"timescale,attr"`
	PresentationTimeOffset string          `xml:"presentationTimeOffset,attr"`
	Initialization         *urlXML         `xml:"Initialization"`
	RepresentationIndex    *representationIndexXML `xml:"RepresentationIndex"`
	SourceURL              string          `xml:"sourceURL,attr"`
}

type representationIndexXML struct {
	Range string `xml:"range,attr"`
}

type urlXML struct {
	SourceURL string `xml:"sourceURL,attr"`
	Range     string `xml:"range,attr"`
}

type segmentListXML struct {
	Duration     string            `xml:"duration,attr"`
	Timescale    string            `xml:"timescale,attr"`
	Initialization *urlXML         `xml:"Initialization"`
	SegmentURL   []segmentURLXML   `xml:"SegmentURL"`
	Timeline     *segmentTimelineXML `xml:"SegmentTimeline"`
}

type segmentURLXML struct {
	Media      string `xml:"media,attr"`
	MediaRange string `xml:"mediaRange,attr"`
}

type segmentTemplateXML struct {
	Media                  string              `xml:"media,attr"`
	Initialization         string              `xml:"initialization,attr"`
	Timescale              string              `xml:"timescale,attr"`
	Duration               string              `xml:"duration,attr"`
	StartNumber            string              `xml:"startNumber,attr"`
	PresentationTimeOffset string              `xml:"presentationTimeOffset,attr"`
	Timeline               *segmentTimelineXML `xml:"SegmentTimeline"`
}

type segmentTimelineXML struct {
	S []sXML `xml:"S"`
}

type sXML struct {
	T string `xml:"t,attr"`
	D string `xml:"d,attr"`
	R string `xml:"r,attr"`
}
