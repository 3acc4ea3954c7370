// Package webm parses the subset of Matroska/WebM EBML structure needed for
// DASH SegmentBase@indexRange resolution against a WebM media container:
// the EBML header, Segment/Info (timecode scale, duration), and the Cues
// index.
package webm

import (
	"encoding/binary"
	"math"

	"github.com/jmylchreest/streamrelay/internal/binaryio"
	"github.com/jmylchreest/streamrelay/internal/relayerr"
	"github.com/jmylchreest/streamrelay/internal/segment"
)

// Matroska/WebM EBML element IDs relevant to Cues resolution.
const (
	idEBMLHeader        = 0x1A45DFA3
	idSegment           = 0x18538067
	idInfo              = 0x1549A966
	idTimecodeScale     = 0x2AD7B1
	idDuration          = 0x4489
	idCues              = 0x1C53BB6B
	idCuePoint          = 0xBB
	idCueTime           = 0xB3
	idCueTrackPositions = 0xB7
	idCueClusterPos     = 0xF1
)

func missing(code relayerr.Code, what string) error {
	return relayerr.New(relayerr.CategoryMedia, code, what+" element missing")
}

// children parses buf as a flat sequence of sibling EBML elements.
func children(buf []byte) ([]binaryio.Element, error) {
	c := binaryio.NewCursor(buf, binaryio.BigEndian)
	var els []binaryio.Element
	for c.HasMore() {
		el, err := binaryio.ParseElement(c)
		if err != nil {
			return nil, err
		}
		els = append(els, el)
	}
	return els, nil
}

func find(els []binaryio.Element, id uint64) (binaryio.Element, bool) {
	for _, el := range els {
		if el.ID == id {
			return el, true
		}
	}
	return binaryio.Element{}, false
}

func findAll(els []binaryio.Element, id uint64) []binaryio.Element {
	var out []binaryio.Element
	for _, el := range els {
		if el.ID == id {
			out = append(out, el)
		}
	}
	return out
}

// uintFromBytes decodes a big-endian, variable-width unsigned integer as
// stored in EBML "uinteger" element payloads.
func uintFromBytes(b []byte) uint64 {
	var padded [8]byte
	copy(padded[8-len(b):], b)
	return binary.BigEndian.Uint64(padded[:])
}

// floatFromBytes decodes an EBML "float" element payload (4 or 8 bytes).
func floatFromBytes(b []byte) (float64, error) {
	switch len(b) {
	case 4:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
	case 8:
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	default:
		return 0, relayerr.New(relayerr.CategoryMedia, relayerr.CodeEBMLBadFloatingPointSize,
			"duration element is not 4 or 8 bytes")
	}
}

// Info holds the Segment/Info fields needed to interpret Cues.
type Info struct {
	TimecodeScale uint64  // nanoseconds per timecode tick
	Duration      float64 // in timecode units (multiply by TimecodeScale/1e9 for seconds)
}

// ParseCues locates EBML header, Segment, Info, and Cues, and returns an
// ordered list of SegmentReferences spanning consecutive cue points. The
// last reference's end time is the container duration and its end byte is
// left open (nil, "to EOF").
func ParseCues(buf []byte, timestampOffset float64, uriFn func() []string) ([]*segment.Reference, error) {
	top, err := children(buf)
	if err != nil {
		return nil, err
	}
	if _, ok := find(top, idEBMLHeader); !ok {
		return nil, missing(relayerr.CodeWebMEBMLHeaderMissing, "EBML header")
	}
	segEl, ok := find(top, idSegment)
	if !ok {
		return nil, missing(relayerr.CodeWebMSegmentElementMissing, "Segment")
	}

	segChildren, err := children(segEl.Payload)
	if err != nil {
		return nil, err
	}

	infoEl, ok := find(segChildren, idInfo)
	if !ok {
		return nil, missing(relayerr.CodeWebMInfoElementMissing, "Info")
	}
	infoChildren, err := children(infoEl.Payload)
	if err != nil {
		return nil, err
	}
	scaleEl, ok := find(infoChildren, idTimecodeScale)
	timecodeScale := uint64(1000000) // default 1ms per Matroska spec
	if ok {
		timecodeScale = uintFromBytes(scaleEl.Payload)
	}
	durEl, ok := find(infoChildren, idDuration)
	if !ok {
		return nil, missing(relayerr.CodeWebMDurationElementMissing, "Duration")
	}
	duration, err := floatFromBytes(durEl.Payload)
	if err != nil {
		return nil, err
	}

	cuesEl, ok := find(segChildren, idCues)
	if !ok {
		return nil, missing(relayerr.CodeWebMCuesElementMissing, "Cues")
	}
	cuePoints, err := children(cuesEl.Payload)
	if err != nil {
		return nil, err
	}

	type cue struct {
		time   uint64
		offset uint64
	}
	var cues []cue
	for _, cp := range findAll(cuePoints, idCuePoint) {
		cpChildren, err := children(cp.Payload)
		if err != nil {
			return nil, err
		}
		timeEl, ok := find(cpChildren, idCueTime)
		if !ok {
			return nil, missing(relayerr.CodeWebMCueTimeElementMissing, "CueTime")
		}
		tpEl, ok := find(cpChildren, idCueTrackPositions)
		if !ok {
			return nil, missing(relayerr.CodeWebMCueTrackPositionsMissing, "CueTrackPositions")
		}
		tpChildren, err := children(tpEl.Payload)
		if err != nil {
			return nil, err
		}
		posEl, ok := find(tpChildren, idCueClusterPos)
		if !ok {
			return nil, missing(relayerr.CodeWebMCueTrackPositionsMissing, "CueClusterPosition")
		}
		cues = append(cues, cue{time: uintFromBytes(timeEl.Payload), offset: uintFromBytes(posEl.Payload)})
	}

	secondsPerTick := float64(timecodeScale) / 1e9
	durationSeconds := duration * secondsPerTick

	refs := make([]*segment.Reference, 0, len(cues))
	for i, cp := range cues {
		startTime := float64(cp.time)*secondsPerTick + timestampOffset
		startByte := int64(cp.offset)

		var endTime float64
		var endByte *int64
		if i+1 < len(cues) {
			endTime = float64(cues[i+1].time)*secondsPerTick + timestampOffset
			eb := int64(cues[i+1].offset) - 1
			endByte = &eb
		} else {
			endTime = durationSeconds + timestampOffset
			endByte = nil
		}

		ref := segment.NewReference(startTime, endTime, uriFn())
		ref.StartByte = startByte
		ref.EndByte = endByte
		ref.TimestampOffset = timestampOffset
		refs = append(refs, ref)
	}

	return refs, nil
}
