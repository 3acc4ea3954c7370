package mp4box

import (
	"github.com/jmylchreest/streamrelay/internal/binaryio"
	"github.com/jmylchreest/streamrelay/internal/relayerr"
	"github.com/jmylchreest/streamrelay/internal/segment"
)

// ParseSIDXOptions carries the context a sidx box needs beyond its own
// bytes: where the box starts in the overall media container (to compute
// absolute byte ranges) and the timestampOffset to add to every emitted
// reference's times.
type ParseSIDXOptions struct {
	SIDXOffset      int64
	TimestampOffset float64
	URIs            []string
}

// ParseSIDX locates the first "sidx" box in buf and parses it into ordered
// SegmentReferences. Hierarchical SIDX (reference type 1) is rejected per
// §4.8; this implementation targets exactly one variant at a time so
// multi-SIDX chaining is not attempted.
func ParseSIDX(buf []byte, opts ParseSIDXOptions) ([]*segment.Reference, error) {
	var refs []*segment.Reference
	var parseErr error
	found := false

	w := NewWalker()
	w.OnFullBox(BoxSidx, func(version uint8, flags uint32, payload []byte, hdr Header) error {
		found = true
		refs, parseErr = parseSIDXPayload(version, payload, hdr, opts)
		w.Stop()
		return nil
	})
	if err := w.Walk(buf, opts.SIDXOffset); err != nil {
		return nil, err
	}
	if parseErr != nil {
		return nil, parseErr
	}
	if !found {
		return nil, relayerr.New(relayerr.CategoryMedia, relayerr.CodeSIDXWrongBoxType, "no sidx box found")
	}
	return refs, nil
}

func parseSIDXPayload(version uint8, payload []byte, hdr Header, opts ParseSIDXOptions) ([]*segment.Reference, error) {
	c := binaryio.NewCursor(payload, binaryio.BigEndian)

	if _, err := c.ReadU32(); err != nil { // reference_ID, unused
		return nil, err
	}
	timescale, err := c.ReadU32()
	if err != nil {
		return nil, err
	}
	if timescale == 0 {
		return nil, relayerr.New(relayerr.CategoryMedia, relayerr.CodeSIDXInvalidTimescale, "sidx timescale is zero")
	}

	var earliestPresentationTime, firstOffset uint64
	if version == 0 {
		v, err := c.ReadU32()
		if err != nil {
			return nil, err
		}
		earliestPresentationTime = uint64(v)
		v, err = c.ReadU32()
		if err != nil {
			return nil, err
		}
		firstOffset = uint64(v)
	} else {
		earliestPresentationTime, err = c.ReadU64()
		if err != nil {
			return nil, err
		}
		firstOffset, err = c.ReadU64()
		if err != nil {
			return nil, err
		}
	}
	_ = earliestPresentationTime

	if _, err := c.ReadU16(); err != nil { // reserved
		return nil, err
	}
	refCount, err := c.ReadU16()
	if err != nil {
		return nil, err
	}

	boxSize := hdr.TotalSize
	startByte := opts.SIDXOffset + boxSize + int64(firstOffset)
	var unscaledStart uint64

	refs := make([]*segment.Reference, 0, refCount)
	for i := uint16(0); i < refCount; i++ {
		chunk, err := c.ReadU32()
		if err != nil {
			return nil, err
		}
		refType := chunk >> 31
		size := chunk & 0x7fffffff

		duration, err := c.ReadU32()
		if err != nil {
			return nil, err
		}
		if err := c.Skip(4); err != nil { // SAP info, unused
			return nil, err
		}

		if refType == 1 {
			return nil, relayerr.New(relayerr.CategoryMedia, relayerr.CodeSIDXTypeNotSupported, "hierarchical sidx not supported")
		}

		startTime := float64(unscaledStart)/float64(timescale) + opts.TimestampOffset
		endTime := float64(unscaledStart+uint64(duration))/float64(timescale) + opts.TimestampOffset
		endByte := startByte + int64(size) - 1

		uris := opts.URIs
		ref := segment.NewReference(startTime, endTime, uris)
		ref.StartByte = startByte
		ref.EndByte = &endByte
		ref.TimestampOffset = opts.TimestampOffset
		refs = append(refs, ref)

		startByte += int64(size)
		unscaledStart += uint64(duration)
	}

	return refs, nil
}
