// Package mp4box implements a registry-driven ISO-BMFF box walker: callers
// register per-FourCC callbacks as either "basic" or "full" (version+flags)
// boxes, and the walker invokes them with a sub-cursor over the box payload.
package mp4box

import (
	"github.com/jmylchreest/streamrelay/internal/binaryio"
	"github.com/jmylchreest/streamrelay/internal/relayerr"
)

// BasicBoxFunc handles a box with no version/flags header.
type BasicBoxFunc func(payload []byte, header Header) error

// FullBoxFunc handles a box carrying a version/flags header.
type FullBoxFunc func(version uint8, flags uint32, payload []byte, header Header) error

type registration struct {
	basic BasicBoxFunc
	full  *FullBoxFunc
}

// Header describes the box just read: its declared size (the whole box,
// header plus payload), type, the size of the header itself (8, 12,
// 16, or 20 bytes depending on 64-bit size and full-box flags), and the box's
// start offset within the buffer originally passed to Walk. StartOffset lets
// a callback (e.g. SIDX) compute absolute byte ranges.
type Header struct {
	TotalSize   int64
	Type        FourCC
	HeaderSize  int
	StartOffset int64
}

// Walker holds the FourCC->callback registry and the "stop" flag used to
// short-circuit a search.
type Walker struct {
	registry      map[FourCC]registration
	stopped       bool
	stopOnPartial bool
}

// NewWalker creates an empty walker. By default, a truncated box header at
// end-of-buffer is treated as a fatal BUFFER_READ_OUT_OF_BOUNDS; set
// StopOnPartial to instead end the walk cleanly.
func NewWalker() *Walker {
	return &Walker{registry: make(map[FourCC]registration)}
}

// StopOnPartial configures whether a truncated trailing box header silently
// ends the walk (true) or fails (false, the default).
func (w *Walker) StopOnPartial(v bool) { w.stopOnPartial = v }

// OnBasicBox registers fn for boxes of the given FourCC with no
// version/flags header.
func (w *Walker) OnBasicBox(fourcc FourCC, fn BasicBoxFunc) {
	w.registry[fourcc] = registration{basic: fn}
}

// OnFullBox registers fn for boxes of the given FourCC carrying a
// version/flags header.
func (w *Walker) OnFullBox(fourcc FourCC, fn FullBoxFunc) {
	w.registry[fourcc] = registration{full: &fn}
}

// Stop halts further iteration of the current and any enclosing Walk call.
func (w *Walker) Stop() { w.stopped = true }

// Stopped reports whether Stop has been called.
func (w *Walker) Stopped() bool { return w.stopped }

// Walk iterates top-level boxes in buf, invoking the matching registered
// callback for each, and recurses into Children-wrapped callbacks
// explicitly (the walker itself does not auto-recurse).
func (w *Walker) Walk(buf []byte, baseOffset int64) error {
	c := binaryio.NewCursor(buf, binaryio.BigEndian)
	for c.HasMore() && !w.stopped {
		boxStart := int64(c.Position())
		if c.Remaining() < 8 {
			if w.stopOnPartial {
				return nil
			}
			return relayerr.New(relayerr.CategoryMedia, relayerr.CodeBufferOutOfBounds, "truncated box header")
		}

		sizeField, err := c.ReadU32()
		if err != nil {
			return err
		}
		typeField, err := c.ReadU32()
		if err != nil {
			return err
		}
		boxType := FourCC(typeField)

		headerSize := 8
		var totalSize int64
		switch sizeField {
		case 0:
			totalSize = int64(len(buf)) - boxStart
		case 1:
			large, err := c.ReadU64()
			if err != nil {
				if w.stopOnPartial {
					return nil
				}
				return err
			}
			totalSize = int64(large)
			headerSize = 16
		default:
			totalSize = int64(sizeField)
		}

		// Clamp malformed sizes to the available buffer.
		boxEnd := boxStart + totalSize
		if totalSize <= 0 || boxEnd > int64(len(buf)) {
			boxEnd = int64(len(buf))
			totalSize = boxEnd - boxStart
		}

		reg, ok := w.registry[boxType]
		if !ok {
			if err := c.Seek(int(boxEnd)); err != nil {
				return err
			}
			continue
		}

		var version uint8
		var flags uint32
		if reg.full != nil {
			version, err = c.ReadU8()
			if err != nil {
				if w.stopOnPartial {
					return nil
				}
				return err
			}
			flags, err = c.ReadU24()
			if err != nil {
				if w.stopOnPartial {
					return nil
				}
				return err
			}
			headerSize += 4
		}

		payloadStart := boxStart + int64(headerSize)
		if payloadStart > boxEnd {
			payloadStart = boxEnd
		}
		payload := buf[payloadStart:boxEnd]

		hdr := Header{TotalSize: totalSize, Type: boxType, HeaderSize: headerSize, StartOffset: baseOffset + boxStart}

		if reg.full != nil {
			if err := (*reg.full)(version, flags, payload, hdr); err != nil {
				return err
			}
		} else if reg.basic != nil {
			if err := reg.basic(payload, hdr); err != nil {
				return err
			}
		}

		if err := c.Seek(int(boxEnd)); err != nil {
			return err
		}
	}
	return nil
}

// Children returns a BasicBoxFunc that recursively walks a box's payload
// with the same registry, for boxes like "moov" whose children should be
// dispatched through the same callback set.
func (w *Walker) Children() BasicBoxFunc {
	return func(payload []byte, header Header) error {
		return w.Walk(payload, header.StartOffset+int64(header.HeaderSize))
	}
}

// SampleDescription reads a leading u32 entry count and invokes fn that
// many times, each time with the remaining payload starting at the current
// cursor position -- used for "stsd"-shaped boxes whose count-prefixed
// children are not standard FourCC boxes in every case but are here.
func SampleDescription(payload []byte, fn func(entry []byte) error) error {
	c := binaryio.NewCursor(payload, binaryio.BigEndian)
	count, err := c.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if err := fn(payload[c.Position():]); err != nil {
			return err
		}
	}
	return nil
}

// AllData hands the entire remaining payload to fn, for boxes like "mdat"
// whose contents are opaque to the walker.
func AllData(fn func([]byte) error) BasicBoxFunc {
	return func(payload []byte, _ Header) error {
		return fn(payload)
	}
}
