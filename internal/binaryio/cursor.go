// Package binaryio provides a bounds-checked cursor over a byte buffer for
// the MP4 box walker and EBML reader, plus the EBML variable-length integer
// primitives layered on top of it.
package binaryio

import (
	"fmt"

	"github.com/jmylchreest/streamrelay/internal/relayerr"
)

// ByteOrder selects the endianness used by multi-byte reads.
type ByteOrder int

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

// Cursor is a bounds-checked reader over a fixed byte slice. It never
// allocates beyond what Read* methods hand back, and every read that would
// run past the end of the buffer fails with BUFFER_READ_OUT_OF_BOUNDS.
type Cursor struct {
	buf   []byte
	pos   int
	order ByteOrder
}

// NewCursor wraps buf for reading in the given byte order, starting at
// offset 0.
func NewCursor(buf []byte, order ByteOrder) *Cursor {
	return &Cursor{buf: buf, order: order}
}

// Position returns the current read offset.
func (c *Cursor) Position() int { return c.pos }

// Len returns the total buffer length.
func (c *Cursor) Len() int { return len(c.buf) }

// HasMore reports whether at least one more byte can be read.
func (c *Cursor) HasMore() bool { return c.pos < len(c.buf) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

func outOfBounds(need, have int) error {
	return relayerr.New(relayerr.CategoryMedia, relayerr.CodeBufferOutOfBounds,
		fmt.Sprintf("need %d bytes, have %d remaining", need, have))
}

// Seek moves the cursor to an absolute position within the buffer.
func (c *Cursor) Seek(pos int) error {
	if pos < 0 || pos > len(c.buf) {
		return outOfBounds(pos, len(c.buf))
	}
	c.pos = pos
	return nil
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int) error {
	if n < 0 || c.pos+n > len(c.buf) {
		return outOfBounds(n, c.Remaining())
	}
	c.pos += n
	return nil
}

// Rewind moves the cursor back n bytes.
func (c *Cursor) Rewind(n int) error {
	if n < 0 || c.pos-n < 0 {
		return outOfBounds(n, c.pos)
	}
	c.pos -= n
	return nil
}

// ReadBytes returns the next n bytes without copying the backing array.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.buf) {
		return nil, outOfBounds(n, c.Remaining())
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadU8 reads an unsigned 8-bit integer.
func (c *Cursor) ReadU8() (uint8, error) {
	b, err := c.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads an unsigned 16-bit integer in the cursor's byte order.
func (c *Cursor) ReadU16() (uint16, error) {
	b, err := c.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	if c.order == BigEndian {
		return uint16(b[0])<<8 | uint16(b[1]), nil
	}
	return uint16(b[1])<<8 | uint16(b[0]), nil
}

// ReadU24 reads an unsigned 24-bit integer in the cursor's byte order, as
// used by ISO-BMFF full-box flags fields (read with a big-endian cursor).
func (c *Cursor) ReadU24() (uint32, error) {
	b, err := c.ReadBytes(3)
	if err != nil {
		return 0, err
	}
	if c.order == BigEndian {
		return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
	}
	return uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0]), nil
}

// ReadU32 reads an unsigned 32-bit integer in the cursor's byte order.
func (c *Cursor) ReadU32() (uint32, error) {
	b, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	if c.order == BigEndian {
		return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
	}
	return uint32(b[3])<<24 | uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0]), nil
}

// ReadI32 reads a signed 32-bit integer.
func (c *Cursor) ReadI32() (int32, error) {
	u, err := c.ReadU32()
	if err != nil {
		return 0, err
	}
	return int32(u), nil
}

// maxSafeHighWord bounds the high 32-bit word of a 64-bit read to the
// 53-bit-safe-integer range, per the cursor's read_u64 contract.
const maxSafeHighWord = 0x1FFFFF

// ReadU64 reads an unsigned 64-bit integer, computed as high*2^32+low to
// preserve precision, and fails INTEGER_OVERFLOW when the high word exceeds
// the 53-bit safe-integer range.
func (c *Cursor) ReadU64() (uint64, error) {
	b, err := c.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	var high, low uint32
	if c.order == BigEndian {
		high = uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
		low = uint32(b[4])<<24 | uint32(b[5])<<16 | uint32(b[6])<<8 | uint32(b[7])
	} else {
		high = uint32(b[7])<<24 | uint32(b[6])<<16 | uint32(b[5])<<8 | uint32(b[4])
		low = uint32(b[3])<<24 | uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0])
	}
	if high > maxSafeHighWord {
		return 0, relayerr.New(relayerr.CategoryMedia, relayerr.CodeIntegerOverflow,
			fmt.Sprintf("u64 high word 0x%x exceeds 53-bit safe range", high))
	}
	return uint64(high)*0x100000000 + uint64(low), nil
}

// ReadTerminatedString reads a UTF-8 string up to (and consuming) a NUL
// terminator. Fails BUFFER_READ_OUT_OF_BOUNDS if no terminator is found.
func (c *Cursor) ReadTerminatedString() (string, error) {
	start := c.pos
	for c.pos < len(c.buf) {
		if c.buf[c.pos] == 0 {
			s := string(c.buf[start:c.pos])
			c.pos++
			return s, nil
		}
		c.pos++
	}
	c.pos = start
	return "", outOfBounds(1, 0)
}
