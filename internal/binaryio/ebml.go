package binaryio

import (
	"github.com/jmylchreest/streamrelay/internal/relayerr"
)

// VInt is a parsed EBML variable-length integer: the raw encoded bytes, the
// decoded value, and whether it carried the all-ones "unknown size" marker.
type VInt struct {
	Raw     []byte
	Value   uint64
	Unknown bool
}

// allOnesMask returns the bit pattern of an EBML vint of length n (1..8)
// with every data bit set to 1, used to detect the "unknown size" marker.
func allOnesMask(n int) uint64 {
	var mask uint64
	switch n {
	case 1:
		mask = 0x7F
	default:
		mask = (uint64(1) << uint(7*n)) - 1
	}
	return mask
}

// ParseVint reads a leading byte to derive the variable length (1..8 bytes)
// from the position of the highest set bit, then reads the remaining bytes.
// The value is (first_byte & mask) << ((n-1)*8) | rest. An 8-byte vint whose
// second byte has its top three bits set fails EBML_OVERFLOW (the decoded
// value would exceed the 53-bit safe-integer range).
func ParseVint(c *Cursor) (VInt, error) {
	first, err := c.ReadU8()
	if err != nil {
		return VInt{}, err
	}

	length := 0
	for i := 0; i < 8; i++ {
		if first&(0x80>>uint(i)) != 0 {
			length = i + 1
			break
		}
	}
	if length == 0 {
		return VInt{}, relayerr.New(relayerr.CategoryMedia, relayerr.CodeEBMLOverflow, "vint leading byte is zero")
	}

	if err := c.Rewind(1); err != nil {
		return VInt{}, err
	}
	raw, err := c.ReadBytes(length)
	if err != nil {
		return VInt{}, err
	}

	if length == 8 && raw[1]&0xE0 != 0 {
		return VInt{}, relayerr.New(relayerr.CategoryMedia, relayerr.CodeEBMLOverflow,
			"8-byte vint second byte top 3 bits set, value exceeds safe range")
	}

	mask := byte(0xFF >> uint(length))
	value := uint64(raw[0] & mask)
	for i := 1; i < length; i++ {
		value = value<<8 | uint64(raw[i])
	}

	unknown := value == allOnesMask(length)

	return VInt{Raw: raw, Value: value, Unknown: unknown}, nil
}

// Element is a parsed EBML element: its ID vint and its payload slice. A
// partial trailing element is permitted; its slice is truncated to the
// bytes actually available.
type Element struct {
	ID      uint64
	Size    VInt
	Payload []byte
}

// ParseElement reads an EBML element ID vint followed by a size vint,
// returning the ID and the payload slice. If the size is the all-ones
// "unknown size" marker, the payload extends to end-of-buffer. If fewer
// bytes remain than the declared size, the payload is truncated rather than
// failing (a partial trailing element is permitted).
func ParseElement(c *Cursor) (Element, error) {
	idVint, err := ParseVint(c)
	if err != nil {
		return Element{}, err
	}
	sizeVint, err := ParseVint(c)
	if err != nil {
		return Element{}, err
	}

	remaining := c.Remaining()
	n := remaining
	if !sizeVint.Unknown {
		if int(sizeVint.Value) < remaining {
			n = int(sizeVint.Value)
		}
	}

	payload, err := c.ReadBytes(n)
	if err != nil {
		return Element{}, err
	}

	return Element{ID: idVint.Value, Size: sizeVint, Payload: payload}, nil
}
