package binaryio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVint_SingleByte(t *testing.T) {
	c := NewCursor([]byte{0x81}, BigEndian) // 1-byte vint, value 1
	v, err := ParseVint(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v.Value)
	assert.False(t, v.Unknown)
}

func TestParseVint_UnknownSizeAllOnes(t *testing.T) {
	c := NewCursor([]byte{0xFF}, BigEndian)
	v, err := ParseVint(c)
	require.NoError(t, err)
	assert.True(t, v.Unknown)
}

func TestParseVint_TwoByteUnknownSize(t *testing.T) {
	c := NewCursor([]byte{0x7F, 0xFF}, BigEndian)
	v, err := ParseVint(c)
	require.NoError(t, err)
	assert.True(t, v.Unknown)
}

func TestParseVint_EightByteOverflow(t *testing.T) {
	c := NewCursor([]byte{0x01, 0xE0, 0, 0, 0, 0, 0, 0}, BigEndian)
	_, err := ParseVint(c)
	require.Error(t, err)
}

func TestParseVint_FourByteMaxValue(t *testing.T) {
	// 4-byte vint: leading nibble 0x1_ marks length 4, 28 value bits.
	c := NewCursor([]byte{0x1F, 0xFF, 0xFF, 0xFF}, BigEndian)
	v, err := ParseVint(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0FFFFFFF), v.Value)
}

func TestParseElement_TruncatesPartialTrailingElement(t *testing.T) {
	// ID = 0xA0 (1 byte vint marker 0x80|0x20), size = 10 (vint 0x8A), but
	// only 3 payload bytes are actually present.
	c := NewCursor([]byte{0xA0, 0x8A, 1, 2, 3}, BigEndian)
	el, err := ParseElement(c)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, el.Payload)
}

func TestParseElement_UnknownSizeExtendsToEndOfBuffer(t *testing.T) {
	c := NewCursor([]byte{0xA0, 0xFF, 1, 2, 3, 4}, BigEndian)
	el, err := ParseElement(c)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, el.Payload)
	assert.True(t, el.Size.Unknown)
}
