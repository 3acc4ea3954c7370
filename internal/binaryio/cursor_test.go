package binaryio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_ReadU32BigEndian(t *testing.T) {
	c := NewCursor([]byte{0x00, 0x00, 0x01, 0x2C}, BigEndian)
	v, err := c.ReadU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(300), v)
}

func TestCursor_ReadU64HighWordWithinRange(t *testing.T) {
	c := NewCursor([]byte{0, 0, 0, 0, 0, 0, 0, 1}, BigEndian)
	v, err := c.ReadU64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
}

func TestCursor_ReadU64OverflowsOnHighWord(t *testing.T) {
	c := NewCursor([]byte{0x00, 0x20, 0x00, 0x00, 0, 0, 0, 0}, BigEndian)
	_, err := c.ReadU64()
	require.Error(t, err)
}

func TestCursor_ReadBytesOutOfBounds(t *testing.T) {
	c := NewCursor([]byte{1, 2}, BigEndian)
	_, err := c.ReadBytes(5)
	assert.Error(t, err)
}

func TestCursor_SkipAndRewind(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3, 4}, BigEndian)
	require.NoError(t, c.Skip(2))
	assert.Equal(t, 2, c.Position())
	require.NoError(t, c.Rewind(1))
	assert.Equal(t, 1, c.Position())
}

func TestCursor_ReadTerminatedString(t *testing.T) {
	c := NewCursor([]byte{'h', 'i', 0, 'x'}, BigEndian)
	s, err := c.ReadTerminatedString()
	require.NoError(t, err)
	assert.Equal(t, "hi", s)
	assert.Equal(t, 3, c.Position())
}

func TestCursor_HasMoreAndRemaining(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3}, BigEndian)
	assert.True(t, c.HasMore())
	assert.Equal(t, 3, c.Remaining())
	_, _ = c.ReadBytes(3)
	assert.False(t, c.HasMore())
}
