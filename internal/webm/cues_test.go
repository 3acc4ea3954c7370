package webm

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ebmlEl encodes a minimal EBML element: the ID written as its low idWidth
// bytes, big-endian (our parser just compares the raw vint value), and an
// 8-byte size vint (0x01 marker + 7 size bytes) followed by payload.
func ebmlEl(id uint32, idWidth int, payload []byte) []byte {
	var idBytes []byte
	switch idWidth {
	case 1:
		idBytes = []byte{byte(id)}
	case 2:
		idBytes = []byte{byte(id >> 8), byte(id)}
	case 3:
		idBytes = []byte{byte(id >> 16), byte(id >> 8), byte(id)}
	case 4:
		idBytes = []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
	}
	size := len(payload)
	sizeBytes := []byte{0x01, 0, 0, 0, 0, 0, 0, byte(size)}
	out := append([]byte{}, idBytes...)
	out = append(out, sizeBytes...)
	out = append(out, payload...)
	return out
}

func uintPayload(v uint64, width int) []byte {
	b := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func TestParseCues_TwoCuePoints(t *testing.T) {
	cueTime1 := ebmlEl(idCueTime, 1, uintPayload(0, 1))
	posEl1 := ebmlEl(idCueClusterPos, 1, uintPayload(100, 1))
	tp1 := ebmlEl(idCueTrackPositions, 1, posEl1)
	cuePoint1 := ebmlEl(idCuePoint, 1, append(append([]byte{}, cueTime1...), tp1...))

	cueTime2 := ebmlEl(idCueTime, 1, uintPayload(1000, 2))
	posEl2 := ebmlEl(idCueClusterPos, 1, uintPayload(2000, 2))
	tp2 := ebmlEl(idCueTrackPositions, 1, posEl2)
	cuePoint2 := ebmlEl(idCuePoint, 1, append(append([]byte{}, cueTime2...), tp2...))

	cues := ebmlEl(idCues, 4, append(append([]byte{}, cuePoint1...), cuePoint2...))

	scale := ebmlEl(idTimecodeScale, 3, uintPayload(1000000, 4)) // 1ms ticks
	durPayload := make([]byte, 8)
	putFloat64(durPayload, 2000.0)
	dur := ebmlEl(idDuration, 2, durPayload)
	info := ebmlEl(idInfo, 4, append(append([]byte{}, scale...), dur...))

	segment := ebmlEl(idSegment, 4, append(append([]byte{}, info...), cues...))
	header := ebmlEl(idEBMLHeader, 4, []byte{0x01})

	buf := append(append([]byte{}, header...), segment...)

	refs, err := ParseCues(buf, 0, func() []string { return []string{"seg.webm"} })
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.InDelta(t, 0, refs[0].StartTime, 1e-9)
	assert.InDelta(t, 1, refs[0].EndTime, 1e-9)
	assert.Equal(t, int64(100), refs[0].StartByte)

	assert.InDelta(t, 1, refs[1].StartTime, 1e-9)
	assert.InDelta(t, 2, refs[1].EndTime, 1e-9)
	assert.Nil(t, refs[1].EndByte)
}

func TestParseCues_MissingCuesFails(t *testing.T) {
	header := ebmlEl(idEBMLHeader, 4, []byte{0x01})
	info := ebmlEl(idInfo, 4, append(
		ebmlEl(idTimecodeScale, 3, uintPayload(1000000, 4)),
		func() []byte { b := make([]byte, 8); putFloat64(b, 1.0); return ebmlEl(idDuration, 2, b) }()...,
	))
	segment := ebmlEl(idSegment, 4, info)
	buf := append(append([]byte{}, header...), segment...)

	_, err := ParseCues(buf, 0, nil)
	assert.Error(t, err)
}

func putFloat64(b []byte, v float64) {
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
}
