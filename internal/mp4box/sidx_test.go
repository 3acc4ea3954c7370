package mp4box

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSIDXBox constructs a version-0 "sidx" box with the given timescale,
// first_offset, and (size, duration) reference pairs.
func buildSIDXBox(timescale, firstOffset uint32, references [][2]uint32) []byte {
	var payload []byte
	writeU := func(v uint32) { payload = append(payload, byte(v>>24), byte(v>>16), byte(v>>8), byte(v)) }

	writeU(1) // reference_ID
	writeU(timescale)
	writeU(0) // earliest_presentation_time
	writeU(firstOffset)
	payload = append(payload, 0, 0) // reserved
	payload = append(payload, byte(len(references)>>8), byte(len(references)))

	for _, r := range references {
		writeU(r[0]) // chunk: type 0 in top bit, size in lower 31 bits
		writeU(r[1]) // subsegment_duration
		writeU(0)    // SAP info
	}

	box := make([]byte, 0, 12+len(payload))
	total := 12 + len(payload)
	box = append(box, byte(total>>24), byte(total>>16), byte(total>>8), byte(total))
	box = append(box, []byte("sidx")...)
	box = append(box, 0, 0, 0, 0) // version 0, flags 0
	box = append(box, payload...)
	return box
}

func TestParseSIDX_ScenarioThree(t *testing.T) {
	box := buildSIDXBox(1000, 100, [][2]uint32{{1000, 2000}, {2000, 3000}})
	refs, err := ParseSIDX(box, ParseSIDXOptions{SIDXOffset: 0})
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.InDelta(t, 0, refs[0].StartTime, 1e-9)
	assert.InDelta(t, 2, refs[0].EndTime, 1e-9)
	assert.Equal(t, int64(156), refs[0].StartByte)
	assert.Equal(t, int64(1155), *refs[0].EndByte)

	assert.InDelta(t, 2, refs[1].StartTime, 1e-9)
	assert.InDelta(t, 5, refs[1].EndTime, 1e-9)
	assert.Equal(t, int64(1156), refs[1].StartByte)
	assert.Equal(t, int64(3155), *refs[1].EndByte)
}

func TestParseSIDX_ZeroTimescaleFails(t *testing.T) {
	box := buildSIDXBox(0, 0, nil)
	_, err := ParseSIDX(box, ParseSIDXOptions{})
	assert.Error(t, err)
}

func TestParseSIDX_HierarchicalTypeFails(t *testing.T) {
	box := buildSIDXBox(1000, 0, [][2]uint32{{1<<31 | 500, 1000}})
	_, err := ParseSIDX(box, ParseSIDXOptions{})
	assert.Error(t, err)
}
