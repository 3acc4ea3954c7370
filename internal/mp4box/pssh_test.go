package mp4box

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPSSH_RoundTrip(t *testing.T) {
	systemID := uuid.MustParse("edef8ba9-79d6-4ace-a3c8-27dcd51d21ed")
	kid := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	data := []byte{0xde, 0xad, 0xbe, 0xef}

	box := BuildPSSHBox(systemID, []uuid.UUID{kid}, data, 1)

	moovWalker := NewWalker()
	var parsed []PSSH
	moovWalker.OnFullBox(BoxPssh, func(version uint8, flags uint32, payload []byte, hdr Header) error {
		p, err := parsePSSHPayload(version, payload, hdr, box, 0)
		require.NoError(t, err)
		parsed = append(parsed, p)
		return nil
	})
	require.NoError(t, moovWalker.Walk(box, 0))

	require.Len(t, parsed, 1)
	assert.Equal(t, systemID, parsed[0].SystemID)
	assert.Equal(t, uint8(1), parsed[0].Version)
	require.Len(t, parsed[0].KeyIDs, 1)
	assert.Equal(t, kid, parsed[0].KeyIDs[0])
	assert.Equal(t, data, parsed[0].Data)
}

func TestPSSH_EqualByRawBoxBytes(t *testing.T) {
	systemID := uuid.MustParse("edef8ba9-79d6-4ace-a3c8-27dcd51d21ed")
	a := PSSH{RawBox: []byte{1, 2, 3}}
	b := PSSH{RawBox: []byte{1, 2, 3}}
	c := PSSH{RawBox: []byte{1, 2, 4}}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	_ = systemID
}

func TestParsePSSHBoxes_NoBoxIsNotAnError(t *testing.T) {
	mvhdChild := []byte{0, 0, 0, 8, 'm', 'v', 'h', 'd'}
	moov := make([]byte, 0, 8+len(mvhdChild))
	moov = append(moov, 0, 0, 0, byte(8+len(mvhdChild)))
	moov = append(moov, []byte("moov")...)
	moov = append(moov, mvhdChild...)

	boxes, err := ParsePSSHBoxes(moov, 0)
	require.NoError(t, err)
	assert.Empty(t, boxes)
}
