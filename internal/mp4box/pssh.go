package mp4box

import (
	"bytes"

	"github.com/google/uuid"
	"github.com/jmylchreest/streamrelay/internal/binaryio"
	"github.com/jmylchreest/streamrelay/internal/relayerr"
)

// PSSH is a parsed Protection System Specific Header record: the DRM
// system ID, the box version, an optional key-ID list (version 1 only),
// the raw init-data payload, and the original box bytes (header included)
// for later re-emission and byte-equal deduplication.
type PSSH struct {
	SystemID uuid.UUID
	Version  uint8
	KeyIDs   []uuid.UUID
	Data     []byte
	RawBox   []byte
}

// Equal reports whether two PSSH records are byte-identical over their
// entire original box, including header -- the dedup policy preserved from
// the reference implementation's normaliseInitData (design note iii).
func (p PSSH) Equal(other PSSH) bool {
	return bytes.Equal(p.RawBox, other.RawBox)
}

// ParsePSSHBoxes walks moov looking for pssh boxes, parsing each into a
// PSSH record. It never fails when no pssh box exists -- unencrypted
// content is valid -- returning an empty slice in that case.
func ParsePSSHBoxes(moov []byte, moovOffset int64) ([]PSSH, error) {
	var out []PSSH
	var parseErr error

	moovWalker := NewWalker()
	psshWalker := NewWalker()
	psshWalker.OnFullBox(BoxPssh, func(version uint8, flags uint32, payload []byte, hdr Header) error {
		p, err := parsePSSHPayload(version, payload, hdr, moov, moovOffset)
		if err != nil {
			parseErr = err
			return nil
		}
		out = append(out, p)
		return nil
	})
	moovWalker.OnBasicBox(BoxMoov, func(payload []byte, hdr Header) error {
		return psshWalker.Walk(payload, hdr.StartOffset+int64(hdr.HeaderSize))
	})

	if err := moovWalker.Walk(moov, moovOffset); err != nil {
		return nil, err
	}
	if parseErr != nil {
		return out, parseErr
	}
	return out, nil
}

func parsePSSHPayload(version uint8, payload []byte, hdr Header, moov []byte, moovOffset int64) (PSSH, error) {
	c := binaryio.NewCursor(payload, binaryio.BigEndian)

	sysIDBytes, err := c.ReadBytes(16)
	if err != nil {
		return PSSH{}, relayerr.Wrap(relayerr.CategoryMedia, relayerr.CodePSSHBadEncoding, "reading pssh system id", err)
	}
	systemID, err := uuid.FromBytes(sysIDBytes)
	if err != nil {
		return PSSH{}, relayerr.Wrap(relayerr.CategoryMedia, relayerr.CodePSSHBadEncoding, "parsing pssh system id", err)
	}

	var keyIDs []uuid.UUID
	if version == 1 {
		kidCount, err := c.ReadU32()
		if err != nil {
			return PSSH{}, relayerr.Wrap(relayerr.CategoryMedia, relayerr.CodePSSHBadEncoding, "reading pssh kid count", err)
		}
		for i := uint32(0); i < kidCount; i++ {
			kidBytes, err := c.ReadBytes(16)
			if err != nil {
				return PSSH{}, relayerr.Wrap(relayerr.CategoryMedia, relayerr.CodePSSHBadEncoding, "reading pssh key id", err)
			}
			kid, err := uuid.FromBytes(kidBytes)
			if err != nil {
				return PSSH{}, relayerr.Wrap(relayerr.CategoryMedia, relayerr.CodePSSHBadEncoding, "parsing pssh key id", err)
			}
			keyIDs = append(keyIDs, kid)
		}
	}

	dataSize, err := c.ReadU32()
	if err != nil {
		return PSSH{}, relayerr.Wrap(relayerr.CategoryMedia, relayerr.CodePSSHBadEncoding, "reading pssh data size", err)
	}
	data, err := c.ReadBytes(int(dataSize))
	if err != nil {
		return PSSH{}, relayerr.Wrap(relayerr.CategoryMedia, relayerr.CodePSSHBadEncoding, "reading pssh data", err)
	}

	start := hdr.StartOffset - moovOffset
	end := start + hdr.TotalSize
	var rawBox []byte
	if start >= 0 && end <= int64(len(moov)) {
		rawBox = append([]byte(nil), moov[start:end]...)
	}

	return PSSH{
		SystemID: systemID,
		Version:  version,
		KeyIDs:   keyIDs,
		Data:     append([]byte(nil), data...),
		RawBox:   rawBox,
	}, nil
}

// BuildPSSHBox serializes a PSSH box of the given version, used for §8's
// PSSH round-trip test: walking the built box and parsing its payload
// recovers the original fields. ParsePSSHBoxes does not find a bare pssh
// box, since it only searches inside a moov box.
func BuildPSSHBox(systemID uuid.UUID, keyIDs []uuid.UUID, data []byte, version uint8) []byte {
	var payload bytes.Buffer
	payload.Write(systemID[:])
	if version == 1 {
		writeU32(&payload, uint32(len(keyIDs)))
		for _, kid := range keyIDs {
			payload.Write(kid[:])
		}
	}
	writeU32(&payload, uint32(len(data)))
	payload.Write(data)

	var box bytes.Buffer
	totalSize := 12 + payload.Len() // size(4)+type(4)+version(1)+flags(3)
	writeU32(&box, uint32(totalSize))
	box.Write([]byte("pssh"))
	box.WriteByte(version)
	box.Write([]byte{0, 0, 0}) // flags
	box.Write(payload.Bytes())
	return box.Bytes()
}

func writeU32(buf *bytes.Buffer, v uint32) {
	buf.Write([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}
