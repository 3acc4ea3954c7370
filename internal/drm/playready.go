package drm

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"unicode/utf16"

	"github.com/jmylchreest/streamrelay/internal/relayerr"
)

// proRecordTypeRightsManagement is the PlayReady Object record type
// carrying the WRMHEADER XML document.
const proRecordTypeRightsManagement = 0x0001

// wrmHeader is the minimal WRMHEADER/DATA shape needed to extract LA_URL.
type wrmHeader struct {
	Data struct {
		LAURL string `xml:"LA_URL"`
	} `xml:"DATA"`
}

// parsePlayReadyLaurl decodes a base64 PlayReady Object (PRO) and returns
// the LA_URL from its RIGHTS_MANAGEMENT record's WRMHEADER/DATA (§4.7).
func parsePlayReadyLaurl(proBase64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(proBase64)
	if err != nil {
		return "", relayerr.Wrap(relayerr.CategoryManifest, relayerr.CodePSSHBadEncoding, "decoding PlayReady PRO base64", err)
	}

	if len(raw) < 6 {
		return "", relayerr.New(relayerr.CategoryManifest, relayerr.CodePSSHBadEncoding, "PlayReady PRO too short")
	}

	proSize := binary.LittleEndian.Uint32(raw[0:4])
	if int(proSize) != len(raw) {
		return "", relayerr.New(relayerr.CategoryManifest, relayerr.CodePSSHBadEncoding, "PlayReady PRO size mismatch")
	}

	// Skip pro_size(4) + record_count(2).
	pos := 6
	for pos+4 <= len(raw) {
		recordType := binary.LittleEndian.Uint16(raw[pos : pos+2])
		recordSize := binary.LittleEndian.Uint16(raw[pos+2 : pos+4])
		pos += 4

		if recordSize%2 != 0 || pos+int(recordSize) > len(raw) {
			return "", relayerr.New(relayerr.CategoryManifest, relayerr.CodePSSHBadEncoding, "PlayReady PRO record malformed")
		}
		recordData := raw[pos : pos+int(recordSize)]
		pos += int(recordSize)

		if recordType != proRecordTypeRightsManagement {
			continue
		}

		headerText, err := utf16LEToString(recordData)
		if err != nil {
			return "", err
		}
		var wrm wrmHeader
		if err := xml.Unmarshal([]byte(headerText), &wrm); err != nil {
			return "", relayerr.Wrap(relayerr.CategoryManifest, relayerr.CodePSSHBadEncoding, "parsing WRMHEADER XML", err)
		}
		return wrm.Data.LAURL, nil
	}

	return "", relayerr.New(relayerr.CategoryManifest, relayerr.CodePSSHBadEncoding, "no RIGHTS_MANAGEMENT record in PlayReady PRO")
}

func utf16LEToString(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", relayerr.New(relayerr.CategoryManifest, relayerr.CodePSSHBadEncoding, "WRMHEADER payload has odd byte length")
	}
	u16s := make([]uint16, len(b)/2)
	for i := range u16s {
		u16s[i] = binary.LittleEndian.Uint16(b[i*2 : i*2+2])
	}
	return string(utf16.Decode(u16s)), nil
}
