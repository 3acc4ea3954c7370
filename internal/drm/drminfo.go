// Package drm implements ContentProtection resolution (§4.7): it extracts
// DRM descriptors from MPD ContentProtection elements, normalizes default
// key IDs, and produces the Widevine descriptor consumed by the key client.
package drm

import (
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
	"github.com/jmylchreest/streamrelay/internal/relayerr"
)

// KeySystem identifies a DRM key system by its canonical name.
type KeySystem string

const (
	KeySystemClearKey   KeySystem = "org.w3.clearkey"
	KeySystemWidevine   KeySystem = "com.widevine.alpha"
	KeySystemPlayReady  KeySystem = "com.microsoft.playready"
	KeySystemPrimetime  KeySystem = "com.adobe.primetime"
)

// schemeTable maps ContentProtection @schemeIdUri (urn:uuid:...) to its
// key system, per §6.
var schemeTable = map[string]KeySystem{
	"1077efec-c0b2-4d02-ace3-3c1e52e2fb4b": KeySystemClearKey,
	"e2719d58-a985-b3c9-781a-b030af78d30e": KeySystemClearKey,
	"edef8ba9-79d6-4ace-a3c8-27dcd51d21ed": KeySystemWidevine,
	"9a04f079-9840-4286-ab92-e65be0885f95": KeySystemPlayReady,
	"79f0049a-4098-8642-ab92-e65be0885f95": KeySystemPlayReady,
	"f239e769-efa3-4850-9c16-a903c6932efb": KeySystemPrimetime,
}

// mp4ProtectionScheme is the "common encryption" scheme that contributes
// default init data but is never itself emitted as a DrmInfo entry.
const mp4ProtectionScheme = "urn:mpeg:dash:mp4protection:2011"

// InitData is a DRM system init-data payload decoded from a ContentProtection
// child element (e.g. <cenc:pssh>).
type InitData struct {
	Type string // "cenc"
	Data []byte
}

// DrmInfo describes one resolved DRM system for a Representation: its key
// system, license server URI, robustness, and init-data overrides. A
// Widevine DrmInfo additionally carries the base64 PSSH payload the key
// client (§6) needs.
type DrmInfo struct {
	KeySystem        KeySystem
	LicenseServerURI string
	Robustness       string
	InitData         []InitData
	KeyIDs           []uuid.UUID

	// PSSHBase64 is the base64-encoded, 4-byte-size-prefixed PSSH box sent
	// as {pssh-box} to the decryption-key API (§6) when KeySystem is
	// Widevine.
	PSSHBase64 string
}

// Element is the subset of an MPD <ContentProtection> element's fields
// needed for resolution -- the mpd package translates its XML structs into
// this shape so scheme-table/PRO/license-URL logic stays in one package.
type Element struct {
	SchemeIDURI   string
	DefaultKID    string
	PSSHBase64    string // <cenc:pssh> text content, base64
	WidevineLaurl string // <ms:laurl licenseUrl=...>
	ClearKeyLaurl string // <clearkey::Laurl Lic_type=EME-1.0> text
	PROBase64     string // PlayReady PRO object, base64
}

// normalizeKID lowercases a default_KID and strips hyphens.
func normalizeKID(kid string) string {
	return strings.ToLower(strings.ReplaceAll(kid, "-", ""))
}

// ResolveAdaptationSet parses all ContentProtection children of an
// AdaptationSet, returning the resolved DrmInfo list, the normalized
// default key ID (if any), and the default init data contributed by an
// mp4protection element (not itself emitted as a DrmInfo).
func ResolveAdaptationSet(elements []Element) (drmInfos []DrmInfo, defaultKID string, defaultInitData []InitData, err error) {
	seenKID := ""
	for _, el := range elements {
		scheme := strings.ToLower(el.SchemeIDURI)

		kid := ""
		if el.DefaultKID != "" {
			kid = normalizeKID(el.DefaultKID)
			if strings.Contains(el.DefaultKID, " ") {
				return nil, "", nil, relayerr.New(relayerr.CategoryManifest, relayerr.CodeMultipleKeyIDsNotSupported,
					"default_KID contains a space")
			}
			if seenKID == "" {
				seenKID = kid
			} else if seenKID != kid {
				return nil, "", nil, relayerr.New(relayerr.CategoryManifest, relayerr.CodeConflictingKeyIDs,
					"conflicting default_KID across ContentProtection siblings")
			}
		}

		var initData []InitData
		if el.PSSHBase64 != "" {
			data, decodeErr := base64.StdEncoding.DecodeString(el.PSSHBase64)
			if decodeErr != nil {
				return nil, "", nil, relayerr.Wrap(relayerr.CategoryManifest, relayerr.CodePSSHBadEncoding,
					"decoding cenc:pssh base64", decodeErr)
			}
			initData = []InitData{{Type: "cenc", Data: data}}
		}

		if scheme == mp4ProtectionScheme {
			defaultInitData = append(defaultInitData, initData...)
			continue
		}

		keySystem, ok := lookupScheme(scheme)
		if !ok {
			continue
		}

		info := DrmInfo{KeySystem: keySystem, InitData: initData}
		switch keySystem {
		case KeySystemWidevine:
			info.LicenseServerURI = el.WidevineLaurl
			info.PSSHBase64 = el.PSSHBase64
		case KeySystemClearKey:
			info.LicenseServerURI = el.ClearKeyLaurl
		case KeySystemPlayReady:
			if el.PROBase64 != "" {
				laurl, proErr := parsePlayReadyLaurl(el.PROBase64)
				if proErr == nil {
					info.LicenseServerURI = laurl
				}
			}
		}
		if kid != "" {
			if parsed, perr := parseHexKID(kid); perr == nil {
				info.KeyIDs = append(info.KeyIDs, parsed)
			}
		}
		drmInfos = append(drmInfos, info)
	}

	return drmInfos, seenKID, defaultInitData, nil
}

func lookupScheme(scheme string) (KeySystem, bool) {
	uuidPart := strings.TrimPrefix(scheme, "urn:uuid:")
	ks, ok := schemeTable[uuidPart]
	return ks, ok
}

func parseHexKID(hexKID string) (uuid.UUID, error) {
	return uuid.Parse(hexKID)
}

// IntersectRepresentation updates an AdaptationSet-level DrmInfo set with a
// Representation's own resolved set: if the AdaptationSet was unknown or
// unencrypted, the representation's set replaces it; otherwise the two sets
// are intersected by key system, failing DASH_NO_COMMON_KEY_SYSTEM on an
// empty result (§4.7).
func IntersectRepresentation(adaptationSet []DrmInfo, representation []DrmInfo) ([]DrmInfo, error) {
	if len(adaptationSet) == 0 {
		return representation, nil
	}
	if len(representation) == 0 {
		return adaptationSet, nil
	}

	repSystems := make(map[KeySystem]bool, len(representation))
	for _, d := range representation {
		repSystems[d.KeySystem] = true
	}

	var intersected []DrmInfo
	for _, d := range adaptationSet {
		if repSystems[d.KeySystem] {
			intersected = append(intersected, d)
		}
	}
	if len(intersected) == 0 {
		return nil, relayerr.New(relayerr.CategoryManifest, relayerr.CodeNoCommonKeySystem,
			"no common key system between AdaptationSet and Representation ContentProtection")
	}
	return intersected, nil
}
