package drm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAdaptationSet_WidevineAndMp4Protection(t *testing.T) {
	elements := []Element{
		{SchemeIDURI: "urn:mpeg:dash:mp4protection:2011", DefaultKID: "11111111-2222-3333-4444-555555555555"},
		{SchemeIDURI: "urn:uuid:edef8ba9-79d6-4ace-a3c8-27dcd51d21ed", DefaultKID: "11111111-2222-3333-4444-555555555555", WidevineLaurl: "https://license.example.com"},
	}
	infos, kid, _, err := ResolveAdaptationSet(elements)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, KeySystemWidevine, infos[0].KeySystem)
	assert.Equal(t, "https://license.example.com", infos[0].LicenseServerURI)
	assert.Equal(t, "11111111222233334444555555555555", kid)
}

func TestResolveAdaptationSet_ConflictingKeyIDsFails(t *testing.T) {
	elements := []Element{
		{SchemeIDURI: "urn:uuid:edef8ba9-79d6-4ace-a3c8-27dcd51d21ed", DefaultKID: "11111111-2222-3333-4444-555555555555"},
		{SchemeIDURI: "urn:uuid:9a04f079-9840-4286-ab92-e65be0885f95", DefaultKID: "99999999-2222-3333-4444-555555555555"},
	}
	_, _, _, err := ResolveAdaptationSet(elements)
	assert.Error(t, err)
}

func TestResolveAdaptationSet_KIDWithSpaceFails(t *testing.T) {
	elements := []Element{
		{SchemeIDURI: "urn:uuid:edef8ba9-79d6-4ace-a3c8-27dcd51d21ed", DefaultKID: "1111 2222"},
	}
	_, _, _, err := ResolveAdaptationSet(elements)
	assert.Error(t, err)
}

func TestIntersectRepresentation_NoCommonKeySystemFails(t *testing.T) {
	adaptationSet := []DrmInfo{{KeySystem: KeySystemWidevine}, {KeySystem: KeySystemPlayReady}}
	rep2 := []DrmInfo{{KeySystem: KeySystemClearKey}}
	_, err := IntersectRepresentation(adaptationSet, rep2)
	assert.Error(t, err)
}

func TestIntersectRepresentation_ScenarioSix(t *testing.T) {
	adaptationSet := []DrmInfo{{KeySystem: KeySystemWidevine}, {KeySystem: KeySystemPlayReady}}
	rep1 := []DrmInfo{{KeySystem: KeySystemWidevine}}
	intersected, err := IntersectRepresentation(adaptationSet, rep1)
	require.NoError(t, err)
	require.Len(t, intersected, 1)
	assert.Equal(t, KeySystemWidevine, intersected[0].KeySystem)

	rep2 := []DrmInfo{{KeySystem: KeySystemPlayReady}}
	_, err = IntersectRepresentation(intersected, rep2)
	assert.Error(t, err)
}
