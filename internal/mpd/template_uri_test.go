package mpd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandTemplate_NumberWidthAndTime(t *testing.T) {
	n := int64(7)
	bw := int64(1000)
	tVal := int64(3600)
	out, warnings := expandTemplate("$Number%05d$-$Time$.m4s", templateParams{RepresentationID: "r1", Number: &n, Bandwidth: &bw, Time: &tVal})
	assert.Empty(t, warnings)
	assert.Equal(t, "00007-3600.m4s", out)
}

func TestExpandTemplate_RepresentationID(t *testing.T) {
	out, warnings := expandTemplate("$RepresentationID$/init.mp4", templateParams{RepresentationID: "audio-1"})
	assert.Empty(t, warnings)
	assert.Equal(t, "audio-1/init.mp4", out)
}

func TestExpandTemplate_MissingSubstitutionPreservesLiteral(t *testing.T) {
	out, warnings := expandTemplate("$Number$.m4s", templateParams{})
	assert.NotEmpty(t, warnings)
	assert.Equal(t, "$Number$.m4s", out)
}

func TestExpandTemplate_HexFormat(t *testing.T) {
	n := int64(255)
	out, _ := expandTemplate("$Number%04x$.m4s", templateParams{Number: &n})
	assert.Equal(t, "00ff.m4s", out)
}

func TestExpandTemplate_LiteralDollarSign(t *testing.T) {
	out, warnings := expandTemplate("price$$tag", templateParams{})
	assert.Empty(t, warnings)
	assert.Equal(t, "price$tag", out)
}
