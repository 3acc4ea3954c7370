package hls

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMediaPlaylist_RenderHeaderAndEntries(t *testing.T) {
	p := NewMediaPlaylist(6, 3)
	p.Append("000000000001.mp4", 6)
	p.Append("000000000002.mp4", 6)

	want := "#EXTM3U\n" +
		"#EXT-X-VERSION:7\n" +
		"#EXT-X-PLAYLIST-TYPE:EVENT\n" +
		"#EXT-X-TARGETDURATION:6\n" +
		"#EXT-X-MEDIA-SEQUENCE:0\n" +
		"#EXTINF:6,\n000000000001.mp4\n" +
		"#EXTINF:6,\n000000000002.mp4\n"
	assert.Equal(t, want, p.Render())
}

func TestMediaPlaylist_EvictionAdvancesMediaSequence(t *testing.T) {
	p := NewMediaPlaylist(6, 3)
	for i := 1; i <= 5; i++ {
		p.Append("seg.mp4", 6)
	}
	assert.Equal(t, 2, p.MediaSequence())
	assert.True(t, p.BufferFull())
}

func TestMediaPlaylist_AppendReturnsEvictedName(t *testing.T) {
	p := NewMediaPlaylist(6, 2)
	assert.Equal(t, "", p.Append("a.mp4", 6))
	assert.Equal(t, "", p.Append("b.mp4", 6))
	assert.Equal(t, "a.mp4", p.Append("c.mp4", 6))
}

func TestRenderMasterPlaylist_BitExact(t *testing.T) {
	got := RenderMasterPlaylist(MasterPlaylistParams{
		Language:  "en",
		Bandwidth: 1500000,
		Width:     1920,
		Height:    1080,
		Codecs:    "avc1.64001f,mp4a.40.2",
		FrameRate: 25,
	})
	want := "#EXTM3U\n" +
		"#EXT-X-VERSION:7\n" +
		"#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID=\"audio\",LANGUAGE=\"en\",NAME=\"en\",AUTOSELECT=YES,URI=\"audio/audioVariant.m3u8\"\n" +
		"#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=1500000,RESOLUTION=1920x1080,CODECS=\"avc1.64001f,mp4a.40.2\",FRAME-RATE=25.00,AUDIO=\"audio\"\n" +
		"video/videoVariant.m3u8\n"
	assert.Equal(t, want, got)
}

func TestSegmentName_HexParsesToZeroPaddedDecimal(t *testing.T) {
	assert.Equal(t, "000000029639.m4s", segmentName("https://host/73c7.m4s"))
}

func TestSegmentName_NonHexFallsBackToOriginal(t *testing.T) {
	assert.Equal(t, "init.mp4", segmentName("https://host/init.mp4"))
}
