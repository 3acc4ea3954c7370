package hls

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/streamrelay/internal/clock"
	"github.com/jmylchreest/streamrelay/internal/combiner"
	"github.com/jmylchreest/streamrelay/internal/mpd"
	"github.com/jmylchreest/streamrelay/internal/segment"
)

type fakeFetcher struct{}

func (fakeFetcher) Get(ctx context.Context, url string) (*http.Response, error) {
	return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("bytes-for-" + url))}, nil
}

func buildVideoStream(t *testing.T, refCount int) *mpd.Stream {
	t.Helper()
	s := mpd.NewStream(mpd.OriginID{PeriodID: "p0", RepresentationID: "v0"})
	s.ContentType = mpd.ContentTypeVideo
	s.Codecs = "avc1.64001f"
	s.Width, s.Height = 640, 360
	s.FrameRate = 25
	s.Bandwidth = 500000

	init := &segment.InitSegmentReference{URIs: []string{"https://host/init.mp4"}}
	var refs []*segment.Reference
	for i := 0; i < refCount; i++ {
		r := segment.NewReference(float64(i*6), float64((i+1)*6), []string{videoSegURL(i)})
		r.InitSegment = init
		refs = append(refs, r)
	}
	s.SetSegmentIndexFactory(func() (*segment.Index, error) {
		return segment.NewIndex(refs), nil
	})
	return s
}

func videoSegURL(i int) string {
	return "https://host/" + string(rune('a'+i)) + ".m4s"
}

func TestSaver_RunCycleWritesMasterAndMediaPlaylists(t *testing.T) {
	video := buildVideoStream(t, 2)
	variant := &combiner.Variant{Video: video, Bandwidth: 500000}

	tmp := t.TempDir()
	saver := NewSaver(fakeFetcher{}, nil, clock.NewFake(time.Unix(1000, 0)), nil, filepath.Join(tmp, "out"), filepath.Join(tmp, "repo"), 3)

	err := saver.RunCycle(context.Background(), variant, nil, 1000)
	require.NoError(t, err)

	masterData, err := os.ReadFile(filepath.Join(tmp, "out", "master.m3u8"))
	require.NoError(t, err)
	assert.Contains(t, string(masterData), "RESOLUTION=640x360")

	mediaData, err := os.ReadFile(filepath.Join(tmp, "out", "video", "videoVariant.m3u8"))
	require.NoError(t, err)
	assert.Contains(t, string(mediaData), "#EXT-X-MEDIA-SEQUENCE:0")
	assert.Contains(t, string(mediaData), "#EXTINF:6,")
}

// TestSaver_RollingWindowEvictsOldestSegment reproduces the §8 boundary
// scenario: maxSegmentNum=3, 5 manifest-refresh cycles each exposing one new
// segment. After the 5th cycle only segments 3/4/5 (1-indexed) remain, and
// MEDIA-SEQUENCE has advanced by 2 (one per eviction).
func TestSaver_RollingWindowEvictsOldestSegment(t *testing.T) {
	tmp := t.TempDir()
	saver := NewSaver(fakeFetcher{}, nil, clock.NewSystem(), nil, filepath.Join(tmp, "out"), filepath.Join(tmp, "repo"), 3)

	for cycle := 1; cycle <= 5; cycle++ {
		video := buildVideoStream(t, cycle)
		variant := &combiner.Variant{Video: video, Bandwidth: 500000}
		require.NoError(t, saver.RunCycle(context.Background(), variant, nil, 1000))
	}

	assert.Equal(t, 2, saver.video.playlist.MediaSequence())
	assert.True(t, saver.video.playlist.BufferFull())

	entries, err := os.ReadDir(filepath.Join(tmp, "out", "video"))
	require.NoError(t, err)
	var mp4Count int
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".mp4") {
			mp4Count++
		}
	}
	assert.Equal(t, 3, mp4Count)
}
