package mpd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const staticSingleSegmentTemplateMPD = `<?xml version="1.0"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static" mediaPresentationDuration="PT30S" minBufferTime="PT2S">
  <Period id="p1">
    <AdaptationSet contentType="video" mimeType="video/mp4" codecs="avc1.4d401f">
      <SegmentTemplate media="seg_$Number$.m4s" initialization="init.mp4" timescale="1" duration="6" startNumber="1"/>
      <Representation id="v1" bandwidth="500000" width="1280" height="720"/>
    </AdaptationSet>
    <AdaptationSet contentType="audio" mimeType="audio/mp4" codecs="mp4a.40.2">
      <SegmentTemplate media="aseg_$Number$.m4s" initialization="ainit.mp4" timescale="1" duration="6" startNumber="1"/>
      <Representation id="a1" bandwidth="128000" audioSamplingRate="48000"/>
    </AdaptationSet>
  </Period>
</MPD>`

func TestParse_StaticSingleRepresentationSegmentTemplate(t *testing.T) {
	result, err := Parse(context.Background(), []byte(staticSingleSegmentTemplateMPD), Options{BaseURL: "https://example.com/live/"})
	require.NoError(t, err)
	require.Len(t, result.Periods, 1)
	require.Len(t, result.Periods[0].Streams, 2)

	videoStream := result.Periods[0].Streams[0]
	idx, err := videoStream.SegmentIndex()
	require.NoError(t, err)
	require.Equal(t, 5, idx.Len())

	expectedStarts := []float64{0, 6, 12, 18, 24}
	for i := 0; i < 5; i++ {
		ref := idx.At(i)
		assert.Equal(t, expectedStarts[i], ref.StartTime)
		assert.Equal(t, expectedStarts[i]+6, ref.EndTime)
		uris := ref.GetURIs()
		require.Len(t, uris, 1)
		assert.Contains(t, uris[0], "seg_")
	}
	assert.Contains(t, idx.At(0).GetURIs()[0], "seg_1.m4s")
	assert.Contains(t, idx.At(4).GetURIs()[0], "seg_5.m4s")
}

func TestResolveSegmentTemplate_TimelineNegativeRepeatScenario(t *testing.T) {
	st := &segmentTemplateXML{
		Media:       "seg_$Time$.m4s",
		Timescale:   "1",
		StartNumber: "1",
		Timeline: &segmentTimelineXML{
			S: []sXML{{T: "0", D: "10", R: "-1"}},
		},
	}
	factory, warnings := resolveSegmentTemplate(st, []string{"https://example.com/"}, "v1", 1000, 0, 60, true, true, nil)
	assert.Empty(t, warnings)
	idx, err := factory()
	require.NoError(t, err)
	require.Equal(t, 6, idx.Len())

	expectedStarts := []float64{0, 10, 20, 30, 40, 50}
	for i := 0; i < 6; i++ {
		assert.Equal(t, expectedStarts[i], idx.At(i).StartTime)
	}
	assert.Equal(t, 60.0, idx.At(5).EndTime)
}
