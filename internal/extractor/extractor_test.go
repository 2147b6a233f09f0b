package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const timelinePayload = `{
  "globalObjects": {
    "tweets": {
      "1790000000000000002": {
        "id_str": "1790000000000000002",
        "full_text": "second tweet",
        "text": "short",
        "created_at": "Tue May 14 10:00:00 +0000 2024",
        "extended_entities": {
          "media": [
            {
              "type": "video",
              "media_url_https": "https://pbs.twimg.com/thumb2.jpg",
              "video_info": {
                "variants": [
                  {"content_type": "application/x-mpegURL", "url": "https://video.twimg.com/ext_tw_video/2/pl/index.m3u8"},
                  {"content_type": "video/mp4", "bitrate": 832000, "url": "https://video.twimg.com/ext_tw_video/2/vid/480x852/low.mp4"},
                  {"content_type": "video/mp4", "bitrate": 2176000, "url": "https://video.twimg.com/ext_tw_video/2/vid/720x1280/high.mp4"}
                ]
              }
            },
            {
              "type": "photo",
              "media_url_https": "https://pbs.twimg.com/photo.jpg"
            }
          ]
        }
      },
      "1790000000000000001": {
        "id": 1790000000000000001,
        "text": "first tweet",
        "extended_entities": {
          "media": [
            {
              "type": "animated_gif",
              "media_url": "http://pbs.twimg.com/gif.jpg",
              "video_info": {
                "variants": [
                  {"content_type": "video/mp4", "bitrate": 0, "url": "https://video.twimg.com/tweet_video/gif.mp4"}
                ]
              }
            }
          ]
        }
      },
      "1790000000000000003": {
        "id_str": "1790000000000000003",
        "full_text": "no media"
      }
    }
  },
  "includes": {
    "media": [
      {"media_key": "7_1", "type": "video", "variants": [{"content_type": "video/mp4", "bitrate": 1, "url": "https://video.twimg.com/ext_tw_video/9/x.mp4"}]}
    ]
  }
}`

const includesPayload = `{
  "data": [{"id": "1"}],
  "includes": {
    "media": [
      {
        "media_key": "7_100",
        "type": "video",
        "preview_image_url": "https://pbs.twimg.com/preview.jpg",
        "variants": [
          {"content_type": "video/mp4", "bit_rate": 1, "bitrate": 256000, "url": "https://video.twimg.com/amplify_video/100/low.mp4"},
          {"content_type": "video/webm", "bitrate": 950000, "url": "https://video.twimg.com/amplify_video/100/high.webm"},
          {"content_type": "application/x-mpegURL", "url": "https://video.twimg.com/amplify_video/100/pl.m3u8"}
        ]
      },
      {"media_key": "3_200", "type": "photo", "url": "https://pbs.twimg.com/photo.jpg"},
      {"media_key": "16_300", "type": "animated_gif", "url": "https://pbs.twimg.com/gif.jpg",
       "variants": [{"content_type": "video/mp4", "bitrate": 0, "uri": "https://video.twimg.com/tweet_video/300.mp4"}]},
      {"media_key": "13_400", "type": "video"}
    ]
  }
}`

const scanPayload = `{
  "result": {
    "timeline": {
      "instructions": [
        {"entries": [
          {"content": {"playback": "https://video.twimg.com/ext_tw_video/1/pu/vid/720x1280/a.mp4?tag=12"}},
          {"content": {"playback": "https://video.twimg.com/ext_tw_video/2/pu/vid/720x1280/b.mp4"}},
          {"content": {"again": "https://video.twimg.com/ext_tw_video/1/pu/vid/720x1280/a.mp4?tag=12"}},
          {"content": {"other": "https://video.twimg.com/amplify_video/3/c.mp4"}}
        ]}
      ]
    }
  }
}`

type countingStrategy struct {
	inner Strategy
	calls int
}

func (c *countingStrategy) Name() string { return c.inner.Name() }

func (c *countingStrategy) Extract(raw []byte) []Record {
	c.calls++
	return c.inner.Extract(raw)
}

func TestTimelineStrategy_ExtractsBestMP4InDocumentOrder(t *testing.T) {
	records := (&TimelineStrategy{}).Extract([]byte(timelinePayload))
	require.Len(t, records, 2)

	assert.Equal(t, Record{
		ID:        "1790000000000000002",
		Text:      "second tweet",
		Timestamp: "Tue May 14 10:00:00 +0000 2024",
		Thumbnail: "https://pbs.twimg.com/thumb2.jpg",
		MediaURL:  "https://video.twimg.com/ext_tw_video/2/vid/720x1280/high.mp4",
	}, records[0])

	assert.Equal(t, Record{
		ID:        "1790000000000000001",
		Text:      "first tweet",
		Thumbnail: "http://pbs.twimg.com/gif.jpg",
		MediaURL:  "https://video.twimg.com/tweet_video/gif.mp4",
	}, records[1])
}

func TestTimelineStrategy_UnknownShape(t *testing.T) {
	s := &TimelineStrategy{}
	assert.Empty(t, s.Extract([]byte(includesPayload)))
	assert.Empty(t, s.Extract([]byte(`{"globalObjects": {"tweets": []}}`)))
	assert.Empty(t, s.Extract([]byte(`not json`)))
}

func TestTimelineStrategy_DriftedSiblingsAreSkipped(t *testing.T) {
	payload := `{"globalObjects": {"tweets": {
		"1": {"id_str": "1", "full_text": "hello", "created_at": "Mon Jan 01 00:00:00 +0000 2024",
			"extended_entities": {"media": [{"type": "video", "media_url_https": "https://pbs.twimg.com/1.jpg",
				"video_info": {"variants": [
					{"content_type": "video/mp4", "bitrate": "2176000", "url": "https://video.twimg.com/ext_tw_video/1/high.mp4"},
					{"content_type": "video/mp4", "bitrate": 832000, "url": "https://video.twimg.com/ext_tw_video/1/low.mp4"}
				]}}]}},
		"2": {"id_str": 2, "full_text": "unrelated photo tweet"},
		"3": {"id_str": "3", "full_text": {"unexpected": true},
			"extended_entities": {"media": [{"type": "video",
				"video_info": {"variants": [{"content_type": "video/mp4", "bitrate": 1, "url": "https://video.twimg.com/ext_tw_video/3/a.mp4"}]}}]}}
	}}}`

	records, strategy := Default().Extract([]byte(payload))
	assert.Equal(t, "timeline", strategy)
	require.Len(t, records, 1)
	assert.Equal(t, Record{
		ID:        "1",
		Text:      "hello",
		Timestamp: "Mon Jan 01 00:00:00 +0000 2024",
		Thumbnail: "https://pbs.twimg.com/1.jpg",
		MediaURL:  "https://video.twimg.com/ext_tw_video/1/high.mp4",
	}, records[0])
}

func TestIncludesStrategy_DriftedItemsAreSkipped(t *testing.T) {
	payload := `{"includes": {"media": [
		{"media_key": "bad", "type": 7, "variants": [{"content_type": "video/mp4", "url": "https://v/bad.mp4"}]},
		{"media_key": "ok", "type": "video", "variants": [
			{"content_type": "video/mp4", "bitrate": "9000", "url": "https://v/best.mp4"},
			{"content_type": "video/mp4", "bitrate": null, "url": "https://v/none.mp4"}
		]}
	]}}`

	records, strategy := Default().Extract([]byte(payload))
	assert.Equal(t, "includes", strategy)
	require.Len(t, records, 1)
	assert.Equal(t, "ok", records[0].ID)
	assert.Equal(t, "https://v/best.mp4", records[0].MediaURL)
}

func TestIncludesStrategy_LooseVideoMatch(t *testing.T) {
	records := (&IncludesStrategy{}).Extract([]byte(includesPayload))
	require.Len(t, records, 2)

	assert.Equal(t, Record{
		ID:        "7_100",
		Thumbnail: "https://pbs.twimg.com/preview.jpg",
		MediaURL:  "https://video.twimg.com/amplify_video/100/high.webm",
	}, records[0])

	assert.Equal(t, Record{
		ID:        "16_300",
		Thumbnail: "https://pbs.twimg.com/gif.jpg",
		MediaURL:  "https://video.twimg.com/tweet_video/300.mp4",
	}, records[1])
}

func TestIncludesStrategy_DuplicateKeysKeepFirstPosition(t *testing.T) {
	payload := `{"includes": {"media": [
		{"media_key": "a", "type": "video", "variants": [{"content_type": "video/mp4", "url": "https://v/a1.mp4"}]},
		{"media_key": "b", "type": "video", "variants": [{"content_type": "video/mp4", "url": "https://v/b.mp4"}]},
		{"media_key": "a", "type": "video", "variants": [{"content_type": "video/mp4", "url": "https://v/a2.mp4"}]}
	]}}`

	records := (&IncludesStrategy{}).Extract([]byte(payload))
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "https://v/a2.mp4", records[0].MediaURL)
	assert.Equal(t, "b", records[1].ID)
}

func TestScanStrategy_DistinctURLs(t *testing.T) {
	records := (&ScanStrategy{}).Extract([]byte(scanPayload))
	require.Len(t, records, 2)

	want := []string{
		"https://video.twimg.com/ext_tw_video/1/pu/vid/720x1280/a.mp4?tag=12",
		"https://video.twimg.com/ext_tw_video/2/pu/vid/720x1280/b.mp4",
	}
	for i, r := range records {
		assert.Equal(t, Record{ID: want[i], MediaURL: want[i]}, r)
	}
}

func TestScanStrategy_NormalizesEscapedSlashes(t *testing.T) {
	payload := `{"u": "https:\/\/video.twimg.com\/ext_tw_video\/5\/vid\/x.mp4"}`
	records := (&ScanStrategy{}).Extract([]byte(payload))
	require.Len(t, records, 1)
	assert.Equal(t, "https://video.twimg.com/ext_tw_video/5/vid/x.mp4", records[0].MediaURL)
}

func TestChain_FirstNonEmptyWins(t *testing.T) {
	timeline := &countingStrategy{inner: &TimelineStrategy{}}
	includes := &countingStrategy{inner: &IncludesStrategy{}}
	scan := &countingStrategy{inner: &ScanStrategy{}}
	chain := NewChain(timeline, includes, scan)

	records, used := chain.Extract([]byte(timelinePayload))
	assert.Equal(t, "timeline", used)
	assert.Len(t, records, 2)
	assert.Equal(t, 1, timeline.calls)
	assert.Zero(t, includes.calls)
	assert.Zero(t, scan.calls)
}

func TestChain_FallsThroughToScan(t *testing.T) {
	timeline := &countingStrategy{inner: &TimelineStrategy{}}
	includes := &countingStrategy{inner: &IncludesStrategy{}}
	scan := &countingStrategy{inner: &ScanStrategy{}}
	chain := NewChain(timeline, includes, scan)

	records, used := chain.Extract([]byte(scanPayload))
	assert.Equal(t, "scan", used)
	assert.Len(t, records, 2)
	assert.Equal(t, 1, timeline.calls)
	assert.Equal(t, 1, includes.calls)
	assert.Equal(t, 1, scan.calls)
}

func TestChain_ScanDisabled(t *testing.T) {
	chain := NewChain(&TimelineStrategy{}, &IncludesStrategy{})
	records, used := chain.Extract([]byte(scanPayload))
	assert.Empty(t, records)
	assert.Empty(t, used)
}

func TestChain_EveryRecordHasMediaURL(t *testing.T) {
	for _, payload := range []string{timelinePayload, includesPayload, scanPayload} {
		records, _ := Default().Extract([]byte(payload))
		require.NotEmpty(t, records)
		for _, r := range records {
			assert.NotEmpty(t, r.MediaURL)
		}
	}
}

func TestDefault_Order(t *testing.T) {
	assert.Equal(t, []string{"timeline", "includes", "scan"}, Default().Names())
}
