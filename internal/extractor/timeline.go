package extractor

import (
	"encoding/json"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// timelineResponse is the legacy adaptive timeline shape:
// globalObjects.tweets maps a tweet id to the tweet object.
type timelineResponse struct {
	GlobalObjects struct {
		Tweets *orderedmap.OrderedMap[string, json.RawMessage] `json:"tweets"`
	} `json:"globalObjects"`
}

type legacyTweet struct {
	IDStr            flexString   `json:"id_str"`
	ID               flexString   `json:"id"`
	FullText         string       `json:"full_text"`
	Text             string       `json:"text"`
	CreatedAt        string       `json:"created_at"`
	ExtendedEntities *struct {
		Media []legacyMedia `json:"media"`
	} `json:"extended_entities"`
}

type legacyMedia struct {
	Type          string `json:"type"`
	MediaURLHTTPS string `json:"media_url_https"`
	MediaURL      string `json:"media_url"`
	VideoInfo     *struct {
		Variants []Variant `json:"variants"`
	} `json:"video_info"`
}

// TimelineStrategy reads tweets from globalObjects.tweets and emits one
// record per video or animated_gif media entry with an mp4 variant.
// Tweets are decoded one at a time; a tweet that does not decode is skipped
// without affecting its siblings.
type TimelineStrategy struct{}

func (s *TimelineStrategy) Name() string {
	return "timeline"
}

func (s *TimelineStrategy) Extract(raw []byte) []Record {
	var resp timelineResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.GlobalObjects.Tweets == nil {
		return nil
	}

	var records []Record
	for pair := resp.GlobalObjects.Tweets.Oldest(); pair != nil; pair = pair.Next() {
		var t legacyTweet
		if err := json.Unmarshal(pair.Value, &t); err != nil || t.ExtendedEntities == nil {
			continue
		}
		for _, m := range t.ExtendedEntities.Media {
			if !isVideoType(m.Type) || m.VideoInfo == nil {
				continue
			}
			best, ok := BestVariant(m.VideoInfo.Variants, ExactType(mp4ContentType))
			if !ok {
				continue
			}
			records = append(records, Record{
				ID:        firstNonEmpty(string(t.IDStr), string(t.ID)),
				Text:      firstNonEmpty(t.FullText, t.Text),
				Timestamp: t.CreatedAt,
				Thumbnail: firstNonEmpty(m.MediaURLHTTPS, m.MediaURL),
				MediaURL:  best.Location(),
			})
		}
	}
	return records
}

// flexString decodes a JSON string or number into its textual form.
// Tweet ids arrive as either depending on the API generation.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexInt decodes a JSON number or numeric string. Anything else, including
// null, decodes as zero.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(v)
	return nil
}
