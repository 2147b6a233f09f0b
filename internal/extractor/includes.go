package extractor

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// includesResponse is the v2 API shape where media objects are expanded
// into includes.media and carry no tweet context.
type includesResponse struct {
	Includes *struct {
		Media []json.RawMessage `json:"media"`
	} `json:"includes"`
}

type includedMedia struct {
	MediaKey        string     `json:"media_key"`
	ID              flexString `json:"id"`
	Type            string     `json:"type"`
	URL             string     `json:"url"`
	PreviewImageURL string     `json:"preview_image_url"`
	Variants        []Variant  `json:"variants"`
}

func (m includedMedia) key() string {
	return firstNonEmpty(m.MediaKey, string(m.ID))
}

// IncludesStrategy reads includes.media. Content types are matched loosely
// since this shape has drifted between "video/mp4" and vendor types. Media
// objects that do not decode are skipped individually.
type IncludesStrategy struct{}

func (s *IncludesStrategy) Name() string {
	return "includes"
}

func (s *IncludesStrategy) Extract(raw []byte) []Record {
	var resp includesResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Includes == nil {
		return nil
	}

	// Index by media key: a repeated key keeps its first position and its last value.
	byKey := orderedmap.New[string, includedMedia]()
	for _, item := range resp.Includes.Media {
		var m includedMedia
		if err := json.Unmarshal(item, &m); err != nil {
			continue
		}
		byKey.Set(m.key(), m)
	}

	var records []Record
	for pair := byKey.Oldest(); pair != nil; pair = pair.Next() {
		m := pair.Value
		if !isVideoType(m.Type) || len(m.Variants) == 0 {
			continue
		}
		best, ok := BestVariant(m.Variants, ContainsType("video"))
		if !ok {
			continue
		}
		records = append(records, Record{
			ID:        pair.Key,
			Thumbnail: firstNonEmpty(m.URL, m.PreviewImageURL),
			MediaURL:  best.Location(),
		})
	}
	return records
}
