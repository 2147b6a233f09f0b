package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"regexp"

	"github.com/samber/lo"
)

// cdnVideoPattern matches progressive video URLs on the Twitter video CDN
var cdnVideoPattern = regexp.MustCompile(`https?://video\.twimg\.com/ext_tw_video/[^\s"']+`)

// ScanStrategy ignores structure entirely and scans every string in the
// payload for CDN video URLs. It only runs when the structured shapes
// found nothing.
type ScanStrategy struct{}

func (s *ScanStrategy) Name() string {
	return "scan"
}

func (s *ScanStrategy) Extract(raw []byte) []Record {
	strs, ok := stringTokens(raw)
	if !ok {
		return nil
	}

	var found []string
	for _, str := range strs {
		found = append(found, cdnVideoPattern.FindAllString(str, -1)...)
	}

	urls := lo.Uniq(found)
	records := make([]Record, 0, len(urls))
	for _, u := range urls {
		records = append(records, Record{ID: u, MediaURL: u})
	}
	return records
}

// stringTokens returns every decoded string (keys and values) of the payload
// in document order. Decoding normalizes escaped forms such as
// "https:\/\/video.twimg.com" before scanning.
func stringTokens(raw []byte) ([]string, bool) {
	if !json.Valid(raw) {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	var strs []string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return strs, true
		}
		if err != nil {
			return nil, false
		}
		if s, ok := tok.(string); ok {
			strs = append(strs, s)
		}
	}
}
