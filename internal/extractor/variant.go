package extractor

import (
	"strings"

	"github.com/samber/lo"
)

const mp4ContentType = "video/mp4"

// Variant is one encoding of a media entry
type Variant struct {
	ContentType string  `json:"content_type"`
	Bitrate     flexInt `json:"bitrate"`
	URL         string  `json:"url"`
	URI         string  `json:"uri,omitempty"`
}

// Location returns the variant URL, falling back to uri
func (v Variant) Location() string {
	return firstNonEmpty(v.URL, v.URI)
}

// Accept decides whether a variant content type is usable
type Accept func(contentType string) bool

// ExactType accepts only the given content type
func ExactType(contentType string) Accept {
	return func(ct string) bool { return ct == contentType }
}

// ContainsType accepts any content type containing substr
func ContainsType(substr string) Accept {
	return func(ct string) bool { return strings.Contains(ct, substr) }
}

// BestVariant returns the accepted variant with the highest bitrate.
// Ties keep the first one seen. Variants without a URL are never chosen.
func BestVariant(variants []Variant, accept Accept) (Variant, bool) {
	candidates := lo.Filter(variants, func(v Variant, _ int) bool {
		return accept(v.ContentType) && v.Location() != ""
	})
	if len(candidates) == 0 {
		return Variant{}, false
	}
	return lo.MaxBy(candidates, func(a, b Variant) bool {
		return a.Bitrate > b.Bitrate
	}), true
}
