package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBestVariant(t *testing.T) {
	tests := []struct {
		name     string
		variants []Variant
		accept   Accept
		wantURL  string
		wantOK   bool
	}{
		{
			name: "type filter excludes higher bitrate",
			variants: []Variant{
				{ContentType: "video/mp4", Bitrate: 500, URL: "a"},
				{ContentType: "video/mp4", Bitrate: 1200, URL: "b"},
				{ContentType: "video/webm", Bitrate: 9999, URL: "c"},
			},
			accept:  ExactType("video/mp4"),
			wantURL: "b",
			wantOK:  true,
		},
		{
			name: "ties keep first seen",
			variants: []Variant{
				{ContentType: "video/mp4", Bitrate: 700, URL: "first"},
				{ContentType: "video/mp4", Bitrate: 700, URL: "second"},
			},
			accept:  ExactType("video/mp4"),
			wantURL: "first",
			wantOK:  true,
		},
		{
			name: "missing bitrate counts as zero",
			variants: []Variant{
				{ContentType: "video/mp4", URL: "none"},
				{ContentType: "video/mp4", Bitrate: 1, URL: "one"},
			},
			accept:  ExactType("video/mp4"),
			wantURL: "one",
			wantOK:  true,
		},
		{
			name: "variants without location are skipped",
			variants: []Variant{
				{ContentType: "video/mp4", Bitrate: 9000},
				{ContentType: "video/mp4", Bitrate: 10, URI: "uri-only"},
			},
			accept:  ExactType("video/mp4"),
			wantURL: "uri-only",
			wantOK:  true,
		},
		{
			name: "contains match",
			variants: []Variant{
				{ContentType: "application/x-mpegURL", URL: "hls"},
				{ContentType: "video/webm", Bitrate: 3, URL: "webm"},
			},
			accept:  ContainsType("video"),
			wantURL: "webm",
			wantOK:  true,
		},
		{
			name:     "nothing accepted",
			variants: []Variant{{ContentType: "application/x-mpegURL", URL: "hls"}},
			accept:   ExactType("video/mp4"),
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BestVariant(tt.variants, tt.accept)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantURL, got.Location())
			}
		})
	}
}
