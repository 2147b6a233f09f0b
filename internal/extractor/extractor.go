package extractor

// Record is one normalized media item, whatever shape the upstream response had.
// The JSON names match the published videos.json artifact.
type Record struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp string `json:"date"`
	Thumbnail string `json:"thumbnail"`
	MediaURL  string `json:"video_url"`
}

// Strategy extracts records from one known (or guessed) response shape.
type Strategy interface {
	// Name returns the strategy name (e.g., "timeline", "scan")
	Name() string

	// Extract returns the records found in raw. An unrecognized shape
	// yields no records, never an error.
	Extract(raw []byte) []Record
}

// Chain applies strategies in order and keeps the first non-empty result
type Chain struct {
	strategies []Strategy
}

// NewChain creates a chain from the given strategies, tried in order
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Default returns the chain used against the live API: the two structured
// shapes first, then the URL scan as a last resort.
func Default() *Chain {
	return NewChain(
		&TimelineStrategy{},
		&IncludesStrategy{},
		&ScanStrategy{},
	)
}

// Extract runs the chain. It returns the records and the name of the
// strategy that produced them; both are empty when nothing matched.
func (c *Chain) Extract(raw []byte) ([]Record, string) {
	for _, s := range c.strategies {
		if records := s.Extract(raw); len(records) > 0 {
			return records, s.Name()
		}
	}
	return nil, ""
}

// Names returns the strategy names in the order they are tried
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}
	return names
}

// isVideoType reports whether a media entry type carries playable variants
func isVideoType(t string) bool {
	return t == "video" || t == "animated_gif"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
