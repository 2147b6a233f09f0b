package refresh

import (
	"errors"

	"github.com/guiyumin/vfeed/internal/cache"
	"github.com/guiyumin/vfeed/internal/twitter"
)

var (
	// ErrConfigIncomplete means the subject id or credentials are missing,
	// so no fetch is attempted.
	ErrConfigIncomplete = errors.New("refresh: subject id or credentials not configured")

	// ErrExtractionEmpty means the response was valid but no strategy
	// found any media in it.
	ErrExtractionEmpty = errors.New("refresh: no media found in response")
)

// Kind classifies why a refresh did not produce a new snapshot
type Kind string

const (
	KindOK                      Kind = "ok"
	KindFresh                   Kind = "fresh"
	KindConfigurationIncomplete Kind = "configuration_incomplete"
	KindUpstreamUnavailable     Kind = "upstream_unavailable"
	KindDecodeFailure           Kind = "decode_failure"
	KindExtractionEmpty         Kind = "extraction_empty"
	KindPersistFailure          Kind = "persist_failure"
)

// Classify maps a refresh error to its Kind
func Classify(err error) Kind {
	var perr *cache.PersistError
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrConfigIncomplete):
		return KindConfigurationIncomplete
	case errors.Is(err, ErrExtractionEmpty):
		return KindExtractionEmpty
	case errors.As(err, &perr):
		return KindPersistFailure
	case twitter.IsDecode(err):
		return KindDecodeFailure
	default:
		// network errors, non-2xx statuses and timeouts
		return KindUpstreamUnavailable
	}
}
