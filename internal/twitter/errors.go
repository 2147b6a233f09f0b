package twitter

import (
	"errors"
	"fmt"
	"strings"
)

// HTTPStatusError means the API answered with a non-2xx status
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Body       string // first bytes of the response, for logs
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, body)
}

// RateLimited reports whether the API refused the request for rate limiting
func (e *HTTPStatusError) RateLimited() bool {
	return e != nil && e.StatusCode == 429
}

// DecodeError means the response body was not valid JSON
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	if e == nil || e.Err == nil {
		return "decode response"
	}
	return "decode response: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecode reports whether err is a response decode failure
func IsDecode(err error) bool {
	var e *DecodeError
	return errors.As(err, &e)
}
