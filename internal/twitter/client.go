package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultEndpoint is the media timeline endpoint; {subject} is replaced by
// the escaped user id.
const DefaultEndpoint = "https://api.twitter.com/2/timeline/media_by_user.json?user_id={subject}"

const (
	subjectPlaceholder = "{subject}"
	maxErrorBody       = 512
	maxResponseBody    = 32 << 20
)

// Credentials is the pre-provisioned auth material. It is passed through
// as headers and never parsed.
type Credentials struct {
	Cookie      string
	BearerToken string
}

// Empty reports whether neither a cookie nor a bearer token is set
func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.Cookie) == "" && strings.TrimSpace(c.BearerToken) == ""
}

// Query identifies whose media timeline to fetch and how to authenticate
type Query struct {
	SubjectID   string
	Credentials Credentials
}

// Client fetches raw timeline payloads
type Client struct {
	http      *http.Client
	endpoint  string
	userAgent string
}

// NewClient creates a client for endpoint (DefaultEndpoint when empty).
// An empty userAgent lets the transport pick one from its pool.
func NewClient(c *http.Client, endpoint, userAgent string) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		http:      c,
		endpoint:  endpoint,
		userAgent: strings.TrimSpace(userAgent),
	}
}

// URL returns the request URL for subjectID
func (c *Client) URL(subjectID string) string {
	return strings.ReplaceAll(c.endpoint, subjectPlaceholder, url.QueryEscape(subjectID))
}

// Fetch performs one GET and returns the body once it is known to be JSON
func (c *Client) Fetch(ctx context.Context, q Query) ([]byte, error) {
	if strings.TrimSpace(q.SubjectID) == "" {
		return nil, errors.New("subject id is required")
	}
	reqURL := c.URL(q.SubjectID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://x.com/")
	if cookie := strings.TrimSpace(q.Credentials.Cookie); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	if token := strings.TrimSpace(q.Credentials.BearerToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), maxErrorBody),
		}
	}

	if !json.Valid(body) {
		var decoded any
		err := json.Unmarshal(body, &decoded)
		if err == nil {
			err = errors.New("invalid JSON")
		}
		return nil, &DecodeError{URL: reqURL, Err: err}
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
