package twitter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_FetchSendsCredentialsAndSubject(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"globalObjects":{}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL+"/timeline?user_id={subject}", "vfeed-test")
	body, err := c.Fetch(context.Background(), Query{
		SubjectID:   "12 34",
		Credentials: Credentials{Cookie: "auth_token=a; ct0=b", BearerToken: "tok"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"globalObjects":{}}`, string(body))

	require.NotNil(t, got)
	assert.Equal(t, "12 34", got.URL.Query().Get("user_id"))
	assert.Equal(t, "vfeed-test", got.Header.Get("User-Agent"))
	assert.Equal(t, "auth_token=a; ct0=b", got.Header.Get("Cookie"))
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
	assert.Equal(t, "https://x.com/", got.Header.Get("Referer"))
}

func TestClient_FetchOmitsEmptyCredentials(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL+"/?id={subject}", "")
	_, err := c.Fetch(context.Background(), Query{SubjectID: "1", Credentials: Credentials{Cookie: "c"}})
	require.NoError(t, err)
	assert.Empty(t, got.Header.Get("Authorization"))
	assert.Equal(t, "c", got.Header.Get("Cookie"))
}

func TestClient_FetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"errors":[{"message":"Rate limit exceeded"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL+"/?id={subject}", "")
	_, err := c.Fetch(context.Background(), Query{SubjectID: "1"})
	require.Error(t, err)

	var se *HTTPStatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.True(t, se.RateLimited())
	assert.Contains(t, err.Error(), "Rate limit exceeded")
}

func TestClient_FetchDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>login</html>`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL+"/?id={subject}", "")
	_, err := c.Fetch(context.Background(), Query{SubjectID: "1"})
	require.Error(t, err)
	assert.True(t, IsDecode(err))
	var se *HTTPStatusError
	assert.False(t, errors.As(err, &se))
}

func TestClient_FetchRequiresSubject(t *testing.T) {
	c := NewClient(nil, "", "")
	_, err := c.Fetch(context.Background(), Query{})
	assert.Error(t, err)
}

func TestClient_FetchHonorsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.Client(), srv.URL+"/?id={subject}", "")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, Query{SubjectID: "1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClient_DefaultEndpoint(t *testing.T) {
	c := NewClient(nil, "", "")
	assert.Equal(t, "https://api.twitter.com/2/timeline/media_by_user.json?user_id=42", c.URL("42"))
}

type flakyRoundTripper struct {
	failures int32
	calls    atomic.Int32
}

func (f *flakyRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return nil, errors.New("connection reset")
	}
	rec := httptest.NewRecorder()
	rec.Header().Set("X-UA", req.Header.Get("User-Agent"))
	_, _ = rec.WriteString(`{}`)
	return rec.Result(), nil
}

func TestTransport_RetriesGET(t *testing.T) {
	base := &flakyRoundTripper{failures: 2}
	tr := &Transport{Base: base, ua: globalUA, RetryMax: 2}

	req, err := http.NewRequest(http.MethodGet, "https://example.test/", nil)
	require.NoError(t, err)

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, int32(3), base.calls.Load())
	assert.NotEmpty(t, resp.Header.Get("X-UA"))
	assert.Empty(t, req.Header.Get("User-Agent"))
}

func TestTransport_GivesUpAfterRetryMax(t *testing.T) {
	base := &flakyRoundTripper{failures: 10}
	tr := &Transport{Base: base, ua: globalUA, RetryMax: 1}

	req, err := http.NewRequest(http.MethodGet, "https://example.test/", nil)
	require.NoError(t, err)

	_, err = tr.RoundTrip(req)
	require.Error(t, err)
	assert.Equal(t, int32(2), base.calls.Load())
}

func TestNewHTTPClient_Proxy(t *testing.T) {
	c, err := NewHTTPClient("http://127.0.0.1:8080", 0)
	require.NoError(t, err)
	tr, ok := c.Transport.(*Transport)
	require.True(t, ok)
	base, ok := tr.Base.(*http.Transport)
	require.True(t, ok)
	assert.NotNil(t, base.Proxy)
	assert.Equal(t, defaultTimeout, c.Timeout)

	_, err = NewHTTPClient("http://[::1", time.Second)
	assert.Error(t, err)
}
