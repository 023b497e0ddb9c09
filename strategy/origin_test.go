package strategy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudrakanya/Simhasth-X8/config"
	"github.com/rudrakanya/Simhasth-X8/errors"
)

func newOrigin(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OriginFetcher) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	fetcher, err := NewOriginFetcher(config.OriginConfig{
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return server, fetcher
}

func TestOriginFetcherRebasesRelativeRequests(t *testing.T) {
	var gotPath, gotQuery string
	_, fetcher := newOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/heritage/sites?lang=hi", nil)
	result, err := fetcher.Do(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "/api/heritage/sites", gotPath)
	assert.Equal(t, "lang=hi", gotQuery)
	assert.Equal(t, 200, result.Status)
	assert.Equal(t, SourceNetwork, result.Source)
	assert.JSONEq(t, `{"ok":true}`, string(result.Body))
}

func TestOriginFetcherForwardsSelectedHeaders(t *testing.T) {
	var gotAccept, gotCookie string
	_, fetcher := newOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotCookie = r.Header.Get("Cookie")
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cookie", "session=secret")

	_, err := fetcher.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotAccept)
	assert.Empty(t, gotCookie, "cookies are not forwarded upstream")
}

func TestOriginFetcherForwardsBody(t *testing.T) {
	var gotBody string
	_, fetcher := newOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(`{"rating":5}`))
	result, err := fetcher.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, result.Status)
	assert.Equal(t, `{"rating":5}`, gotBody)
}

func TestOriginFetcherNetworkFailureIsTransient(t *testing.T) {
	fetcher, err := NewOriginFetcher(config.OriginConfig{
		// Unroutable port on localhost.
		BaseURL: "http://127.0.0.1:1",
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/heritage/sites", nil)
	_, err = fetcher.Do(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrOriginUnreachable))
	assert.True(t, errors.IsTransient(err))
}

func TestResolveKeepsThirdPartyAbsoluteURLs(t *testing.T) {
	_, fetcher := newOrigin(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "https://fonts.gstatic.com/s/roboto.woff2", nil)
	assert.Equal(t, "https://fonts.gstatic.com/s/roboto.woff2", fetcher.Resolve(req))
}
