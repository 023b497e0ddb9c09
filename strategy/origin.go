package strategy

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rudrakanya/Simhasth-X8/config"
	"github.com/rudrakanya/Simhasth-X8/errors"
)

// maxBodyBytes caps materialized response bodies. Heritage 3D models are the
// largest cached content; 64 MiB covers the site bundles with room to spare.
const maxBodyBytes = 64 << 20

// OriginFetcher executes requests against the configured origin.
type OriginFetcher struct {
	base   *url.URL
	client *http.Client
}

var _ Fetcher = (*OriginFetcher)(nil)

// NewOriginFetcher builds a fetcher for the configured origin.
func NewOriginFetcher(cfg config.OriginConfig) (*OriginFetcher, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.WrapFatal(err, "OriginFetcher", "New", "parse base URL")
	}
	return &OriginFetcher{
		base:   base,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Resolve maps an incoming request to its absolute upstream URL. Requests to
// allow-listed third-party hosts arrive with absolute URLs and pass through
// unchanged; everything else is rebased onto the origin.
func (f *OriginFetcher) Resolve(r *http.Request) string {
	if r.URL.IsAbs() && r.URL.Host != "" && !strings.EqualFold(r.URL.Host, f.base.Host) {
		return r.URL.String()
	}
	target := *f.base
	target.Path = r.URL.Path
	target.RawQuery = r.URL.RawQuery
	return target.String()
}

// Do executes the request upstream and materializes the response. Network
// failures return a transient error wrapping ErrOriginUnreachable.
func (f *OriginFetcher) Do(ctx context.Context, r *http.Request) (*Result, error) {
	var body io.Reader
	if r.Body != nil && r.Body != http.NoBody {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return nil, errors.WrapInvalid(err, "OriginFetcher", "Do", "read request body")
		}
		body = bytes.NewReader(payload)
	}

	upstream, err := http.NewRequestWithContext(ctx, r.Method, f.Resolve(r), body)
	if err != nil {
		return nil, errors.WrapInvalid(err, "OriginFetcher", "Do", "build upstream request")
	}
	copyForwardHeaders(r.Header, upstream.Header)

	resp, err := f.client.Do(upstream)
	if err != nil {
		return nil, errors.WrapTransient(errors.ErrOriginUnreachable, "OriginFetcher", "Do", r.Method+" "+upstream.URL.Path)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.WrapTransient(err, "OriginFetcher", "Do", "read response body")
	}

	return &Result{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   payload,
		Source: SourceNetwork,
	}, nil
}

// forwardedHeaders are the request headers worth passing upstream.
var forwardedHeaders = []string{
	"Accept",
	"Accept-Language",
	"Authorization",
	"Content-Type",
	"If-None-Match",
	"If-Modified-Since",
}

func copyForwardHeaders(from, to http.Header) {
	for _, name := range forwardedHeaders {
		if values, ok := from[http.CanonicalHeaderKey(name)]; ok {
			to[http.CanonicalHeaderKey(name)] = values
		}
	}
}
