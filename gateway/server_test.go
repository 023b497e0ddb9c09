package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudrakanya/Simhasth-X8/cache"
	"github.com/rudrakanya/Simhasth-X8/classify"
	"github.com/rudrakanya/Simhasth-X8/config"
	"github.com/rudrakanya/Simhasth-X8/errors"
	"github.com/rudrakanya/Simhasth-X8/notify"
	"github.com/rudrakanya/Simhasth-X8/queue"
	"github.com/rudrakanya/Simhasth-X8/service"
	"github.com/rudrakanya/Simhasth-X8/storage/memstore"
	"github.com/rudrakanya/Simhasth-X8/strategy"
)

// fakeFetcher answers from a canned path map and can be severed from the
// origin mid-test.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string][]byte
	offline   bool
	calls     int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{responses: make(map[string][]byte)}
}

func (f *fakeFetcher) Resolve(r *http.Request) string {
	return "http://origin.test" + r.URL.Path
}

func (f *fakeFetcher) Do(_ context.Context, r *http.Request) (*strategy.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.offline {
		return nil, errors.WrapTransient(errors.ErrOriginUnreachable, "fakeFetcher", "Do", r.URL.Path)
	}
	f.calls++

	body, ok := f.responses[r.URL.Path]
	if !ok {
		return &strategy.Result{Status: http.StatusNotFound, Header: http.Header{}, Source: strategy.SourceNetwork}, nil
	}
	return &strategy.Result{Status: http.StatusOK, Header: http.Header{}, Body: body, Source: strategy.SourceNetwork}, nil
}

func (f *fakeFetcher) setOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

func (f *fakeFetcher) isOnline() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.offline
}

type fixture struct {
	ts    *httptest.Server
	fetch *fakeFetcher
	queue *queue.Queue
	hub   *Hub
	cfg   *config.Config
	tiers map[cache.Tier]*cache.TierStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.DefaultConfig()
	store := memstore.New()
	fetch := newFakeFetcher()

	tiers := make(map[cache.Tier]*cache.TierStore)
	for _, tier := range cache.KnownTiers() {
		tiers[tier] = cache.NewTierStore(store, tier, cfg.BuildTag)
	}

	shell := strategy.NewShell(tiers[cache.TierStatic], fetch, cfg.Precache.AppShell)
	router := strategy.NewRouter(
		strategy.NewCacheFirst("static", tiers[cache.TierStatic], fetch, nil, strategy.WithShellFallback(shell)),
		strategy.NewNetworkFirst("api", tiers[cache.TierDynamic], fetch, strategy.FallbackOfflineJSON, nil, nil),
		strategy.NewCacheFirst("heritage", tiers[cache.TierHeritage], fetch, nil),
		strategy.NewNetworkFirst("navigation", nil, fetch, strategy.FallbackShellPage, shell, nil),
		strategy.NewNetworkFirst("default", tiers[cache.TierDynamic], fetch, strategy.FallbackPropagate, nil, nil),
	)

	q := queue.New(store)
	controller := service.NewController(cfg, store, tiers, q,
		service.NewPrecacher(fetch, 2, nil), fetch.isOnline, nil)

	hub := NewHub(nil)
	deps := Deps{
		Classifier:  classify.New(cfg.Classifier),
		Router:      router,
		Fetcher:     fetch,
		Queue:       q,
		QueueConfig: cfg.Queue,
		Controller:  controller,
		Notifier:    notify.NewNotifier(hub, cfg.NATS.NotifySubject, nil),
	}

	server := NewServer(cfg.Server, deps, hub, nil)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(hub.CloseAll)

	return &fixture{ts: ts, fetch: fetch, queue: q, hub: hub, cfg: cfg, tiers: tiers}
}

func (fx *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(fx.ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (fx *fixture) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(fx.ts.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestStaticAssetServedThenCached(t *testing.T) {
	fx := newFixture(t)
	fx.fetch.responses["/static/logo.svg"] = []byte("<svg/>")

	resp := fx.get(t, "/static/logo.svg")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "network", resp.Header.Get("X-Served-From"))

	// Sever the origin: the cached copy takes over.
	fx.fetch.setOffline(true)
	resp = fx.get(t, "/static/logo.svg")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cache", resp.Header.Get("X-Served-From"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("<svg/>"), body)
}

func TestAPIOfflineWithoutCacheSynthesizesError(t *testing.T) {
	fx := newFixture(t)
	fx.fetch.setOffline(true)

	resp := fx.get(t, "/api/sites/latest")
	assert.Equal(t, strategy.OfflineStatus, resp.StatusCode)
	assert.Equal(t, "offline-fallback", resp.Header.Get("X-Served-From"))

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, strategy.OfflineErrorCode, payload["error"])
}

func TestAPIOfflineServesStaleCopy(t *testing.T) {
	fx := newFixture(t)
	fx.fetch.responses["/api/sites/latest"] = []byte(`{"sites":[]}`)

	fx.get(t, "/api/sites/latest") // populate dynamic tier
	fx.fetch.setOffline(true)

	resp := fx.get(t, "/api/sites/latest")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cache", resp.Header.Get("X-Served-From"))
}

func TestDeferredWriteQueuedWhenOffline(t *testing.T) {
	fx := newFixture(t)
	fx.fetch.setOffline(true)

	resp := fx.post(t, "/api/feedback", `{"rating":5}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var ack struct {
		Queued   bool   `json:"queued"`
		ID       string `json:"id"`
		Category string `json:"category"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.True(t, ack.Queued)
	assert.NotEmpty(t, ack.ID)
	assert.Equal(t, "feedback", ack.Category)

	pending, err := fx.queue.Pending(context.Background(), queue.CategoryFeedback)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.JSONEq(t, `{"rating":5}`, string(pending[0].Payload))
}

func TestNonDeferrableWriteFailsWhenOffline(t *testing.T) {
	fx := newFixture(t)
	fx.fetch.setOffline(true)

	resp := fx.post(t, "/api/users/me", `{"name":"x"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestWriteForwardedWhenOnline(t *testing.T) {
	fx := newFixture(t)
	fx.fetch.responses["/api/feedback"] = []byte(`{"accepted":true}`)

	resp := fx.post(t, "/api/feedback", `{"rating":4}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	length, err := fx.queue.Len(context.Background(), queue.CategoryFeedback)
	require.NoError(t, err)
	assert.Zero(t, length, "online writes are never queued")
}

func navigate(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Accept", "text/html")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestNavigationOfflineServesShell(t *testing.T) {
	fx := newFixture(t)

	// The install step would have precached the shell; seed it directly.
	shellKey := strategy.KeyFor(fx.fetch, http.MethodGet, fx.cfg.Precache.AppShell)
	require.NoError(t, fx.tiers[cache.TierStatic].Put(context.Background(),
		cache.NewEntry(shellKey, http.StatusOK, nil, []byte("<html>shell</html>"))))
	fx.fetch.setOffline(true)

	resp := navigate(t, fx.ts.URL+"/sites/bateshwar")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cache", resp.Header.Get("X-Served-From"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "<html>shell</html>", string(body))
}

func TestNavigationOfflineWithoutShellGetsMinimalPage(t *testing.T) {
	fx := newFixture(t)
	fx.fetch.setOffline(true)

	resp := navigate(t, fx.ts.URL+"/sites/bateshwar")
	assert.Equal(t, strategy.OfflineStatus, resp.StatusCode)
	assert.Equal(t, "offline-fallback", resp.Header.Get("X-Served-From"))
}

func TestPushEndpointAccepts(t *testing.T) {
	fx := newFixture(t)

	resp := fx.post(t, PushPath, `{"title":"Bateshwar","data":{"url":"/sites/bateshwar"}}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestPushEndpointRejectsGet(t *testing.T) {
	fx := newFixture(t)
	resp := fx.get(t, PushPath)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
