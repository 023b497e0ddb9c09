// Package simhasth is the offline-first edge cache for the Simhasth heritage
// AR experience. It sits between pilgrimage-site kiosks and the origin,
// keeping the app usable across connectivity drops.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│           Gateway                   │  HTTP fetch surface,
//	│  (classify, dispatch, defer)        │  websocket control, push
//	└─────────────────────────────────────┘
//	           ↓ dispatches to
//	┌─────────────────────────────────────┐
//	│          Strategies                 │  cache-first (static,
//	│  (cache-first / network-first)      │  heritage), network-first
//	└─────────────────────────────────────┘  (api, navigation, default)
//	           ↓ read/write
//	┌─────────────────────────────────────┐
//	│        Tiered cache                 │  static / dynamic / heritage,
//	│  (versioned namespaces over a KV    │  size-governed dynamic tier
//	│   store: JetStream KV or memory)    │
//	└─────────────────────────────────────┘
//
// # Request flow
//
// Every incoming request is classified by ordered rules (classify), then
// served by the strategy for its class (strategy). Static assets and
// heritage media are cache-first; API, navigation and everything else are
// network-first with offline fallbacks. Non-GET writes bypass the cache;
// when the origin is unreachable they are queued per category (queue) and
// flushed on the reconnect signal.
//
// # Lifecycle
//
// The coordinator (service) owns install, activation and shutdown:
// Initialize precaches the app shell and core assets, Start deletes tiers
// left by previous build tags and launches the size governor and the
// connectivity watcher, Stop winds everything down. Control commands
// (cache-bundle, clear-all, report-status, activate-now) arrive over NATS
// and the gateway's websocket endpoint.
//
// # Packages
//
// Core:
//   - cache: tiers, envelope codec, size governor
//   - classify: request classification rules
//   - strategy: fetch strategies and the origin fetcher
//   - queue: deferred write queue and reconnect flusher
//   - service: lifecycle coordinator, precache, connectivity watcher, control
//   - gateway: client-facing HTTP and websocket surface
//   - notify: push notification parsing and fan-out
//
// Infrastructure:
//   - storage: KV store contract; memstore and JetStream-backed kvstore
//   - natsclient: control-plane connection management
//   - config: YAML configuration
//   - metric: Prometheus metrics registry and server
//   - health: component health monitor
//   - errors: classified error handling
//   - pkg/retry: retry with backoff
package simhasth
