// Package cache implements the tiered response cache of the offline edge.
//
// Three tiers partition cached content by lifecycle:
//   - static: app shell, bundled scripts and styles, allow-listed CDN assets
//   - dynamic: API responses and everything classified as default
//   - heritage: site media (3D models, images, audio) that must not be
//     evicted by unrelated dynamic-tier pressure
//
// Physical tier names carry the configured build tag
// (e.g. "simhasth-static-v3") so a new build makes previous tiers stale;
// the lifecycle coordinator deletes stale tiers on activation.
//
// Entries record their insertion time explicitly, so eviction order never
// depends on the enumeration order of the underlying store.
package cache
