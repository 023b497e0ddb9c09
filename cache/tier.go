package cache

import "strings"

// Tier names a logical cache partition.
type Tier string

// The three tiers of the edge cache.
const (
	TierStatic   Tier = "static"
	TierDynamic  Tier = "dynamic"
	TierHeritage Tier = "heritage"
)

const physicalPrefix = "simhasth-"

// KnownTiers returns every tier of the current build.
func KnownTiers() []Tier {
	return []Tier{TierStatic, TierDynamic, TierHeritage}
}

// PhysicalName returns the versioned store namespace for the tier,
// e.g. "simhasth-static-v3".
func (t Tier) PhysicalName(buildTag string) string {
	return physicalPrefix + string(t) + "-" + buildTag
}

// KnownPhysicalNames returns the physical names of all tiers for a build tag.
func KnownPhysicalNames(buildTag string) map[string]bool {
	names := make(map[string]bool, len(KnownTiers()))
	for _, tier := range KnownTiers() {
		names[tier.PhysicalName(buildTag)] = true
	}
	return names
}

// IsTierNamespace reports whether a store key belongs to any edge tier
// namespace (current or stale build) and returns that namespace.
func IsTierNamespace(storeKey string) (string, bool) {
	if !strings.HasPrefix(storeKey, physicalPrefix) {
		return "", false
	}
	idx := strings.Index(storeKey, ".")
	if idx < 0 {
		return "", false
	}
	return storeKey[:idx], true
}
