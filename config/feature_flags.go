package config

import (
	"os"
	"strings"
	"sync"
)

// Predefined feature flag names.
const (
	// FeatureLegacyJoinedAttribution restores the historical behavior of
	// crediting "joined N routes" milestones to the route's driver instead
	// of the joining passenger. Off by default: the passenger is the
	// semantic actor.
	FeatureLegacyJoinedAttribution = "engine.legacy_joined_attribution"

	// FeatureEagerProvisioning creates a progress row for every catalog
	// entry when an account is created, instead of lazily on the first
	// qualifying event.
	FeatureEagerProvisioning = "engine.eager_provisioning"

	// FeatureEventDedup enables the idempotency guard on event deliveries.
	FeatureEventDedup = "engine.event_dedup"

	// FeatureProgressCache enables the Redis cache for per-user progress
	// listings.
	FeatureProgressCache = "engine.progress_cache"
)

// defaultFlags holds the shipped defaults.
var defaultFlags = map[string]bool{
	FeatureLegacyJoinedAttribution: false,
	FeatureEagerProvisioning:       true,
	FeatureEventDedup:              true,
	FeatureProgressCache:           true,
}

// FeatureFlags manages feature toggles. Flags are loaded once from the
// environment and may be overridden at runtime (tests, admin tooling).
type FeatureFlags struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// LoadFeatureFlags builds the flag set from defaults plus environment
// overrides. A flag named "engine.event_dedup" is overridden by the
// variable FEATURE_ENGINE_EVENT_DEDUP.
func LoadFeatureFlags() *FeatureFlags {
	flags := make(map[string]bool, len(defaultFlags))
	for name, enabled := range defaultFlags {
		if v, ok := os.LookupEnv(envName(name)); ok {
			flags[name] = parseBool(v, enabled)
		} else {
			flags[name] = enabled
		}
	}
	return &FeatureFlags{flags: flags}
}

// Enabled reports whether the named flag is on. Unknown flags are off.
func (f *FeatureFlags) Enabled(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.flags[name]
}

// Set overrides a flag at runtime.
func (f *FeatureFlags) Set(name string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[name] = enabled
}

func envName(flag string) string {
	return "FEATURE_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(flag))
}

func parseBool(v string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
