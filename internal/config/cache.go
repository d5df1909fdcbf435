package config

import "time"

// CacheConfig defines settings for the lab directory cache.  When Enabled is
// false or no Redis client is configured, lab lookups go straight to the
// remote service.  Keys are namespaced by Prefix.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads CACHE_ENABLED, CACHE_TTL and CACHE_PREFIX.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: envBool("CACHE_ENABLED", true),
		TTL:     envDur("CACHE_TTL", 5*time.Minute),
		Prefix:  envStr("CACHE_PREFIX", "labs"),
	}
}
