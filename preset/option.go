package preset

import "time"

// Option configures a Registry (functional options pattern).
type Option func(*Registry)

// WithTTL sets the cache TTL. Presets are refetched after this duration.
// Default is 5 minutes. TTL <= 0 means entries never expire.
func WithTTL(d time.Duration) Option {
	return func(r *Registry) {
		r.ttl = d
	}
}
