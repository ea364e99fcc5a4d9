package domain

import "time"

// Environment kinds supported by the console.
const (
	EnvironmentKindLocal  = "local"
	EnvironmentKindRemote = "remote"
)

// CacheTTL is how long a fetched service snapshot stays trustworthy before
// reads should trigger a background refresh.
const CacheTTL = 5 * time.Minute

// Environment identifies one Orbit host the console can talk to.
type Environment struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	GatewayURL string    `json:"gateway_url"`
	Kind       string    `json:"kind"`
	Token      string    `json:"token,omitempty"`
	AddedAt    time.Time `json:"added_at"`
}

// EnvironmentCache holds the last known service state for one environment.
// Pending jobs are session-scoped and never serialized; after a restart they
// are rebuilt from fresh dispatches and the recovery sweep.
type EnvironmentCache struct {
	Services    map[string]Service    `json:"services"`
	PendingJobs map[string]PendingJob `json:"-"`
	LastUpdated *time.Time            `json:"last_updated,omitempty"`
}

// NewEnvironmentCache returns an initialized empty cache.
func NewEnvironmentCache() *EnvironmentCache {
	return &EnvironmentCache{
		Services:    make(map[string]Service),
		PendingJobs: make(map[string]PendingJob),
	}
}

// Stale reports whether the snapshot is older than the cache TTL relative to
// now. A cache that never completed a fetch is always stale.
func (c *EnvironmentCache) Stale(now time.Time) bool {
	if c == nil || c.LastUpdated == nil {
		return true
	}
	return now.UTC().Sub(c.LastUpdated.UTC()) > CacheTTL
}
