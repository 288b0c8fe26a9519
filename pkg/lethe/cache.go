// Package lethe provides the time-bounded caches the hub-auth client uses
// to avoid redundant identity checks against the hub. Entries are forgotten
// after a configurable max age; staleness within that bound is the only
// consistency promise.
package lethe

import "context"

// Cache stores opaque values with a per-cache max age. A max age of zero
// means entries never expire. Implementations must be safe for concurrent
// use from simultaneously handled requests.
type Cache interface {
	// Get returns the cached value for key and whether it was present and
	// fresh. Expired entries count as absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value for key, resetting its insertion timestamp.
	Set(ctx context.Context, key string, value []byte) error

	// Clear drops every entry.
	Clear(ctx context.Context) error
}
