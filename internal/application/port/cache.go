package port

import "context"

// ObjectCache stores serialized cache entries for the content source.
type ObjectCache interface {
	// Get retrieves a value into dest; a miss is an error.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value under key with the cache's TTL.
	Set(ctx context.Context, key string, value interface{}) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error

	// Close closes the cache connection.
	Close() error
}
