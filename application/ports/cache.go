package ports

import (
	"context"
	"time"
)

// Cache is a shared key-value store for serialized dashboard entries.
// Implementations own TTL expiry; a missing or expired key reports found=false.
type Cache interface {
	// Get retrieves a value
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores a value that expires after ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value; deleting an absent key is not an error
	Delete(ctx context.Context, key string) error

	// Flush removes every value in the store
	Flush(ctx context.Context) error
}

// PatternDeleter is implemented by stores that can delete by shell glob
type PatternDeleter interface {
	// DeletePattern removes every key matching pattern and returns how many were removed
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// ComputeGuard lets one caller recompute a missing entry while others wait briefly
type ComputeGuard interface {
	// Acquire tries to claim key. When acquired, release must be called once computing is done.
	Acquire(ctx context.Context, key string) (release func(), acquired bool, err error)
}
