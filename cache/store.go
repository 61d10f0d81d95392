package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable indicates the cache backend could not serve the request.
	ErrUnavailable = errors.New("cache backend unavailable")
	// ErrInvalidTTL indicates a non-positive TTL where one is required.
	ErrInvalidTTL = errors.New("cache ttl must be positive")
)

// Store is the key-value contract consumed by the lock, token and lockout layers.
// A ttl of zero on Set means no expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Increment(ctx context.Context, key string, delta int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// CompareAndDelete deletes key only when its current value equals expected.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)
	// Run executes script atomically against keys and returns its integer reply.
	Run(ctx context.Context, script *Script, keys []string, args ...interface{}) (int64, error)
	Ping(ctx context.Context) error
}
