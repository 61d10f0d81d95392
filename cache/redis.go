package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const compareAndDeleteScript = `
local current = redis.call("GET", KEYS[1])
if current == false then
	return 0
end
if current ~= ARGV[1] then
	return 0
end
return redis.call("DEL", KEYS[1])
`

var compareAndDeleteLua = redis.NewScript(compareAndDeleteScript)

// Script is a server-side Lua script that returns an integer. Scripts are
// cached by SHA and loaded on first use.
type Script struct {
	lua *redis.Script
}

// NewScript prepares src for use with [Store.Run].
func NewScript(src string) *Script {
	return &Script{lua: redis.NewScript(src)}
}

// Redis implements [Store] on top of a go-redis universal client.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps client as a [Store].
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Get returns the value stored at key. found is false when the key is absent.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, unavailable(err)
	}
	return raw, true, nil
}

// Set stores value at key. A zero ttl keeps the key until it is deleted.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		return ErrInvalidTTL
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// SetNX stores value at key only if the key does not exist yet.
func (r *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

// Delete removes key and reports whether it existed.
func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

// Exists reports whether key is present.
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

// Increment atomically adds delta to the integer at key, creating it at zero
// when absent, and returns the post-increment value.
func (r *Redis) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := r.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// Expire sets a TTL on key and reports whether the key existed.
func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	ok, err := r.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

// CompareAndDelete deletes key when its value equals expected. The check and
// the delete run in one Lua script.
func (r *Redis) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	n, err := compareAndDeleteLua.Run(ctx, r.client, []string{key}, expected).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

// Run executes script with EVALSHA, falling back to EVAL when the script is
// not cached yet.
func (r *Redis) Run(ctx context.Context, script *Script, keys []string, args ...interface{}) (int64, error) {
	if script == nil {
		return 0, errors.New("nil cache script")
	}
	n, err := script.lua.Run(ctx, r.client, keys, args...).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// Ping checks backend reachability.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

const incrementWindowScript = `
local n = redis.call("INCRBY", KEYS[1], ARGV[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return n
`

var incrementWindowLua = NewScript(incrementWindowScript)

// IncrementWindow adds delta to the counter at key and gives it ttl when it
// has no expiry yet, so a counter always belongs to a fixed window. Both steps
// run in one script.
func IncrementWindow(ctx context.Context, store Store, key string, delta int64, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, ErrInvalidTTL
	}
	return store.Run(ctx, incrementWindowLua, []string{key}, delta, ttl.Milliseconds())
}
