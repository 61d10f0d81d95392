package limiters

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/tenantAuth/cache"
	"github.com/MrEthical07/tenantAuth/keys"
)

// LockoutConfig holds configuration for the automatic account lockout limiter.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	// Window bounds the failed-attempt counter; it starts at the first failure.
	Window   time.Duration
	Duration time.Duration
	// Now overrides the clock used for lock_until. Defaults to time.Now.
	Now func() time.Time
}

// LockState is the lockout state of one username.
type LockState struct {
	Locked    bool
	LockUntil time.Time
	Attempts  int64
}

// LockoutLimiter tracks failed logins per username and writes a timed lockout
// record once the threshold is reached.
type LockoutLimiter struct {
	store  cache.Store
	keys   *keys.Generator
	config LockoutConfig
	now    func() time.Time
}

// NewLockoutLimiter creates a new lockout limiter.
func NewLockoutLimiter(store cache.Store, keyGen *keys.Generator, cfg LockoutConfig) *LockoutLimiter {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &LockoutLimiter{store: store, keys: keyGen, config: cfg, now: now}
}

// recordFailureScript increments the counter, bounds it to the attempt
// window on its first hit and, at the threshold, writes the lockout record and
// aligns the counter TTL with it so both keys expire together.
//
// KEYS: attempts, lockout. ARGV: window ms (0 for none), threshold,
// lock_until, lock duration ms.
const recordFailureScript = `
local n = redis.call("INCR", KEYS[1])
local window = tonumber(ARGV[1])
if window > 0 and redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], window)
end
if n >= tonumber(ARGV[2]) then
	redis.call("SET", KEYS[2], ARGV[3], "PX", ARGV[4])
	redis.call("PEXPIRE", KEYS[1], ARGV[4])
end
return n
`

// healScript clears both keys only while the lockout record still holds the
// value that was observed as expired.
//
// KEYS: lockout, attempts. ARGV: observed record.
const healScript = `
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
redis.call("DEL", KEYS[1], KEYS[2])
return 1
`

var (
	recordFailureLua = cache.NewScript(recordFailureScript)
	healLua          = cache.NewScript(healScript)
)

// Check reports whether username is locked. A lockout record whose deadline
// passed is an expired lock: it is cleared together with the counter, unless
// a newer record replaced it in the meantime, and the username is reported
// open.
func (l *LockoutLimiter) Check(ctx context.Context, username string) (LockState, error) {
	if l == nil || !l.config.Enabled || username == "" {
		return LockState{}, nil
	}

	raw, found, err := l.store.Get(ctx, l.keys.LockoutKey(username))
	if err != nil {
		return LockState{}, err
	}
	if found {
		until, parseErr := strconv.ParseInt(string(raw), 10, 64)
		if parseErr == nil {
			lockUntil := time.Unix(until, 0)
			if lockUntil.After(l.now()) {
				return LockState{Locked: true, LockUntil: lockUntil}, nil
			}
		}
		_, err := l.store.Run(ctx, healLua,
			[]string{l.keys.LockoutKey(username), l.keys.AttemptsKey(username)}, raw)
		return LockState{}, err
	}

	attempts, err := l.Attempts(ctx, username)
	if err != nil {
		return LockState{}, err
	}
	return LockState{Attempts: attempts}, nil
}

// RecordFailure increments the failure counter for username. The counter gets
// its TTL on the first failure only (fixed window). Reaching the threshold
// writes the lockout record and returns a locked state. Counting and locking
// happen in one script.
func (l *LockoutLimiter) RecordFailure(ctx context.Context, username string) (LockState, error) {
	if l == nil || !l.config.Enabled || username == "" {
		return LockState{}, nil
	}
	if l.config.Duration <= 0 {
		return LockState{}, errors.New("lockout duration must be positive")
	}

	window := int64(0)
	if l.config.Window > 0 {
		window = l.config.Window.Milliseconds()
	}
	lockUntil := l.now().Add(l.config.Duration).Truncate(time.Second)
	count, err := l.store.Run(ctx, recordFailureLua,
		[]string{l.keys.AttemptsKey(username), l.keys.LockoutKey(username)},
		window, l.config.Threshold, lockUntil.Unix(), l.config.Duration.Milliseconds())
	if err != nil {
		return LockState{}, err
	}
	if count < int64(l.config.Threshold) {
		return LockState{Attempts: count}, nil
	}
	return LockState{Locked: true, LockUntil: lockUntil, Attempts: count}, nil
}

// Reset clears the failure counter for username after a successful login.
func (l *LockoutLimiter) Reset(ctx context.Context, username string) error {
	if l == nil || !l.config.Enabled || username == "" {
		return nil
	}
	_, err := l.store.Delete(ctx, l.keys.AttemptsKey(username))
	return err
}

// Unlock clears both the lockout record and the counter.
func (l *LockoutLimiter) Unlock(ctx context.Context, username string) error {
	if l == nil || username == "" {
		return nil
	}
	if _, err := l.store.Delete(ctx, l.keys.LockoutKey(username)); err != nil {
		return err
	}
	_, err := l.store.Delete(ctx, l.keys.AttemptsKey(username))
	return err
}

// Threshold returns the number of failures that triggers a lock.
func (l *LockoutLimiter) Threshold() int {
	if l == nil {
		return 0
	}
	return l.config.Threshold
}

// Attempts returns the current failure count for username.
func (l *LockoutLimiter) Attempts(ctx context.Context, username string) (int64, error) {
	if l == nil || username == "" {
		return 0, nil
	}
	raw, found, err := l.store.Get(ctx, l.keys.AttemptsKey(username))
	if err != nil || !found {
		return 0, err
	}
	count, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, nil
	}
	return count, nil
}
