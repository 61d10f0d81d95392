package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"pkt.systems/pslog"

	"github.com/MrEthical07/tenantAuth/cache"
	"github.com/MrEthical07/tenantAuth/internal/logging"
)

var (
	// ErrLockAcquisitionFailed indicates the lock is held by another owner.
	ErrLockAcquisitionFailed = errors.New("lock acquisition failed")
	// ErrLockTimeout indicates a blocking acquire gave up waiting.
	ErrLockTimeout = errors.New("lock wait timed out")
	// ErrInvalidLockName indicates an empty lock name.
	ErrInvalidLockName = errors.New("lock name is empty")
	// ErrInvalidTimeout indicates a non-positive lock timeout.
	ErrInvalidTimeout = errors.New("lock timeout must be positive")

	errContended = errors.New("lock contended")
)

// Event classifies lock outcomes reported to an [Observer].
type Event int

const (
	EventAcquired Event = iota
	EventContended
	EventReleased
	EventReleaseFailed
	EventTimeout
)

// Observer receives lock outcomes. It must not block.
type Observer func(event Event, name string)

// Option configures a [Locker].
type Option func(*Locker)

// WithLogger sets the logger used for release warnings.
func WithLogger(logger pslog.Logger) Option {
	return func(l *Locker) {
		l.logger = logging.WithSubsystem(logger, "lock")
	}
}

// WithObserver registers fn for acquire and release outcomes.
func WithObserver(fn Observer) Option {
	return func(l *Locker) {
		l.observe = fn
	}
}

// WithRetryInterval sets the initial backoff interval used by [Locker.Lock].
func WithRetryInterval(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.retryInterval = d
		}
	}
}

// Locker acquires and releases named locks as a single logical owner.
type Locker struct {
	store         cache.Store
	logger        pslog.Logger
	observe       Observer
	retryInterval time.Duration
	newToken      func() string

	mu    sync.Mutex
	owned map[string]string
}

// New builds a Locker over store.
func New(store cache.Store, opts ...Option) *Locker {
	l := &Locker{
		store:         store,
		logger:        logging.WithSubsystem(nil, "lock"),
		retryInterval: 25 * time.Millisecond,
		newToken:      uuid.NewString,
		owned:         make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// TryLock makes one attempt to acquire name for timeout. It returns false
// without waiting when another owner holds the lock.
func (l *Locker) TryLock(ctx context.Context, name string, timeout time.Duration) (bool, error) {
	token, ok, err := l.acquire(ctx, name, timeout)
	if err != nil || !ok {
		return false, err
	}
	l.mu.Lock()
	l.owned[name] = token
	l.mu.Unlock()
	return true, nil
}

// Lock retries TryLock with exponential backoff until it succeeds or wait
// elapses, in which case it returns [ErrLockTimeout].
func (l *Locker) Lock(ctx context.Context, name string, timeout, wait time.Duration) error {
	if err := validate(name, timeout); err != nil {
		return err
	}
	if wait <= 0 {
		return l.tryOrFail(ctx, name, timeout)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.retryInterval
	b.MaxInterval = 20 * l.retryInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		ok, err := l.TryLock(ctx, name, timeout)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if !ok {
			return struct{}{}, errContended
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(wait))
	if err == nil {
		return nil
	}
	if errors.Is(err, cache.ErrUnavailable) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	l.notify(EventTimeout, name)
	return fmt.Errorf("%w: %s after %s", ErrLockTimeout, name, wait)
}

func (l *Locker) tryOrFail(ctx context.Context, name string, timeout time.Duration) error {
	ok, err := l.TryLock(ctx, name, timeout)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockAcquisitionFailed
	}
	return nil
}

// Unlock releases name if this Locker holds it. Releasing a lock that was
// never held, or that already expired, is a no-op logged as a warning.
func (l *Locker) Unlock(ctx context.Context, name string) error {
	l.mu.Lock()
	token, ok := l.owned[name]
	delete(l.owned, name)
	l.mu.Unlock()

	if !ok {
		l.logger.Warn("lock.unlock.not_held", "name", name)
		return nil
	}
	return l.release(ctx, name, token)
}

// Held reports whether this Locker remembers owning name. The entry may have
// expired server-side since.
func (l *Locker) Held(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.owned[name]
	return ok
}

// ExecuteWithLock runs action while holding name. If the lock is held
// elsewhere it returns [ErrLockAcquisitionFailed] without running action.
// The lock is released on every exit, including a panic in action; release
// failures are logged and never replace the action's own result.
func (l *Locker) ExecuteWithLock(ctx context.Context, name string, timeout time.Duration, action func(context.Context) error) error {
	_, err := Do(ctx, l, name, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, action(ctx)
	})
	return err
}

// Do is ExecuteWithLock for actions that produce a value.
func Do[T any](ctx context.Context, l *Locker, name string, timeout time.Duration, action func(context.Context) (T, error)) (T, error) {
	var zero T
	if action == nil {
		return zero, errors.New("lock action is nil")
	}
	token, ok, err := l.acquire(ctx, name, timeout)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrLockAcquisitionFailed, name)
	}
	defer func() {
		// Release even when the caller's context is already cancelled.
		if err := l.release(context.WithoutCancel(ctx), name, token); err != nil {
			l.logger.Error("lock.release.failed", "name", name, "error", err)
		}
	}()
	return action(ctx)
}

func (l *Locker) acquire(ctx context.Context, name string, timeout time.Duration) (string, bool, error) {
	if err := validate(name, timeout); err != nil {
		return "", false, err
	}
	token := l.newToken()
	ok, err := l.store.SetNX(ctx, name, []byte(token), timeout)
	if err != nil {
		return "", false, err
	}
	if !ok {
		l.notify(EventContended, name)
		return "", false, nil
	}
	l.notify(EventAcquired, name)
	return token, true, nil
}

func (l *Locker) release(ctx context.Context, name, token string) error {
	deleted, err := l.store.CompareAndDelete(ctx, name, []byte(token))
	if err != nil {
		l.notify(EventReleaseFailed, name)
		return err
	}
	if !deleted {
		l.logger.Warn("lock.unlock.expired", "name", name)
		l.notify(EventReleaseFailed, name)
		return nil
	}
	l.notify(EventReleased, name)
	return nil
}

func (l *Locker) notify(event Event, name string) {
	if l.observe != nil {
		l.observe(event, name)
	}
}

func validate(name string, timeout time.Duration) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidLockName
	}
	if timeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}
