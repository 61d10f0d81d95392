package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/tenantAuth/cache"
	"github.com/MrEthical07/tenantAuth/internal/logtest"
)

func newLockTest(t *testing.T) (*miniredis.Miniredis, cache.Store) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, cache.NewRedis(rdb)
}

// faultStore wraps a Store and fails selected operations.
type faultStore struct {
	cache.Store
	failSetNX            bool
	failCompareAndDelete bool
}

func (f *faultStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if f.failSetNX {
		return false, cache.ErrUnavailable
	}
	return f.Store.SetNX(ctx, key, value, ttl)
}

func (f *faultStore) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	if f.failCompareAndDelete {
		return false, cache.ErrUnavailable
	}
	return f.Store.CompareAndDelete(ctx, key, expected)
}

func TestTryLockContentionAndExpiry(t *testing.T) {
	mr, store := newLockTest(t)
	ctx := context.Background()
	first, second, third := New(store), New(store), New(store)

	ok, err := first.TryLock(ctx, "k", time.Second)
	if err != nil || !ok {
		t.Fatalf("first TryLock should succeed, ok=%v err=%v", ok, err)
	}
	ok, err = second.TryLock(ctx, "k", time.Second)
	if err != nil || ok {
		t.Fatalf("second TryLock should fail on contention, ok=%v err=%v", ok, err)
	}

	mr.FastForward(1100 * time.Millisecond)

	ok, err = third.TryLock(ctx, "k", time.Second)
	if err != nil || !ok {
		t.Fatalf("TryLock after expiry should succeed, ok=%v err=%v", ok, err)
	}
}

func TestConcurrentTryLockSingleWinner(t *testing.T) {
	_, store := newLockTest(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "orders:1"} {
		const callers = 16
		var (
			wg   sync.WaitGroup
			wins atomic.Int32
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := New(store).TryLock(ctx, name, 5*time.Second)
				if err != nil {
					t.Errorf("TryLock failed: %v", err)
					return
				}
				if ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		if got := wins.Load(); got != 1 {
			t.Fatalf("lock %q: expected exactly one winner, got %d", name, got)
		}
	}
}

func TestUnlockByNonOwnerKeepsLock(t *testing.T) {
	mr, store := newLockTest(t)
	ctx := context.Background()
	rec := logtest.New()
	owner, intruder := New(store), New(store, WithLogger(rec))

	if ok, err := owner.TryLock(ctx, "k", time.Minute); err != nil || !ok {
		t.Fatalf("owner TryLock failed, ok=%v err=%v", ok, err)
	}
	if err := intruder.Unlock(ctx, "k"); err != nil {
		t.Fatalf("non-owner Unlock should be a no-op, got %v", err)
	}
	if !mr.Exists("k") {
		t.Fatal("non-owner Unlock deleted the lock")
	}
	if _, ok := rec.Find("lock.unlock.not_held"); !ok {
		t.Fatal("expected not-held warning")
	}

	if err := owner.Unlock(ctx, "k"); err != nil {
		t.Fatalf("owner Unlock failed: %v", err)
	}
	if mr.Exists("k") {
		t.Fatal("owner Unlock should delete the lock")
	}
	if owner.Held("k") {
		t.Fatal("owner should forget the lock after Unlock")
	}
}

func TestStaleOwnerCannotReleaseReacquiredLock(t *testing.T) {
	mr, store := newLockTest(t)
	ctx := context.Background()
	rec := logtest.New()
	stale, fresh := New(store, WithLogger(rec)), New(store)

	if ok, _ := stale.TryLock(ctx, "k", time.Second); !ok {
		t.Fatal("stale TryLock failed")
	}
	mr.FastForward(2 * time.Second)
	if ok, _ := fresh.TryLock(ctx, "k", time.Minute); !ok {
		t.Fatal("fresh TryLock failed after expiry")
	}

	if err := stale.Unlock(ctx, "k"); err != nil {
		t.Fatalf("stale Unlock failed: %v", err)
	}
	if !mr.Exists("k") {
		t.Fatal("stale owner deleted a lock re-acquired by another owner")
	}
	if _, ok := rec.Find("lock.unlock.expired"); !ok {
		t.Fatal("expected expired-lock warning")
	}
}

func TestTryLockValidatesInput(t *testing.T) {
	_, store := newLockTest(t)
	l := New(store)

	if _, err := l.TryLock(context.Background(), " ", time.Second); !errors.Is(err, ErrInvalidLockName) {
		t.Fatalf("expected ErrInvalidLockName, got %v", err)
	}
	if _, err := l.TryLock(context.Background(), "k", 0); !errors.Is(err, ErrInvalidTimeout) {
		t.Fatalf("expected ErrInvalidTimeout, got %v", err)
	}
}

func TestExecuteWithLockReleasesOnSuccessAndError(t *testing.T) {
	mr, store := newLockTest(t)
	ctx := context.Background()
	l := New(store)

	ran := false
	if err := l.ExecuteWithLock(ctx, "k", time.Minute, func(context.Context) error {
		ran = true
		if !mr.Exists("k") {
			t.Fatal("lock should be held while action runs")
		}
		return nil
	}); err != nil {
		t.Fatalf("ExecuteWithLock failed: %v", err)
	}
	if !ran || mr.Exists("k") {
		t.Fatalf("expected action to run and lock to be released, ran=%v", ran)
	}

	boom := errors.New("boom")
	if err := l.ExecuteWithLock(ctx, "k", time.Minute, func(context.Context) error {
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected action error, got %v", err)
	}
	if mr.Exists("k") {
		t.Fatal("lock should be released after action error")
	}
}

func TestExecuteWithLockReleasesOnPanic(t *testing.T) {
	mr, store := newLockTest(t)
	l := New(store)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = l.ExecuteWithLock(context.Background(), "k", time.Minute, func(context.Context) error {
			panic("action failure")
		})
	}()

	if mr.Exists("k") {
		t.Fatal("lock should be released after a panicking action")
	}
}

func TestExecuteWithLockContentionSkipsAction(t *testing.T) {
	_, store := newLockTest(t)
	ctx := context.Background()
	holder := New(store)

	if ok, _ := holder.TryLock(ctx, "k", time.Minute); !ok {
		t.Fatal("holder TryLock failed")
	}
	ran := false
	err := New(store).ExecuteWithLock(ctx, "k", time.Minute, func(context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, ErrLockAcquisitionFailed) {
		t.Fatalf("expected ErrLockAcquisitionFailed, got %v", err)
	}
	if ran {
		t.Fatal("action must not run without the lock")
	}
}

func TestExecuteWithLockReleaseFailureKeepsActionResult(t *testing.T) {
	_, store := newLockTest(t)
	rec := logtest.New()
	l := New(&faultStore{Store: store, failCompareAndDelete: true}, WithLogger(rec))

	boom := errors.New("business failure")
	err := l.ExecuteWithLock(context.Background(), "k", time.Minute, func(context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("release failure must not mask action error, got %v", err)
	}
	if _, ok := rec.Find("lock.release.failed"); !ok {
		t.Fatal("expected release failure to be logged")
	}

	got, err := Do(context.Background(), l, "k2", time.Minute, func(context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || got != 7 {
		t.Fatalf("expected action value despite release failure, got %d err=%v", got, err)
	}
}

func TestExecuteWithLockBackendFailure(t *testing.T) {
	_, store := newLockTest(t)
	l := New(&faultStore{Store: store, failSetNX: true})

	ran := false
	err := l.ExecuteWithLock(context.Background(), "k", time.Minute, func(context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, cache.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if ran {
		t.Fatal("action must not run when the backend fails")
	}
}

func TestExecuteWithLockReleasesAfterContextCancel(t *testing.T) {
	mr, store := newLockTest(t)
	l := New(store)
	ctx, cancel := context.WithCancel(context.Background())

	_ = l.ExecuteWithLock(ctx, "k", time.Minute, func(context.Context) error {
		cancel()
		return nil
	})
	if mr.Exists("k") {
		t.Fatal("lock should be released even after the caller cancels")
	}
}

func TestLockWaitsForRelease(t *testing.T) {
	_, store := newLockTest(t)
	ctx := context.Background()
	holder := New(store)
	waiter := New(store, WithRetryInterval(5*time.Millisecond))

	if ok, _ := holder.TryLock(ctx, "k", time.Minute); !ok {
		t.Fatal("holder TryLock failed")
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = holder.Unlock(ctx, "k")
	}()

	if err := waiter.Lock(ctx, "k", time.Minute, 5*time.Second); err != nil {
		t.Fatalf("Lock should acquire after release, got %v", err)
	}
	if !waiter.Held("k") {
		t.Fatal("waiter should hold the lock")
	}
}

func TestLockTimesOut(t *testing.T) {
	_, store := newLockTest(t)
	ctx := context.Background()
	var timeouts atomic.Int32
	holder := New(store)
	waiter := New(store, WithRetryInterval(5*time.Millisecond), WithObserver(func(event Event, _ string) {
		if event == EventTimeout {
			timeouts.Add(1)
		}
	}))

	if ok, _ := holder.TryLock(ctx, "k", time.Minute); !ok {
		t.Fatal("holder TryLock failed")
	}
	err := waiter.Lock(ctx, "k", time.Minute, 100*time.Millisecond)
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if timeouts.Load() != 1 {
		t.Fatalf("expected one timeout event, got %d", timeouts.Load())
	}
}
