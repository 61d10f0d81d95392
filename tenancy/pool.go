package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/tenantAuth/internal/logging"
	"pkt.systems/pslog"
)

var (
	// ErrPoolClosed indicates a submit after Close.
	ErrPoolClosed = errors.New("tenant pool closed")
	// ErrTaskPanicked wraps a panic recovered from a pooled task.
	ErrTaskPanicked = errors.New("tenant task panicked")
)

// Task is one unit of work executed under a tenant binding.
type Task func(ctx context.Context) error

type poolJob struct {
	ctx      context.Context
	tenantID string
	fn       Task
	result   chan error
}

// Pool is a bounded worker pool that binds a fresh [Scope] around every task
// and clears it before the worker picks up the next one.
type Pool struct {
	jobs      chan poolJob
	done      chan struct{}
	mu        sync.RWMutex
	wg        sync.WaitGroup
	closed    bool
	closeOnce sync.Once
	bound     atomic.Int64
	logger    pslog.Logger
}

// NewPool starts workers goroutines reading from a queue of the given depth.
func NewPool(workers, queue int, logger pslog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	p := &Pool{
		jobs:   make(chan poolJob, queue),
		done:   make(chan struct{}),
		logger: logging.WithSubsystem(logger, "tenancy", "pool"),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobs:
			p.execute(job)
		case <-p.done:
			for {
				select {
				case job := <-p.jobs:
					p.execute(job)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) execute(job poolJob) {
	scope := &Scope{}
	var err error
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("tenancy.pool.task_panic", "tenant_id", job.tenantID, "panic", r)
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
		scope.Clear()
		p.bound.Add(-1)
		job.result <- err
	}()

	p.bound.Add(1)
	if err = scope.Set(job.tenantID); err != nil {
		return
	}
	err = job.fn(NewContext(job.ctx, scope))
}

// Submit queues fn to run bound to tenantID. The returned channel receives the
// task result exactly once.
func (p *Pool) Submit(ctx context.Context, tenantID string, fn Task) (<-chan error, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidTenantID
	}
	if fn == nil {
		return nil, errors.New("tenant pool task is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	job := poolJob{ctx: ctx, tenantID: tenantID, fn: fn, result: make(chan error, 1)}
	select {
	case p.jobs <- job:
		return job.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do submits fn and waits for its result.
func (p *Pool) Do(ctx context.Context, tenantID string, fn Task) error {
	result, err := p.Submit(ctx, tenantID, fn)
	if err != nil {
		return err
	}
	if ctx == nil {
		return <-result
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Bound reports how many workers currently hold a tenant binding.
func (p *Pool) Bound() int64 {
	return p.bound.Load()
}

// Close stops accepting tasks, runs the queued ones and waits for the workers.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.done)
		p.mu.Unlock()
		p.wg.Wait()
	})
}
