package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/pslog"

	"github.com/MrEthical07/tenantAuth/internal/logging"
)

// Config controls dispatcher buffering and drop reporting.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit drop instead of waiting when the buffer is full.
	DropIfFull bool
	// Logger receives audit.dropped and audit.sink.panic entries.
	Logger pslog.Logger
	// Now stamps events emitted without a timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Dispatcher relays audit events to a sink on its own goroutine, so login and
// validation never wait on audit I/O.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	logger    pslog.Logger
	now       func() time.Time
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher that forwards to sink. It returns nil when
// cfg.Enabled is false; every method is safe on a nil Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: logging.WithSubsystem(cfg.Logger, "audit"),
		now:    now,
		ch:     make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

// deliver hands event to the sink. A panicking sink loses that event only.
func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("audit.sink.panic",
				"event_type", event.EventType,
				"tenant_id", event.TenantID,
				"panic", r,
			)
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit queues event. With DropIfFull a full buffer drops the event; otherwise
// Emit waits for room until ctx is done, which also counts as a drop.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now().UTC()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.drop(event, "buffer_full")
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.drop(event, "context_done")
	case <-d.done:
	}
}

func (d *Dispatcher) drop(event Event, reason string) {
	total := d.dropped.Add(1)
	d.logger.Warn("audit.dropped",
		"event_type", event.EventType,
		"tenant_id", event.TenantID,
		"reason", reason,
		"dropped_total", total,
	)
}

// Close stops accepting events and waits until the buffered ones reach the
// sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns how many events never reached the buffer.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
