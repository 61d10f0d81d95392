package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"

	tenantAuth "github.com/MrEthical07/tenantAuth"
	"github.com/MrEthical07/tenantAuth/metrics/export/internaldefs"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// healthTimeout bounds the cache ping made on each collection.
const healthTimeout = 2 * time.Second

type metricsSource interface {
	MetricsSnapshot() tenantAuth.MetricsSnapshot
	AuditDropped() uint64
}

// healthSource is optional. *tenantAuth.Engine implements it.
type healthSource interface {
	Health(ctx context.Context) tenantAuth.HealthStatus
}

// observeFunc records one instrument from the snapshot taken for the cycle.
type observeFunc func(ctx context.Context, o metric.Observer, snap tenantAuth.MetricsSnapshot)

// OTelExporter publishes engine metrics as observable instruments read on
// each collection cycle: login, token, tenant and lock counters, the
// validation latency buckets, audit drops and, when the source can report
// it, cache health.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	observe      []observeFunc
}

// NewOTelExporter registers the engine's instruments on meter.
func NewOTelExporter(meter metric.Meter, engine *tenantAuth.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments read from source. Cache
// health gauges are added when source also has a Health method.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	r := &registrar{meter: meter}
	for _, def := range internaldefs.CounterDefs {
		r.counter(def)
	}
	for _, def := range internaldefs.HistogramDefs {
		r.histogram(def)
	}
	r.auditDropped(source)
	if hs, ok := source.(healthSource); ok {
		r.cacheHealth(hs)
	}
	if r.err != nil {
		return nil, r.err
	}

	exporter := &OTelExporter{source: source, observe: r.observe}
	registration, err := meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		snap := exporter.source.MetricsSnapshot()
		for _, fn := range exporter.observe {
			fn(ctx, o, snap)
		}
		return nil
	}, r.instruments...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	exporter.registration = registration
	return exporter, nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

// registrar creates instruments and the closures that observe them. The
// first error stops further registration.
type registrar struct {
	meter       metric.Meter
	instruments []metric.Observable
	observe     []observeFunc
	err         error
}

func (r *registrar) add(ins metric.Observable, fn observeFunc) {
	r.instruments = append(r.instruments, ins)
	r.observe = append(r.observe, fn)
}

func (r *registrar) counter(def internaldefs.CounterDef) {
	if r.err != nil {
		return
	}
	ins, err := r.meter.Int64ObservableCounter(def.Name,
		metric.WithDescription(def.Help), metric.WithUnit("{event}"))
	if err != nil {
		r.err = fmt.Errorf("create observable counter %s: %w", def.Name, err)
		return
	}
	id := def.ID
	r.add(ins, func(_ context.Context, o metric.Observer, snap tenantAuth.MetricsSnapshot) {
		o.ObserveInt64(ins, int64(snap.Counters[id]))
	})
}

// histogram exports cumulative bucket gauges plus a count gauge; OTel has no
// observable histogram instrument.
func (r *registrar) histogram(def internaldefs.HistogramDef) {
	if r.err != nil {
		return
	}
	buckets := make([]metric.Int64ObservableGauge, len(internaldefs.HistogramBoundSuffix))
	for i, suffix := range internaldefs.HistogramBoundSuffix {
		name := def.Name + "_bucket_le_" + suffix
		ins, err := r.meter.Int64ObservableGauge(name,
			metric.WithDescription("Cumulative "+def.Help+" bucket count."), metric.WithUnit("{validation}"))
		if err != nil {
			r.err = fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			return
		}
		buckets[i] = ins
		r.instruments = append(r.instruments, ins)
	}
	countName := def.Name + "_count"
	count, err := r.meter.Int64ObservableGauge(countName,
		metric.WithDescription(def.Help+" sample count."), metric.WithUnit("{validation}"))
	if err != nil {
		r.err = fmt.Errorf("create histogram count gauge %s: %w", countName, err)
		return
	}

	id := def.ID
	r.add(count, func(_ context.Context, o metric.Observer, snap tenantAuth.MetricsSnapshot) {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[id]))
		for i, ins := range buckets {
			o.ObserveInt64(ins, int64(cumulative[i]))
		}
		o.ObserveInt64(count, int64(cumulative[len(cumulative)-1]))
	})
}

func (r *registrar) auditDropped(source metricsSource) {
	if r.err != nil {
		return
	}
	ins, err := r.meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp), metric.WithUnit("{event}"))
	if err != nil {
		r.err = fmt.Errorf("create audit dropped counter: %w", err)
		return
	}
	r.add(ins, func(_ context.Context, o metric.Observer, _ tenantAuth.MetricsSnapshot) {
		o.ObserveInt64(ins, int64(source.AuditDropped()))
	})
}

func (r *registrar) cacheHealth(source healthSource) {
	if r.err != nil {
		return
	}
	up, err := r.meter.Int64ObservableGauge(internaldefs.CacheUpName,
		metric.WithDescription(internaldefs.CacheUpHelp))
	if err != nil {
		r.err = fmt.Errorf("create cache up gauge: %w", err)
		return
	}
	latency, err := r.meter.Float64ObservableGauge(internaldefs.CacheLatencyName,
		metric.WithDescription(internaldefs.CacheLatencyHelp), metric.WithUnit("s"))
	if err != nil {
		r.err = fmt.Errorf("create cache latency gauge: %w", err)
		return
	}
	r.instruments = append(r.instruments, latency)
	r.add(up, func(ctx context.Context, o metric.Observer, _ tenantAuth.MetricsSnapshot) {
		ctx, cancel := context.WithTimeout(ctx, healthTimeout)
		defer cancel()
		status := source.Health(ctx)
		var v int64
		if status.CacheAvailable {
			v = 1
		}
		o.ObserveInt64(up, v)
		o.ObserveFloat64(latency, status.CacheLatency.Seconds())
	})
}
