package otel

import (
	"context"
	"sync"
	"testing"
	"time"

	tenantAuth "github.com/MrEthical07/tenantAuth"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot tenantAuth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() tenantAuth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := tenantAuth.MetricsSnapshot{
		Counters:   make(map[tenantAuth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[tenantAuth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("tenantauth-test")

	src := &fakeSource{
		snapshot: tenantAuth.MetricsSnapshot{
			Counters: map[tenantAuth.MetricID]uint64{
				tenantAuth.MetricLoginSuccess: 3,
			},
			Histograms: map[tenantAuth.MetricID][]uint64{
				tenantAuth.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("tenantauth-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("tenantauth-test")

	src := &fakeSource{
		snapshot: tenantAuth.MetricsSnapshot{
			Counters: map[tenantAuth.MetricID]uint64{
				tenantAuth.MetricLoginSuccess: 1,
			},
			Histograms: map[tenantAuth.MetricID][]uint64{
				tenantAuth.MetricValidateLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[tenantAuth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

func TestExporterReportsSnapshotValues(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("tenantauth-test")

	src := &fakeSource{
		snapshot: tenantAuth.MetricsSnapshot{
			Counters: map[tenantAuth.MetricID]uint64{
				tenantAuth.MetricLockContended: 4,
			},
			Histograms: map[tenantAuth.MetricID][]uint64{
				tenantAuth.MetricValidateLatency: {2, 1, 0, 0, 0, 0, 0, 0},
			},
		},
		dropped: 5,
	}
	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	values := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					values[m.Name] = data.DataPoints[0].Value
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					values[m.Name] = data.DataPoints[0].Value
				}
			}
		}
	}

	if values["tenantauth_lock_contended_total"] != 4 {
		t.Fatalf("lock_contended = %d, want 4", values["tenantauth_lock_contended_total"])
	}
	if values["tenantauth_audit_dropped_total"] != 5 {
		t.Fatalf("audit_dropped = %d, want 5", values["tenantauth_audit_dropped_total"])
	}
	if values["tenantauth_validate_latency_seconds_bucket_le_0_01"] != 3 {
		t.Fatalf("cumulative bucket = %d, want 3", values["tenantauth_validate_latency_seconds_bucket_le_0_01"])
	}
	if values["tenantauth_validate_latency_seconds_count"] != 3 {
		t.Fatalf("count = %d, want 3", values["tenantauth_validate_latency_seconds_count"])
	}
}

type healthySource struct {
	fakeSource
	status tenantAuth.HealthStatus
	pings  int
}

func (h *healthySource) Health(ctx context.Context) tenantAuth.HealthStatus {
	h.pings++
	if _, ok := ctx.Deadline(); !ok {
		return tenantAuth.HealthStatus{}
	}
	return h.status
}

func TestExporterReportsCacheHealth(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("tenantauth-test")

	src := &healthySource{status: tenantAuth.HealthStatus{CacheAvailable: true, CacheLatency: 3 * time.Millisecond}}
	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	var up int64 = -1
	var latency float64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Gauge[int64]:
				if m.Name == "tenantauth_cache_up" && len(data.DataPoints) > 0 {
					up = data.DataPoints[0].Value
				}
			case metricdata.Gauge[float64]:
				if m.Name == "tenantauth_cache_latency_seconds" && len(data.DataPoints) > 0 {
					latency = data.DataPoints[0].Value
				}
			}
		}
	}
	if up != 1 {
		t.Fatalf("cache_up = %d, want 1 (the ping must carry a deadline)", up)
	}
	if latency != 0.003 {
		t.Fatalf("cache_latency = %v, want 0.003", latency)
	}
	if src.pings != 1 {
		t.Fatalf("expected one health ping per collection, got %d", src.pings)
	}
}

func TestExporterWithoutHealthSkipsCacheGauges(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("tenantauth-test")

	exp, err := NewOTelExporterFromSource(meter, &fakeSource{})
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "tenantauth_cache_up" {
				t.Fatal("a source without Health must not export cache gauges")
			}
		}
	}
}
