package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestDisabledMetricsDoNotCount(t *testing.T) {
	m := New(Config{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}

func TestConcurrentIncrementSafe(t *testing.T) {
	m := New(Config{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricLockContended)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricLockContended); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestHistogramBuckets(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatency: true})

	for _, d := range []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	} {
		m.Observe(MetricValidateLatency, d)
	}
	m.Observe(MetricLoginSuccess, time.Millisecond)

	buckets := m.Snapshot().Histograms[MetricValidateLatency]
	if len(buckets) != HistogramBuckets {
		t.Fatalf("expected %d buckets, got %d", HistogramBuckets, len(buckets))
	}
	for i, got := range buckets {
		if got != 1 {
			t.Fatalf("bucket %d: expected 1, got %d", i, got)
		}
	}
	if _, ok := m.Snapshot().Histograms[MetricLoginSuccess]; ok {
		t.Fatal("only the validate latency metric has a histogram")
	}
}

func TestLatencyRequiresFlag(t *testing.T) {
	m := New(Config{Enabled: true})
	m.Observe(MetricValidateLatency, time.Millisecond)
	if _, ok := m.Snapshot().Histograms[MetricValidateLatency]; ok {
		t.Fatal("histogram should be absent when latency is disabled")
	}
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLogout)
	m.Observe(MetricValidateLatency, time.Second)
	if m.Value(MetricLogout) != 0 || m.Enabled() {
		t.Fatal("nil metrics should read as zero and disabled")
	}
}
