package sessionguard

import (
	"sync"
	"testing"
)

func TestMetricsDisabledDropsIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("disabled metrics recorded %d", got)
	}
	if m.Enabled() {
		t.Fatal("Enabled() = true for a disabled table")
	}
}

func TestMetricsIncrementAndValue(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	for i := 0; i < 5; i++ {
		m.Inc(MetricValidateSuccess)
	}
	m.Inc(MetricValidateRejected)

	if got := m.Value(MetricValidateSuccess); got != 5 {
		t.Fatalf("MetricValidateSuccess = %d, want 5", got)
	}
	if got := m.Value(MetricValidateRejected); got != 1 {
		t.Fatalf("MetricValidateRejected = %d, want 1", got)
	}
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("untouched counter = %d", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics

	m.Inc(MetricLoginSuccess)
	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("nil metrics returned nonzero value")
	}
	if m.Enabled() {
		t.Fatal("nil metrics report enabled")
	}
	snap := m.Snapshot()
	if snap.Counters == nil {
		t.Fatal("nil metrics snapshot has nil counter map")
	}
}

func TestMetricsOutOfRangeIDIgnored(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricID(9999))
	if got := m.Value(MetricID(9999)); got != 0 {
		t.Fatalf("out-of-range counter = %d", got)
	}
}

func TestMetricsConcurrentIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricLoginSuccess)
				m.Inc(MetricRateLimitBlocked)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricLoginSuccess); got != workers*perWorker {
		t.Fatalf("MetricLoginSuccess = %d, want %d", got, workers*perWorker)
	}
	if got := m.Value(MetricRateLimitBlocked); got != workers*perWorker {
		t.Fatalf("MetricRateLimitBlocked = %d, want %d", got, workers*perWorker)
	}
}

func TestMetricsSnapshotCoversAllCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricLogout)
	m.Inc(MetricLogout)
	m.Inc(MetricBlacklistDegraded)

	snap := m.Snapshot()
	if len(snap.Counters) != int(metricIDCount) {
		t.Fatalf("snapshot has %d counters, want %d", len(snap.Counters), metricIDCount)
	}
	if snap.Counters[MetricLogout] != 2 {
		t.Fatalf("snapshot MetricLogout = %d", snap.Counters[MetricLogout])
	}
	if snap.Counters[MetricBlacklistDegraded] != 1 {
		t.Fatalf("snapshot MetricBlacklistDegraded = %d", snap.Counters[MetricBlacklistDegraded])
	}

	// Snapshot is a copy; later increments do not show up in it.
	m.Inc(MetricLogout)
	if snap.Counters[MetricLogout] != 2 {
		t.Fatal("snapshot mutated after increment")
	}
}

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricValidateSuccess)
		}
	})
}
