package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/gestionlocal/cuenta"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot cuenta.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() cuenta.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := cuenta.MetricsSnapshot{
		Counters:   make(map[cuenta.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[cuenta.MetricID][]uint64, len(f.snapshot.Histograms)),
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
	meter := provider.Meter("cuenta-test")

	src := &fakeSource{
		snapshot: cuenta.MetricsSnapshot{
			Counters: map[cuenta.MetricID]uint64{
				cuenta.MetricLoginSuccess: 3,
			},
			Histograms: map[cuenta.MetricID][]uint64{
				cuenta.MetricAPILatency: {1, 1, 1, 1, 1, 1, 1, 1},
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
	meter := provider.Meter("cuenta-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("cuenta-test")

	src := &fakeSource{
		snapshot: cuenta.MetricsSnapshot{
			Counters: map[cuenta.MetricID]uint64{
				cuenta.MetricPinRequested: 1,
			},
			Histograms: map[cuenta.MetricID][]uint64{
				cuenta.MetricAPILatency: {1, 0, 0, 0, 0, 0, 0, 0},
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
			src.snapshot.Counters[cuenta.MetricPinRequested] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

func TestExporterReportsCounterValues(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("cuenta-test")

	src := &fakeSource{
		snapshot: cuenta.MetricsSnapshot{
			Counters: map[cuenta.MetricID]uint64{
				cuenta.MetricSubmitSuccess: 4,
			},
			Histograms: map[cuenta.MetricID][]uint64{},
		},
		dropped: 2,
	}
	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
				got[m.Name] = sum.DataPoints[0].Value
			}
		}
	}
	if got["cuenta_submit_success_total"] != 4 {
		t.Fatalf("expected submit counter 4, got %v", got)
	}
	if got["cuenta_audit_dropped_total"] != 2 {
		t.Fatalf("expected audit dropped 2, got %v", got)
	}
}
