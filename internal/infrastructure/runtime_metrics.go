package infrastructure

import (
	"context"
	"runtime"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RuntimeMetrics samples the Go runtime after each pipeline step. The whole
// unified table lives in memory, so heap size per step is the number to watch.
type RuntimeMetrics struct {
	goRoutines metric.Int64Gauge
	heapAlloc  metric.Int64Gauge
	heapSys    metric.Int64Gauge
	gcCount    metric.Int64Gauge
}

// RuntimeStats is one sample of the Go runtime
type RuntimeStats struct {
	GoRoutines int64
	HeapAlloc  int64
	HeapSys    int64
	GCCount    int64
}

// NewRuntimeMetrics creates the runtime gauges on meter
func NewRuntimeMetrics(meter metric.Meter) (*RuntimeMetrics, error) {
	goRoutines, err := meter.Int64Gauge(
		"sczmerge_goroutines",
		metric.WithDescription("Number of active goroutines after a step"),
	)
	if err != nil {
		return nil, err
	}

	heapAlloc, err := meter.Int64Gauge(
		"sczmerge_heap_alloc",
		metric.WithDescription("Heap bytes in use after a step"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	heapSys, err := meter.Int64Gauge(
		"sczmerge_heap_sys",
		metric.WithDescription("Heap bytes obtained from the OS after a step"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	gcCount, err := meter.Int64Gauge(
		"sczmerge_gc_cycles",
		metric.WithDescription("Completed GC cycles after a step"),
	)
	if err != nil {
		return nil, err
	}

	return &RuntimeMetrics{
		goRoutines: goRoutines,
		heapAlloc:  heapAlloc,
		heapSys:    heapSys,
		gcCount:    gcCount,
	}, nil
}

// ReadRuntimeStats samples the runtime without recording anything
func ReadRuntimeStats() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return RuntimeStats{
		GoRoutines: int64(runtime.NumGoroutine()),
		HeapAlloc:  int64(mem.HeapAlloc),
		HeapSys:    int64(mem.HeapSys),
		GCCount:    int64(mem.NumGC),
	}
}

// Collect samples the runtime and records it under the given step
func (rm *RuntimeMetrics) Collect(ctx context.Context, stepID string) RuntimeStats {
	stats := ReadRuntimeStats()
	if rm == nil {
		return stats
	}

	attrs := metric.WithAttributes(attribute.String("step", stepID))
	rm.goRoutines.Record(ctx, stats.GoRoutines, attrs)
	rm.heapAlloc.Record(ctx, stats.HeapAlloc, attrs)
	rm.heapSys.Record(ctx, stats.HeapSys, attrs)
	rm.gcCount.Record(ctx, stats.GCCount, attrs)

	return stats
}
