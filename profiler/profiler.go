// Package profiler - Runtime and per-operation latency profiling.
package profiler

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// MetricsCollector defines the interface for collecting custom metrics.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// RuntimeProfiler tracks operation latencies, custom metrics and process memory.
//
// All methods are safe for concurrent use. Start is optional: without it the profiler
// still records operations and answers Snapshot, it just does not sample memory or log
// periodic reports.
type RuntimeProfiler struct {
	reportInterval time.Duration
	sampleInterval time.Duration
	logger         *zap.SugaredLogger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	memStats    runtime.MemStats
	maxSamples  int
	lastGCCount uint32

	customMetrics  map[string]*tracker
	collectors     []MetricsCollector
	operationTimes map[string]*tracker
}

// tracker keeps a bounded window of samples plus lifetime count and extremes.
type tracker struct {
	values []float64
	min    float64
	max    float64
	count  int64
}

func (t *tracker) add(value float64, window int) {
	if t.count == 0 || value < t.min {
		t.min = value
	}
	if t.count == 0 || value > t.max {
		t.max = value
	}
	t.values = append(t.values, value)
	if len(t.values) > window {
		t.values = t.values[1:]
	}
	t.count++
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to log status reports (default: 30s)
	ReportInterval time.Duration
	// SampleInterval specifies how often to sample memory and collectors (default: 1s)
	SampleInterval time.Duration
	// MaxSamples specifies the window kept per operation or metric (default: 600)
	MaxSamples int
	// Logger receives the periodic reports. Nil disables them.
	Logger *zap.SugaredLogger
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval == 0 {
		opts.ReportInterval = 30 * time.Second
	}
	if opts.SampleInterval == 0 {
		opts.SampleInterval = time.Second
	}
	if opts.MaxSamples == 0 {
		opts.MaxSamples = 600
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		sampleInterval: opts.SampleInterval,
		logger:         opts.Logger,
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		maxSamples:     opts.MaxSamples,
		customMetrics:  make(map[string]*tracker),
		operationTimes: make(map[string]*tracker),
	}
}

// Start begins sampling and periodic reporting. Calling it twice is a no-op.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}

	rp.running = true
	rp.startTime = time.Now()

	rp.wg.Add(2)
	go rp.loop(rp.sampleInterval, rp.sample)
	go rp.loop(rp.reportInterval, rp.emitStatusReport)
}

// Stop stops the background loops and waits for them to exit.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	rp.mu.Unlock()

	rp.cancel()
	rp.wg.Wait()
}

func (rp *RuntimeProfiler) loop(interval time.Duration, fn func()) {
	defer rp.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rp.ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// AddMetricsCollector registers a collector polled on every sample tick.
func (rp *RuntimeProfiler) AddMetricsCollector(collector MetricsCollector) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, collector)
}

// RecordMetric records a custom metric value.
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.record(rp.customMetrics, name, value)
}

func (rp *RuntimeProfiler) record(into map[string]*tracker, name string, value float64) {
	t, ok := into[name]
	if !ok {
		t = &tracker{values: make([]float64, 0, rp.maxSamples)}
		into[name] = t
	}
	t.add(value, rp.maxSamples)
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.RecordDuration(name, time.Since(start))
	}
}

// RecordDuration records the completion time of an operation.
func (rp *RuntimeProfiler) RecordDuration(name string, d time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.record(rp.operationTimes, name, float64(d)/float64(time.Millisecond))
}

func (rp *RuntimeProfiler) sample() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	runtime.ReadMemStats(&rp.memStats)
	for _, collector := range rp.collectors {
		for name, value := range collector.CollectMetrics() {
			rp.record(rp.customMetrics, name, value)
		}
	}
}

// Summary describes the sample window of one operation or metric. Durations are in
// milliseconds.
type Summary struct {
	Count   int64   `json:"count"`
	Samples int     `json:"samples"`
	Mean    float64 `json:"mean"`
	P50     float64 `json:"p50"`
	P95     float64 `json:"p95"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

func (t *tracker) summary() Summary {
	sorted := slices.Clone(t.values)
	slices.Sort(sorted)
	s := Summary{Count: t.count, Samples: len(sorted), Min: t.min, Max: t.max}
	if len(sorted) == 0 {
		return s
	}
	s.Mean = stat.Mean(sorted, nil)
	s.P50 = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	s.P95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return s
}

// Snapshot is a point-in-time view of the profiler.
type Snapshot struct {
	Uptime     string             `json:"uptime"`
	Goroutines int                `json:"goroutines"`
	HeapAlloc  string             `json:"heap_alloc"`
	NumGC      uint32             `json:"num_gc"`
	Operations map[string]Summary `json:"operations"`
	Metrics    map[string]Summary `json:"metrics"`
}

// Snapshot returns the current operation and metric summaries.
func (rp *RuntimeProfiler) Snapshot() Snapshot {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	runtime.ReadMemStats(&rp.memStats)
	snap := Snapshot{
		Uptime:     time.Since(rp.startTime).Truncate(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  formatBytes(rp.memStats.HeapAlloc),
		NumGC:      rp.memStats.NumGC,
		Operations: make(map[string]Summary, len(rp.operationTimes)),
		Metrics:    make(map[string]Summary, len(rp.customMetrics)),
	}
	for name, t := range rp.operationTimes {
		snap.Operations[name] = t.summary()
	}
	for name, t := range rp.customMetrics {
		snap.Metrics[name] = t.summary()
	}
	return snap
}

// Operation returns the summary for one operation and whether it has been recorded.
func (rp *RuntimeProfiler) Operation(name string) (Summary, bool) {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	t, ok := rp.operationTimes[name]
	if !ok {
		return Summary{}, false
	}
	return t.summary(), true
}

func (rp *RuntimeProfiler) emitStatusReport() {
	snap := rp.Snapshot()

	rp.mu.Lock()
	newGC := snap.NumGC - rp.lastGCCount
	rp.lastGCCount = snap.NumGC
	rp.mu.Unlock()

	rp.logger.Infow("runtime status",
		"uptime", snap.Uptime,
		"goroutines", snap.Goroutines,
		"heap_alloc", snap.HeapAlloc,
		"gc_cycles", newGC,
	)
	for name, s := range snap.Operations {
		rp.logger.Infow("operation timing",
			"operation", name,
			"count", s.Count,
			"mean_ms", fmt.Sprintf("%.2f", s.Mean),
			"p95_ms", fmt.Sprintf("%.2f", s.P95),
			"max_ms", fmt.Sprintf("%.2f", s.Max),
		)
	}
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
