package qmux

import (
	"sync/atomic"
	"time"

	"github.com/behrlich/go-qmux/internal/interfaces"
)

// LatencyBuckets defines the call-latency histogram buckets in
// nanoseconds, covering from 100us (faster than any real device round
// trip) to 10s (twice the default call timeout).
var LatencyBuckets = []uint64{
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	50_000_000,     // 50ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	5_000_000_000,  // 5s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks call-level statistics for a single reactor.
type Metrics struct {
	Calls        atomic.Uint64 // Total calls submitted
	Responses    atomic.Uint64 // Successful responses
	Failures     atomic.Uint64 // QMI-level failure responses
	Timeouts     atomic.Uint64 // Calls that timed out
	WriteErrors  atomic.Uint64 // Calls that failed to write
	Indications  atomic.Uint64 // Indications dispatched, whether or not a subscriber is installed
	BytesIn      atomic.Uint64 // Total bytes read off the device
	BytesOut     atomic.Uint64 // Total bytes written to the device

	TransactionTableDepthTotal atomic.Uint64
	TransactionTableDepthCount atomic.Uint64
	MaxTransactionTableDepth   atomic.Uint32

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordCall records a call submission.
func (m *Metrics) RecordCall() {
	m.Calls.Add(1)
}

// RecordResponse records a successful response and its latency.
func (m *Metrics) RecordResponse(latencyNs uint64) {
	m.Responses.Add(1)
	m.recordLatency(latencyNs)
}

// RecordFailure records a QMI-level failure response and its latency.
func (m *Metrics) RecordFailure(latencyNs uint64) {
	m.Failures.Add(1)
	m.recordLatency(latencyNs)
}

// RecordTimeout records a call that timed out.
func (m *Metrics) RecordTimeout() {
	m.Timeouts.Add(1)
}

// RecordWriteError records a call that failed at the write step.
func (m *Metrics) RecordWriteError() {
	m.WriteErrors.Add(1)
}

// RecordIndication records a delivered indication.
func (m *Metrics) RecordIndication() {
	m.Indications.Add(1)
}

// RecordBytesIn adds n to the running count of bytes read off the device.
func (m *Metrics) RecordBytesIn(n uint64) {
	m.BytesIn.Add(n)
}

// RecordBytesOut adds n to the running count of bytes written to the device.
func (m *Metrics) RecordBytesOut(n uint64) {
	m.BytesOut.Add(n)
}

// RecordTransactionTableDepth samples the current table size.
func (m *Metrics) RecordTransactionTableDepth(depth uint32) {
	m.TransactionTableDepthTotal.Add(uint64(depth))
	m.TransactionTableDepthCount.Add(1)
	for {
		current := m.MaxTransactionTableDepth.Load()
		if depth <= current {
			break
		}
		if m.MaxTransactionTableDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the reactor as stopped, fixing uptime calculations.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics' counters plus
// derived statistics.
type MetricsSnapshot struct {
	Calls       uint64
	Responses   uint64
	Failures    uint64
	Timeouts    uint64
	WriteErrors uint64
	Indications uint64
	BytesIn     uint64
	BytesOut    uint64

	AvgTransactionTableDepth float64
	MaxTransactionTableDepth uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	TotalOps  uint64
	ErrorRate float64
}

// Snapshot returns a point-in-time snapshot of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Calls:                    m.Calls.Load(),
		Responses:                m.Responses.Load(),
		Failures:                 m.Failures.Load(),
		Timeouts:                 m.Timeouts.Load(),
		WriteErrors:              m.WriteErrors.Load(),
		Indications:              m.Indications.Load(),
		BytesIn:                  m.BytesIn.Load(),
		BytesOut:                 m.BytesOut.Load(),
		MaxTransactionTableDepth: m.MaxTransactionTableDepth.Load(),
	}

	snap.TotalOps = snap.Responses + snap.Failures + snap.Timeouts + snap.WriteErrors

	depthTotal := m.TransactionTableDepthTotal.Load()
	depthCount := m.TransactionTableDepthCount.Load()
	if depthCount > 0 {
		snap.AvgTransactionTableDepth = float64(depthTotal) / float64(depthCount)
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(snap.Timeouts+snap.WriteErrors+snap.Failures) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveCall(uint8, uint64, bool)       {}
func (NoOpObserver) ObserveResponse(uint8, uint64, uint16) {}
func (NoOpObserver) ObserveTimeout(uint8)                  {}
func (NoOpObserver) ObserveWriteError(uint8)               {}
func (NoOpObserver) ObserveIndication(uint8)               {}
func (NoOpObserver) ObserveTransactionTableDepth(uint32)   {}
func (NoOpObserver) ObserveBytesIn(uint64)                 {}
func (NoOpObserver) ObserveBytesOut(uint64)                {}

// MetricsObserver implements interfaces.Observer on top of Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveCall(serviceID uint8, latencyNs uint64, success bool) {
	o.metrics.RecordCall()
}

func (o *MetricsObserver) ObserveResponse(serviceID uint8, latencyNs uint64, qmiError uint16) {
	if qmiError == 0 {
		o.metrics.RecordResponse(latencyNs)
	} else {
		o.metrics.RecordFailure(latencyNs)
	}
}

func (o *MetricsObserver) ObserveTimeout(serviceID uint8) {
	o.metrics.RecordTimeout()
}

func (o *MetricsObserver) ObserveWriteError(serviceID uint8) {
	o.metrics.RecordWriteError()
}

func (o *MetricsObserver) ObserveIndication(serviceID uint8) {
	o.metrics.RecordIndication()
}

func (o *MetricsObserver) ObserveTransactionTableDepth(depth uint32) {
	o.metrics.RecordTransactionTableDepth(depth)
}

func (o *MetricsObserver) ObserveBytesIn(n uint64) {
	o.metrics.RecordBytesIn(n)
}

func (o *MetricsObserver) ObserveBytesOut(n uint64) {
	o.metrics.RecordBytesOut(n)
}

var _ interfaces.Observer = (*MetricsObserver)(nil)
var _ interfaces.Observer = (*NoOpObserver)(nil)
