package bookstack

import "sync/atomic"

// Metrics is a small set of process-lifetime counters, explicitly constructed
// and injected into the components that need it.
type Metrics struct {
	remoteRequests atomic.Int64
	remoteErrors   atomic.Int64
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	batchItems     atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) remoteRequest() {
	if m != nil {
		m.remoteRequests.Add(1)
	}
}

func (m *Metrics) remoteError() {
	if m != nil {
		m.remoteErrors.Add(1)
	}
}

func (m *Metrics) cacheHit() {
	if m != nil {
		m.cacheHits.Add(1)
	}
}

func (m *Metrics) cacheMiss() {
	if m != nil {
		m.cacheMisses.Add(1)
	}
}

func (m *Metrics) batchItem() {
	if m != nil {
		m.batchItems.Add(1)
	}
}

// Snapshot returns current counter values for health reporting.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	return map[string]int64{
		"remote_requests": m.remoteRequests.Load(),
		"remote_errors":   m.remoteErrors.Load(),
		"cache_hits":      m.cacheHits.Load(),
		"cache_misses":    m.cacheMisses.Load(),
		"batch_items":     m.batchItems.Load(),
	}
}
