package metrics

import "sync/atomic"

// Tracker aggregates the measurements the session records while
// processing events.
type Tracker struct {
	// ResolveLatencyMs measures wall time spent resolving one detection,
	// in milliseconds.
	ResolveLatencyMs *Histogram

	// CorrectionDepth measures how many historical entries each
	// retroactive correction re-resolved.
	CorrectionDepth *Histogram

	droppedEvents   atomic.Int64
	anomalousSpends atomic.Int64
	resets          atomic.Int64
}

// NewTracker creates a metrics aggregate with default bounds.
func NewTracker() *Tracker {
	return &Tracker{
		ResolveLatencyMs: NewHistogram(10000),
		CorrectionDepth:  NewHistogram(1000),
	}
}

// RecordDrop counts one event dropped beyond the reordering window.
func (t *Tracker) RecordDrop() {
	t.droppedEvents.Add(1)
}

// RecordAnomalousSpend counts one spend beyond the tolerance.
func (t *Tracker) RecordAnomalousSpend() {
	t.anomalousSpends.Add(1)
}

// RecordReset counts one hypothesis reset.
func (t *Tracker) RecordReset() {
	t.resets.Add(1)
}

// DroppedEvents returns the total dropped event count.
func (t *Tracker) DroppedEvents() int64 {
	return t.droppedEvents.Load()
}

// AnomalousSpends returns the total anomalous spend count.
func (t *Tracker) AnomalousSpends() int64 {
	return t.anomalousSpends.Load()
}

// Resets returns the total hypothesis reset count.
func (t *Tracker) Resets() int64 {
	return t.resets.Load()
}
