package obs

import (
	"sync/atomic"
	"time"
)

// Outcome classifies what happened to one incoming fill event.
type Outcome uint8

const (
	_outcome_beg Outcome = iota
	OutcomeReplicated
	OutcomeDropDisabled
	OutcomeDropDuplicate
	OutcomeDropBelowMinimum
	OutcomeDropNoRule
	OutcomeFailedPermanent
	OutcomeFailedTransient
	_outcome_end
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReplicated:
		return "replicated"
	case OutcomeDropDisabled:
		return "drop_disabled"
	case OutcomeDropDuplicate:
		return "drop_duplicate"
	case OutcomeDropBelowMinimum:
		return "drop_below_minimum"
	case OutcomeDropNoRule:
		return "drop_no_rule"
	case OutcomeFailedPermanent:
		return "failed_permanent"
	case OutcomeFailedTransient:
		return "failed_transient"
	default:
		return "unknown"
	}
}

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	outcomeCounts [int(_outcome_end)]uint64
	queueDrops    uint64
	reconnects    uint64

	dispatchLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	OutcomeCounts   map[Outcome]uint64
	QueueDrops      uint64
	Reconnects      uint64
	DispatchLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncOutcome increments the counter for one replication outcome.
func (m *Metrics) IncOutcome(outcome Outcome) {
	if m == nil {
		return
	}
	idx := int(outcome)
	if idx > 0 && idx < len(m.outcomeCounts) {
		atomic.AddUint64(&m.outcomeCounts[idx], 1)
	}
}

// IncQueueDrop records an order discarded because the dispatch queue was full.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncReconnect records one supervisor session re-establishment.
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.reconnects, 1)
}

// ObserveDispatch measures end-to-end order submission latency.
func (m *Metrics) ObserveDispatch(d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	outcomes := make(map[Outcome]uint64)
	for i := range m.outcomeCounts {
		if v := atomic.LoadUint64(&m.outcomeCounts[i]); v > 0 {
			outcomes[Outcome(i)] = v
		}
	}
	return Snapshot{
		OutcomeCounts:   outcomes,
		QueueDrops:      atomic.LoadUint64(&m.queueDrops),
		Reconnects:      atomic.LoadUint64(&m.reconnects),
		DispatchLatency: m.dispatchLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
