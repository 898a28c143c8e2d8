package observability

import (
	"sync/atomic"
	"time"
)

// DeliveryStats are the mail worker's in-process counters, served on its
// health endpoint.
type DeliveryStats struct {
	claimed      atomic.Uint64
	sent         atomic.Uint64
	deadLettered atomic.Uint64

	// duration stats (nanoseconds)
	durationCount atomic.Uint64
	durationTotal atomic.Int64
	durationMax   atomic.Int64
}

func NewDeliveryStats() *DeliveryStats {
	return &DeliveryStats{}
}

func (m *DeliveryStats) IncClaimed() {
	m.claimed.Add(1)
}

func (m *DeliveryStats) IncSent() {
	m.sent.Add(1)
}

func (m *DeliveryStats) IncDeadLettered() {
	m.deadLettered.Add(1)
}

func (m *DeliveryStats) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.durationCount.Add(1)
	m.durationTotal.Add(ns)

	// max update

	for {
		curr := m.durationMax.Load()

		if ns <= curr {
			return
		}

		if m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type DeliveryStatsSnapshot struct {
	Claimed         uint64        `json:"claimed"`
	Sent            uint64        `json:"sent"`
	DeadLettered    uint64        `json:"deadLettered"`
	DurationCount   uint64        `json:"durationCount"`
	AverageDuration time.Duration `json:"averageDurationNs"`
	MaxDuration     time.Duration `json:"maxDurationNs"`
}

func (m *DeliveryStats) Snapshot() DeliveryStatsSnapshot {
	count := m.durationCount.Load()
	total := m.durationTotal.Load()
	max := m.durationMax.Load()

	var avg time.Duration

	if count > 0 {
		avg = time.Duration(total / int64(count))
	}

	return DeliveryStatsSnapshot{
		Claimed:         m.claimed.Load(),
		Sent:            m.sent.Load(),
		DeadLettered:    m.deadLettered.Load(),
		DurationCount:   count,
		AverageDuration: avg,
		MaxDuration:     time.Duration(max),
	}
}
