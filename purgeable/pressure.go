package purgeable

import (
	"context"
	"runtime/metrics"
	"time"
)

const heapMetric = "/memory/classes/heap/objects:bytes"

// Monitor samples the Go heap and signals memory pressure when live heap
// objects exceed a limit. Connect it to a cache with
//
//	stop := cache.Subscribe(mon.C())
//	go mon.Run(ctx)
type Monitor struct {
	limit    uint64
	interval time.Duration
	signals  chan struct{}
}

// NewMonitor creates a monitor that signals when the heap exceeds limit
// bytes, checking every interval.
func NewMonitor(limit uint64, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{
		limit:    limit,
		interval: interval,
		signals:  make(chan struct{}, 1),
	}
}

// C returns the pressure signal channel. It is closed when Run returns.
func (m *Monitor) C() <-chan struct{} { return m.signals }

// HeapBytes reads the current size of live heap objects.
func (m *Monitor) HeapBytes() uint64 {
	sample := []metrics.Sample{{Name: heapMetric}}
	metrics.Read(sample)
	if sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return sample[0].Value.Uint64()
}

// Check signals once if the heap is over the limit and reports whether it
// was. A signal already waiting to be consumed is not duplicated.
func (m *Monitor) Check() bool {
	heap := m.HeapBytes()
	if heap <= m.limit {
		return false
	}
	slogger().Debug("purgeable: heap over limit", "heap", heap, "limit", m.limit)
	select {
	case m.signals <- struct{}{}:
	default:
	}
	return true
}

// Run checks the heap every interval until ctx is done. Run must be called
// at most once.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.signals)
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Check()
		}
	}
}
