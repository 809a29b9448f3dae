package profiling

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/danmuck/xpbridge/internal/observability"
)

// Throughput counts screens received and rendered and the encoded bytes
// behind them.
type Throughput struct {
	received atomic.Int64
	rendered atomic.Int64
	bytes    atomic.Int64
}

func (t *Throughput) AddReceived(sourceBytes int) {
	t.received.Add(1)
	if sourceBytes > 0 {
		t.bytes.Add(int64(sourceBytes))
		observability.AddReceivedBytes(sourceBytes)
	}
}

func (t *Throughput) AddRendered() {
	t.rendered.Add(1)
}

// Consume returns and resets the counters.
func (t *Throughput) Consume() (received, rendered, bytes int64) {
	return t.received.Swap(0), t.rendered.Swap(0), t.bytes.Swap(0)
}

// Monitor logs average tick rate and screen throughput once per interval.
type Monitor struct {
	interval time.Duration
	counters *Throughput

	started time.Time
	ticks   int64
}

func NewMonitor(counters *Throughput, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{interval: interval, counters: counters}
}

// Tick counts one apply-loop iteration and returns the summary line when
// the interval has elapsed. Not safe for concurrent use.
func (m *Monitor) Tick(now time.Time) (string, bool) {
	if m.started.IsZero() {
		m.started = now
	}
	m.ticks++
	elapsed := now.Sub(m.started)
	if elapsed < m.interval {
		return "", false
	}

	received, rendered, bytes := m.counters.Consume()
	fps := float64(m.ticks) / elapsed.Seconds()
	pct := 0.0
	if received > 0 {
		pct = float64(rendered) / float64(received) * 100
	}
	mbps := float64(bytes) / elapsed.Seconds() / (1024 * 1024)

	m.started = now
	m.ticks = 0
	return fmt.Sprintf("fps monitor: avg %.2f ticks/s | screens recv=%d rendered=%d (%.0f%%) | data %.2f MB/s",
		fps, received, rendered, pct, mbps), true
}
