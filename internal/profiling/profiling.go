// Package profiling aggregates frame pipeline timings and counters and
// emits one summary line per interval.
package profiling

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/xpbridge/internal/observability"
	"github.com/rs/zerolog/log"
)

const DefaultInterval = 60 * time.Second

// Stage identifies one timed step of the frame pipeline.
type Stage int

const (
	StageEnqueue Stage = iota
	StageDrain
	StageDecode
	StageApply
	numStages
)

var stageNames = [numStages]string{"Upload enqueue", "Drain loop", "Image decode", "Overlay apply"}
var stageLabels = [numStages]string{"enqueue", "drain", "decode", "apply"}

func (s Stage) String() string {
	if s < 0 || s >= numStages {
		return "unknown"
	}
	return stageNames[s]
}

type bucket struct {
	count int64
	total time.Duration
	max   time.Duration
}

func (b bucket) summary(name string) string {
	if b.count == 0 {
		return name + ": no samples"
	}
	avg := float64(b.total) / float64(b.count) / float64(time.Millisecond)
	peak := float64(b.max) / float64(time.Millisecond)
	return fmt.Sprintf("%s: avg %.2fms (max %.2fms, n=%d)", name, avg, peak, b.count)
}

// Snapshot is a point-in-time copy of the current window.
type Snapshot struct {
	Queued         int64            `json:"queued"`
	Dequeued       int64            `json:"dequeued"`
	Applied        int64            `json:"applied"`
	Dropped        int64            `json:"dropped"`
	DecodeFailures int64            `json:"decode_failures"`
	MaxQueueDepth  int64            `json:"max_queue_depth"`
	Samples        [numStages]int64 `json:"stage_samples"`
}

// Aggregator collects per-stage latency buckets and frame counters. Every
// recorder is a no-op when the aggregator is disabled.
type Aggregator struct {
	enabled  bool
	interval time.Duration

	mu       sync.Mutex
	buckets  [numStages]bucket
	nextEmit time.Time

	queued         atomic.Int64
	dequeued       atomic.Int64
	applied        atomic.Int64
	dropped        atomic.Int64
	decodeFailures atomic.Int64
	peakDepth      atomic.Int64

	throughput Throughput
}

func New(enabled bool, interval time.Duration) *Aggregator {
	if interval < time.Second {
		interval = time.Second
	}
	return &Aggregator{enabled: enabled, interval: interval}
}

// Disabled returns an aggregator that records nothing.
func Disabled() *Aggregator {
	return New(false, DefaultInterval)
}

func (a *Aggregator) Enabled() bool {
	return a != nil && a.enabled
}

// Throughput returns the FPS monitor counters. They are counted even
// when stage profiling is disabled.
func (a *Aggregator) Throughput() *Throughput {
	return &a.throughput
}

// Stamp returns a start time, or the zero time when disabled.
func (a *Aggregator) Stamp() time.Time {
	if !a.Enabled() {
		return time.Time{}
	}
	return time.Now()
}

// Record adds the time elapsed since start to stage. A zero start is ignored.
func (a *Aggregator) Record(stage Stage, start time.Time) {
	if !a.Enabled() || start.IsZero() {
		return
	}
	a.RecordDuration(stage, time.Since(start))
}

func (a *Aggregator) RecordDuration(stage Stage, d time.Duration) {
	if !a.Enabled() || stage < 0 || stage >= numStages {
		return
	}
	a.mu.Lock()
	b := &a.buckets[stage]
	b.count++
	b.total += d
	if d > b.max {
		b.max = d
	}
	a.mu.Unlock()
	observability.ObserveStage(stageLabels[stage], d)
}

func (a *Aggregator) RecordQueued() {
	a.count(&a.queued, observability.FrameQueued)
}

func (a *Aggregator) RecordDequeued() {
	a.count(&a.dequeued, observability.FrameDequeued)
}

func (a *Aggregator) RecordApplied() {
	a.count(&a.applied, observability.FrameApplied)
}

func (a *Aggregator) RecordDropped() {
	a.count(&a.dropped, observability.FrameDropped)
}

func (a *Aggregator) RecordDecodeFailure() {
	a.count(&a.decodeFailures, observability.FrameDecodeFailure)
}

func (a *Aggregator) count(c *atomic.Int64, outcome string) {
	if !a.Enabled() {
		return
	}
	c.Add(1)
	observability.RecordFrameEvent(outcome, 1)
}

// ObserveDepth raises the window's peak queue depth to depth if higher.
func (a *Aggregator) ObserveDepth(depth int) {
	if !a.Enabled() {
		return
	}
	d := int64(depth)
	for {
		cur := a.peakDepth.Load()
		if d <= cur {
			return
		}
		if a.peakDepth.CompareAndSwap(cur, d) {
			return
		}
	}
}

func (a *Aggregator) Snapshot() Snapshot {
	s := Snapshot{
		Queued:         a.queued.Load(),
		Dequeued:       a.dequeued.Load(),
		Applied:        a.applied.Load(),
		Dropped:        a.dropped.Load(),
		DecodeFailures: a.decodeFailures.Load(),
		MaxQueueDepth:  a.peakDepth.Load(),
	}
	a.mu.Lock()
	for i := range a.buckets {
		s.Samples[i] = a.buckets[i].count
	}
	a.mu.Unlock()
	return s
}

func (s Snapshot) empty() bool {
	if s.Queued > 0 || s.Dequeued > 0 || s.Applied > 0 || s.Dropped > 0 || s.DecodeFailures > 0 {
		return false
	}
	for _, n := range s.Samples {
		if n > 0 {
			return false
		}
	}
	return true
}

// MaybeLog emits and resets the summary once per interval when the window
// holds any sample. The first call only arms the timer.
func (a *Aggregator) MaybeLog(now time.Time) (string, bool) {
	if !a.Enabled() {
		return "", false
	}
	a.mu.Lock()
	if a.nextEmit.IsZero() {
		a.nextEmit = now.Add(a.interval)
		a.mu.Unlock()
		return "", false
	}
	if now.Before(a.nextEmit) {
		a.mu.Unlock()
		return "", false
	}
	a.nextEmit = now.Add(a.interval)
	a.mu.Unlock()

	if a.Snapshot().empty() {
		return "", false
	}

	line := a.flush()
	log.Info().Str("component", "profiling").Msg(line)
	return line, true
}

func (a *Aggregator) flush() string {
	queued := a.queued.Swap(0)
	dequeued := a.dequeued.Swap(0)
	applied := a.applied.Swap(0)
	dropped := a.dropped.Swap(0)
	failures := a.decodeFailures.Swap(0)
	peak := a.peakDepth.Swap(0)

	a.mu.Lock()
	buckets := a.buckets
	a.buckets = [numStages]bucket{}
	a.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "profiling (last %.0fs) queued=%d, dequeued=%d, applied=%d, dropped=%d, decodeFailures=%d, maxQueueDepth=%d",
		a.interval.Seconds(), queued, dequeued, applied, dropped, failures, peak)
	for i, bk := range buckets {
		b.WriteString(" | ")
		b.WriteString(bk.summary(stageNames[i]))
	}
	return b.String()
}
