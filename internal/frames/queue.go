package frames

import (
	"sync"
	"sync/atomic"

	"github.com/danmuck/xpbridge/internal/observability"
	"github.com/danmuck/xpbridge/internal/profiling"
)

// boundedQueue is a FIFO of payloads that evicts the oldest entry instead
// of blocking when full. offer and pop hold mu so an eviction only happens
// while the queue is actually full.
type boundedQueue struct {
	mu      sync.Mutex
	items   chan []byte
	pending atomic.Int64
}

func newBoundedQueue(maxPending int) *boundedQueue {
	if maxPending < 1 {
		maxPending = 1
	}
	return &boundedQueue{items: make(chan []byte, maxPending)}
}

// offer appends payload and returns the depth after the push together with
// the number of entries evicted to make room.
func (q *boundedQueue) offer(payload []byte) (depth int, dropped int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == cap(q.items) {
		<-q.items
		q.pending.Add(-1)
		dropped = 1
	}
	q.items <- payload
	return int(q.pending.Add(1)), dropped
}

func (q *boundedQueue) pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	select {
	case p := <-q.items:
		q.pending.Add(-1)
		return p, true
	default:
		return nil, false
	}
}

func (q *boundedQueue) size() int {
	return int(q.pending.Load())
}

func (q *boundedQueue) empty() bool {
	return len(q.items) == 0
}

// clear discards every queued payload and returns how many were dropped.
func (q *boundedQueue) clear() int {
	n := 0
	for {
		if _, ok := q.pop(); !ok {
			break
		}
		n++
	}
	q.pending.Store(0)
	return n
}

// pendingQueue couples a boundedQueue with single-flight drain scheduling
// on the apply loop. Every strategy embeds one.
type pendingQueue struct {
	kind    Kind
	queue   *boundedQueue
	process func([]byte)

	ctx      atomic.Pointer[ApplyContext]
	draining atomic.Bool
}

func newPendingQueue(kind Kind, maxPending int, process func([]byte)) *pendingQueue {
	return &pendingQueue{
		kind:    kind,
		queue:   newBoundedQueue(maxPending),
		process: process,
	}
}

func (p *pendingQueue) bind(ctx *ApplyContext) {
	p.ctx.Store(ctx)
}

func (p *pendingQueue) context() *ApplyContext {
	return p.ctx.Load()
}

func (p *pendingQueue) profiler() *profiling.Aggregator {
	if ctx := p.context(); ctx != nil {
		return ctx.Profiler()
	}
	return profiling.Disabled()
}

// push copies payload into the queue and schedules a drain if none is
// pending. It returns false when the queue is not bound to a context.
func (p *pendingQueue) push(payload []byte) bool {
	ctx := p.context()
	if ctx == nil {
		return false
	}
	prof := ctx.Profiler()
	stamp := prof.Stamp()

	copied := make([]byte, len(payload))
	copy(copied, payload)

	depth, dropped := p.queue.offer(copied)
	prof.RecordQueued()
	prof.ObserveDepth(depth)
	for i := 0; i < dropped; i++ {
		prof.RecordDropped()
	}
	observability.SetQueueDepth(p.kind.String(), p.queue.size())

	p.schedule(ctx)
	prof.Record(profiling.StageEnqueue, stamp)
	return true
}

func (p *pendingQueue) schedule(ctx *ApplyContext) {
	if p.draining.CompareAndSwap(false, true) {
		ctx.EnqueueMainThread(p.drain)
	}
}

// drain runs on the apply loop and processes queued payloads in order.
func (p *pendingQueue) drain() {
	prof := p.profiler()
	stamp := prof.Stamp()
	defer func() {
		prof.Record(profiling.StageDrain, stamp)
		observability.SetQueueDepth(p.kind.String(), p.queue.size())
		p.draining.Store(false)
		if !p.queue.empty() {
			if ctx := p.context(); ctx != nil {
				p.schedule(ctx)
			}
		}
	}()

	for {
		payload, ok := p.queue.pop()
		if !ok {
			return
		}
		p.process(payload)
	}
}

func (p *pendingQueue) pending() int {
	return p.queue.size()
}

// reset discards queued payloads and clears the drain flag.
func (p *pendingQueue) reset() {
	p.queue.clear()
	p.draining.Store(false)
	observability.SetQueueDepth(p.kind.String(), 0)
}
