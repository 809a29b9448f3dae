// Package mainloop provides the single logical apply thread. Work that
// touches the renderer or cursor overlay is queued from any goroutine and
// runs on the loop, in submission order, once per tick.
package mainloop

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultTick = 11 * time.Millisecond

var ErrInvalidTick = errors.New("mainloop: tick interval must be positive")

// Action is one unit of apply-thread work.
type Action func()

// Queue is an unbounded FIFO of actions. Enqueue never blocks.
type Queue struct {
	mu      sync.Mutex
	actions []Action
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Enqueue(fn Action) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.actions = append(q.actions, fn)
	q.mu.Unlock()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.actions)
}

// Drain runs every action queued before the call and returns how many ran.
// Actions enqueued while draining wait for the next Drain. A panicking
// action is logged and does not stop the rest.
func (q *Queue) Drain() int {
	q.mu.Lock()
	batch := q.actions
	q.actions = nil
	q.mu.Unlock()

	for _, fn := range batch {
		runAction(fn)
	}
	return len(batch)
}

func runAction(fn Action) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("mainloop action panicked")
		}
	}()
	fn()
}

// Hook runs once per tick after the queue is drained.
type Hook func(now time.Time)

// Loop drives a Queue on a fixed tick.
type Loop struct {
	queue *Queue
	tick  time.Duration
	hooks []Hook
}

func NewLoop(queue *Queue, tick time.Duration, hooks ...Hook) *Loop {
	if queue == nil {
		queue = NewQueue()
	}
	return &Loop{queue: queue, tick: tick, hooks: hooks}
}

func (l *Loop) Queue() *Queue {
	return l.queue
}

// Step performs one tick: drain, then hooks.
func (l *Loop) Step(now time.Time) {
	l.queue.Drain()
	for _, h := range l.hooks {
		h(now)
	}
}

// Run ticks until ctx is cancelled, then drains once more so queued
// cleanup work is not lost.
func (l *Loop) Run(ctx context.Context) error {
	if l.tick <= 0 {
		return ErrInvalidTick
	}
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	log.Debug().Dur("tick", l.tick).Msg("mainloop started")
	for {
		select {
		case <-ctx.Done():
			l.queue.Drain()
			log.Debug().Msg("mainloop stopped")
			return nil
		case now := <-ticker.C:
			l.Step(now)
		}
	}
}
