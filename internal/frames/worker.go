package frames

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/xpbridge/internal/profiling"
	"github.com/rs/zerolog/log"
)

const (
	workerPollInterval = 5 * time.Millisecond
	workerJoinTimeout  = 200 * time.Millisecond
)

// DecodeWorker decodes payloads on its own goroutine and hands results to
// deliver. Its job queue has the same drop-oldest bound as the strategies.
type DecodeWorker struct {
	decoder  ImageDecoder
	deliver  func(DecodedImage)
	profiler *profiling.Aggregator
	jobs     *boundedQueue

	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	running atomic.Bool
	started atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewDecodeWorker(decoder ImageDecoder, deliver func(DecodedImage), profiler *profiling.Aggregator, maxQueueDepth int) (*DecodeWorker, error) {
	if decoder == nil {
		return nil, ErrNilDecoder
	}
	if deliver == nil {
		return nil, ErrNilDelivery
	}
	if profiler == nil {
		profiler = profiling.Disabled()
	}
	return &DecodeWorker{
		decoder:  decoder,
		deliver:  deliver,
		profiler: profiler,
		jobs:     newBoundedQueue(maxQueueDepth),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (w *DecodeWorker) Start() {
	w.startOnce.Do(func() {
		w.running.Store(true)
		w.started.Store(true)
		go w.loop()
	})
}

// TryEnqueue queues data for decoding. It returns false when the worker is
// not running or data is empty.
func (w *DecodeWorker) TryEnqueue(data []byte) bool {
	if !w.running.Load() || len(data) == 0 {
		return false
	}
	depth, dropped := w.jobs.offer(data)
	w.profiler.RecordQueued()
	w.profiler.ObserveDepth(depth)
	for i := 0; i < dropped; i++ {
		w.profiler.RecordDropped()
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

func (w *DecodeWorker) Pending() int {
	return w.jobs.size()
}

// Dispose stops the worker, waits briefly for it to exit and discards any
// queued jobs.
func (w *DecodeWorker) Dispose() {
	w.stopOnce.Do(func() {
		w.running.Store(false)
		close(w.stop)
	})
	if w.started.Load() {
		select {
		case <-w.done:
		case <-time.After(workerJoinTimeout):
			log.Warn().Msg("decode worker did not stop in time")
		}
	}
	w.jobs.clear()
}

func (w *DecodeWorker) loop() {
	defer close(w.done)
	timer := time.NewTimer(workerPollInterval)
	defer timer.Stop()

	for {
		w.drainJobs()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(workerPollInterval)
		select {
		case <-w.stop:
			return
		case <-w.wake:
		case <-timer.C:
		}
	}
}

func (w *DecodeWorker) drainJobs() {
	for w.running.Load() {
		payload, ok := w.jobs.pop()
		if !ok {
			return
		}
		w.profiler.RecordDequeued()
		stamp := w.profiler.Stamp()
		img, err := w.decoder.Decode(payload)
		w.profiler.Record(profiling.StageDecode, stamp)
		if err != nil || !img.Valid() {
			if err != nil {
				log.Debug().Err(err).Msg("worker decode failed")
			}
			w.profiler.RecordDecodeFailure()
			continue
		}
		w.deliver(img)
	}
}
