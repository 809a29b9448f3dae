package frames

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// AsyncStrategy decodes on a background DecodeWorker and applies results
// on the apply loop. Without a worker decoder it behaves exactly like
// SimpleStrategy.
type AsyncStrategy struct {
	maxPending int
	factory    DecoderFactory
	fallback   *SimpleStrategy

	mu     sync.RWMutex
	ctx    *ApplyContext
	worker *DecodeWorker
}

func NewAsyncStrategy(maxPending int, factory DecoderFactory) *AsyncStrategy {
	if maxPending < 1 {
		maxPending = 1
	}
	return &AsyncStrategy{
		maxPending: maxPending,
		factory:    factory,
		fallback:   NewSimpleStrategy(maxPending),
	}
}

func (s *AsyncStrategy) Kind() Kind { return KindAsync }

func (s *AsyncStrategy) Initialize(ctx *ApplyContext) error {
	if ctx == nil {
		return ErrNilContext
	}
	if err := s.fallback.Initialize(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	if s.worker != nil {
		s.worker.Dispose()
		s.worker = nil
	}
	if s.factory == nil {
		log.Warn().Str("strategy", KindAsync.String()).Msg("no worker decoder configured; using synchronous decoding")
		return nil
	}
	decoder, err := s.factory()
	if err != nil || decoder == nil {
		log.Warn().Err(err).Str("strategy", KindAsync.String()).Msg("worker decoder unavailable; using synchronous decoding")
		return nil
	}
	worker, err := NewDecodeWorker(decoder, s.onDecoded, ctx.Profiler(), s.maxPending)
	if err != nil {
		return err
	}
	worker.Start()
	s.worker = worker
	return nil
}

// UsesWorker reports whether uploads go to the background worker.
func (s *AsyncStrategy) UsesWorker() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.worker != nil
}

func (s *AsyncStrategy) TryHandleUpload(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	s.mu.RLock()
	ctx, worker := s.ctx, s.worker
	s.mu.RUnlock()
	if worker == nil {
		return s.fallback.TryHandleUpload(payload)
	}

	copied := make([]byte, len(payload))
	copy(copied, payload)
	if !worker.TryEnqueue(copied) {
		ctx.Profiler().RecordDropped()
		return false
	}
	return true
}

func (s *AsyncStrategy) onDecoded(img DecodedImage) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx == nil {
		return
	}
	ctx.EnqueueMainThread(func() { ctx.ApplyDecodedImage(img) })
}

func (s *AsyncStrategy) Pending() int {
	s.mu.RLock()
	worker := s.worker
	s.mu.RUnlock()
	n := s.fallback.Pending()
	if worker != nil {
		n += worker.Pending()
	}
	return n
}

func (s *AsyncStrategy) Dispose() {
	s.mu.Lock()
	worker := s.worker
	s.worker = nil
	s.mu.Unlock()
	if worker != nil {
		worker.Dispose()
	}
	s.fallback.Dispose()
}
