package frames

import (
	"github.com/danmuck/xpbridge/internal/profiling"
	"github.com/rs/zerolog/log"
)

// SimpleStrategy decodes common raster formats synchronously on the
// apply loop.
type SimpleStrategy struct {
	queue   *pendingQueue
	decoder ImageDecoder
}

func NewSimpleStrategy(maxPending int) *SimpleStrategy {
	s := &SimpleStrategy{decoder: RasterDecoder{}}
	s.queue = newPendingQueue(KindSimple, maxPending, s.process)
	return s
}

func (s *SimpleStrategy) Kind() Kind { return KindSimple }

func (s *SimpleStrategy) Initialize(ctx *ApplyContext) error {
	if ctx == nil {
		return ErrNilContext
	}
	s.queue.bind(ctx)
	return nil
}

func (s *SimpleStrategy) TryHandleUpload(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	return s.queue.push(payload)
}

func (s *SimpleStrategy) Pending() int { return s.queue.pending() }

func (s *SimpleStrategy) Dispose() { s.queue.reset() }

func (s *SimpleStrategy) process(payload []byte) {
	ctx := s.queue.context()
	prof := ctx.Profiler()
	prof.RecordDequeued()

	stamp := prof.Stamp()
	img, err := s.decoder.Decode(payload)
	prof.Record(profiling.StageDecode, stamp)
	if err != nil {
		log.Warn().Err(err).Str("strategy", KindSimple.String()).Int("bytes", len(payload)).Msg("image decode failed")
		prof.RecordDecodeFailure()
		return
	}
	ctx.ApplyDecodedImage(img)
}
