package frames

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/danmuck/xpbridge/internal/profiling"
	"github.com/rs/zerolog/log"
)

const rawHeaderBytes = 8

// RawStrategy takes uncompressed frames laid out as
// [width int32 LE][height int32 LE][width*height*4 RGBA bytes].
type RawStrategy struct {
	queue *pendingQueue
}

func NewRawStrategy(maxPending int) *RawStrategy {
	s := &RawStrategy{}
	s.queue = newPendingQueue(KindRaw, maxPending, s.process)
	return s
}

func (s *RawStrategy) Kind() Kind { return KindRaw }

func (s *RawStrategy) Initialize(ctx *ApplyContext) error {
	if ctx == nil {
		return ErrNilContext
	}
	s.queue.bind(ctx)
	return nil
}

func (s *RawStrategy) TryHandleUpload(payload []byte) bool {
	if len(payload) < rawHeaderBytes {
		return false
	}
	return s.queue.push(payload)
}

func (s *RawStrategy) Pending() int { return s.queue.pending() }

func (s *RawStrategy) Dispose() { s.queue.reset() }

func (s *RawStrategy) process(payload []byte) {
	ctx := s.queue.context()
	prof := ctx.Profiler()
	prof.RecordDequeued()

	stamp := prof.Stamp()
	tex, err := DecodeRaw(payload)
	prof.Record(profiling.StageDecode, stamp)
	if err != nil {
		log.Warn().Err(err).Str("strategy", KindRaw.String()).Msg("raw frame rejected")
		prof.RecordDecodeFailure()
		return
	}
	ctx.ApplyTexture(tex, len(payload))
}

// DecodeRaw parses a raw RGBA frame. Trailing bytes are ignored.
func DecodeRaw(payload []byte) (Texture, error) {
	if len(payload) < rawHeaderBytes {
		return Texture{}, fmt.Errorf("%w: raw payload too small for header", ErrInvalidPayload)
	}
	w := int32(binary.LittleEndian.Uint32(payload[0:4]))
	h := int32(binary.LittleEndian.Uint32(payload[4:8]))
	if w <= 0 || h <= 0 {
		return Texture{}, fmt.Errorf("%w: invalid raw dimensions %dx%d", ErrInvalidPayload, w, h)
	}
	if int64(w) > math.MaxInt32/4/int64(h) {
		return Texture{}, fmt.Errorf("%w: raw pixel count overflow %dx%d", ErrInvalidPayload, w, h)
	}
	size := int64(w) * int64(h) * 4
	if int64(len(payload)-rawHeaderBytes) < size {
		return Texture{}, fmt.Errorf("%w: raw payload has %d pixel bytes, want %d", ErrInvalidPayload, len(payload)-rawHeaderBytes, size)
	}
	pixels := make([]byte, size)
	copy(pixels, payload[rawHeaderBytes:])
	return Texture{Format: FormatRGBA8, Width: int(w), Height: int(h), Data: pixels}, nil
}
