package frames

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/danmuck/xpbridge/internal/profiling"
	"github.com/rs/zerolog/log"
)

var astcMagic = [4]byte{0x13, 0xAB, 0xA1, 0x5C}

const (
	astcHeaderBytes       = 16
	astcLegacyHeaderBytes = 8
	astcBlockBytes        = 16
	astcMinBlock          = 4
	astcMaxBlock          = 12
)

// ASTCHeader describes an ASTC payload.
type ASTCHeader struct {
	Width       int
	Height      int
	BlockWidth  int
	BlockHeight int
	Offset      int
}

// DataLength is the number of compressed bytes the header implies.
func (h ASTCHeader) DataLength() int {
	bw := clampInt(h.BlockWidth, astcMinBlock, astcMaxBlock)
	bh := clampInt(h.BlockHeight, astcMinBlock, astcMaxBlock)
	blocks := ceilDiv(h.Width, bw) * ceilDiv(h.Height, bh)
	if blocks < 1 {
		blocks = 1
	}
	return blocks * astcBlockBytes
}

// ParseASTCHeader reads either the standard 16-byte .astc header or the
// legacy [width int32 LE][height int32 LE] header with 4x4 blocks.
func ParseASTCHeader(payload []byte) (ASTCHeader, error) {
	if len(payload) >= astcHeaderBytes && [4]byte(payload[0:4]) == astcMagic {
		dimX := int(payload[7]) | int(payload[8])<<8 | int(payload[9])<<16
		dimY := int(payload[10]) | int(payload[11])<<8 | int(payload[12])<<16
		return ASTCHeader{
			Width:       max(1, dimX),
			Height:      max(1, dimY),
			BlockWidth:  max(astcMinBlock, int(payload[4])),
			BlockHeight: max(astcMinBlock, int(payload[5])),
			Offset:      astcHeaderBytes,
		}, nil
	}
	if len(payload) >= astcLegacyHeaderBytes {
		w := int32(binary.LittleEndian.Uint32(payload[0:4]))
		h := int32(binary.LittleEndian.Uint32(payload[4:8]))
		if w <= 0 || h <= 0 {
			return ASTCHeader{}, fmt.Errorf("%w: invalid astc dimensions %dx%d", ErrInvalidPayload, w, h)
		}
		return ASTCHeader{
			Width:       int(w),
			Height:      int(h),
			BlockWidth:  astcMinBlock,
			BlockHeight: astcMinBlock,
			Offset:      astcLegacyHeaderBytes,
		}, nil
	}
	return ASTCHeader{}, fmt.Errorf("%w: astc payload too small for header", ErrInvalidPayload)
}

// DecodeASTC validates payload and wraps its compressed blocks as a texture.
func DecodeASTC(payload []byte) (Texture, error) {
	hdr, err := ParseASTCHeader(payload)
	if err != nil {
		return Texture{}, err
	}
	want := hdr.DataLength()
	if len(payload)-hdr.Offset < want {
		return Texture{}, fmt.Errorf("%w: astc payload has %d data bytes, want %d", ErrInvalidPayload, len(payload)-hdr.Offset, want)
	}
	data := make([]byte, want)
	copy(data, payload[hdr.Offset:])
	return Texture{
		Format:      FormatASTC,
		Width:       hdr.Width,
		Height:      hdr.Height,
		BlockWidth:  clampInt(hdr.BlockWidth, astcMinBlock, astcMaxBlock),
		BlockHeight: clampInt(hdr.BlockHeight, astcMinBlock, astcMaxBlock),
		Data:        data,
	}, nil
}

// ASTCStrategy passes compressed ASTC blocks straight to the renderer.
type ASTCStrategy struct {
	queue     *pendingQueue
	supported atomic.Bool
}

func NewASTCStrategy(maxPending int) *ASTCStrategy {
	s := &ASTCStrategy{}
	s.queue = newPendingQueue(KindASTC, maxPending, s.process)
	return s
}

func (s *ASTCStrategy) Kind() Kind { return KindASTC }

func (s *ASTCStrategy) Initialize(ctx *ApplyContext) error {
	if ctx == nil {
		return ErrNilContext
	}
	s.queue.bind(ctx)
	supported := ctx.SupportsFormat(FormatASTC)
	s.supported.Store(supported)
	if !supported {
		log.Warn().Str("strategy", KindASTC.String()).Msg("renderer does not support ASTC textures; uploads will be dropped")
	}
	return nil
}

func (s *ASTCStrategy) TryHandleUpload(payload []byte) bool {
	ctx := s.queue.context()
	if ctx == nil || len(payload) < astcLegacyHeaderBytes {
		return false
	}
	if !s.supported.Load() {
		ctx.Profiler().RecordDropped()
		return true
	}
	return s.queue.push(payload)
}

func (s *ASTCStrategy) Pending() int { return s.queue.pending() }

func (s *ASTCStrategy) Dispose() { s.queue.reset() }

func (s *ASTCStrategy) process(payload []byte) {
	ctx := s.queue.context()
	prof := ctx.Profiler()
	prof.RecordDequeued()

	stamp := prof.Stamp()
	tex, err := DecodeASTC(payload)
	prof.Record(profiling.StageDecode, stamp)
	if err != nil {
		log.Warn().Err(err).Str("strategy", KindASTC.String()).Msg("astc frame rejected")
		prof.RecordDecodeFailure()
		return
	}
	ctx.ApplyTexture(tex, len(tex.Data))
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
