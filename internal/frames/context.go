package frames

import (
	"sync"

	"github.com/danmuck/xpbridge/internal/mainloop"
	"github.com/danmuck/xpbridge/internal/profiling"
	"github.com/rs/zerolog/log"
)

// Scheduler runs actions on the apply loop.
type Scheduler interface {
	Enqueue(fn mainloop.Action)
}

// Renderer presents textures and the simulator field of view.
type Renderer interface {
	ApplyTexture(tex Texture) error
	UpdateFov(horizontalDeg, verticalDeg float64)
}

// CursorOverlay draws the simulator screen under the controller cursor.
// When ready it takes frames instead of the renderer.
type CursorOverlay interface {
	Ready() bool
	ApplyTexture(tex Texture) error
	UpdateCursorPosition(x, y float64)
}

// FormatSupport reports which texture formats the renderer can take.
type FormatSupport interface {
	SupportsFormat(f Format) bool
}

// ApplyContext is shared by every strategy. It marshals work onto the apply
// loop and hands finished textures to the current targets.
type ApplyContext struct {
	scheduler Scheduler
	profiler  *profiling.Aggregator

	mu       sync.RWMutex
	renderer Renderer
	cursor   CursorOverlay
	formats  FormatSupport
}

func NewApplyContext(scheduler Scheduler, profiler *profiling.Aggregator) (*ApplyContext, error) {
	if scheduler == nil {
		return nil, ErrNilScheduler
	}
	if profiler == nil {
		profiler = profiling.Disabled()
	}
	return &ApplyContext{scheduler: scheduler, profiler: profiler}, nil
}

func (c *ApplyContext) Profiler() *profiling.Aggregator {
	return c.profiler
}

func (c *ApplyContext) EnqueueMainThread(fn mainloop.Action) {
	if fn == nil {
		return
	}
	c.scheduler.Enqueue(fn)
}

func (c *ApplyContext) UpdateTargets(renderer Renderer, cursor CursorOverlay) {
	c.mu.Lock()
	c.renderer = renderer
	c.cursor = cursor
	c.mu.Unlock()
}

func (c *ApplyContext) Targets() (Renderer, CursorOverlay) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.renderer, c.cursor
}

// SetFormatSupport overrides format detection. Without it the renderer is
// asked when it implements FormatSupport; otherwise only RGBA8 is assumed.
func (c *ApplyContext) SetFormatSupport(fs FormatSupport) {
	c.mu.Lock()
	c.formats = fs
	c.mu.Unlock()
}

func (c *ApplyContext) SupportsFormat(f Format) bool {
	c.mu.RLock()
	fs, renderer := c.formats, c.renderer
	c.mu.RUnlock()
	if fs != nil {
		return fs.SupportsFormat(f)
	}
	if rfs, ok := renderer.(FormatSupport); ok {
		return rfs.SupportsFormat(f)
	}
	return f == FormatRGBA8
}

// ApplyTexture delivers tex to the ready cursor overlay, or else the
// renderer. It returns false when there is no target. Must run on the
// apply loop.
func (c *ApplyContext) ApplyTexture(tex Texture, sourceBytes int) bool {
	renderer, cursor := c.Targets()
	cursorReady := cursor != nil && cursor.Ready()
	if renderer == nil && !cursorReady {
		return false
	}

	stamp := c.profiler.Stamp()
	var err error
	if cursorReady {
		err = cursor.ApplyTexture(tex)
	} else {
		err = renderer.ApplyTexture(tex)
	}
	c.profiler.Record(profiling.StageApply, stamp)

	tp := c.profiler.Throughput()
	tp.AddReceived(sourceBytes)
	if err != nil {
		log.Warn().Err(err).Str("format", tex.Format.String()).Msg("texture apply failed")
		return false
	}
	c.profiler.RecordApplied()
	tp.AddRendered()
	return true
}

// ApplyDecodedImage validates d and applies it as an RGBA8 texture.
func (c *ApplyContext) ApplyDecodedImage(d DecodedImage) bool {
	if !d.Valid() {
		c.profiler.RecordDecodeFailure()
		return false
	}
	return c.ApplyTexture(d.Texture(), d.SourceBytes)
}
