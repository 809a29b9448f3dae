package headless

import (
	"math"
	"sync"

	"github.com/danmuck/xpbridge/internal/frames"
)

// Cursor is a screen overlay under the controller pointer. Once ready it
// receives frames and tracks the pointer in UV space.
type Cursor struct {
	mu     sync.Mutex
	ready  bool
	width  int
	height int
	u, v   float64
	frames int
}

func NewCursor() *Cursor {
	return &Cursor{}
}

func (c *Cursor) SetReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}

func (c *Cursor) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *Cursor) ApplyTexture(tex frames.Texture) error {
	if tex.Width <= 0 || tex.Height <= 0 {
		return ErrEmptyTexture
	}
	c.mu.Lock()
	c.width, c.height = tex.Width, tex.Height
	c.frames++
	c.mu.Unlock()
	return nil
}

// UpdateCursorPosition takes either UV or pixel coordinates. Values
// outside the unit range are treated as pixels of the last frame.
func (c *Cursor) UpdateCursorPosition(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.u = normalizeAxis(x, c.width)
	c.v = normalizeAxis(y, c.height)
}

func normalizeAxis(value float64, size int) float64 {
	if math.Abs(value) > 1 && size > 0 {
		value /= math.Max(1, float64(size))
	}
	return math.Min(1, math.Max(0, value))
}

// Position returns the pointer in UV space.
func (c *Cursor) Position() (u, v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.u, c.v
}

func (c *Cursor) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}
