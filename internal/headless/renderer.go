package headless

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/danmuck/xpbridge/internal/frames"
	"github.com/danmuck/xpbridge/internal/observability"
	"github.com/rs/zerolog"
)

const (
	DumpFileName        = "latest.webp"
	DefaultDumpInterval = time.Second
)

var ErrEmptyTexture = errors.New("headless: empty texture")

// Renderer accepts textures and FOV updates, optionally writing the most
// recent RGBA8 frame to disk as WebP at most once per dump interval.
type Renderer struct {
	logger       zerolog.Logger
	astc         bool
	dumpDir      string
	dumpInterval time.Duration

	mu       sync.Mutex
	frames   int
	last     frames.Texture
	lastDump time.Time
	fovH     float64
	fovV     float64
}

type RendererOptions struct {
	ASTCSupported bool
	DumpDir       string
	DumpInterval  time.Duration
}

func NewRenderer(opts RendererOptions) *Renderer {
	if opts.DumpInterval <= 0 {
		opts.DumpInterval = DefaultDumpInterval
	}
	return &Renderer{
		logger:       observability.Component("renderer"),
		astc:         opts.ASTCSupported,
		dumpDir:      opts.DumpDir,
		dumpInterval: opts.DumpInterval,
	}
}

func (r *Renderer) SupportsFormat(f frames.Format) bool {
	return f == frames.FormatRGBA8 || (f == frames.FormatASTC && r.astc)
}

func (r *Renderer) ApplyTexture(tex frames.Texture) error {
	if tex.Width <= 0 || tex.Height <= 0 || len(tex.Data) == 0 {
		return ErrEmptyTexture
	}
	if !r.SupportsFormat(tex.Format) {
		return fmt.Errorf("headless: unsupported texture format %s", tex.Format)
	}

	r.mu.Lock()
	r.frames++
	r.last = tex
	dump := r.dumpDir != "" && tex.Format == frames.FormatRGBA8 && time.Since(r.lastDump) >= r.dumpInterval
	if dump {
		r.lastDump = time.Now()
	}
	count := r.frames
	r.mu.Unlock()

	r.logger.Debug().
		Int("frame", count).
		Int("width", tex.Width).
		Int("height", tex.Height).
		Str("format", tex.Format.String()).
		Msg("texture applied")

	if dump {
		if err := r.dump(tex); err != nil {
			r.logger.Warn().Err(err).Str("dir", r.dumpDir).Msg("frame dump failed")
		}
	}
	return nil
}

func (r *Renderer) dump(tex frames.Texture) error {
	if err := os.MkdirAll(r.dumpDir, 0o755); err != nil {
		return err
	}
	img := &image.NRGBA{
		Pix:    tex.Data,
		Stride: tex.Width * 4,
		Rect:   image.Rect(0, 0, tex.Width, tex.Height),
	}
	tmp := filepath.Join(r.dumpDir, DumpFileName+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := nativewebp.Encode(f, img, nil); err != nil {
		f.Close()
		return fmt.Errorf("webp encode: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(r.dumpDir, DumpFileName))
}

func (r *Renderer) UpdateFov(horizontalDeg, verticalDeg float64) {
	r.mu.Lock()
	r.fovH, r.fovV = horizontalDeg, verticalDeg
	r.mu.Unlock()
	r.logger.Info().Float64("horizontal", horizontalDeg).Float64("vertical", verticalDeg).Msg("camera fov set")
}

func (r *Renderer) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *Renderer) LastTexture() (frames.Texture, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.frames > 0
}

func (r *Renderer) Fov() (horizontal, vertical float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fovH, r.fovV
}
