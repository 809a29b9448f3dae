// Package frames turns uploaded image payloads into textures on the apply
// loop. Each Strategy owns a bounded pending queue: producers never block,
// the oldest payload is evicted when full, and at most one drain is
// scheduled at a time.
package frames

import (
	"errors"
	"fmt"
	"strings"
)

const DefaultMaxPending = 3

var (
	ErrNilContext        = errors.New("frames: nil apply context")
	ErrNilScheduler      = errors.New("frames: nil scheduler")
	ErrInvalidPayload    = errors.New("frames: invalid payload")
	ErrUnsupportedFormat = errors.New("frames: unsupported image format")
	ErrUnknownKind       = errors.New("frames: unknown strategy kind")
	ErrNilDecoder        = errors.New("frames: nil image decoder")
	ErrNilDelivery       = errors.New("frames: nil delivery callback")
)

// Kind names a decode strategy.
type Kind string

const (
	KindSimple Kind = "simple"
	KindRaw    Kind = "raw"
	KindASTC   Kind = "astc"
	KindAsync  Kind = "async"
)

var allKinds = []Kind{KindSimple, KindRaw, KindASTC, KindAsync}

func (k Kind) String() string {
	return string(k)
}

func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range allKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

// KindForContentType maps an upload Content-Type to a strategy, falling
// back to def for anything unrecognised.
func KindForContentType(contentType string, def Kind) Kind {
	ct := contentType
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	switch strings.ToLower(strings.TrimSpace(ct)) {
	case "image/astc", "application/astc":
		return KindASTC
	case "image/jpeg", "image/jpg":
		return KindSimple
	case "application/octet-stream":
		return KindRaw
	default:
		return def
	}
}

// Format is a texture pixel layout.
type Format int

const (
	FormatRGBA8 Format = iota
	FormatASTC
)

func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "rgba8"
	case FormatASTC:
		return "astc"
	default:
		return "unknown"
	}
}

// Texture is what reaches the renderer. Rows are stored top-down.
type Texture struct {
	Format      Format
	Width       int
	Height      int
	BlockWidth  int
	BlockHeight int
	Data        []byte
}

// DecodedImage is an RGBA8 image produced by a decoder.
type DecodedImage struct {
	Pixels      []byte
	Width       int
	Height      int
	SourceBytes int
}

func (d DecodedImage) Valid() bool {
	return d.Width > 0 && d.Height > 0 && len(d.Pixels) == d.Width*d.Height*4
}

func (d DecodedImage) Texture() Texture {
	return Texture{Format: FormatRGBA8, Width: d.Width, Height: d.Height, Data: d.Pixels}
}
