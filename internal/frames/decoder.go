package frames

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// ImageDecoder turns an encoded raster into RGBA8 pixels.
type ImageDecoder interface {
	Decode(encoded []byte) (DecodedImage, error)
}

// DecoderFactory builds the decoder owned by a DecodeWorker.
type DecoderFactory func() (ImageDecoder, error)

const (
	WorkerDecoderRaster = "raster"
	WorkerDecoderNone   = "none"
)

// DecoderFactoryByName resolves a configured worker decoder. "none"
// returns a nil factory so the async strategy falls back to synchronous
// decoding.
func DecoderFactoryByName(name string) (DecoderFactory, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", WorkerDecoderRaster:
		return func() (ImageDecoder, error) {
			return RasterDecoder{OpaqueAlpha: true}, nil
		}, nil
	case WorkerDecoderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("frames: unknown worker decoder %q", name)
	}
}

type rasterFormat struct {
	name   string
	match  func([]byte) bool
	decode func(io.Reader) (image.Image, error)
}

// Sniffed in order. TGA has no magic and is tried last.
var rasterFormats = []rasterFormat{
	{"jpeg", prefix("\xff\xd8"), jpeg.Decode},
	{"png", prefix("\x89PNG\r\n\x1a\n"), png.Decode},
	{"gif", prefix("GIF8"), gif.Decode},
	{"bmp", prefix("BM"), bmp.Decode},
	{"tiff", func(b []byte) bool { return prefix("II*\x00")(b) || prefix("MM\x00*")(b) }, tiff.Decode},
	{"webp", func(b []byte) bool { return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WEBP" }, webp.Decode},
}

func prefix(magic string) func([]byte) bool {
	return func(b []byte) bool {
		return len(b) >= len(magic) && string(b[:len(magic)]) == magic
	}
}

// SniffFormat names the raster format of encoded, or "tga" when no magic
// matches.
func SniffFormat(encoded []byte) string {
	for _, f := range rasterFormats {
		if f.match(encoded) {
			return f.name
		}
	}
	return "tga"
}

// RasterDecoder decodes JPEG, PNG, GIF, BMP, TIFF, WebP and TGA. Output
// rows are top-down with straight alpha.
type RasterDecoder struct {
	// OpaqueAlpha forces zero alpha to 255, for sources that leave the
	// alpha channel unset.
	OpaqueAlpha bool
}

func (d RasterDecoder) Decode(encoded []byte) (DecodedImage, error) {
	if len(encoded) == 0 {
		return DecodedImage{}, fmt.Errorf("%w: empty image", ErrInvalidPayload)
	}
	decode := tga.Decode
	name := "tga"
	for _, f := range rasterFormats {
		if f.match(encoded) {
			decode, name = f.decode, f.name
			break
		}
	}
	img, err := decode(bytes.NewReader(encoded))
	if err != nil {
		return DecodedImage{}, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, name, err)
	}
	nrgba := toNRGBA(img)
	b := nrgba.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return DecodedImage{}, fmt.Errorf("%w: empty %s image", ErrInvalidPayload, name)
	}
	if d.OpaqueAlpha {
		for i := 3; i < len(nrgba.Pix); i += 4 {
			if nrgba.Pix[i] == 0 {
				nrgba.Pix[i] = 0xff
			}
		}
	}
	return DecodedImage{
		Pixels:      nrgba.Pix,
		Width:       b.Dx(),
		Height:      b.Dy(),
		SourceBytes: len(encoded),
	}, nil
}

// toNRGBA returns a tightly packed, zero-origin NRGBA copy of src.
func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == 4*b.Dx() {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
