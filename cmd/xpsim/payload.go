package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/HugoSmits86/nativewebp"
)

const (
	formatRaw  = "raw"
	formatJPEG = "jpeg"
	formatPNG  = "png"
	formatWebP = "webp"
	formatASTC = "astc"
)

// testPattern draws a gradient with a moving bar so consecutive frames differ.
func testPattern(w, h, frame int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	bar := 0
	if w > 0 {
		bar = frame % w
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: uint8(x * 255 / max(1, w-1)), G: uint8(y * 255 / max(1, h-1)), B: 96, A: 255}
			if x == bar {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// buildPayload encodes img for upload and returns the body and the
// Content-Type to send it with.
func buildPayload(format string, img *image.NRGBA) ([]byte, string, error) {
	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case formatRaw:
		return rawPayload(img), "application/octet-stream", nil
	case formatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	case formatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	case formatWebP:
		if err := nativewebp.Encode(&buf, img, nil); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/webp", nil
	case formatASTC:
		b := img.Bounds()
		return astcPayload(b.Dx(), b.Dy()), "image/astc", nil
	default:
		return nil, "", fmt.Errorf("unknown upload format %q", format)
	}
}

// rawPayload is [width int32 LE][height int32 LE][RGBA8 rows].
func rawPayload(img *image.NRGBA) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, 8, 8+w*h*4)
	binary.LittleEndian.PutUint32(out[0:4], uint32(w))
	binary.LittleEndian.PutUint32(out[4:8], uint32(h))
	for y := 0; y < h; y++ {
		off := y * img.Stride
		out = append(out, img.Pix[off:off+w*4]...)
	}
	return out
}

// astcPayload is a 16-byte .astc header with 4x4 blocks of zeroed data.
func astcPayload(w, h int) []byte {
	blocks := ((w + 3) / 4) * ((h + 3) / 4)
	out := make([]byte, 16+blocks*16)
	copy(out[0:4], []byte{0x13, 0xAB, 0xA1, 0x5C})
	out[4], out[5], out[6] = 4, 4, 1
	out[7], out[8], out[9] = byte(w), byte(w>>8), byte(w>>16)
	out[10], out[11], out[12] = byte(h), byte(h>>8), byte(h>>16)
	out[13], out[14], out[15] = 1, 0, 0
	return out
}
