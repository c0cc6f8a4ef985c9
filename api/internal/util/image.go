package util

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// maxPixels bounds the output; larger images are scaled down.
	maxPixels = 18_000_000
	// maxDecodePixels bounds what is decoded at all, read from the header
	// before any pixel memory is allocated.
	maxDecodePixels = 36_000_000
)

var (
	ErrEmptyImage    = errors.New("empty image")
	ErrImageTooLarge = errors.New("image dimensions too large")
)

// NormalizeImage decodes any supported raster format and re-encodes it as an
// 8-bit RGB PNG. Alpha is flattened onto white and images above maxPixels are
// scaled down. Images whose header declares more than maxDecodePixels are
// rejected without decoding.
func NormalizeImage(b []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrEmptyImage
	}
	if total := int64(cfg.Width) * int64(cfg.Height); total > maxDecodePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return nil, ErrEmptyImage
	}

	var fg image.Image = src
	fgMin := sb.Min
	w, h := sb.Dx(), sb.Dy()
	if total := w * h; total > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(total))
		w = max(int(float64(w)*scale+0.5), 1)
		h = max(int(float64(h)*scale+0.5), 1)
		fg, fgMin = scaleDownNN(src, w, h), image.Point{}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), fg, fgMin, draw.Over)

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return out.Bytes(), nil
}

func scaleDownNN(src image.Image, newW, newH int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, newW, newH))
	sb := src.Bounds()
	srcW := sb.Dx()
	srcH := sb.Dy()
	for y := 0; y < newH; y++ {
		sy := sb.Min.Y + (y*srcH)/newH
		for x := 0; x < newW; x++ {
			sx := sb.Min.X + (x*srcW)/newW
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}
