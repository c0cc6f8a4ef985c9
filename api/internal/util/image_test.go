package util

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeFlattensAlphaOntoWhite(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.Set(1, 0, color.NRGBA{A: 0})

	out, err := NormalizeImage(encodePNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, "image/png", SniffMimeHTTP(out))

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	rgba, ok := img.(*image.RGBA)
	require.True(t, ok, "opaque output decodes as 3-channel RGB, got %T", img)
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, rgba.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, rgba.RGBAAt(1, 0))
}

func TestNormalizeConvertsPalettedAndGray(t *testing.T) {
	pal := image.NewPaletted(image.Rect(0, 0, 3, 3), color.Palette{color.Black, color.White})
	var gifBuf bytes.Buffer
	require.NoError(t, gif.Encode(&gifBuf, pal, nil))

	gray := image.NewGray16(image.Rect(0, 0, 4, 4))
	gray.Set(1, 1, color.Gray16{Y: 0xffff})

	for name, in := range map[string][]byte{
		"gif":    gifBuf.Bytes(),
		"gray16": encodePNG(t, gray),
	} {
		t.Run(name, func(t *testing.T) {
			out, err := NormalizeImage(in)
			require.NoError(t, err)
			img, err := png.Decode(bytes.NewReader(out))
			require.NoError(t, err)
			_, ok := img.(*image.RGBA)
			assert.True(t, ok, "got %T", img)
		})
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	_, err := NormalizeImage([]byte("<svg></svg>"))
	assert.Error(t, err)
}

// hugePNG returns a tiny valid PNG whose header claims w x h pixels.
func hugePNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	b := encodePNG(t, image.NewGray(image.Rect(0, 0, 1, 1)))
	// signature(8) length(4) "IHDR"(4) width(4) height(4) ... crc at 29
	binary.BigEndian.PutUint32(b[16:20], w)
	binary.BigEndian.PutUint32(b[20:24], h)
	binary.BigEndian.PutUint32(b[29:33], crc32.ChecksumIEEE(b[12:29]))
	return b
}

func TestNormalizeRejectsHugeDimensionsBeforeDecoding(t *testing.T) {
	in := hugePNG(t, 30000, 30000)
	cfg, err := png.DecodeConfig(bytes.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 30000, cfg.Width)

	_, err = NormalizeImage(in)
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = NormalizeImage(hugePNG(t, 8000, 8000))
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestScaleDownNNKeepsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	src.Set(0, 0, color.NRGBA{R: 200, A: 255})
	dst := scaleDownNN(src, 2, 2)
	assert.Equal(t, image.Rect(0, 0, 2, 2), dst.Bounds())
	assert.Equal(t, color.NRGBA{R: 200, A: 255}, dst.NRGBAAt(0, 0))
	assert.Equal(t, uint8(0), dst.NRGBAAt(1, 1).A)
}

func TestSniffMimeHTTP(t *testing.T) {
	assert.Equal(t, "image/jpeg", SniffMimeHTTP([]byte{0xFF, 0xD8, 0xFF}))
	assert.Equal(t, "image/gif", SniffMimeHTTP([]byte("GIF89a....")))
	assert.Equal(t, "application/octet-stream", SniffMimeHTTP([]byte("hello")))
	assert.Equal(t, "data:image/png;base64,QUJD", MakeDataURL("image/png", "QUJD"))
}
