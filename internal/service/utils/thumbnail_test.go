package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestThumbnailSize(t *testing.T) {
	testCases := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{1000, 500, 255, 255, 127},
		{500, 1000, 255, 127, 255},
		{255, 255, 255, 255, 255},
		{100, 40, 255, 100, 40},
		{4000, 1, 255, 255, 1},
	}
	for _, tc := range testCases {
		w, h := ThumbnailSize(tc.w, tc.h, tc.max)
		assert.Equal(t, tc.wantW, w, "%dx%d", tc.w, tc.h)
		assert.Equal(t, tc.wantH, h, "%dx%d", tc.w, tc.h)
	}
}

func TestMakeThumbnail(t *testing.T) {
	t.Run("scales down into the box", func(t *testing.T) {
		out, err := MakeThumbnail(bytes.NewReader(encodePNG(t, 600, 300)), 255, 85, DefaultMaxDecodedSize)
		require.NoError(t, err)

		img, err := jpeg.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 255, img.Bounds().Dx())
		assert.Equal(t, 127, img.Bounds().Dy())
	})

	t.Run("never upscales", func(t *testing.T) {
		out, err := MakeThumbnail(bytes.NewReader(encodePNG(t, 40, 20)), 255, 85, DefaultMaxDecodedSize)
		require.NoError(t, err)

		cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 40, cfg.Width)
		assert.Equal(t, 20, cfg.Height)
	})

	t.Run("rejects non images", func(t *testing.T) {
		_, err := MakeThumbnail(bytes.NewReader([]byte("MZ\x90\x00 not an image")), 255, 85, DefaultMaxDecodedSize)
		assert.Error(t, err)
	})

	t.Run("rejects decompression bombs", func(t *testing.T) {
		_, err := MakeThumbnail(bytes.NewReader(encodePNG(t, 100, 100)), 255, 85, 100)
		assert.ErrorContains(t, err, "image too large")
	})
}
