package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultMaxDecodedSize caps width*height*4 of an image we agree to decode.
const DefaultMaxDecodedSize = 64 << 20

// ThumbnailSize fits w x h into a max x max box keeping the aspect ratio.
// Images already inside the box keep their size.
func ThumbnailSize(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	if w >= h {
		nh := h * max / w
		if nh < 1 {
			nh = 1
		}
		return max, nh
	}
	nw := w * max / h
	if nw < 1 {
		nw = 1
	}
	return nw, max
}

// MakeThumbnail decodes an image and returns a JPEG of at most max x max
// pixels. Transparent areas are flattened onto white.
func MakeThumbnail(src io.Reader, max, quality int, maxDecodedSize int64) ([]byte, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	// Check decoded size before decoding: a crafted header can claim 65535x65535.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read image dimensions: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height)*4 > maxDecodedSize {
		return nil, fmt.Errorf("image too large: %dx%d pixels, decoded size would exceed %d bytes limit", cfg.Width, cfg.Height, maxDecodedSize)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := ThumbnailSize(bounds.Dx(), bounds.Dy(), max)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return out.Bytes(), nil
}
