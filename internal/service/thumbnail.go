package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	"github.com/timmy/shotlens/internal/domain"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Thumbnailer derives small JPEG previews from uploaded images.
type Thumbnailer struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// NewThumbnailer returns a Thumbnailer with the given bounds. Zero values fall back to 400x400 q80.
func NewThumbnailer(maxWidth, maxHeight, quality int) *Thumbnailer {
	if maxWidth <= 0 {
		maxWidth = 400
	}
	if maxHeight <= 0 {
		maxHeight = 400
	}
	if quality <= 0 {
		quality = 80
	}
	return &Thumbnailer{MaxWidth: maxWidth, MaxHeight: maxHeight, Quality: quality}
}

// Make derives a thumbnail with the configured bounds.
func (t *Thumbnailer) Make(img []byte) ([]byte, error) {
	return MakeThumbnail(img, t.MaxWidth, t.MaxHeight, t.Quality)
}

// MakeThumbnail scales img to fit inside maxWidth x maxHeight, keeping its aspect
// ratio, and re-encodes it as JPEG. Images already inside the box keep their size.
// Errors are ThumbnailFailures.
func MakeThumbnail(img []byte, maxWidth, maxHeight, quality int) ([]byte, error) {
	if maxWidth <= 0 || maxHeight <= 0 {
		return nil, domain.ThumbnailError(fmt.Errorf("invalid bounds %dx%d", maxWidth, maxHeight))
	}
	if len(img) == 0 {
		return nil, domain.ThumbnailError(errors.New("empty image"))
	}

	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, domain.ThumbnailError(fmt.Errorf("failed to decode image: %w", err))
	}

	b := src.Bounds()
	w, h := fitInside(b.Dx(), b.Dy(), maxWidth, maxHeight)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
		return nil, domain.ThumbnailError(fmt.Errorf("failed to encode thumbnail: %w", err))
	}
	return buf.Bytes(), nil
}

// fitInside returns the largest size with w:h's aspect ratio that fits in maxW x maxH,
// never larger than w x h. Each side is at least 1.
func fitInside(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := float64(maxW) / float64(w)
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}
	nw := min(max(int(math.Round(float64(w)*scale)), 1), maxW)
	nh := min(max(int(math.Round(float64(h)*scale)), 1), maxH)
	return nw, nh
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}

// imageDimensions reads width and height without decoding pixels.
func imageDimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
