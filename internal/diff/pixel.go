package diff

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/orisano/pixelmatch"
)

// Result is the outcome of comparing two images.
type Result struct {
	Same      bool
	DiffCount int
}

// Comparator compares a tested image against its baseline. It writes a diff
// image to diffPath only when the images differ.
type Comparator interface {
	Compare(tested, baseline, diffPath string) (Result, error)
}

// PixelComparator counts pixels whose perceived colour difference exceeds
// Threshold, measured in YIQ space. Threshold runs from 0 (exact) to 1.
// Pixels that look like anti-aliasing are ignored unless IncludeAA is set.
// Images of different sizes are compared over their union, padded with
// transparent pixels.
type PixelComparator struct {
	Threshold float64
	IncludeAA bool
}

func (c PixelComparator) Compare(tested, baseline, diffPath string) (Result, error) {
	a, err := readPNG(tested)
	if err != nil {
		return Result{}, err
	}
	b, err := readPNG(baseline)
	if err != nil {
		return Result{}, err
	}
	a, b = pad(a, b)

	var out image.Image
	opts := []pixelmatch.MatchOption{pixelmatch.Threshold(c.Threshold), pixelmatch.WriteTo(&out)}
	if c.IncludeAA {
		opts = append(opts, pixelmatch.IncludeAntiAlias)
	}
	count, err := pixelmatch.MatchPixel(a, b, opts...)
	if err != nil {
		return Result{}, fmt.Errorf("compare %s: %w", tested, err)
	}
	if count == 0 {
		return Result{Same: true}, nil
	}
	if diffPath != "" && out != nil {
		if err := writePNG(diffPath, out); err != nil {
			return Result{}, err
		}
	}
	return Result{DiffCount: count}, nil
}

func readPNG(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n, nil
	}
	b := img.Bounds()
	n := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(n, n.Rect, img, b.Min, draw.Src)
	return n, nil
}

// pad grows both images to their common bounding size.
func pad(a, b *image.NRGBA) (*image.NRGBA, *image.NRGBA) {
	if a.Rect == b.Rect {
		return a, b
	}
	r := image.Rect(0, 0, max(a.Rect.Dx(), b.Rect.Dx()), max(a.Rect.Dy(), b.Rect.Dy()))
	grow := func(img *image.NRGBA) *image.NRGBA {
		if img.Rect == r {
			return img
		}
		n := image.NewNRGBA(r)
		draw.Draw(n, img.Rect, img, image.Point{}, draw.Src)
		return n
	}
	return grow(a), grow(b)
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
