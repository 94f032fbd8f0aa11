package diff

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steve-taylor/viz"
	"github.com/steve-taylor/viz/internal/artifacts"
	"github.com/steve-taylor/viz/internal/plan"
)

var white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// withBlock paints a red w×h block at (x, y).
func withBlock(img *image.NRGBA, x, y, w, h int) *image.NRGBA {
	out := image.NewNRGBA(img.Rect)
	copy(out.Pix, img.Pix)
	for j := y; j < y+h; j++ {
		for i := x; i < x+w; i++ {
			out.SetNRGBA(i, j, color.NRGBA{R: 255, A: 255})
		}
	}
	return out
}

func save(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, writePNG(path, img))
}

func TestPixelComparatorIdentical(t *testing.T) {
	dir := t.TempDir()
	a, b, d := filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png"), filepath.Join(dir, "d.png")
	save(t, a, solid(20, 20, white))
	save(t, b, solid(20, 20, white))

	res, err := PixelComparator{}.Compare(a, b, d)
	require.NoError(t, err)
	assert.True(t, res.Same)
	assert.Zero(t, res.DiffCount)
	_, err = os.Stat(d)
	assert.True(t, os.IsNotExist(err), "no diff image for identical screenshots")
}

func TestPixelComparatorCountsBlock(t *testing.T) {
	dir := t.TempDir()
	a, b, d := filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png"), filepath.Join(dir, "d.png")
	base := solid(40, 40, white)
	save(t, a, withBlock(base, 5, 5, 10, 5))
	save(t, b, base)

	res, err := PixelComparator{}.Compare(a, b, d)
	require.NoError(t, err)
	assert.False(t, res.Same)
	assert.Equal(t, 50, res.DiffCount)
	out, err := readPNG(d)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 40), out.Rect)
}

func TestPixelComparatorDiffCoversPaddedArea(t *testing.T) {
	dir := t.TempDir()
	a, b, d := filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png"), filepath.Join(dir, "d.png")
	black := color.NRGBA{A: 255}
	save(t, a, solid(10, 10, black))
	save(t, b, solid(12, 10, black))

	res, err := PixelComparator{IncludeAA: true}.Compare(a, b, d)
	require.NoError(t, err)
	assert.Equal(t, 20, res.DiffCount)
	out, err := readPNG(d)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 12, 10), out.Rect)
}

func TestPixelComparatorThreshold(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")
	save(t, a, solid(10, 10, white))
	save(t, b, solid(10, 10, color.NRGBA{R: 250, G: 250, B: 250, A: 255}))

	res, err := PixelComparator{}.Compare(a, b, "")
	require.NoError(t, err)
	assert.Equal(t, 100, res.DiffCount)

	res, err = PixelComparator{Threshold: 0.1}.Compare(a, b, "")
	require.NoError(t, err)
	assert.True(t, res.Same)
}

func TestPixelComparatorSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")
	black := color.NRGBA{A: 255}
	save(t, a, solid(10, 10, black))
	save(t, b, solid(10, 12, black))

	res, err := PixelComparator{IncludeAA: true}.Compare(a, b, "")
	require.NoError(t, err)
	assert.Equal(t, 20, res.DiffCount)
}

func TestPixelComparatorMissingFile(t *testing.T) {
	_, err := PixelComparator{}.Compare("/nope/a.png", "/nope/b.png", "")
	assert.Error(t, err)
}

func TestDifferRun(t *testing.T) {
	root := t.TempDir()
	r := artifacts.Resolver{Root: filepath.Join(root, "out")}
	reportDir := filepath.Join(root, "report")
	vp := viz.Viewport{Width: 40, Height: 40}

	same := plan.Permutation{Suite: "Button", Test: "default", Viewport: vp}
	changed := plan.Permutation{Suite: "Button", Test: "hover", Viewport: vp, Ordinal: 1}
	absent := plan.Permutation{Suite: "Button", Test: "broken", Viewport: vp, Ordinal: 2}

	base := solid(40, 40, white)
	for _, p := range []plan.Permutation{same, changed, absent} {
		save(t, r.Path(artifacts.Baseline, p.Key()), base)
	}
	save(t, r.Path(artifacts.Tested, same.Key()), base)
	save(t, r.Path(artifacts.Tested, changed.Key()), withBlock(base, 10, 10, 10, 5))

	d := &Differ{Resolver: r, ReportDir: reportDir, Comparator: PixelComparator{}, Workers: 2}
	cases, err := d.Run(context.Background(), []plan.Permutation{same, changed, absent})
	require.NoError(t, err)
	require.Len(t, cases, 3)

	assert.True(t, cases[0].Passed)

	assert.False(t, cases[1].Passed)
	assert.Equal(t, "Differed by 50 pixels", cases[1].Message)
	assert.Equal(t, filepath.Join(reportDir, "failing-screenshots", "diff", "Button", "hover", "40x40.png"), cases[1].Attachment)
	for _, kind := range []string{"baseline", "tested", "diff"} {
		_, err := os.Stat(filepath.Join(reportDir, "failing-screenshots", kind, "Button", "hover", "40x40.png"))
		assert.NoError(t, err, kind)
	}

	assert.False(t, cases[2].Passed)
	assert.Equal(t, "No screenshot was captured", cases[2].Message)
	assert.False(t, Passed(cases))
}
