package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/steve-taylor/viz"
)

// clearAlpha stands in for a zero alpha, which the protocol encoding drops
// (and Chrome then reads as opaque). It rounds to 0 as an 8-bit channel.
const clearAlpha = 0.001

// Surface is a viz.Surface backed by one chromedp tab.
type Surface struct {
	tab  context.Context
	lane int
	next atomic.Int64
}

// NewSurface wraps a chromedp tab context.
func NewSurface(tab context.Context, lane int) *Surface {
	return &Surface{tab: tab, lane: lane}
}

// run executes actions on the tab, abandoning them when ctx is done. The
// tab itself stays open.
func (s *Surface) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithCancel(s.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(tctx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (s *Surface) eval(ctx context.Context, expr string, res any) error {
	return s.run(ctx, chromedp.Evaluate(expr, res, awaitPromise))
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func (s *Surface) NewContainer(ctx context.Context) (viz.Container, error) {
	id := fmt.Sprintf("viz-%d-%d", s.lane, s.next.Add(1))
	var got string
	if err := s.eval(ctx, newContainerJS(id), &got); err != nil {
		return nil, err
	}
	return &container{s: s, id: got}, nil
}

func (s *Surface) RemoveContainer(ctx context.Context, c viz.Container) error {
	return s.eval(ctx, removeContainerJS(c.ID()), nil)
}

func (s *Surface) ClearRoot(ctx context.Context) error {
	return s.eval(ctx, clearRootJS(), nil)
}

func (s *Surface) Measure(ctx context.Context, c viz.Container, t viz.Target) (viz.Geometry, error) {
	var geo viz.Geometry
	err := s.eval(ctx, measureJS(c.ID(), t.Selector()), &geo)
	return geo, err
}

// Capture writes a PNG of clip with the default page background made
// transparent.
func (s *Surface) Capture(ctx context.Context, clip viz.Rect, path string) error {
	var buf []byte
	err := s.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetDefaultBackgroundColorOverride().
				WithColor(&cdp.RGBA{R: 0, G: 0, B: 0, A: clearAlpha}).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithClip(&page.Viewport{X: clip.X, Y: clip.Y, Width: clip.Width, Height: clip.Height, Scale: 1}).
				WithCaptureBeyondViewport(true).
				WithFromSurface(true).
				Do(ctx)
			return err
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetDefaultBackgroundColorOverride().Do(ctx)
		}),
	)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}

// ResetPointer moves the mouse to the page origin, dropping hover state.
func (s *Surface) ResetPointer(ctx context.Context) error {
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, 0, 0).Do(ctx)
	}))
}

// Resize sets the tab's viewport. The device scale factor is pinned to 1.
func (s *Surface) Resize(ctx context.Context, vp viz.Viewport) error {
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return emulation.SetDeviceMetricsOverride(int64(vp.Width), int64(vp.Height), 1, false).Do(ctx)
	}))
}

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s *Surface) locate(ctx context.Context, selector string) (point, error) {
	var p point
	if err := s.eval(ctx, pointJS(selector), &p); err != nil {
		return p, fmt.Errorf("locate %q: %w", selector, err)
	}
	return p, nil
}
