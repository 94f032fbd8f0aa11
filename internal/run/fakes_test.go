package run

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/steve-taylor/viz"
)

// paintSurface renders a 40x40 white square per capture, with a 10x5 red
// block when the last markup set contains "broken".
type paintSurface struct {
	mu       sync.Mutex
	next     int
	last     string
	captures int
}

type paintContainer struct {
	s  *paintSurface
	id string
}

func (c *paintContainer) ID() string       { return c.id }
func (c *paintContainer) Selector() string { return "#" + c.id }

func (c *paintContainer) SetHTML(_ context.Context, html string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.last = html
	return nil
}

func (c *paintContainer) Eval(context.Context, string, any) error { return nil }
func (c *paintContainer) Click(context.Context, string) error     { return nil }
func (c *paintContainer) Hover(context.Context, string) error     { return nil }

func (c *paintContainer) Query(_ context.Context, sel string) (viz.Target, error) {
	return viz.CSS(c.Selector() + " " + sel), nil
}

func (s *paintSurface) NewContainer(context.Context) (viz.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return &paintContainer{s: s, id: fmt.Sprintf("c%d", s.next)}, nil
}

func (s *paintSurface) RemoveContainer(context.Context, viz.Container) error { return nil }
func (s *paintSurface) ClearRoot(context.Context) error                      { return nil }
func (s *paintSurface) ResetPointer(context.Context) error                   { return nil }

func (s *paintSurface) Measure(context.Context, viz.Container, viz.Target) (viz.Geometry, error) {
	return viz.Geometry{Box: viz.Rect{Width: 40, Height: 40}, HasParent: true, ParentIsContainer: true}, nil
}

func (s *paintSurface) Capture(_ context.Context, clip viz.Rect, path string) error {
	s.mu.Lock()
	s.captures++
	broken := strings.Contains(s.last, "broken")
	s.mu.Unlock()

	img := image.NewNRGBA(image.Rect(0, 0, int(clip.Width), int(clip.Height)))
	for y := 0; y < img.Rect.Dy(); y++ {
		for x := 0; x < img.Rect.Dx(); x++ {
			c := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			if broken && x >= 5 && x < 15 && y >= 5 && y < 10 {
				c = color.NRGBA{R: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

type fakeLane struct {
	*viz.Env
	closed  bool
	reloads int
}

func (l *fakeLane) Resize(context.Context, viz.Viewport) error { return nil }
func (l *fakeLane) Close() error                               { l.closed = true; return nil }

func (l *fakeLane) Reload(ctx context.Context) error {
	l.reloads++
	return l.Env.Reset(ctx)
}

// fakeLauncher checks the runner page is served, then binds each lane to
// one shared paintSurface.
type fakeLauncher struct {
	surface *paintSurface
	lanes   []*fakeLane
	page    string
	err     error
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{surface: &paintSurface{}}
}

func (f *fakeLauncher) Launch(ctx context.Context, n int, url string, bundle viz.Bundle) ([]Lane, error) {
	if f.err != nil {
		return nil, f.err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("runner page: %s", resp.Status)
	}
	f.page = string(body)

	out := make([]Lane, 0, n)
	for i := 0; i < n; i++ {
		l := &fakeLane{Env: viz.NewEnv(bundle, f.surface)}
		f.lanes = append(f.lanes, l)
		out = append(out, l)
	}
	return out, nil
}
