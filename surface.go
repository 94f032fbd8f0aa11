package viz

import "context"

// Target identifies the element a test wants captured.
type Target interface {
	Selector() string
}

// CSS is a Target addressed by a document-wide CSS selector.
type CSS string

func (s CSS) Selector() string { return string(s) }

// Container is the fresh element a test renders into. It is removed once
// the test has been captured.
type Container interface {
	Target
	ID() string
	// SetHTML replaces the container's markup.
	SetHTML(ctx context.Context, html string) error
	// Eval runs the body of a function whose only parameter, el, is the
	// container element. The returned value is decoded into res when non-nil.
	Eval(ctx context.Context, body string, res any) error
	// Query resolves a selector inside the container.
	Query(ctx context.Context, selector string) (Target, error)
	Click(ctx context.Context, selector string) error
	Hover(ctx context.Context, selector string) error
}

// Rect is a rectangle in CSS pixels relative to the page.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Padding is an element's computed padding in CSS pixels.
type Padding struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Geometry is what a surface reports about a target before capture.
type Geometry struct {
	Box               Rect    `json:"box"`
	HasParent         bool    `json:"hasParent"`
	ParentIsContainer bool    `json:"parentIsContainer"`
	ParentPadding     Padding `json:"parentPadding"`
}

// Clip returns the capture rectangle. When the target's parent is an
// element the test created itself, the parent's padding is included so the
// capture keeps the spacing the test laid out.
func (g Geometry) Clip() Rect {
	if !g.HasParent || g.ParentIsContainer {
		return g.Box
	}
	return ExpandRect(g.Box, g.ParentPadding)
}

// ExpandRect grows r by p on all four sides.
func ExpandRect(r Rect, p Padding) Rect {
	return Rect{
		X:      r.X - p.Left,
		Y:      r.Y - p.Top,
		Width:  r.Width + p.Left + p.Right,
		Height: r.Height + p.Top + p.Bottom,
	}
}

// Surface is one session's rendering surface.
type Surface interface {
	NewContainer(ctx context.Context) (Container, error)
	RemoveContainer(ctx context.Context, c Container) error
	ClearRoot(ctx context.Context) error
	Measure(ctx context.Context, c Container, t Target) (Geometry, error)
	// Capture writes a lossless PNG of clip to path, with a transparent
	// page background.
	Capture(ctx context.Context, clip Rect, path string) error
	ResetPointer(ctx context.Context) error
}
