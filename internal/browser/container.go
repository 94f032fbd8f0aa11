package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/steve-taylor/viz"
)

type container struct {
	s  *Surface
	id string
}

func (c *container) ID() string       { return c.id }
func (c *container) Selector() string { return "#" + c.id }

func (c *container) scoped(selector string) string {
	return c.Selector() + " " + selector
}

func (c *container) SetHTML(ctx context.Context, html string) error {
	return c.s.eval(ctx, setHTMLJS(c.id, html), nil)
}

func (c *container) Eval(ctx context.Context, body string, res any) error {
	return c.s.eval(ctx, evalJS(c.id, body), res)
}

func (c *container) Query(ctx context.Context, selector string) (viz.Target, error) {
	sel := c.scoped(selector)
	var ok bool
	if err := c.s.eval(ctx, existsJS(sel), &ok); err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no element matches %q", sel)
	}
	return viz.CSS(sel), nil
}

func (c *container) Click(ctx context.Context, selector string) error {
	p, err := c.s.locate(ctx, c.scoped(selector))
	if err != nil {
		return err
	}
	return c.s.run(ctx, chromedp.MouseClickXY(p.X, p.Y))
}

func (c *container) Hover(ctx context.Context, selector string) error {
	p, err := c.s.locate(ctx, c.scoped(selector))
	if err != nil {
		return err
	}
	return c.s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, p.X, p.Y).Do(ctx)
	}))
}
