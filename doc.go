// Package viz is a visual-regression test engine. Suites of tests render UI
// fragments into a real browser at declared viewports; the host captures
// pixel screenshots and compares them against approved baselines.
//
// Test authors describe their suites in a Bundle:
//
//	func Register(r *viz.Registry) {
//		r.Describe("Button", func() {
//			r.Test("default", func(ctx context.Context, c viz.Container) (viz.Target, error) {
//				if err := c.SetHTML(ctx, `<button id="b">OK</button>`); err != nil {
//					return nil, err
//				}
//				return c.Query(ctx, "#b")
//			})
//		}, viz.Viewport{Width: 400, Height: 300})
//	}
//
// and hand the bundle to vizcli.Main from their own main package.
package viz
