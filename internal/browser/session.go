package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/steve-taylor/viz"
)

// Session is one lane: a Chrome process with the runner page loaded and a
// viz environment bound to it. It implements capture.Lane.
type Session struct {
	Index int

	url     string
	bundle  viz.Bundle
	surface *Surface
	cancel  context.CancelFunc

	mu  sync.Mutex
	env *viz.Env
}

func newSession(idx int, url string, bundle viz.Bundle, tab context.Context, cancel context.CancelFunc) *Session {
	s := &Session{
		Index:   idx,
		url:     url,
		bundle:  bundle,
		surface: NewSurface(tab, idx),
		cancel:  cancel,
	}
	s.env = viz.NewEnv(bundle, s.surface)
	return s
}

// current returns the environment of the page currently loaded. A dispatch
// abandoned before a reload keeps the environment it started with.
func (s *Session) current() *viz.Env {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env
}

func (s *Session) RegisterAll(ctx context.Context) error {
	return s.current().RegisterAll(ctx)
}

func (s *Session) Suites(ctx context.Context) ([]viz.SuiteInfo, error) {
	return s.current().Suites(ctx)
}

func (s *Session) Tests(ctx context.Context) ([]viz.TestInfo, error) {
	return s.current().Tests(ctx)
}

func (s *Session) RunBatch(ctx context.Context, items []viz.BatchItem) ([]viz.Outcome, error) {
	return s.current().RunBatch(ctx, items)
}

func (s *Session) Reset(ctx context.Context) error {
	return s.current().Reset(ctx)
}

// RunOne renders a single test for manual inspection.
func (s *Session) RunOne(ctx context.Context, suiteName, testName string) (viz.Target, error) {
	return s.current().RunOne(ctx, suiteName, testName)
}

func (s *Session) Resize(ctx context.Context, vp viz.Viewport) error {
	log.Debug().Int("lane", s.Index).Stringer("viewport", vp).Msg("resizing")
	return s.surface.Resize(ctx, vp)
}

// Reload reloads the runner page and binds a fresh environment to it.
func (s *Session) Reload(ctx context.Context) error {
	log.Debug().Int("lane", s.Index).Msg("reloading page")
	if err := s.surface.run(ctx,
		chromedp.Navigate(s.url),
		chromedp.WaitReady("#"+RootID, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("reload lane %d: %w", s.Index, err)
	}
	env := viz.NewEnv(s.bundle, s.surface)
	s.mu.Lock()
	s.env = env
	s.mu.Unlock()
	return nil
}

// Close shuts the lane's browser down.
func (s *Session) Close() error {
	s.cancel()
	return nil
}

// forwardConsole logs page console output and uncaught exceptions.
func forwardConsole(tab context.Context, lane int) {
	chromedp.ListenTarget(tab, func(ev interface{}) {
		switch e := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			args := make([]string, 0, len(e.Args))
			for _, a := range e.Args {
				if a.Value != nil {
					args = append(args, string(a.Value))
				} else {
					args = append(args, a.Description)
				}
			}
			log.Debug().Int("lane", lane).Str("type", string(e.Type)).Strs("args", args).Msg("page console")
		case *runtime.EventExceptionThrown:
			if e.ExceptionDetails != nil {
				log.Warn().Int("lane", lane).Str("text", e.ExceptionDetails.Text).Msg("page exception")
			}
		}
	})
}
