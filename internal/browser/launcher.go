package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/steve-taylor/viz"
)

// Launcher starts lanes.
type Launcher struct {
	Options Options
}

// Launch starts n lanes in parallel, each showing url with bundle loaded.
// If any lane fails to start, the ones that did are closed.
func (l *Launcher) Launch(ctx context.Context, n int, url string, bundle viz.Bundle) ([]*Session, error) {
	sessions := make([]*Session, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], errs[i] = l.start(ctx, i, url, bundle)
		}(i)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		for _, s := range sessions {
			if s != nil {
				_ = s.Close()
			}
		}
		return nil, err
	}
	return sessions, nil
}

func (l *Launcher) start(ctx context.Context, idx int, url string, bundle viz.Bundle) (*Session, error) {
	log.Debug().Int("lane", idx).Bool("headless", l.Options.Headless).Str("binary", l.Options.ExecPath).Msg("launching chrome")

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), AllocatorOptions(l.Options)...)
	tab, tabCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		tabCancel()
		allocCancel()
	}
	forwardConsole(tab, idx)

	actions := []chromedp.Action{}
	if l.Options.NoAnimations {
		actions = append(actions, noAnimations())
	}
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitReady("#"+RootID, chromedp.ByQuery),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(tab, actions...)
	}()

	timeout := l.Options.startTimeout()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			cancel()
			return nil, fmt.Errorf("start lane %d: %w", idx, err)
		}
	case <-timer.C:
		cancel()
		return nil, fmt.Errorf("start lane %d: timed out after %s", idx, timeout)
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}

	log.Info().Int("lane", idx).Msg("lane ready")
	return newSession(idx, url, bundle, tab, cancel), nil
}
