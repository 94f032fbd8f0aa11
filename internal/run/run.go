// Package run implements the compile, baseline, test and debug workflows.
package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/steve-taylor/viz"
	"github.com/steve-taylor/viz/internal/artifacts"
	"github.com/steve-taylor/viz/internal/capture"
	"github.com/steve-taylor/viz/internal/config"
	"github.com/steve-taylor/viz/internal/plan"
	"github.com/steve-taylor/viz/internal/web"
)

// Lane is a launched browser session.
type Lane interface {
	capture.Lane
	RunOne(ctx context.Context, suiteName, testName string) (viz.Target, error)
	Close() error
}

// Launcher starts n lanes showing the runner page at url with bundle loaded.
type Launcher interface {
	Launch(ctx context.Context, n int, url string, bundle viz.Bundle) ([]Lane, error)
}

// ErrNoLanes is returned when a launcher starts nothing.
var ErrNoLanes = errors.New("launcher returned no lanes")

// session is the runner server plus the lanes pointed at it.
type session struct {
	srv   *web.Server
	lanes []Lane
}

func open(ctx context.Context, cfg *config.Config, launcher Launcher, bundle viz.Bundle, n int) (*session, error) {
	srv, err := web.Start(cfg.TmpDir)
	if err != nil {
		return nil, fmt.Errorf("serve runner: %w", err)
	}
	s := &session{srv: srv}
	if err := web.WaitReady(ctx, srv.URL, 50*time.Millisecond); err != nil {
		s.close()
		return nil, fmt.Errorf("runner server: %w", err)
	}

	log.Info().Int("lanes", n).Msg("launching browsers")
	lanes, err := launcher.Launch(ctx, n, srv.URL+"/"+RunnerFile, bundle)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("launch browsers: %w", err)
	}
	if len(lanes) == 0 {
		s.close()
		return nil, ErrNoLanes
	}
	s.lanes = lanes
	return s, nil
}

func (s *session) captureLanes() []capture.Lane {
	out := make([]capture.Lane, len(s.lanes))
	for i, l := range s.lanes {
		out[i] = l
	}
	return out
}

// close shuts lanes and server down. It is safe to call more than once.
func (s *session) close() {
	for _, l := range s.lanes {
		if err := l.Close(); err != nil {
			log.Warn().Err(err).Msg("closing browser")
		}
	}
	s.lanes = nil
	if s.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("closing runner server")
		}
		s.srv = nil
	}
}

// registerAll runs every lane's registrations in parallel. Batches only
// run against registered lanes.
func registerAll(ctx context.Context, lanes []Lane) error {
	errs := make([]error, len(lanes))
	var wg sync.WaitGroup
	for i, lane := range lanes {
		i, lane := i, lane // per-iteration copy (Go 1.22 loopvar semantics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := lane.RegisterAll(ctx); err != nil {
				errs[i] = fmt.Errorf("register tests in lane %d: %w", i, err)
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// discover registers tests in every lane and plans the catalog from the
// first.
func discover(ctx context.Context, lanes []Lane, def viz.Viewport, f plan.Filter) (plan.Catalog, error) {
	if err := registerAll(ctx, lanes); err != nil {
		return plan.Catalog{}, err
	}
	lane := lanes[0]
	suites, err := lane.Suites(ctx)
	if err != nil {
		return plan.Catalog{}, fmt.Errorf("list suites: %w", err)
	}
	tests, err := lane.Tests(ctx)
	if err != nil {
		return plan.Catalog{}, fmt.Errorf("list tests: %w", err)
	}
	cat := plan.Resolve(suites, tests, def, f)
	log.Info().Int("suites", len(suites)).Int("tests", len(cat.Tests)).
		Int("viewports", len(cat.Groups)).Msg("discovered tests")
	return cat, nil
}

func keys(perms []plan.Permutation) []artifacts.Key {
	out := make([]artifacts.Key, len(perms))
	for i, p := range perms {
		out[i] = p.Key()
	}
	return out
}
