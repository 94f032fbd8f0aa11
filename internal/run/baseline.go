package run

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/steve-taylor/viz"
	"github.com/steve-taylor/viz/internal/artifacts"
	"github.com/steve-taylor/viz/internal/capture"
	"github.com/steve-taylor/viz/internal/check"
	"github.com/steve-taylor/viz/internal/config"
	"github.com/steve-taylor/viz/internal/plan"
)

// BaselineOptions narrow a baseline run.
type BaselineOptions struct {
	// Missing keeps only tests with at least one baseline missing.
	Missing bool
	// Suites keeps only the named suites.
	Suites      []string
	SkipCompile bool
}

func (o BaselineOptions) filtered() bool {
	return o.Missing || len(o.Suites) > 0
}

// Baseline captures baseline screenshots. An unfiltered run replaces the
// whole baseline tree; a filtered one overwrites only what it captures.
func Baseline(ctx context.Context, cfg *config.Config, launcher Launcher, bundle viz.Bundle, opts BaselineOptions) error {
	res := artifacts.Resolver{Root: cfg.OutputPath}
	if err := res.Clean(!opts.filtered()); err != nil {
		return fmt.Errorf("clean output: %w", err)
	}
	if !opts.SkipCompile {
		if err := Compile(cfg); err != nil {
			return err
		}
	}

	s, err := open(ctx, cfg, launcher, bundle, cfg.ConcurrentLimit)
	if err != nil {
		return err
	}
	defer s.close()

	cat, err := discover(ctx, s.lanes, cfg.DefaultViewport(), plan.Filter{
		MissingOnly: opts.Missing,
		Suites:      opts.Suites,
		Exists:      func(k artifacts.Key) bool { return res.Exists(artifacts.Baseline, k) },
	})
	if err != nil {
		return err
	}
	perms := cat.Permutations()
	if dups := check.Duplicates(perms); len(dups) > 0 {
		return fmt.Errorf("%d duplicate tests, e.g. %s", len(dups), dups[0])
	}
	if len(perms) == 0 {
		log.Info().Msg("no baseline screenshots to take")
		return nil
	}
	if err := res.EnsureDirs(keys(perms), artifacts.Baseline); err != nil {
		return err
	}

	log.Info().Int("screenshots", len(perms)).Msg("taking baseline screenshots")
	sched := &capture.Scheduler{
		Lanes: s.captureLanes(),
		Path:  func(p plan.Permutation) string { return res.Path(artifacts.Baseline, p.Key()) },
	}
	result, err := sched.Run(ctx, cat.Groups)
	if err != nil {
		return err
	}
	if len(result.Failures) > 0 {
		return fmt.Errorf("%d of %d tests failed to render", len(result.Failures), len(perms))
	}
	return nil
}
