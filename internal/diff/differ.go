// Package diff compares tested screenshots against their baselines.
package diff

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/steve-taylor/viz/internal/artifacts"
	"github.com/steve-taylor/viz/internal/plan"
)

// FailingDir is the report subdirectory failing artifacts are copied into.
const FailingDir = "failing-screenshots"

// Case is the comparison outcome for one permutation.
type Case struct {
	Permutation plan.Permutation
	Passed      bool
	DiffCount   int
	// Message explains a failure.
	Message string
	// Attachment is the copied diff image of a failing case.
	Attachment string
}

// Differ compares every permutation with bounded parallelism. Permutations
// touch disjoint paths, so workers share nothing but the result slice.
type Differ struct {
	Resolver   artifacts.Resolver
	ReportDir  string
	Comparator Comparator
	Workers    int
}

// Failing returns the resolver for copies kept under the report directory.
func (d *Differ) Failing() artifacts.Resolver {
	return artifacts.Resolver{Root: filepath.Join(d.ReportDir, FailingDir)}
}

// Run compares perms and returns one case per permutation in input order.
// An I/O failure other than a missing tested screenshot is returned.
func (d *Differ) Run(ctx context.Context, perms []plan.Permutation) ([]Case, error) {
	workers := d.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	log.Info().Int("screenshots", len(perms)).Msg("testing screenshots")

	cases := make([]Case, len(perms))
	errs := make([]error, len(perms))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, p := range perms {
		i, p := i, p // per-iteration copy (Go 1.22 loopvar semantics)
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			cases[i], errs[i] = d.compare(p)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return cases, err
		}
	}
	return cases, nil
}

func (d *Differ) compare(p plan.Permutation) (Case, error) {
	k := p.Key()
	c := Case{Permutation: p}
	tested := d.Resolver.Path(artifacts.Tested, k)
	baseline := d.Resolver.Path(artifacts.Baseline, k)
	diffPath := d.Resolver.Path(artifacts.Diff, k)

	if !d.Resolver.Exists(artifacts.Tested, k) {
		c.Message = "No screenshot was captured"
		log.Info().Str("suite", p.Suite).Str("test", p.Test).Str("viewport", p.Viewport.String()).
			Msg("test has no tested screenshot")
		return c, nil
	}

	res, err := d.Comparator.Compare(tested, baseline, diffPath)
	if err != nil {
		return c, fmt.Errorf("compare %s: %w", p, err)
	}
	if res.Same {
		c.Passed = true
		return c, nil
	}

	c.DiffCount = res.DiffCount
	c.Message = fmt.Sprintf("Differed by %d pixels", res.DiffCount)
	log.Info().Str("suite", p.Suite).Str("test", p.Test).Str("viewport", p.Viewport.String()).
		Int("pixels", res.DiffCount).Msg("test differed")

	failing := d.Failing()
	for _, kind := range artifacts.Kinds {
		if err := artifacts.CopyFile(d.Resolver.Path(kind, k), failing.Path(kind, k)); err != nil {
			return c, fmt.Errorf("keep failing %s screenshot for %s: %w", kind, p, err)
		}
	}
	c.Attachment = failing.Path(artifacts.Diff, k)
	return c, nil
}

// Passed reports whether every case passed.
func Passed(cases []Case) bool {
	for _, c := range cases {
		if !c.Passed {
			return false
		}
	}
	return true
}
