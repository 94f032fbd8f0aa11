// Package capture shards planned permutations across browser lanes and
// drives each lane's batches with hang detection and reload retries.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/steve-taylor/viz"
	"github.com/steve-taylor/viz/internal/plan"
)

const (
	// BatchSize bounds how many tests one dispatch runs between reloads.
	BatchSize = 20
	// PerTestTimeout is the hang budget per test in a batch.
	PerTestTimeout = 7 * time.Second
	// Retries is how many times a hung batch is retried after a reload.
	Retries = 2
	// AbandonGrace is how long an abandoned dispatch may take to unwind
	// before the lane is reloaded anyway.
	AbandonGrace = 5 * time.Second
)

// HangTimeout is the deadline for one dispatch of a batch of size n.
func HangTimeout(n int) time.Duration {
	return PerTestTimeout * time.Duration(n)
}

// Lane is one browser session.
type Lane interface {
	viz.Environment
	// Resize sets the rendering surface to vp.
	Resize(ctx context.Context, vp viz.Viewport) error
	// Reload reloads the session's page, discarding its registrations.
	Reload(ctx context.Context) error
}

// HangError reports a dispatch that outlived its deadline.
type HangError struct {
	Timeout time.Duration
}

func (e *HangError) Error() string {
	return fmt.Sprintf("batch did not finish within %s", e.Timeout)
}

// BatchError is fatal: a batch failed on every attempt.
type BatchError struct {
	Lane     int
	Viewport viz.Viewport
	Tests    []string
	Attempts int
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("screenshot batch failed %d times on lane %d at %s [%s]: %v",
		e.Attempts, e.Lane, e.Viewport, strings.Join(e.Tests, ", "), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Failure is a test whose hooks or runner failed at runtime.
type Failure struct {
	Permutation plan.Permutation
	Err         error
}

// Result summarises a capture pass.
type Result struct {
	Captured int
	Failures []Failure
}

// Scheduler runs every lane in parallel. Within a lane, viewport groups and
// batches run sequentially in catalog order.
type Scheduler struct {
	Lanes []Lane
	// Path resolves the artifact each permutation is written to.
	Path func(plan.Permutation) string

	// Zero values select BatchSize, a HangTimeout sized to the batch and Retries.
	BatchSize int
	Timeout   time.Duration
	Retries   int
}

func (s *Scheduler) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return BatchSize
}

func (s *Scheduler) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return HangTimeout(s.batchSize())
}

func (s *Scheduler) retries() int {
	if s.Retries > 0 {
		return s.Retries
	}
	return Retries
}

// Run captures every group. The first fatal lane error cancels the others
// and is returned with whatever was collected.
func (s *Scheduler) Run(ctx context.Context, groups []plan.Group) (Result, error) {
	if len(s.Lanes) == 0 {
		return Result{}, errors.New("no browser lanes")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		res      Result
		firstErr error
	)
	for i, lane := range s.Lanes {
		i, lane := i, lane // per-iteration copy (Go 1.22 loopvar semantics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			lr, err := s.runLane(ctx, i, lane, groups)

			mu.Lock()
			defer mu.Unlock()
			res.Captured += lr.Captured
			res.Failures = append(res.Failures, lr.Failures...)
			if err != nil && firstErr == nil {
				firstErr = err
				cancel()
			}
		}()
	}
	wg.Wait()

	if firstErr == nil {
		log.Info().Int("captured", res.Captured).Int("failed", len(res.Failures)).Msg("screenshots complete")
	}
	return res, firstErr
}

func (s *Scheduler) runLane(ctx context.Context, idx int, lane Lane, groups []plan.Group) (Result, error) {
	var res Result
	for _, g := range groups {
		perms := plan.ForLane(g.Permutations, idx, len(s.Lanes))
		if len(perms) == 0 {
			continue
		}
		log.Info().Int("lane", idx).Int("tests", len(perms)).Str("viewport", g.Viewport.String()).Msg("running tests")

		if err := lane.Resize(ctx, g.Viewport); err != nil {
			return res, fmt.Errorf("lane %d: resize to %s: %w", idx, g.Viewport, err)
		}
		for start := 0; start < len(perms); start += s.batchSize() {
			end := min(start+s.batchSize(), len(perms))
			br, err := s.runBatch(ctx, idx, lane, g.Viewport, perms[start:end])
			res.Captured += br.Captured
			res.Failures = append(res.Failures, br.Failures...)
			if err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func (s *Scheduler) runBatch(ctx context.Context, idx int, lane Lane, vp viz.Viewport, batch []plan.Permutation) (Result, error) {
	items := make([]viz.BatchItem, len(batch))
	byItem := make(map[viz.BatchItem]plan.Permutation, len(batch))
	for i, p := range batch {
		items[i] = viz.BatchItem{Suite: p.Suite, Test: p.Test, OutputPath: s.Path(p)}
		byItem[items[i]] = p
	}

	attempts := s.retries() + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		outcomes, err := s.dispatch(ctx, lane, items)
		if err == nil {
			return collect(outcomes, byItem), nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if isAuthoring(err) {
			return Result{}, err
		}
		lastErr = err

		ev := log.Warn().Err(err).Int("lane", idx).Str("viewport", vp.String()).Int("attempt", attempt)
		if attempt < attempts {
			ev.Msg("batch failed, reloading and retrying")
		} else {
			ev.Msg("batch failed, no retries left")
		}

		if err := s.revive(ctx, lane, vp); err != nil {
			if isAuthoring(err) || ctx.Err() != nil {
				return Result{}, err
			}
			lastErr = fmt.Errorf("%v (reload: %w)", lastErr, err)
		}
	}

	names := make([]string, len(batch))
	for i, p := range batch {
		names[i] = p.Suite + "/" + p.Test
	}
	log.Error().Int("lane", idx).Str("viewport", vp.String()).Strs("tests", names).
		Msgf("tried running screenshot batch %d times with no success", attempts)
	return Result{}, &BatchError{Lane: idx, Viewport: vp, Tests: names, Attempts: attempts, Err: lastErr}
}

// dispatch races one batch against the hang timeout. A dispatch that loses
// is cancelled and given AbandonGrace to unwind; its outcome is discarded.
func (s *Scheduler) dispatch(ctx context.Context, lane Lane, items []viz.BatchItem) ([]viz.Outcome, error) {
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		outcomes []viz.Outcome
		err      error
	}
	done := make(chan result, 1)
	go func() {
		o, err := lane.RunBatch(dctx, items)
		done <- result{o, err}
	}()

	timer := time.NewTimer(s.timeout())
	defer timer.Stop()

	select {
	case r := <-done:
		return r.outcomes, r.err
	case <-timer.C:
		cancel()
		abandon(done)
		return nil, &HangError{Timeout: s.timeout()}
	case <-ctx.Done():
		cancel()
		abandon(done)
		return nil, ctx.Err()
	}
}

func abandon[T any](done <-chan T) {
	grace := time.NewTimer(AbandonGrace)
	defer grace.Stop()
	select {
	case <-done:
	case <-grace.C:
		log.Warn().Msg("abandoned batch is still running")
	}
}

func (s *Scheduler) revive(ctx context.Context, lane Lane, vp viz.Viewport) error {
	if err := lane.Reload(ctx); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := lane.RegisterAll(ctx); err != nil {
		return err
	}
	return lane.Resize(ctx, vp)
}

func collect(outcomes []viz.Outcome, byItem map[viz.BatchItem]plan.Permutation) Result {
	var res Result
	for _, o := range outcomes {
		p := byItem[o.Item]
		if o.Err != nil {
			log.Error().Err(o.Err).Str("suite", p.Suite).Str("test", p.Test).Str("viewport", p.Viewport.String()).
				Msg("test failed")
			res.Failures = append(res.Failures, Failure{Permutation: p, Err: o.Err})
			continue
		}
		if o.Captured {
			res.Captured++
		}
	}
	return res
}

func isAuthoring(err error) bool {
	var (
		missing *viz.MissingScreenshotTargetError
		nested  *viz.NestedSuiteError
		noSuite *viz.NoCurrentSuiteError
	)
	return errors.As(err, &missing) || errors.As(err, &nested) || errors.As(err, &noSuite) ||
		errors.Is(err, viz.ErrRegistryClosed)
}
