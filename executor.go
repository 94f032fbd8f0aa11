package viz

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// SlowTestWarning is how long a single test may run before a warning is logged.
const SlowTestWarning = 5 * time.Second

// MissingScreenshotTargetError is returned when a runner yields no target.
type MissingScreenshotTargetError struct {
	Suite string
	Test  string
}

func (e *MissingScreenshotTargetError) Error() string {
	return fmt.Sprintf("no screenshot target returned from test %s/%s: did you forget to return the element?", e.Suite, e.Test)
}

// BatchItem is one permutation dispatched to a session.
type BatchItem struct {
	Suite      string `json:"suiteName"`
	Test       string `json:"testName"`
	OutputPath string `json:"screenshotOutputPath"`
}

func (i BatchItem) String() string {
	return i.Suite + "/" + i.Test
}

// Outcome is the per-item result of a batch. Err holds a runtime failure
// of the test's hooks or runner; such items are not captured.
type Outcome struct {
	Item     BatchItem
	Captured bool
	Err      error
}

// Executor runs registered tests against a surface.
type Executor struct {
	registry *Registry
	surface  Surface

	capture      func(ctx context.Context, clip Rect, path string) error
	resetPointer func(ctx context.Context) error
	prepared     bool
}

// NewExecutor returns an executor that captures through surface.
func NewExecutor(r *Registry, s Surface) *Executor {
	return &Executor{
		registry:     r,
		surface:      s,
		capture:      s.Capture,
		resetPointer: s.ResetPointer,
	}
}

// PrepareEnvironment readies the executor for manual debugging: captures
// are logged instead of written, the pointer is left alone, tests are
// registered and the root is emptied.
func (e *Executor) PrepareEnvironment(ctx context.Context) error {
	if !e.prepared {
		e.capture = func(_ context.Context, clip Rect, path string) error {
			log.Info().
				Float64("x", clip.X).Float64("y", clip.Y).
				Float64("width", clip.Width).Float64("height", clip.Height).
				Str("path", path).
				Msg("screenshot would be taken")
			return nil
		}
		e.resetPointer = func(context.Context) error { return nil }
		e.prepared = true
	}
	if e.registry.Phase() == PhaseOpen {
		if err := e.registry.RunAllRegistrations(); err != nil {
			return err
		}
	}
	return e.surface.ClearRoot(ctx)
}

// RunOne renders a single test for inspection and returns its target. An
// unknown test is reported and yields a nil target. The container stays
// mounted unless the test fails.
func (e *Executor) RunOne(ctx context.Context, suiteName, testName string) (Target, error) {
	if err := e.PrepareEnvironment(ctx); err != nil {
		return nil, err
	}

	tc, ok := e.registry.Lookup(suiteName, testName)
	if !ok {
		log.Warn().Str("suite", suiteName).Str("test", testName).
			Msg("no such test; list the registered tests to see what is available")
		return nil, nil
	}

	c, err := e.surface.NewContainer(ctx)
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}

	log.Info().Str("suite", suiteName).Str("test", testName).Msg("running test")
	var target Target
	err = guard(func() error {
		var runErr error
		target, runErr = tc.Runner(ctx, c)
		return runErr
	})
	if err != nil {
		if rmErr := e.surface.RemoveContainer(ctx, c); rmErr != nil {
			log.Warn().Err(rmErr).Msg("remove container after failed test")
		}
		return nil, err
	}
	if target != nil {
		log.Info().Str("selector", target.Selector()).Msg("screenshot would be taken of this element")
	}
	return target, nil
}

// RunBatch runs items in order. A failing test is logged and reported in
// its Outcome without stopping the batch. A missing screenshot target, an
// unknown test or a surface failure aborts the batch and is returned along
// with the outcomes gathered so far.
func (e *Executor) RunBatch(ctx context.Context, items []BatchItem) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(items))
	for _, item := range items {
		out, err := e.runItem(ctx, item)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func (e *Executor) runItem(ctx context.Context, item BatchItem) (out Outcome, fatal error) {
	out.Item = item
	tc, ok := e.registry.Lookup(item.Suite, item.Test)
	if !ok {
		return out, fmt.Errorf("test %s is not registered in this session", item)
	}
	initializer, finalizer := e.registry.hooks(item.Suite)

	slow := time.AfterFunc(SlowTestWarning, func() {
		log.Warn().Str("suite", item.Suite).Str("test", item.Test).Msg("test is being slow")
	})
	defer slow.Stop()

	c, err := e.surface.NewContainer(ctx)
	if err != nil {
		return out, fmt.Errorf("create container for %s: %w", item, err)
	}

	target, runErr := invoke(ctx, c, initializer, tc.Runner)
	switch {
	case runErr != nil:
		log.Error().Err(runErr).Str("suite", item.Suite).Str("test", item.Test).Msg("error running test")
		out.Err = runErr
	case target == nil:
		fatal = &MissingScreenshotTargetError{Suite: item.Suite, Test: item.Test}
	default:
		fatal = e.shoot(ctx, c, target, item)
		out.Captured = fatal == nil
	}

	if finalizer != nil {
		if err := guard(func() error { return finalizer(ctx, c) }); err != nil {
			log.Error().Err(err).Str("suite", item.Suite).Str("test", item.Test).Msg("error calling afterEach")
		}
	}

	if err := e.surface.RemoveContainer(ctx, c); err != nil && fatal == nil {
		fatal = fmt.Errorf("remove container for %s: %w", item, err)
	}
	if err := e.resetPointer(ctx); err != nil && fatal == nil {
		fatal = fmt.Errorf("reset pointer after %s: %w", item, err)
	}
	return out, fatal
}

func (e *Executor) shoot(ctx context.Context, c Container, target Target, item BatchItem) error {
	geo, err := e.surface.Measure(ctx, c, target)
	if err != nil {
		return fmt.Errorf("measure %s target %q: %w", item, target.Selector(), err)
	}
	// An abandoned dispatch must not write artifacts.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.capture(ctx, geo.Clip(), item.OutputPath); err != nil {
		return fmt.Errorf("capture %s: %w", item, err)
	}
	return nil
}

func invoke(ctx context.Context, c Container, initializer Initializer, runner Runner) (target Target, err error) {
	err = guard(func() error {
		if initializer != nil {
			if err := initializer(ctx); err != nil {
				return fmt.Errorf("beforeEach: %w", err)
			}
		}
		var runErr error
		target, runErr = runner(ctx, c)
		return runErr
	})
	return target, err
}

// guard converts a panic in test code into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
