package viz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(suite string, names ...string) []BatchItem {
	out := make([]BatchItem, 0, len(names))
	for _, n := range names {
		out = append(out, BatchItem{Suite: suite, Test: n, OutputPath: "/out/" + suite + "/" + n + ".png"})
	}
	return out
}

func TestRunBatchThrowingTestDoesNotStopBatch(t *testing.T) {
	finalized := 0
	bundle := func(r *Registry) {
		_ = r.Describe("S", func() {
			_ = r.AfterEach(func(context.Context, Container) error { finalized++; return nil })
			_ = r.Test("first", noopRunner)
			_ = r.Test("second", func(context.Context, Container) (Target, error) {
				panic("runner blew up")
			})
			_ = r.Test("third", func(context.Context, Container) (Target, error) {
				return nil, errors.New("runner failed")
			})
			_ = r.Test("fourth", noopRunner)
		})
	}
	s := newFakeSurface()
	env := NewEnv(bundle, s)
	ctx := context.Background()
	require.NoError(t, env.RegisterAll(ctx))

	outcomes, err := env.RunBatch(ctx, items("S", "first", "second", "third", "fourth"))
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	assert.True(t, outcomes[0].Captured)
	assert.ErrorContains(t, outcomes[1].Err, "runner blew up")
	assert.False(t, outcomes[1].Captured)
	assert.ErrorContains(t, outcomes[2].Err, "runner failed")
	assert.True(t, outcomes[3].Captured)

	assert.Equal(t, 4, finalized, "finalizer runs for every test")
	require.Len(t, s.shots, 2)
	assert.Equal(t, "/out/S/first.png", s.shots[0].path)
	assert.Equal(t, "/out/S/fourth.png", s.shots[1].path)
	assert.Empty(t, s.live, "containers are removed")
	assert.Equal(t, 4, s.resets)
}

func TestRunBatchFinalizerRunsWhenInitializerFails(t *testing.T) {
	finalized := 0
	ran := false
	bundle := func(r *Registry) {
		_ = r.Describe("S", func() {
			_ = r.BeforeEach(func(context.Context) error { return errors.New("setup") })
			_ = r.AfterEach(func(context.Context, Container) error {
				finalized++
				return errors.New("teardown")
			})
			_ = r.Test("t", func(context.Context, Container) (Target, error) {
				ran = true
				return CSS("#x"), nil
			})
		})
	}
	env := NewEnv(bundle, newFakeSurface())
	ctx := context.Background()
	require.NoError(t, env.RegisterAll(ctx))

	outcomes, err := env.RunBatch(ctx, items("S", "t"))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.ErrorContains(t, outcomes[0].Err, "beforeEach")
	assert.False(t, ran)
	assert.Equal(t, 1, finalized)
}

func TestRunBatchMissingTargetAbortsBatch(t *testing.T) {
	bundle := func(r *Registry) {
		_ = r.Describe("S", func() {
			_ = r.Test("ok", noopRunner)
			_ = r.Test("empty", func(context.Context, Container) (Target, error) { return nil, nil })
			_ = r.Test("never", noopRunner)
		})
	}
	s := newFakeSurface()
	env := NewEnv(bundle, s)
	ctx := context.Background()
	require.NoError(t, env.RegisterAll(ctx))

	outcomes, err := env.RunBatch(ctx, items("S", "ok", "empty", "never"))
	var missing *MissingScreenshotTargetError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "empty", missing.Test)
	assert.Len(t, outcomes, 1)
	assert.Len(t, s.shots, 1)
	assert.Empty(t, s.live)
}

func TestRunBatchExpandsClipByAuthoredParentPadding(t *testing.T) {
	bundle := func(r *Registry) {
		_ = r.Describe("S", func() { _ = r.Test("t", noopRunner) })
	}
	s := newFakeSurface()
	s.geometry = Geometry{
		Box:           Rect{X: 10, Y: 10, Width: 100, Height: 50},
		HasParent:     true,
		ParentPadding: Padding{Top: 4, Right: 8, Bottom: 2, Left: 6},
	}
	env := NewEnv(bundle, s)
	ctx := context.Background()
	require.NoError(t, env.RegisterAll(ctx))

	_, err := env.RunBatch(ctx, items("S", "t"))
	require.NoError(t, err)
	require.Len(t, s.shots, 1)
	assert.Equal(t, Rect{X: 4, Y: 6, Width: 114, Height: 56}, s.shots[0].clip)
}

func TestRunBatchCaptureErrorIsFatal(t *testing.T) {
	bundle := func(r *Registry) {
		_ = r.Describe("S", func() {
			_ = r.Test("a", noopRunner)
			_ = r.Test("b", noopRunner)
		})
	}
	s := newFakeSurface()
	s.captureErr = errors.New("disk full")
	env := NewEnv(bundle, s)
	ctx := context.Background()
	require.NoError(t, env.RegisterAll(ctx))

	outcomes, err := env.RunBatch(ctx, items("S", "a", "b"))
	require.ErrorContains(t, err, "disk full")
	assert.Empty(t, outcomes)
}

func TestRunBatchCancelledContextWritesNothing(t *testing.T) {
	bundle := func(r *Registry) {
		_ = r.Describe("S", func() { _ = r.Test("a", noopRunner) })
	}
	s := newFakeSurface()
	env := NewEnv(bundle, s)
	require.NoError(t, env.RegisterAll(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := env.RunBatch(ctx, items("S", "a"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.shots)
}

func TestRunBatchUnknownTest(t *testing.T) {
	env := NewEnv(func(r *Registry) {}, newFakeSurface())
	require.NoError(t, env.RegisterAll(context.Background()))

	_, err := env.RunBatch(context.Background(), items("S", "ghost"))
	require.Error(t, err)
}

func TestPrepareEnvironmentAndRunOne(t *testing.T) {
	bundle := func(r *Registry) {
		_ = r.Describe("S", func() {
			_ = r.Test("t", func(ctx context.Context, c Container) (Target, error) {
				return c.Query(ctx, ".btn")
			})
		})
	}
	s := newFakeSurface()
	env := NewEnv(bundle, s)
	ctx := context.Background()

	target, err := env.RunOne(ctx, "S", "t")
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Equal(t, "#viz-1 .btn", target.Selector())
	assert.Equal(t, PhaseClosed, env.Registry().Phase())
	assert.Equal(t, 1, s.clears)

	target, err = env.RunOne(ctx, "S", "missing")
	require.NoError(t, err)
	assert.Nil(t, target)

	// Debug stand-ins never write.
	_, err = env.RunBatch(ctx, []BatchItem{{Suite: "S", Test: "t", OutputPath: "/never"}})
	require.NoError(t, err)
	assert.Empty(t, s.shots)
	assert.Zero(t, s.resets)
}

func TestRunOnePanicRemovesContainer(t *testing.T) {
	bundle := func(r *Registry) {
		_ = r.Describe("S", func() {
			_ = r.Test("t", func(context.Context, Container) (Target, error) {
				panic("runner blew up")
			})
		})
	}
	s := newFakeSurface()
	env := NewEnv(bundle, s)

	target, err := env.RunOne(context.Background(), "S", "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: runner blew up")
	assert.Nil(t, target)
	assert.Empty(t, s.live)
}

func TestEnvResetReloadsBundle(t *testing.T) {
	loads := 0
	bundle := func(r *Registry) {
		loads++
		_ = r.Describe("S", func() { _ = r.Test("t", noopRunner) })
	}
	env := NewEnv(bundle, newFakeSurface())
	ctx := context.Background()
	require.NoError(t, env.RegisterAll(ctx))

	require.NoError(t, env.Reset(ctx))
	assert.Equal(t, 2, loads)
	assert.Equal(t, PhaseOpen, env.Registry().Phase())
	require.NoError(t, env.RegisterAll(ctx))
	tests, err := env.Tests(ctx)
	require.NoError(t, err)
	assert.Len(t, tests, 1)
	assert.Equal(t, EnvironmentVersion, env.Version())
}
