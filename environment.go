package viz

import "context"

// EnvironmentVersion is bumped whenever the session contract changes.
const EnvironmentVersion = 1

// Environment is the surface a browser session exposes to the host.
type Environment interface {
	RegisterAll(ctx context.Context) error
	Suites(ctx context.Context) ([]SuiteInfo, error)
	Tests(ctx context.Context) ([]TestInfo, error)
	RunBatch(ctx context.Context, items []BatchItem) ([]Outcome, error)
	Reset(ctx context.Context) error
}

// Env binds a bundle to a surface. Load re-executes the bundle, which is
// what a page reload does to a session.
type Env struct {
	bundle   Bundle
	registry *Registry
	executor *Executor
}

// NewEnv returns a loaded environment.
func NewEnv(bundle Bundle, s Surface) *Env {
	r := NewRegistry()
	e := &Env{bundle: bundle, registry: r, executor: NewExecutor(r, s)}
	e.Load()
	return e
}

// Load resets the registry and declares the bundle's suites again.
func (e *Env) Load() {
	e.registry.Reset()
	if e.bundle != nil {
		e.bundle(e.registry)
	}
}

func (e *Env) Version() int { return EnvironmentVersion }

func (e *Env) Registry() *Registry { return e.registry }

func (e *Env) Executor() *Executor { return e.executor }

func (e *Env) RegisterAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.registry.RunAllRegistrations()
}

func (e *Env) Suites(ctx context.Context) ([]SuiteInfo, error) {
	return e.registry.Suites(), ctx.Err()
}

func (e *Env) Tests(ctx context.Context) ([]TestInfo, error) {
	return e.registry.Tests(), ctx.Err()
}

func (e *Env) RunBatch(ctx context.Context, items []BatchItem) ([]Outcome, error) {
	return e.executor.RunBatch(ctx, items)
}

// Reset discards registrations and reloads the bundle.
func (e *Env) Reset(ctx context.Context) error {
	e.Load()
	return ctx.Err()
}

// RunOne renders a single test for manual inspection.
func (e *Env) RunOne(ctx context.Context, suiteName, testName string) (Target, error) {
	return e.executor.RunOne(ctx, suiteName, testName)
}
