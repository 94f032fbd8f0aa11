package viz

import (
	"context"
	"errors"
	"fmt"
)

// Runner renders a test into its container and returns the element to
// capture. Returning a nil Target is an authoring error.
type Runner func(ctx context.Context, c Container) (Target, error)

// Initializer runs before every test of a suite.
type Initializer func(ctx context.Context) error

// Finalizer runs after every test of a suite, even when the test failed.
type Finalizer func(ctx context.Context, c Container) error

// Bundle declares suites on a registry. It is executed each time a browser
// session is loaded, so it must be deterministic and free of side effects
// beyond registration.
type Bundle func(r *Registry)

// Phase is the registration state of a Registry.
type Phase int

const (
	// PhaseOpen accepts suite declarations.
	PhaseOpen Phase = iota
	// PhaseClosed is entered by RunAllRegistrations; suites and tests are final.
	PhaseClosed
)

func (p Phase) String() string {
	if p == PhaseClosed {
		return "closed"
	}
	return "open"
}

// ErrRegistryClosed is returned by Describe once registration has run.
var ErrRegistryClosed = errors.New("registry is closed: describe must be called before tests are registered")

// NestedSuiteError reports a Describe call made while another suite body runs.
type NestedSuiteError struct {
	Suite string
	Open  string
}

func (e *NestedSuiteError) Error() string {
	return fmt.Sprintf("describe %q cannot be nested inside %q", e.Suite, e.Open)
}

// NoCurrentSuiteError reports a hook or test registered outside a suite body.
type NoCurrentSuiteError struct {
	Op   string
	Name string
}

func (e *NoCurrentSuiteError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %q must be called inside a describe body", e.Op, e.Name)
	}
	return fmt.Sprintf("%s must be called inside a describe body", e.Op)
}

type suite struct {
	name        string
	viewports   []Viewport
	body        func()
	tests       []string
	initializer Initializer
	finalizer   Finalizer
}

// TestCase is a registered test.
type TestCase struct {
	Suite     string
	Name      string
	Viewports []Viewport
	Runner    Runner
}

// SuiteInfo describes a registered suite.
type SuiteInfo struct {
	Name      string     `json:"suiteName"`
	Viewports []Viewport `json:"suiteViewports,omitempty"`
	Tests     []string   `json:"tests"`
}

// TestInfo describes a registered test.
type TestInfo struct {
	Suite     string     `json:"suiteName"`
	Name      string     `json:"testName"`
	Viewports []Viewport `json:"testViewports,omitempty"`
}

// Registry accumulates suites, hooks and tests. A Registry is owned by a
// single browser session and is not safe for concurrent use.
type Registry struct {
	suites  []*suite
	tests   []TestCase
	current *suite
	phase   Phase
	err     error
}

// NewRegistry returns an empty, open registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) fail(err error) error {
	if r.err == nil {
		r.err = err
	}
	return err
}

// Describe declares a suite. The body runs during RunAllRegistrations with
// the suite current, and should call BeforeEach, AfterEach and Test.
func (r *Registry) Describe(name string, body func(), viewports ...Viewport) error {
	if r.current != nil {
		return r.fail(&NestedSuiteError{Suite: name, Open: r.current.name})
	}
	if r.phase == PhaseClosed {
		return r.fail(ErrRegistryClosed)
	}
	r.suites = append(r.suites, &suite{
		name:      name,
		viewports: append([]Viewport(nil), viewports...),
		body:      body,
	})
	return nil
}

// BeforeEach sets the current suite's initializer. The last call wins.
func (r *Registry) BeforeEach(hook Initializer) error {
	if r.current == nil {
		return r.fail(&NoCurrentSuiteError{Op: "beforeEach"})
	}
	r.current.initializer = hook
	return nil
}

// AfterEach sets the current suite's finalizer. The last call wins.
func (r *Registry) AfterEach(hook Finalizer) error {
	if r.current == nil {
		return r.fail(&NoCurrentSuiteError{Op: "afterEach"})
	}
	r.current.finalizer = hook
	return nil
}

// Test adds a test to the current suite. Viewports, when given, override
// the suite's.
func (r *Registry) Test(name string, runner Runner, viewports ...Viewport) error {
	if r.current == nil {
		return r.fail(&NoCurrentSuiteError{Op: "test", Name: name})
	}
	r.current.tests = append(r.current.tests, name)
	r.tests = append(r.tests, TestCase{
		Suite:     r.current.name,
		Name:      name,
		Viewports: append([]Viewport(nil), viewports...),
		Runner:    runner,
	})
	return nil
}

// It is an alias for Test.
func (r *Registry) It(name string, runner Runner, viewports ...Viewport) error {
	return r.Test(name, runner, viewports...)
}

// RunAllRegistrations runs every suite body in declaration order and closes
// the registry. It returns the first authoring error seen so far. Calling it
// on a closed registry does nothing.
func (r *Registry) RunAllRegistrations() error {
	if r.phase == PhaseClosed {
		return r.err
	}
	for _, s := range r.suites {
		r.runBody(s)
	}
	r.phase = PhaseClosed
	return r.err
}

func (r *Registry) runBody(s *suite) {
	r.current = s
	defer func() { r.current = nil }()
	if s.body != nil {
		s.body()
	}
}

// Reset discards all suites and tests and reopens the registry.
func (r *Registry) Reset() {
	r.suites = nil
	r.tests = nil
	r.current = nil
	r.phase = PhaseOpen
	r.err = nil
}

// Phase reports the registration phase.
func (r *Registry) Phase() Phase {
	return r.phase
}

// Err returns the first authoring error recorded.
func (r *Registry) Err() error {
	return r.err
}

// Suites lists declared suites in declaration order.
func (r *Registry) Suites() []SuiteInfo {
	out := make([]SuiteInfo, 0, len(r.suites))
	for _, s := range r.suites {
		out = append(out, SuiteInfo{
			Name:      s.name,
			Viewports: append([]Viewport(nil), s.viewports...),
			Tests:     append([]string(nil), s.tests...),
		})
	}
	return out
}

// Tests lists registered tests in registration order.
func (r *Registry) Tests() []TestInfo {
	out := make([]TestInfo, 0, len(r.tests))
	for _, t := range r.tests {
		out = append(out, TestInfo{
			Suite:     t.Suite,
			Name:      t.Name,
			Viewports: append([]Viewport(nil), t.Viewports...),
		})
	}
	return out
}

// Lookup finds a test by identity. The first registration wins when a name
// was registered twice.
func (r *Registry) Lookup(suiteName, testName string) (TestCase, bool) {
	for _, t := range r.tests {
		if t.Suite == suiteName && t.Name == testName {
			return t, true
		}
	}
	return TestCase{}, false
}

// hooks are keyed by suite name; a later suite with the same name overrides.
func (r *Registry) hooks(suiteName string) (init Initializer, fin Finalizer) {
	for _, s := range r.suites {
		if s.name != suiteName {
			continue
		}
		if s.initializer != nil {
			init = s.initializer
		}
		if s.finalizer != nil {
			fin = s.finalizer
		}
	}
	return init, fin
}
