package iocfixture

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// Fixture is a named resource with setup and teardown that may depend on
// other fixtures by name. ProcessFixture and DeviceFixture implement it.
type Fixture interface {
	// Name identifies the fixture within a scope
	Name() string
	// Dependencies lists fixtures that must be set up first
	Dependencies() []string
	// Acquire sets the fixture up and returns the value it yields. deps
	// holds the values of its dependencies by name.
	Acquire(ctx context.Context, deps map[string]any) (any, error)
	// Release tears the fixture down
	Release() error
}

// Scope sets up fixtures on demand, dependencies first, shares each value
// for the scope's lifetime and tears everything down in reverse order on
// Close. In Go tests a scope usually lives in TestMain or in a testify
// suite's SetupSuite/TearDownSuite, which gives module-scoped fixtures.
type Scope struct {
	mu        sync.Mutex
	fixtures  map[string]Fixture
	values    map[string]any
	failed    map[string]error
	resolving map[string]bool
	setup     []Fixture
	closed    bool
}

// NewScope creates an empty scope
func NewScope() *Scope {
	return &Scope{
		fixtures:  make(map[string]Fixture),
		values:    make(map[string]any),
		failed:    make(map[string]error),
		resolving: make(map[string]bool),
	}
}

// ScopeFor creates a scope that is closed by tb.Cleanup. Teardown failures
// are reported with tb.Errorf.
func ScopeFor(tb testing.TB, fixtures ...Fixture) *Scope {
	tb.Helper()

	s := NewScope()
	if err := s.Register(fixtures...); err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() {
		if err := s.Close(); err != nil {
			tb.Errorf("fixture scope teardown: %v", err)
		}
	})
	return s
}

// Register adds fixtures to the scope without setting them up
func (s *Scope) Register(fixtures ...Fixture) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrScopeClosed
	}
	for _, f := range fixtures {
		if _, ok := s.fixtures[f.Name()]; ok {
			return &OpError{Op: OpSetup, Name: f.Name(), Err: ErrDuplicateFixture}
		}
		s.fixtures[f.Name()] = f
	}
	return nil
}

// Resolve returns the value of the named fixture, setting it and its
// dependencies up first if needed. Fixture errors are returned unchanged and
// remembered, so every later Resolve of the fixture or anything depending on
// it fails the same way without setting up again.
func (s *Scope) Resolve(ctx context.Context, name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrScopeClosed
	}
	return s.resolveLocked(ctx, name, nil)
}

func (s *Scope) resolveLocked(ctx context.Context, name string, path []string) (any, error) {
	if v, ok := s.values[name]; ok {
		return v, nil
	}
	if err, ok := s.failed[name]; ok {
		return nil, err
	}

	f, ok := s.fixtures[name]
	if !ok {
		return nil, &OpError{Op: OpSetup, Name: name, Err: ErrFixtureNotFound}
	}

	path = append(path, name)
	if s.resolving[name] {
		return nil, &OpError{Op: OpSetup, Name: name, Err: fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(path, " -> "))}
	}
	s.resolving[name] = true
	defer delete(s.resolving, name)

	deps := make(map[string]any, len(f.Dependencies()))
	for _, dep := range f.Dependencies() {
		v, err := s.resolveLocked(ctx, dep, path)
		if err != nil {
			s.failed[name] = err
			return nil, err
		}
		deps[dep] = v
	}

	// Release runs even when Acquire fails part way
	s.setup = append(s.setup, f)
	v, err := f.Acquire(ctx, deps)
	if err != nil {
		s.failed[name] = err
		return nil, err
	}
	s.values[name] = v
	return v, nil
}

// Close releases every fixture that was set up, most recent first. All
// release failures are returned together. Close is idempotent.
func (s *Scope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	merr := &MultiError{}
	for i := len(s.setup) - 1; i >= 0; i-- {
		f := s.setup[i]
		if err := f.Release(); err != nil {
			merr.Add(&OpError{Op: OpTeardown, Name: f.Name(), Err: err})
		}
	}
	s.setup = nil
	return merr.Err()
}

// Value resolves the named fixture and asserts its type
func Value[T any](ctx context.Context, s *Scope, name string) (T, error) {
	var zero T
	v, err := s.Resolve(ctx, name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &OpError{Op: OpSetup, Name: name, Err: fmt.Errorf("fixture yields %T, not %T", v, zero)}
	}
	return t, nil
}

// MustValue is Value for tests: failures stop tb
func MustValue[T any](tb testing.TB, s *Scope, name string) T {
	tb.Helper()

	v, err := Value[T](context.Background(), s, name)
	if err != nil {
		tb.Fatalf("fixture %s setup: %v", name, err)
	}
	return v
}

// funcFixture adapts plain functions to Fixture
type funcFixture struct {
	name     string
	deps     []string
	setup    func(ctx context.Context, deps map[string]any) (any, error)
	teardown func() error
}

// NewFixture creates a Fixture from setup and teardown functions. teardown
// may be nil.
func NewFixture(name string, deps []string, setup func(ctx context.Context, deps map[string]any) (any, error), teardown func() error) Fixture {
	return &funcFixture{name: name, deps: deps, setup: setup, teardown: teardown}
}

func (f *funcFixture) Name() string           { return f.name }
func (f *funcFixture) Dependencies() []string { return f.deps }

func (f *funcFixture) Acquire(ctx context.Context, deps map[string]any) (any, error) {
	return f.setup(ctx, deps)
}

func (f *funcFixture) Release() error {
	if f.teardown == nil {
		return nil
	}
	return f.teardown()
}
