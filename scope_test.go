package iocfixture

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder builds fixtures that log their setup and teardown
type recorder struct {
	events []string
}

func (r *recorder) fixture(name string, deps ...string) Fixture {
	return NewFixture(name, deps,
		func(_ context.Context, got map[string]any) (any, error) {
			for _, d := range deps {
				if _, ok := got[d]; !ok {
					return nil, errors.New(name + " missing dependency " + d)
				}
			}
			r.events = append(r.events, "setup "+name)
			return name + "-value", nil
		},
		func() error {
			r.events = append(r.events, "teardown "+name)
			return nil
		},
	)
}

func TestScopeDependencyOrder(t *testing.T) {
	r := &recorder{}
	s := NewScope()
	require.NoError(t, s.Register(
		r.fixture("device", "ioc", "gateway"),
		r.fixture("gateway", "ioc"),
		r.fixture("ioc"),
	))

	v, err := s.Resolve(context.Background(), "device")
	require.NoError(t, err)
	assert.Equal(t, "device-value", v)

	// Shared within the scope
	v, err = s.Resolve(context.Background(), "gateway")
	require.NoError(t, err)
	assert.Equal(t, "gateway-value", v)

	require.NoError(t, s.Close())

	assert.Equal(t, []string{
		"setup ioc",
		"setup gateway",
		"setup device",
		"teardown device",
		"teardown gateway",
		"teardown ioc",
	}, r.events)
}

func TestScopeOnlyResolvedAreReleased(t *testing.T) {
	r := &recorder{}
	s := NewScope()
	require.NoError(t, s.Register(r.fixture("ioc"), r.fixture("unused")))

	_, err := s.Resolve(context.Background(), "ioc")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Equal(t, []string{"setup ioc", "teardown ioc"}, r.events)
}

func TestScopeDuplicate(t *testing.T) {
	r := &recorder{}
	s := NewScope()
	require.NoError(t, s.Register(r.fixture("ioc")))

	err := s.Register(r.fixture("ioc"))
	assert.ErrorIs(t, err, ErrDuplicateFixture)
}

func TestScopeNotFound(t *testing.T) {
	r := &recorder{}
	s := NewScope()
	require.NoError(t, s.Register(r.fixture("device", "ioc")))

	_, err := s.Resolve(context.Background(), "device")
	require.ErrorIs(t, err, ErrFixtureNotFound)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "ioc", opErr.Name)
}

func TestScopeCycle(t *testing.T) {
	r := &recorder{}
	s := NewScope()
	require.NoError(t, s.Register(
		r.fixture("a", "b"),
		r.fixture("b", "c"),
		r.fixture("c", "a"),
	))

	_, err := s.Resolve(context.Background(), "a")
	require.ErrorIs(t, err, ErrDependencyCycle)
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
	assert.Empty(t, r.events)
}

func TestScopeFailureCached(t *testing.T) {
	setupErr := errors.New("ioc did not start")
	var attempts int
	ioc := NewFixture("ioc", nil, func(context.Context, map[string]any) (any, error) {
		attempts++
		return nil, setupErr
	}, nil)

	r := &recorder{}
	s := NewScope()
	require.NoError(t, s.Register(ioc, r.fixture("device", "ioc")))

	_, err := s.Resolve(context.Background(), "device")
	assert.Same(t, setupErr, err)
	_, err = s.Resolve(context.Background(), "ioc")
	assert.Same(t, setupErr, err)
	_, err = s.Resolve(context.Background(), "device")
	assert.Same(t, setupErr, err)

	assert.Equal(t, 1, attempts)
	assert.Empty(t, r.events)
}

func TestScopeReleasesFailedFixture(t *testing.T) {
	var released bool
	partial := NewFixture("ioc", nil,
		func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("half started")
		},
		func() error {
			released = true
			return nil
		},
	)

	s := NewScope()
	require.NoError(t, s.Register(partial))
	_, err := s.Resolve(context.Background(), "ioc")
	require.Error(t, err)

	require.NoError(t, s.Close())
	assert.True(t, released)
}

func TestScopeCloseCollectsErrors(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	mk := func(name string, err error) Fixture {
		return NewFixture(name, nil,
			func(context.Context, map[string]any) (any, error) { return name, nil },
			func() error { return err },
		)
	}

	s := NewScope()
	require.NoError(t, s.Register(mk("a", errA), mk("b", errB), mk("c", nil)))
	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Resolve(context.Background(), name)
		require.NoError(t, err)
	}

	err := s.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)

	var merr *MultiError
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 2)

	var first *OpError
	require.ErrorAs(t, merr.Errors[0], &first)
	assert.Equal(t, "b", first.Name, "released in reverse order")
	assert.Equal(t, OpTeardown, first.Op)
}

func TestScopeClose(t *testing.T) {
	r := &recorder{}
	s := NewScope()
	require.NoError(t, s.Register(r.fixture("ioc")))
	_, err := s.Resolve(context.Background(), "ioc")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, []string{"setup ioc", "teardown ioc"}, r.events)

	_, err = s.Resolve(context.Background(), "ioc")
	assert.ErrorIs(t, err, ErrScopeClosed)
	assert.ErrorIs(t, s.Register(r.fixture("other")), ErrScopeClosed)
}

func TestScopeValue(t *testing.T) {
	r := &recorder{}
	s := ScopeFor(t, r.fixture("ioc"))

	v, err := Value[string](context.Background(), s, "ioc")
	require.NoError(t, err)
	assert.Equal(t, "ioc-value", v)

	_, err = Value[int](context.Background(), s, "ioc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fixture yields string, not int")

	assert.Equal(t, "ioc-value", MustValue[string](t, s, "ioc"))
}

func TestScopeForClosesOnCleanup(t *testing.T) {
	r := &recorder{}

	t.Run("scoped", func(t *testing.T) {
		s := ScopeFor(t, r.fixture("ioc"))
		MustValue[string](t, s, "ioc")
	})

	assert.Equal(t, []string{"setup ioc", "teardown ioc"}, r.events)
}
