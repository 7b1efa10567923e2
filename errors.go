package iocfixture

import (
	"errors"
	"fmt"
)

// Common errors returned by fixture operations
var (
	// ErrTimeout indicates the IOC did not report readiness before the deadline
	ErrTimeout = errors.New("iocfixture: IOC did not start in time")

	// ErrStreamClosed indicates the IOC output ended before the readiness marker
	ErrStreamClosed = errors.New("iocfixture: IOC output closed before initialization completed")

	// ErrAlreadyFinalized indicates the process I/O was already finalized by another caller
	ErrAlreadyFinalized = errors.New("iocfixture: process already finalized")

	// ErrNoTemplates indicates a launch was requested without any template
	ErrNoTemplates = errors.New("iocfixture: no templates")

	// ErrEmptyTemplatePath indicates a template without a database path
	ErrEmptyTemplatePath = errors.New("iocfixture: template path is empty")

	// ErrFixtureNotFound indicates a scope lookup for an unregistered fixture
	ErrFixtureNotFound = errors.New("iocfixture: fixture not registered")

	// ErrDuplicateFixture indicates two fixtures were registered under one name
	ErrDuplicateFixture = errors.New("iocfixture: duplicate fixture name")

	// ErrDependencyCycle indicates fixtures that depend on each other
	ErrDependencyCycle = errors.New("iocfixture: fixture dependency cycle")

	// ErrScopeClosed indicates a resolve on a scope that was already closed
	ErrScopeClosed = errors.New("iocfixture: scope closed")
)

// OpError represents an error from a fixture operation
type OpError struct {
	// Op is the operation that failed
	Op Operation
	// Name identifies the fixture, template or process involved
	Name string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	return fmt.Sprintf("iocfixture %s %q: %v", e.Op.String(), e.Name, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}

// MultiError aggregates multiple errors from teardown paths
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred: %v", len(m.Errors), m.Errors[0])
}

// Unwrap exposes every accumulated error to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err returns nil if no errors occurred, otherwise returns the MultiError itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}
