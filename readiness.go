package iocfixture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// readyState is the state of a readiness scan
type readyState int

const (
	stateWaiting readyState = iota
	stateReady
	stateFailed
)

// lineReader is the part of bufio.Reader the scan needs
type lineReader interface {
	ReadString(delim byte) (string, error)
}

// deadliner is implemented by pipes that support read deadlines
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// readiness scans IOC output one line at a time until the marker shows up.
// Transitions out of waiting: a line containing the marker (ready), the
// deadline passing or the stream ending (failed).
type readiness struct {
	marker   string
	deadline time.Time
	now      func() time.Time
	// record receives every line read, marker line included
	record func(string)
}

// scan blocks until the marker line is read or the scan fails. It never
// reads past the marker line.
func (r *readiness) scan(ctx context.Context, src lineReader, pipe deadliner) error {
	if pipe != nil {
		// A silent IOC would otherwise block the read forever
		_ = pipe.SetReadDeadline(r.deadline)

		// The cancel callback must not touch the pipe once scan has
		// returned; the caller clears the deadline for draining
		var mu sync.Mutex
		finished := false
		stop := context.AfterFunc(ctx, func() {
			mu.Lock()
			defer mu.Unlock()
			if !finished {
				_ = pipe.SetReadDeadline(time.Now())
			}
		})
		defer func() {
			stop()
			mu.Lock()
			finished = true
			mu.Unlock()
		}()
	}

	state := stateWaiting
	var err error
	for state == stateWaiting {
		state, err = r.step(ctx, src)
	}
	return err
}

// step consumes exactly one line of output
func (r *readiness) step(ctx context.Context, src lineReader) (readyState, error) {
	if err := ctx.Err(); err != nil {
		return stateFailed, err
	}

	line, readErr := src.ReadString('\n')
	if line != "" && r.record != nil {
		r.record(line)
	}
	if strings.Contains(strings.TrimSpace(line), r.marker) {
		return stateReady, nil
	}

	switch {
	case readErr == nil:
	case errors.Is(readErr, os.ErrDeadlineExceeded):
		if err := ctx.Err(); err != nil {
			return stateFailed, err
		}
		return stateFailed, ErrTimeout
	case errors.Is(readErr, io.EOF), errors.Is(readErr, os.ErrClosed):
		return stateFailed, ErrStreamClosed
	default:
		return stateFailed, fmt.Errorf("reading IOC output: %w", readErr)
	}

	if r.now().After(r.deadline) {
		return stateFailed, ErrTimeout
	}
	return stateWaiting, nil
}
