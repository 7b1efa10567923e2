//go:build linux || darwin

package iocfixture

import (
	"context"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessCommunicate(t *testing.T) {
	l := fakeIOCLauncher(t, "ready")

	p, err := l.Launch(context.Background(), testTemplates...)
	require.NoError(t, err)

	out, err := p.Communicate("dbl\n" + ExitDirective)
	require.NoError(t, err)

	assert.Contains(t, out, "epics> dbl")
	assert.Contains(t, out, "epics> exit()")
	assert.NotContains(t, out, DefaultReadyMarker, "output before the call is not returned again")

	assert.True(t, p.Exited())
	assert.Equal(t, 0, p.ExitCode())
	assert.Contains(t, p.Output(), DefaultReadyMarker)
	assert.Contains(t, p.Output(), "epics> exit()")
}

func TestProcessCommunicateTwice(t *testing.T) {
	l := fakeIOCLauncher(t, "ready")

	p, err := l.Launch(context.Background(), testTemplates...)
	require.NoError(t, err)

	_, err = p.Communicate(ExitDirective)
	require.NoError(t, err)

	_, err = p.Communicate(ExitDirective)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestProcessExitIdempotent(t *testing.T) {
	l := fakeIOCLauncher(t, "ready")

	p, err := l.Launch(context.Background(), testTemplates...)
	require.NoError(t, err)

	require.NoError(t, p.Exit())
	assert.NoError(t, p.Exit())

	select {
	case <-p.Done():
	default:
		t.Fatal("Done should be closed after Exit")
	}
}

// TestProcessConcurrentExit finalizes from several goroutines at once; one
// wins and the rest are no-ops
func TestProcessConcurrentExit(t *testing.T) {
	l := fakeIOCLauncher(t, "ready")

	p, err := l.Launch(context.Background(), testTemplates...)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- p.Exit()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestProcessExitAfterIOCDied(t *testing.T) {
	l := fakeIOCLauncher(t, "ready")

	p, err := l.Launch(context.Background(), testTemplates...)
	require.NoError(t, err)

	// The IOC goes away on its own
	require.NoError(t, p.cmd.Process.Kill())
	require.Eventually(t, p.Exited, 2*time.Second, 10*time.Millisecond)

	assert.NoError(t, p.Exit())
	assert.Equal(t, -1, p.ExitCode(), "killed by a signal")
}

func TestProcessKilledAfterExitGrace(t *testing.T) {
	l := fakeIOCLauncher(t, "ready", WithExitGrace(200*time.Millisecond))

	p, err := l.Launch(context.Background(), testTemplates...)
	require.NoError(t, err)

	// Stop the shell so it cannot act on exit()
	require.NoError(t, p.cmd.Process.Signal(syscall.SIGSTOP))

	start := time.Now()
	require.NoError(t, p.Exit())
	assert.True(t, p.Exited())
	assert.Less(t, time.Since(start), 3*time.Second)
}
