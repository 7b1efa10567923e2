package iocfixture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/axondata/go-iocfixture/internal/unix"
)

// Process is a running IOC. It owns the IOC's stdin, the merged
// stdout/stderr stream and the exit state. Exactly one owner (normally a
// ProcessFixture) should finalize it; finalizing twice is a harmless no-op
// that reports ErrAlreadyFinalized.
type Process struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	out       *os.File
	reader    *bufio.Reader
	exitGrace time.Duration
	log       zerolog.Logger

	mu         sync.Mutex
	transcript strings.Builder

	finalized atomic.Bool
	drainOnce sync.Once
	drained   chan struct{}
	done      chan struct{}
	waitErr   error
}

// startProcess starts argv with stdin piped and stderr merged into stdout
func startProcess(argv []string, dir string, env []string, exitGrace time.Duration, log zerolog.Logger) (*Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty IOC command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	cmd.SysProcAttr = unix.SysProcAttr()

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}
	// The child holds its own copy of the write end
	_ = pw.Close()

	p := &Process{
		cmd:       cmd,
		stdin:     stdin,
		out:       pr,
		reader:    bufio.NewReader(pr),
		exitGrace: exitGrace,
		log:       log.With().Int("pid", cmd.Process.Pid).Logger(),
		drained:   make(chan struct{}),
		done:      make(chan struct{}),
	}

	go func() {
		p.waitErr = p.cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

// Pid returns the operating system process id
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Args returns the full command line the IOC was started with
func (p *Process) Args() []string {
	return append([]string(nil), p.cmd.Args...)
}

// Done is closed once the IOC process has exited
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the IOC process has exited
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit code, or -1 while the process is running or
// when it was terminated by a signal
func (p *Process) ExitCode() int {
	if !p.Exited() {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

// Output returns everything the IOC has written so far
func (p *Process) Output() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transcript.String()
}

// record appends one chunk of output to the transcript
func (p *Process) record(s string) {
	p.mu.Lock()
	p.transcript.WriteString(s)
	p.mu.Unlock()
}

// startDrain copies the remaining output into the transcript in the
// background so a chatty IOC never blocks on a full pipe
func (p *Process) startDrain() {
	p.drainOnce.Do(func() {
		_ = p.out.SetReadDeadline(time.Time{})
		go func() {
			defer close(p.drained)
			for {
				line, err := p.reader.ReadString('\n')
				if line != "" {
					p.record(line)
					p.log.Trace().Str("line", strings.TrimRight(line, "\r\n")).Msg("ioc output")
				}
				if err != nil {
					return
				}
			}
		}()
	})
}

// Communicate writes input to the IOC, closes its stdin, drains the rest of
// its output and waits for it to exit. It returns the output produced after
// the call began. Only the first call does anything; every later call
// returns ErrAlreadyFinalized.
func (p *Process) Communicate(input string) (string, error) {
	if !p.finalized.CompareAndSwap(false, true) {
		return "", &OpError{Op: OpCommunicate, Name: p.name(), Err: ErrAlreadyFinalized}
	}

	p.mu.Lock()
	mark := p.transcript.Len()
	p.mu.Unlock()

	p.startDrain()

	var merr MultiError
	if input != "" {
		if _, err := io.WriteString(p.stdin, input); err != nil && !isClosedPipe(err) {
			merr.Add(&OpError{Op: OpCommunicate, Name: p.name(), Err: err})
		}
	}
	if err := p.stdin.Close(); err != nil && !isClosedPipe(err) {
		merr.Add(&OpError{Op: OpCommunicate, Name: p.name(), Err: err})
	}

	p.awaitExit()

	out := p.Output()
	if mark > len(out) {
		mark = len(out)
	}
	return out[mark:], merr.Err()
}

// Exit sends the exit directive and waits for the IOC to go away. Calling it
// on an already finalized process is a no-op.
func (p *Process) Exit() error {
	_, err := p.Communicate(ExitDirective)
	if errors.Is(err, ErrAlreadyFinalized) {
		return nil
	}
	return err
}

// awaitExit waits for the process and its output, killing the process group
// once the exit grace period runs out
func (p *Process) awaitExit() {
	timer := time.NewTimer(p.exitGrace)
	defer timer.Stop()

	select {
	case <-p.done:
	case <-timer.C:
		p.log.Warn().Dur("grace", p.exitGrace).Msg("IOC did not exit, killing process group")
		if err := unix.KillGroup(p.Pid()); err != nil {
			_ = p.cmd.Process.Kill()
		}
		<-p.done
	}

	// Grandchildren may still hold the write end of the output pipe
	select {
	case <-p.drained:
	case <-time.After(p.exitGrace):
		_ = p.out.Close()
		<-p.drained
	}
	_ = p.out.Close()

	p.log.Debug().Int("exit_code", p.ExitCode()).AnErr("wait", p.waitErr).Msg("IOC exited")
}

func (p *Process) name() string {
	return fmt.Sprintf("pid %d", p.Pid())
}

// isClosedPipe reports whether err means the IOC already stopped reading stdin
func isClosedPipe(err error) bool {
	return errors.Is(err, os.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrClosedPipe)
}
