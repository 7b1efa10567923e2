package iocfixture

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
)

// Launcher starts IOC processes and waits for them to finish initializing
type Launcher struct {
	// Command is the IOC executable and its leading arguments; template
	// arguments are appended to it
	Command []string
	// ReadyTimeout bounds the readiness wait
	ReadyTimeout time.Duration
	// ReadyMarker is the output line content that signals readiness
	ReadyMarker string
	// ExitGrace is how long the IOC may take to exit before it is killed
	ExitGrace time.Duration
	// Dir is the working directory of the IOC
	Dir string
	// Env holds extra KEY=VALUE entries added to the inherited environment
	Env []string
	// Logger receives lifecycle events
	Logger zerolog.Logger

	// now is the monotonic clock used for the readiness deadline
	now func() time.Time
}

// LauncherOption configures a Launcher
type LauncherOption func(*Launcher)

// WithCommand sets the IOC executable and its leading arguments
func WithCommand(argv ...string) LauncherOption {
	return func(l *Launcher) {
		l.Command = argv
	}
}

// WithReadyTimeout sets the readiness deadline
func WithReadyTimeout(d time.Duration) LauncherOption {
	return func(l *Launcher) {
		l.ReadyTimeout = d
	}
}

// WithReadyMarker sets the readiness marker
func WithReadyMarker(marker string) LauncherOption {
	return func(l *Launcher) {
		l.ReadyMarker = marker
	}
}

// WithExitGrace sets how long the IOC may take to exit after the exit directive
func WithExitGrace(d time.Duration) LauncherOption {
	return func(l *Launcher) {
		l.ExitGrace = d
	}
}

// WithDir sets the IOC working directory
func WithDir(dir string) LauncherOption {
	return func(l *Launcher) {
		l.Dir = dir
	}
}

// WithEnv adds KEY=VALUE entries to the IOC environment
func WithEnv(kv ...string) LauncherOption {
	return func(l *Launcher) {
		l.Env = append(l.Env, kv...)
	}
}

// WithLogger sets the logger for launch events
func WithLogger(logger zerolog.Logger) LauncherOption {
	return func(l *Launcher) {
		l.Logger = logger
	}
}

// NewLauncher creates a Launcher with default settings, honoring the
// IOCFIXTURE_COMMAND and IOCFIXTURE_PYTHON environment overrides
func NewLauncher(opts ...LauncherOption) (*Launcher, error) {
	l := &Launcher{
		ReadyTimeout: DefaultReadyTimeout,
		ReadyMarker:  DefaultReadyMarker,
		ExitGrace:    DefaultExitGrace,
		Logger:       DefaultLogger(),
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	if len(l.Command) == 0 {
		command, err := DefaultCommand()
		if err != nil {
			return nil, err
		}
		l.Command = command
	}
	if l.ReadyTimeout <= 0 {
		l.ReadyTimeout = DefaultReadyTimeout
	}
	if l.ReadyMarker == "" {
		l.ReadyMarker = DefaultReadyMarker
	}
	if l.ExitGrace <= 0 {
		l.ExitGrace = DefaultExitGrace
	}

	return l, nil
}

// DefaultCommand returns the IOC command: IOCFIXTURE_COMMAND split with shell
// quoting rules when set, otherwise "<python> -m epicscorelibs.ioc"
func DefaultCommand() ([]string, error) {
	if raw := strings.TrimSpace(os.Getenv(EnvCommand)); raw != "" {
		argv, err := shellquote.Split(raw)
		if err != nil {
			return nil, &OpError{Op: OpLaunch, Name: EnvCommand, Err: err}
		}
		return argv, nil
	}

	python := os.Getenv(EnvPython)
	if python == "" {
		python = DefaultPython
	}
	return []string{python, "-m", DefaultIOCModule}, nil
}

// Argv returns the complete command line for the templates
func (l *Launcher) Argv(templates ...Template) []string {
	argv := make([]string, 0, len(l.Command)+4*len(templates))
	argv = append(argv, l.Command...)
	return append(argv, BuildArgs(templates...)...)
}

// Launch starts an IOC loaded with the templates, in order, and blocks until
// it prints the readiness marker. The returned process keeps running; the
// caller owns it and must call Exit.
//
// If the marker does not appear before the deadline the error wraps
// ErrTimeout; if the output ends first it wraps ErrStreamClosed. In both
// cases the IOC is asked to exit before Launch returns.
func (l *Launcher) Launch(ctx context.Context, templates ...Template) (*Process, error) {
	start := l.clock()()

	if len(templates) == 0 {
		return nil, &OpError{Op: OpLaunch, Name: strings.Join(l.Command, " "), Err: ErrNoTemplates}
	}
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}

	argv := l.Argv(templates...)
	l.Logger.Debug().Str("cmd", shellquote.Join(argv...)).Msg("launching IOC")

	p, err := startProcess(argv, l.Dir, l.Env, l.ExitGrace, l.Logger)
	if err != nil {
		return nil, &OpError{Op: OpLaunch, Name: argv[0], Err: err}
	}

	r := &readiness{
		marker:   l.ReadyMarker,
		deadline: start.Add(l.ReadyTimeout),
		now:      l.clock(),
		record:   p.record,
	}
	if err := r.scan(ctx, p.reader, p.out); err != nil {
		return nil, l.abandon(p, &OpError{Op: OpReady, Name: p.name(), Err: err})
	}

	// Later output goes to the transcript instead of filling the pipe
	p.startDrain()

	l.Logger.Debug().
		Int("pid", p.Pid()).
		Dur("elapsed", l.clock()().Sub(start)).
		Msg("IOC initialization complete")

	return p, nil
}

// abandon makes one best-effort attempt to shut down an IOC that never
// became ready. It always returns cause: a process finalized elsewhere is
// ignored and any other shutdown failure is only logged.
func (l *Launcher) abandon(p *Process, cause error) error {
	l.Logger.Warn().Err(cause).Msg("IOC failed to start, sending exit")

	out, err := p.Communicate(ExitDirective)
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyFinalized):
		return cause
	default:
		l.Logger.Warn().Err(err).Msg("exit after failed start")
	}

	l.Logger.Info().Str("output", p.Output()).Str("after_exit", out).Msg("IOC transcript")
	return cause
}

func (l *Launcher) clock() func() time.Time {
	if l.now == nil {
		return time.Now
	}
	return l.now
}
