package iocfixture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// ProcessFixture is an IOC shared by a whole group of tests. Setup launches
// it and waits for readiness; Teardown purges client channel caches while the
// IOC is still alive and only then tells it to exit.
//
// The IOC is expensive to start, so it is shared rather than restarted per
// test. Tests that write to records must therefore not depend on each other's
// values; give every such test its own record in the templates.
type ProcessFixture struct {
	name          string
	templates     []Template
	launcher      *Launcher
	purge         PurgeFunc
	transcriptDir string
	watch         bool
	log           zerolog.Logger

	// communicate sends the exit directive; replaced in tests
	communicate func(p *Process, input string) (string, error)

	// lifecycle serializes Setup and Teardown; mu guards the fields below
	// and is never held while the IOC is launched, purged or exited
	lifecycle sync.Mutex
	mu        sync.Mutex
	proc      *Process
	watcher   *templateWatch
}

// FixtureOption configures a ProcessFixture
type FixtureOption func(*ProcessFixture)

// WithLauncher sets the launcher used to start the IOC
func WithLauncher(l *Launcher) FixtureOption {
	return func(f *ProcessFixture) {
		f.launcher = l
	}
}

// WithPurge sets the channel cache purge run before the IOC exits. The
// default is PurgeChannelCaches.
func WithPurge(fn PurgeFunc) FixtureOption {
	return func(f *ProcessFixture) {
		f.purge = fn
	}
}

// WithTranscriptDir writes the IOC output to <dir>/<name>.log on teardown
func WithTranscriptDir(dir string) FixtureOption {
	return func(f *ProcessFixture) {
		f.transcriptDir = dir
	}
}

// WithTemplateWatch reports template sources modified while the IOC runs
func WithTemplateWatch() FixtureOption {
	return func(f *ProcessFixture) {
		f.watch = true
	}
}

// WithFixtureLogger sets the logger for fixture events
func WithFixtureLogger(logger zerolog.Logger) FixtureOption {
	return func(f *ProcessFixture) {
		f.log = logger
	}
}

// NewProcessFixture creates a fixture for an IOC loaded with the templates.
// An empty name becomes DefaultProcessFixtureName.
func NewProcessFixture(name string, templates []Template, opts ...FixtureOption) *ProcessFixture {
	if name == "" {
		name = DefaultProcessFixtureName
	}

	f := &ProcessFixture{
		name:        name,
		templates:   append([]Template(nil), templates...),
		purge:       PurgeChannelCaches,
		log:         DefaultLogger(),
		communicate: (*Process).Communicate,
	}

	for _, opt := range opts {
		opt(f)
	}

	f.log = f.log.With().Str("fixture", f.name).Logger()
	return f
}

// Name returns the fixture name
func (f *ProcessFixture) Name() string {
	return f.name
}

// Templates returns the templates the IOC is loaded with
func (f *ProcessFixture) Templates() []Template {
	return append([]Template(nil), f.templates...)
}

// Dependencies returns nil; an IOC depends on nothing else
func (f *ProcessFixture) Dependencies() []string {
	return nil
}

// Process returns the running IOC, or nil before Setup and after Teardown
func (f *ProcessFixture) Process() *Process {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.proc
}

// StaleTemplates returns template sources modified since the IOC started.
// The list survives Teardown until the next Setup. It is always empty unless
// WithTemplateWatch was given.
func (f *ProcessFixture) StaleTemplates() []string {
	f.mu.Lock()
	w := f.watcher
	f.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Stale()
}

// Setup launches the IOC and blocks until it is ready. Calling Setup again
// returns the same process until Teardown; after Teardown a new IOC is
// launched.
func (f *ProcessFixture) Setup(ctx context.Context) (*Process, error) {
	f.lifecycle.Lock()
	defer f.lifecycle.Unlock()

	if p := f.Process(); p != nil {
		return p, nil
	}

	launcher := f.launcher
	if launcher == nil {
		var err error
		launcher, err = NewLauncher(WithLogger(f.log))
		if err != nil {
			return nil, &OpError{Op: OpSetup, Name: f.name, Err: err}
		}
	}

	p, err := launcher.Launch(ctx, f.templates...)
	if err != nil {
		return nil, &OpError{Op: OpSetup, Name: f.name, Err: err}
	}

	var w *templateWatch
	if f.watch {
		w, err = watchTemplates(ctx, f.templates, f.log)
		if err != nil {
			f.log.Warn().Err(err).Msg("template watch unavailable")
			w = nil
		}
	}

	f.mu.Lock()
	f.proc = p
	f.watcher = w
	f.mu.Unlock()

	f.log.Info().Int("pid", p.Pid()).Msg("IOC ready")
	return p, nil
}

// Teardown shuts the IOC down: first the channel caches are purged, then the
// exit directive is sent and the output drained. A process already finalized
// elsewhere is not an error. Other failures are returned; the exit directive
// is still sent when the purge fails. Teardown is safe to call more than
// once and before Setup.
//
// The purge may call Process and StaleTemplates; it must not call Setup or
// Teardown.
func (f *ProcessFixture) Teardown() error {
	f.lifecycle.Lock()
	defer f.lifecycle.Unlock()

	f.mu.Lock()
	proc, watcher := f.proc, f.watcher
	f.mu.Unlock()

	if proc == nil {
		return nil
	}

	merr := &MultiError{}

	if watcher != nil {
		if err := watcher.stop(); err != nil {
			f.log.Warn().Err(err).Msg("stopping template watch")
		}
	}

	// Purge needs the IOC alive: it may close channels against it
	if f.purge != nil {
		if err := f.purge(); err != nil {
			merr.Add(&OpError{Op: OpPurge, Name: f.name, Err: err})
		}
	}

	out, err := f.communicate(proc, ExitDirective)
	switch {
	case err == nil:
		f.log.Debug().Str("output", out).Msg("IOC exited")
	case errors.Is(err, ErrAlreadyFinalized):
		// Someone else already finalized the process
	default:
		merr.Add(&OpError{Op: OpExit, Name: f.name, Err: err})
	}

	f.mu.Lock()
	f.proc = nil
	f.mu.Unlock()

	if f.transcriptDir != "" {
		if err := f.writeTranscript(proc); err != nil {
			merr.Add(err)
		}
	}

	return merr.Err()
}

// writeTranscript atomically replaces <dir>/<name>.log with the IOC output
func (f *ProcessFixture) writeTranscript(proc *Process) error {
	path := filepath.Join(f.transcriptDir, f.name+TranscriptSuffix)
	if err := os.MkdirAll(f.transcriptDir, DirMode); err != nil {
		return &OpError{Op: OpTranscript, Name: path, Err: err}
	}
	if err := renameio.WriteFile(path, []byte(proc.Output()), FileMode); err != nil {
		return &OpError{Op: OpTranscript, Name: path, Err: err}
	}
	return nil
}

// Acquire implements Fixture
func (f *ProcessFixture) Acquire(ctx context.Context, _ map[string]any) (any, error) {
	return f.Setup(ctx)
}

// Release implements Fixture
func (f *ProcessFixture) Release() error {
	return f.Teardown()
}

// Use sets the fixture up for tb, failing it on error, and registers the
// teardown with tb.Cleanup
func (f *ProcessFixture) Use(tb testing.TB) *Process {
	tb.Helper()

	p, err := f.Setup(context.Background())
	if err != nil {
		tb.Fatalf("IOC fixture %s: %v", f.name, err)
	}
	tb.Cleanup(func() {
		if err := f.Teardown(); err != nil {
			tb.Errorf("IOC fixture %s teardown: %v", f.name, err)
		}
	})
	return p
}
