package iocfixture

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"vawter.tech/stopper"
)

// templateWatch notices template sources that change while the IOC that
// loaded them is still running. The IOC keeps the records it loaded at
// startup, so such a change is reported rather than acted on.
type templateWatch struct {
	sctx    *stopper.Context
	sources map[string]struct{}
	log     zerolog.Logger

	mu    sync.Mutex
	stale []string
}

// watchTemplates starts watching the directories holding the template sources
func watchTemplates(ctx context.Context, templates []Template, log zerolog.Logger) (*templateWatch, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &OpError{Op: OpWatch, Name: "templates", Err: err}
	}

	w := &templateWatch{
		sources: make(map[string]struct{}, len(templates)),
		log:     log,
	}

	dirs := make(map[string]struct{})
	for _, t := range templates {
		path, err := filepath.Abs(t.Path)
		if err != nil {
			_ = watcher.Close()
			return nil, &OpError{Op: OpWatch, Name: t.Path, Err: err}
		}
		w.sources[path] = struct{}{}

		// Editors often replace files by rename, so watch the directory
		dir := filepath.Dir(path)
		if _, ok := dirs[dir]; ok {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, &OpError{Op: OpWatch, Name: dir, Err: err}
		}
		dirs[dir] = struct{}{}
	}

	// The watch lives as long as the fixture, not the setup call
	w.sctx = stopper.WithContext(context.WithoutCancel(ctx))
	w.sctx.Defer(func() {
		_ = watcher.Close()
	})

	w.sctx.Go(func(sctx *stopper.Context) error {
		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
					event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					w.observe(event.Name)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err != nil {
					w.log.Warn().Err(err).Msg("template watch error")
				}
			}
		}
		return nil
	})

	return w, nil
}

// observe marks a changed file as stale when it is one of the sources
func (w *templateWatch) observe(name string) {
	path, err := filepath.Abs(name)
	if err != nil {
		return
	}
	if _, ok := w.sources[path]; !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.stale {
		if s == path {
			return
		}
	}
	w.stale = append(w.stale, path)
	w.log.Warn().Str("template", path).Msg("template changed while IOC is running; the IOC still uses the old records")
}

// Stale returns the sources that changed, in the order they were noticed
func (w *templateWatch) Stale() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.stale...)
}

// stop ends the watch and waits for its goroutine
func (w *templateWatch) stop() error {
	w.sctx.Stop(DefaultWatchGrace)
	return w.sctx.Wait()
}
