package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/beachsh/beach/internal/errs"
	"github.com/beachsh/beach/internal/logging"
)

// OnReload is called with a freshly reloaded config after the watched
// file changes. It is not called when Load fails: the error is logged
// and the previously delivered config stays in effect, so a transient
// bad write (editors often write a file in two steps) never tears down
// a running session.
type OnReload func(*BeachConfig)

// Watcher reloads a BeachConfig from disk whenever its source file
// changes, using fsnotify the way the noppefoxwolf terminal-manager
// fragment watches its PTY stream file: a single watcher goroutine
// dispatching on fsnotify.Write and fsnotify.Create.
type Watcher struct {
	path   string
	fsw    *fsnotify.Watcher
	log    *zap.Logger
	reload OnReload
}

// Watch starts watching path for writes, invoking reload with each
// successfully parsed config. The initial load is not delivered to
// reload; call Load yourself first and pass its result to your
// caller before starting the Watcher.
func Watch(path string, log *zap.Logger, reload OnReload) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.Wrap(errs.KindSetup, "create config watcher", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, errs.Wrap(errs.KindSetup, "watch config file", err)
	}
	w := &Watcher{path: path, fsw: fsw, log: logging.OrNop(log), reload: reload}
	return w, nil
}

// Run drives the watch loop until ctx is canceled or Close is called.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.log.Warn("config reload failed, keeping previous config", zap.String("path", w.path), zap.Error(err))
				continue
			}
			w.reload(cfg)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watcher error", zap.Error(err))

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
