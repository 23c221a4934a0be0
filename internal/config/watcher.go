package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces the burst of events an editor produces
// for a single save (truncate, write, rename, chmod).
const DefaultWatchDebounce = 150 * time.Millisecond

var newFSWatcherFn = fsnotify.NewWatcher

// Watcher reloads a config file when it changes on disk. Reloads run on
// the watcher's own goroutine; once Close returns onChange is not called
// again.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(Config, error)

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}
}

// Watch starts watching path. onChange receives the result of Load after
// each debounced change, including parse errors. The parent directory is
// watched so atomic temp+rename saves are seen. Watching stops when ctx
// ends or Close is called.
func Watch(ctx context.Context, path string, debounce time.Duration, onChange func(Config, error)) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("config watch: onChange is required")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config watch: resolve path: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	fsw, err := newFSWatcherFn()
	if err != nil {
		return nil, fmt.Errorf("config watch: %w", err)
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, fmt.Errorf("config watch: add %s: %w", filepath.Dir(absPath), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		path:     absPath,
		debounce: debounce,
		onChange: onChange,
		fsw:      fsw,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go w.loop(watchCtx)
	return w, nil
}

// Close stops the watcher and waits for its loop to exit.
func (w *Watcher) Close() error {
	w.cancel()
	<-w.done
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer func() {
		timer.Stop()
		if err := w.fsw.Close(); err != nil {
			slog.Warn("[WARN-CONFIG] failed to close config watcher", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			slog.Debug("[DEBUG-CONFIG] config file event", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("[WARN-CONFIG] config watcher error", "error", err)
		case <-timer.C:
			if ctx.Err() != nil {
				return
			}
			w.reload()
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	// A rename onto path arrives as Create.
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		slog.Warn("[WARN-CONFIG] config reload failed", "path", w.path, "error", err)
	} else {
		slog.Info("[config] config reloaded", "path", w.path, "shortcuts", len(cfg.Shortcuts))
	}
	w.onChange(cfg, err)
}
