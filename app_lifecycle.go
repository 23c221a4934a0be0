package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"localshortcut/internal/config"
	"localshortcut/internal/host"
	"localshortcut/internal/hotkeys"
	"localshortcut/internal/sessionlog"
	"localshortcut/internal/shortcut"
	"localshortcut/internal/wailshost"
	"localshortcut/internal/wsserver"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

type appRuntimeLogger interface {
	Warningf(context.Context, string, ...interface{})
	Infof(context.Context, string, ...interface{})
	Errorf(context.Context, string, ...interface{})
}

type wailsRuntimeLogger struct{}

func formatRuntimeLogMessage(message string, args ...interface{}) string {
	if len(args) == 0 {
		return message
	}
	return fmt.Sprintf(message, args...)
}

func (wailsRuntimeLogger) Warningf(ctx context.Context, message string, args ...interface{}) {
	if ctx == nil {
		slog.Warn(formatRuntimeLogMessage(message, args...))
		return
	}
	runtime.LogWarningf(ctx, message, args...)
}

func (wailsRuntimeLogger) Infof(ctx context.Context, message string, args ...interface{}) {
	if ctx == nil {
		slog.Info(formatRuntimeLogMessage(message, args...))
		return
	}
	runtime.LogInfof(ctx, message, args...)
}

func (wailsRuntimeLogger) Errorf(ctx context.Context, message string, args ...interface{}) {
	if ctx == nil {
		slog.Error(formatRuntimeLogMessage(message, args...))
		return
	}
	runtime.LogErrorf(ctx, message, args...)
}

// windowSource is the window system the app tracks. wailshost.Source is the
// production implementation.
type windowSource interface {
	host.Source
	Window() shortcut.WindowID
	Close()
	Stop()
}

var (
	runtimeEventsEmitFn                  = runtime.EventsEmit
	runtimeLogger       appRuntimeLogger = wailsRuntimeLogger{}
	newSystemTableFn                     = hotkeys.NewSystemTable
	newWindowSourceFn                    = func(ctx context.Context) windowSource { return wailshost.New(ctx) }
	watchConfigFn                        = config.Watch
	logOutput           io.Writer        = os.Stderr
)

const shutdownWaitTimeout = 10 * time.Second

func (a *App) startup(ctx context.Context) {
	a.setRuntimeContext(ctx)
	a.installLogging()

	a.configPath = config.DefaultPath()
	for _, message := range config.ConsumeDefaultPathWarnings() {
		slog.Warn("[WARN-CONFIG] " + message)
	}
	cfg, err := config.EnsureFile(a.configPath)
	if err != nil {
		// A broken config never blocks startup; run with what Load returned.
		runtimeLogger.Warningf(ctx, "failed to load config from %s: %v", a.configPath, err)
	}
	a.setConfigSnapshot(cfg)
	a.logLevel.Set(config.ParseLogLevel(cfg.LogLevel))

	a.table = a.newTable(cfg)
	a.source = newWindowSourceFn(ctx)
	a.tracker = host.NewTracker(a.source)
	a.manager = shortcut.NewManager(shortcut.Options{
		Table:    a.table,
		Host:     a.tracker,
		Observer: a.onShortcutChange,
	})
	a.tracker.Attach(a.manager)

	if cfg.Inspector.Enabled {
		a.startInspector(ctx, cfg.Inspector.Addr)
	}

	a.applyShortcutConfig(cfg)

	watcher, err := watchConfigFn(ctx, a.configPath, config.DefaultWatchDebounce, a.onConfigReload)
	if err != nil {
		runtimeLogger.Warningf(ctx, "config watcher unavailable: %v", err)
	} else {
		a.watcher = watcher
	}
	runtimeLogger.Infof(ctx, "shortcuts ready: %d configured", len(cfg.Shortcuts))
}

// newTable picks the OS-level table when configured and available, and the
// in-process table otherwise.
func (a *App) newTable(cfg config.Config) hotkeys.Table {
	if !cfg.SystemHotkeys {
		slog.Info("[hotkey] system hotkeys disabled by config, using in-process table")
		return hotkeys.NewMemoryTable()
	}
	table, err := newSystemTableFn()
	if err != nil {
		runtimeLogger.Warningf(a.runtimeContext(), "system hotkey table unavailable, using in-process table: %v", err)
		return hotkeys.NewMemoryTable()
	}
	return table
}

func (a *App) startInspector(ctx context.Context, addr string) {
	hub := wsserver.NewHub(wsserver.HubOptions{
		Addr: addr,
		Snapshot: func() any {
			return a.manager.Snapshot()
		},
	})
	if err := hub.Start(ctx); err != nil {
		runtimeLogger.Warningf(ctx, "inspector failed to start: %v", err)
		return
	}
	a.inspector = hub
}

// installLogging routes slog through a TeeHandler that captures Warn+
// records for GetWarnings and the inspector.
func (a *App) installLogging() {
	base := slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: &a.logLevel})
	previous := slog.Default()
	slog.SetDefault(slog.New(sessionlog.NewTeeHandler(base, slog.LevelWarn, a.captureWarning)))
	a.restoreLogger = func() { slog.SetDefault(previous) }
}

func (a *App) captureWarning(entry sessionlog.Entry) {
	a.warnings.Add(entry)
	// Publishing may itself log; a nested warning is buffered but not
	// re-published.
	if !a.publishingWarning.CompareAndSwap(false, true) {
		return
	}
	defer a.publishingWarning.Store(false)
	if a.inspector != nil {
		a.inspector.Publish(wsserver.TopicWarning, entry)
	}
	if ctx := a.runtimeContext(); ctx != nil {
		runtimeEventsEmitFn(ctx, eventWarning, entry)
	}
}

func (a *App) shutdown(_ context.Context) {
	logCtx := a.runtimeContext()

	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			runtimeLogger.Warningf(logCtx, "config watcher close failed: %v", err)
		}
		a.watcher = nil
	}

	// Closing the window source emits close and all-closed, which unbinds
	// every shortcut through the tracker.
	if a.source != nil {
		a.source.Close()
		a.source.Stop()
	}
	if a.tracker != nil {
		a.tracker.Detach()
	}

	if a.inspector != nil {
		if err := a.inspector.Stop(); err != nil {
			runtimeLogger.Warningf(logCtx, "inspector stop failed: %v", err)
		}
	}
	if closer, ok := a.table.(io.Closer); ok {
		if !waitWithTimeout(func() {
			if err := closer.Close(); err != nil {
				runtimeLogger.Warningf(logCtx, "hotkey table close failed: %v", err)
			}
		}, shutdownWaitTimeout) {
			runtimeLogger.Warningf(logCtx, "timed out closing hotkey table")
		}
	}

	a.setRuntimeContext(nil)
	if a.restoreLogger != nil {
		a.restoreLogger()
		a.restoreLogger = nil
	}
}

func waitWithTimeout(waitFn func(), timeout time.Duration) bool {
	// The waiting goroutine may outlive timeout when waitFn blocks; this is
	// only used during shutdown.
	done := make(chan struct{})
	go func() {
		waitFn()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
