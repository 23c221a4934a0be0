package main

import (
	"context"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"localshortcut/internal/config"
	"localshortcut/internal/host"
	"localshortcut/internal/hotkeys"
	"localshortcut/internal/shortcut"
	"localshortcut/internal/testutil"
)

// NOTE: tests in this package replace package-level function variables
// (runtimeEventsEmitFn, runtimeLogger, newSystemTableFn, ...) and the default
// slog logger. Do not use t.Parallel() here.

type lifecycleTestLogger struct {
	warnf func(context.Context, string, ...any)
	infof func(context.Context, string, ...any)
}

func (l lifecycleTestLogger) Warningf(ctx context.Context, message string, args ...any) {
	if l.warnf != nil {
		l.warnf(ctx, message, args...)
	}
}

func (l lifecycleTestLogger) Infof(ctx context.Context, message string, args ...any) {
	if l.infof != nil {
		l.infof(ctx, message, args...)
	}
}

func (lifecycleTestLogger) Errorf(context.Context, string, ...any) {}

// simSource adapts host.Sim to the app's window source with one main window.
type simSource struct {
	*host.Sim
	main    *host.SimWindow
	mu      sync.Mutex
	stopped bool
}

func newSimSource() *simSource {
	sim := host.NewSim()
	return &simSource{Sim: sim, main: sim.NewWindow()}
}

func (s *simSource) Window() shortcut.WindowID { return s.main.ID() }

func (s *simSource) Close() { s.main.Close() }

func (s *simSource) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

func (s *simSource) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type emittedEvent struct {
	name    string
	payload any
}

// eventRecorder collects runtime events; emits may come from watcher and
// table goroutines.
type eventRecorder struct {
	mu     sync.Mutex
	events []emittedEvent
}

func (r *eventRecorder) emit(_ context.Context, name string, data ...any) {
	var payload any
	if len(data) > 0 {
		payload = data[0]
	}
	r.mu.Lock()
	r.events = append(r.events, emittedEvent{name: name, payload: payload})
	r.mu.Unlock()
}

func (r *eventRecorder) named(name string) []emittedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emittedEvent
	for _, ev := range r.events {
		if ev.name == name {
			out = append(out, ev)
		}
	}
	return out
}

type appHarness struct {
	app    *App
	source *simSource
	table  *hotkeys.MemoryTable
	events *eventRecorder
	logs   *testutil.LogBuffer
	warns  *testutil.LogBuffer
}

func restoreAppHooks(t *testing.T) {
	t.Helper()
	origEmit := runtimeEventsEmitFn
	origLogger := runtimeLogger
	origTable := newSystemTableFn
	origSource := newWindowSourceFn
	origWatch := watchConfigFn
	origOutput := logOutput
	t.Cleanup(func() {
		runtimeEventsEmitFn = origEmit
		runtimeLogger = origLogger
		newSystemTableFn = origTable
		newWindowSourceFn = origSource
		watchConfigFn = origWatch
		logOutput = origOutput
	})
}

// writeTestConfig writes cfg where startup will look for it.
func writeTestConfig(t *testing.T, cfg config.Config) string {
	t.Helper()
	path := config.DefaultPath()
	if _, err := config.Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return path
}

// newAppHarness isolates the config directory and stubs every Wails runtime
// hook. Call start to run startup; shutdown runs in cleanup.
func newAppHarness(t *testing.T) *appHarness {
	t.Helper()
	restoreAppHooks(t)
	dir := t.TempDir()
	t.Setenv("LOCALAPPDATA", dir)
	t.Setenv("APPDATA", dir)

	h := &appHarness{
		app:    NewApp(),
		source: newSimSource(),
		table:  hotkeys.NewMemoryTable(),
		events: &eventRecorder{},
		logs:   &testutil.LogBuffer{},
		warns:  &testutil.LogBuffer{},
	}
	runtimeEventsEmitFn = h.events.emit
	runtimeLogger = lifecycleTestLogger{
		warnf: func(_ context.Context, message string, _ ...any) {
			_, _ = io.WriteString(h.warns, message+"\n")
		},
	}
	newSystemTableFn = func() (hotkeys.Table, error) { return h.table, nil }
	newWindowSourceFn = func(context.Context) windowSource { return h.source }
	// File watching is opted into per test; reloads are driven directly.
	watchConfigFn = func(context.Context, string, time.Duration, func(config.Config, error)) (*config.Watcher, error) {
		return nil, nil
	}
	logOutput = h.logs
	return h
}

func (h *appHarness) start(t *testing.T) {
	t.Helper()
	h.app.startup(context.Background())
	t.Cleanup(func() { h.app.shutdown(context.Background()) })
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func boundContains(table *hotkeys.MemoryTable, accel string) bool {
	return slices.Contains(table.Bound(), accel)
}
