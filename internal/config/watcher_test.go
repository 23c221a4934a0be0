package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

type reload struct {
	cfg Config
	err error
}

func startWatcher(t *testing.T, path string) <-chan reload {
	t.Helper()
	ch := make(chan reload, 8)
	w, err := Watch(context.Background(), path, 20*time.Millisecond, func(cfg Config, err error) {
		ch <- reload{cfg: cfg, err: err}
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return ch
}

func waitReload(t *testing.T, ch <-chan reload) reload {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
		return reload{}
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	ch := startWatcher(t, path)

	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	r := waitReload(t, ch)
	if r.err != nil {
		t.Fatalf("reload error = %v", r.err)
	}
	if r.cfg.LogLevel != "debug" {
		t.Fatalf("reloaded LogLevel = %q, want debug", r.cfg.LogLevel)
	}
}

func TestWatchSeesAtomicSave(t *testing.T) {
	path := newConfigPathForSaveTest(t, "config.yaml")
	if _, err := EnsureFile(path); err != nil {
		t.Fatalf("EnsureFile() error = %v", err)
	}
	ch := startWatcher(t, path)

	cfg := DefaultConfig()
	cfg.Shortcuts = []ShortcutConfig{{Accelerators: []string{"F9"}, Scope: ScopeApp, Action: "run"}}
	if _, err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	r := waitReload(t, ch)
	if r.err != nil {
		t.Fatalf("reload error = %v", r.err)
	}
	if len(r.cfg.Shortcuts) != 1 || r.cfg.Shortcuts[0].Action != "run" {
		t.Fatalf("reloaded shortcuts = %+v, want the run shortcut", r.cfg.Shortcuts)
	}
}

func TestWatchReportsParseErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	ch := startWatcher(t, path)

	if err := os.WriteFile(path, []byte("shortcuts: ["), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	r := waitReload(t, ch)
	if r.err == nil {
		t.Fatal("reload error = nil, want parse error")
	}
}

func TestWatchIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	ch := startWatcher(t, path)

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o600); err != nil {
		t.Fatalf("write sibling: %v", err)
	}

	select {
	case r := <-ch:
		t.Fatalf("unexpected reload for sibling file: %+v", r)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchRequiresCallback(t *testing.T) {
	if _, err := Watch(context.Background(), filepath.Join(t.TempDir(), "config.yaml"), 0, nil); err == nil {
		t.Fatal("Watch(nil callback) expected error")
	}
}

func TestWatchReturnsWatcherCreationError(t *testing.T) {
	original := newFSWatcherFn
	t.Cleanup(func() { newFSWatcherFn = original })
	newFSWatcherFn = func() (*fsnotify.Watcher, error) {
		return nil, errors.New("simulated inotify exhaustion")
	}

	_, err := Watch(context.Background(), filepath.Join(t.TempDir(), "config.yaml"), 0, func(Config, error) {})
	if err == nil {
		t.Fatal("Watch() expected error when watcher creation fails")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "config.yaml")
	if _, err := Watch(context.Background(), path, 0, func(Config, error) {}); err == nil {
		t.Fatal("Watch() expected error for missing parent directory")
	}
}

func TestWatchStopsWithContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	ctx, cancel := context.WithCancel(context.Background())
	w, err := Watch(ctx, path, 0, func(Config, error) {})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	cancel()
	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher loop did not exit after context cancel")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() after cancel error = %v", err)
	}
}

func TestWatchCloseWaitsForRunningReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	entered := make(chan struct{}, 8)
	release := make(chan struct{})
	w, err := Watch(context.Background(), path, 20*time.Millisecond, func(Config, error) {
		entered <- struct{}{}
		<-release
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload to start")
	}

	closed := make(chan struct{})
	go func() {
		_ = w.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("Close() returned while a reload callback was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close() did not return after the reload finished")
	}

	if err := os.WriteFile(path, []byte("log_level: warn\n"), 0o600); err != nil {
		t.Fatalf("rewrite config after close: %v", err)
	}
	select {
	case <-entered:
		t.Fatal("onChange called after Close() returned")
	case <-time.After(200 * time.Millisecond):
	}
}
