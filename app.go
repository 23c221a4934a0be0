package main

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"localshortcut/internal/config"
	"localshortcut/internal/host"
	"localshortcut/internal/hotkeys"
	"localshortcut/internal/sessionlog"
	"localshortcut/internal/shortcut"
	"localshortcut/internal/wsserver"
)

// warningBufferSize is the number of captured warnings kept for the UI.
const warningBufferSize = 200

// App is the Wails-bound application service.
type App struct {
	// Runtime context lifecycle.
	ctx   context.Context
	ctxMu sync.RWMutex

	// Configuration state.
	// Lock ordering (outer -> inner):
	//   shortcutCfgMu -> cfgMu
	//
	// shortcut.Manager, host.Tracker and wailshost.Source locks are never
	// held while these are acquired.
	cfgMu         sync.RWMutex
	cfg           config.Config
	configPath    string
	shortcutCfgMu sync.Mutex
	// configured holds the entries registered from the config file so a
	// reload removes exactly those.
	configured []*shortcut.Entry

	// Shortcut stack. Set once during startup before any Wails-bound method
	// can run; never reassigned.
	table   hotkeys.Table
	source  windowSource
	tracker *host.Tracker
	manager *shortcut.Manager

	// inspector streams shortcut activity; nil when disabled or failed.
	inspector *wsserver.Hub
	watcher   *config.Watcher

	// warnings captures Warn+ log records for GetWarnings.
	warnings          *sessionlog.Buffer
	publishingWarning atomic.Bool
	logLevel          slog.LevelVar

	// restoreLogger reinstates the logger that was default before startup.
	restoreLogger func()
}

// NewApp creates the app service.
func NewApp() *App {
	return &App{
		warnings: sessionlog.NewBuffer(warningBufferSize),
	}
}

// GetInspectorURL returns the inspector WebSocket URL, or "" when the
// inspector is disabled.
func (a *App) GetInspectorURL() string {
	if a.inspector == nil {
		slog.Debug("[inspector] hub is nil, URL unavailable")
		return ""
	}
	return a.inspector.URL()
}
