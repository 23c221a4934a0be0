package main

import (
	"fmt"
	"log/slog"
	"strings"

	"localshortcut/internal/config"
	"localshortcut/internal/shortcut"
	"localshortcut/internal/wsserver"
)

// parseScope maps a frontend or config scope name to a shortcut scope.
// "app" binds across windows; "window" (or "") binds to the main window.
func (a *App) parseScope(name string) (shortcut.Scope, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case config.ScopeApp, "any", "any-window":
		return shortcut.AnyWindow, nil
	case config.ScopeWindow, "", "main":
		return shortcut.ForWindow(a.mainWindow()), nil
	default:
		return shortcut.Scope{}, fmt.Errorf("unknown shortcut scope %q", name)
	}
}

func (a *App) mainWindow() shortcut.WindowID {
	if a.source == nil {
		return ""
	}
	return a.source.Window()
}

// shortcutAction returns the callback bound for one accelerator. It
// reports the trigger to the frontend and the inspector.
func (a *App) shortcutAction(scope shortcut.Scope, accel string, action string) shortcut.Action {
	payload := triggerPayload{Accelerator: accel, Action: action, Scope: scope.String()}
	return func() {
		defer func() { recoverActionPanic(action, recover()) }()
		slog.Debug("[shortcut] triggered", "accelerator", accel, "action", action, "scope", payload.Scope)
		a.emitRuntimeEvent(eventShortcutTriggered, payload)
		a.publish(wsserver.TopicTrigger, payload)
	}
}

// applyShortcutConfig replaces the config-sourced entries with the shortcuts
// in cfg. Entries registered through the bound API are kept, including ones
// on the same accelerator and scope.
func (a *App) applyShortcutConfig(cfg config.Config) {
	manager, err := a.requireManager()
	if err != nil {
		slog.Warn("[shortcut] config not applied", "error", err)
		return
	}

	a.shortcutCfgMu.Lock()
	defer a.shortcutCfgMu.Unlock()

	manager.Remove(a.configured...)
	a.configured = nil

	for _, sc := range cfg.Shortcuts {
		scope, err := a.parseScope(sc.Scope)
		if err != nil {
			slog.Warn("[WARN-CONFIG] shortcut skipped", "action", sc.Action, "error", err)
			continue
		}
		for _, accel := range sc.Accelerators {
			entries := manager.RegisterEntries(scope, []string{accel}, a.shortcutAction(scope, accel, sc.Action))
			a.configured = append(a.configured, entries...)
		}
	}
}

// onConfigReload applies a config file change. A file that fails to parse
// leaves the running shortcuts untouched.
func (a *App) onConfigReload(cfg config.Config, err error) {
	if err != nil {
		runtimeLogger.Warningf(a.runtimeContext(), "config reload ignored: %v", err)
		return
	}
	previous := a.getConfigSnapshot()
	a.setConfigSnapshot(cfg)
	a.logLevel.Set(config.ParseLogLevel(cfg.LogLevel))
	if previous.Inspector != cfg.Inspector || previous.SystemHotkeys != cfg.SystemHotkeys {
		slog.Info("[config] inspector and system_hotkeys changes apply on next start")
	}
	a.applyShortcutConfig(cfg)
	a.emitRuntimeEvent(eventConfigReloaded, cfg)
}
