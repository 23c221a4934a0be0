package main

import (
	"errors"
	"log/slog"
	goruntime "runtime"
	"strings"

	"localshortcut/internal/accelerator"
	"localshortcut/internal/config"
	"localshortcut/internal/sessionlog"
	"localshortcut/internal/shortcut"
)

// RegisterShortcut binds accel to action in scope ("window" or
// "app"). Invalid accelerator syntax is logged, not rejected.
func (a *App) RegisterShortcut(scope string, accel string, action string) error {
	manager, err := a.requireManager()
	if err != nil {
		return err
	}
	s, err := a.parseScope(scope)
	if err != nil {
		return err
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return errors.New("action is required")
	}
	manager.Register(s, accel, a.shortcutAction(s, accel, action))
	return nil
}

// UnregisterShortcut removes the first registration of accel in scope.
// Unknown accelerators are ignored.
func (a *App) UnregisterShortcut(scope string, accel string) error {
	manager, err := a.requireManager()
	if err != nil {
		return err
	}
	s, err := a.parseScope(scope)
	if err != nil {
		return err
	}
	manager.Unregister(s, accel)
	return nil
}

// IsShortcutRegistered reports whether scope has a registration for accel.
func (a *App) IsShortcutRegistered(scope string, accel string) (bool, error) {
	manager, err := a.requireManager()
	if err != nil {
		return false, err
	}
	s, err := a.parseScope(scope)
	if err != nil {
		return false, err
	}
	return manager.IsRegistered(s, accel), nil
}

// UnregisterAllShortcuts removes every registration in scope.
func (a *App) UnregisterAllShortcuts(scope string) error {
	return a.withScope(scope, (*shortcut.Manager).UnregisterAll)
}

// EnableAllShortcuts binds every registration in scope regardless of focus.
func (a *App) EnableAllShortcuts(scope string) error {
	return a.withScope(scope, (*shortcut.Manager).EnableAll)
}

// DisableAllShortcuts unbinds every registration in scope without removing it.
func (a *App) DisableAllShortcuts(scope string) error {
	return a.withScope(scope, (*shortcut.Manager).DisableAll)
}

func (a *App) withScope(scope string, fn func(*shortcut.Manager, shortcut.Scope)) error {
	manager, err := a.requireManager()
	if err != nil {
		return err
	}
	s, err := a.parseScope(scope)
	if err != nil {
		return err
	}
	fn(manager, s)
	return nil
}

// ListShortcuts returns every registration grouped by scope.
func (a *App) ListShortcuts() []shortcut.ScopeSnapshot {
	manager, err := a.requireManager()
	if err != nil {
		return nil
	}
	return manager.Snapshot()
}

// HandleKey delivers a key chord captured by the frontend to the
// accelerator table. It reports whether a bound action ran.
func (a *App) HandleKey(chord string) bool {
	table, err := a.requireTable()
	if err != nil {
		slog.Debug("[hotkey] key dropped", "accelerator", chord, "error", err)
		return false
	}
	for _, candidate := range keyCandidates(chord) {
		if table.Dispatch(candidate) {
			return true
		}
	}
	return false
}

// keyCandidates expands a concrete chord into the forms a binding may have
// been registered under: the chord itself, then its CmdOrCtrl form.
func keyCandidates(chord string) []string {
	acc, err := accelerator.Parse(chord)
	if err != nil {
		return []string{chord}
	}
	platformMod := accelerator.ModControl
	if goruntime.GOOS == "darwin" {
		platformMod = accelerator.ModCommand | accelerator.ModSuper
	}
	out := []string{acc.String()}
	if alt, ok := acc.Replace(platformMod, accelerator.ModCommandOrControl); ok {
		out = append(out, alt.String())
	}
	return out
}

// GetWarnings returns captured warnings, oldest first.
func (a *App) GetWarnings() []sessionlog.Entry {
	return a.warnings.Entries()
}

// ClearWarnings discards captured warnings.
func (a *App) ClearWarnings() {
	a.warnings.Clear()
}

// GetConfig returns the active configuration.
func (a *App) GetConfig() config.Config {
	return a.getConfigSnapshot()
}

// ReloadConfig re-reads the config file and applies its shortcuts.
func (a *App) ReloadConfig() error {
	if a.configPath == "" {
		return errors.New("config path is not initialized")
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.onConfigReload(cfg, nil)
	return nil
}
