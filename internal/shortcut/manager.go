package shortcut

import (
	"log/slog"
	"runtime/debug"
	"sync"

	"localshortcut/internal/accelerator"
	"localshortcut/internal/hotkeys"
)

// Host answers engagement queries and tracks the windows that own
// shortcuts. Implementations must not call back into the Manager from these
// methods.
type Host interface {
	// Engaged reports whether win is focused, visible and not minimized.
	Engaged(win WindowID) bool
	// AnyEngaged reports whether any window of the application is engaged.
	AnyEngaged() bool
	// Watch is called when win gets its first shortcut. The host then
	// reports win's close so the row can be dropped.
	Watch(win WindowID)
	// Unwatch is called when win's row is dropped.
	Unwatch(win WindowID)
}

// Options configures a Manager. Zero values select defaults.
type Options struct {
	// Table receives bindings. Defaults to a new hotkeys.MemoryTable.
	Table hotkeys.Table
	// Host reports engagement. Defaults to a host where nothing is engaged.
	Host Host
	// Validate checks accelerator syntax. Defaults to accelerator.IsValid.
	Validate func(string) bool
	// Observer receives binding changes after each operation completes,
	// outside the Manager lock. May be nil.
	Observer func(Change)
}

// Manager is the public shortcut API. All operations are serialized; actions
// run outside the lock and may call back into the Manager.
type Manager struct {
	mu       sync.Mutex
	registry *Registry
	ctl      *controller
	host     Host
	validate func(string) bool
	observer func(Change)
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	if opts.Table == nil {
		opts.Table = hotkeys.NewMemoryTable()
	}
	if opts.Host == nil {
		opts.Host = detachedHost{}
	}
	if opts.Validate == nil {
		opts.Validate = accelerator.IsValid
	}
	registry := NewRegistry()
	return &Manager{
		registry: registry,
		ctl:      newController(registry, opts.Table),
		host:     opts.Host,
		validate: opts.Validate,
		observer: opts.Observer,
	}
}

// do runs fn under the lock and delivers queued changes after unlocking.
func (m *Manager) do(fn func()) {
	m.mu.Lock()
	fn()
	changes := m.ctl.takePending()
	m.mu.Unlock()

	if m.observer == nil {
		return
	}
	for _, change := range changes {
		m.observer(change)
	}
}

// checkAccelerator logs a warning with the caller's stack for invalid
// accelerator syntax. It never rejects the accelerator.
func (m *Manager) checkAccelerator(accel string) {
	if m.validate(accel) {
		return
	}
	slog.Warn("[shortcut] WARNING invalid accelerator",
		"accelerator", accel, "stack", string(debug.Stack()))
}

func (m *Manager) engagedLocked(scope Scope) bool {
	if win, ok := scope.Window(); ok {
		return m.host.Engaged(win)
	}
	return m.host.AnyEngaged()
}

// Register adds a shortcut for accel to scope. If scope is engaged the
// shortcut is bound immediately; otherwise it is bound on the next
// engagement. Invalid accelerators are stored after a warning.
func (m *Manager) Register(scope Scope, accel string, action Action) {
	m.RegisterMany(scope, []string{accel}, action)
}

// RegisterMany adds one entry per accelerator, all sharing action.
func (m *Manager) RegisterMany(scope Scope, accels []string, action Action) {
	m.RegisterEntries(scope, accels, action)
}

// RegisterEntries behaves like RegisterMany and returns the new entries, in
// accelerator order, for later removal with Remove. It returns nil when
// action is nil.
func (m *Manager) RegisterEntries(scope Scope, accels []string, action Action) []*Entry {
	if action == nil {
		slog.Warn("[shortcut] register ignored: action is nil", "scope", scope.String(), "accelerators", accels)
		return nil
	}
	for _, accel := range accels {
		m.checkAccelerator(accel)
	}

	entries := make([]*Entry, 0, len(accels))
	m.do(func() {
		for _, accel := range accels {
			if win, ok := scope.Window(); ok && !m.registry.Has(scope) {
				m.host.Watch(win)
			}
			e := m.registry.Add(scope, accel, action)
			if m.engagedLocked(scope) {
				m.ctl.activate(e)
			}
			entries = append(entries, e)
			slog.Debug("[shortcut] registered", "scope", scope.String(), "accelerator", accel, "active", e.active)
		}
	})
	return entries
}

// Remove unregisters exactly the given entries. Entries already gone
// (unregistered, or dropped with their window) are skipped.
func (m *Manager) Remove(entries ...*Entry) {
	m.do(func() {
		for _, e := range entries {
			if e == nil {
				continue
			}
			idx := m.registry.IndexOf(e)
			if idx < 0 {
				continue
			}
			m.registry.RemoveAt(e.scope, idx)
			m.ctl.deactivate(e)
			slog.Debug("[shortcut] removed", "scope", e.scope.String(), "accelerator", e.accelerator)
		}
	})
}

// Unregister removes the first entry matching each accelerator from scope
// and releases its binding. Accelerators with no entry are ignored.
func (m *Manager) Unregister(scope Scope, accels ...string) {
	for _, accel := range accels {
		m.checkAccelerator(accel)
	}

	m.do(func() {
		for _, accel := range accels {
			idx := m.registry.FindIndex(scope, accel)
			if idx < 0 {
				continue
			}
			e := m.registry.RemoveAt(scope, idx)
			m.ctl.deactivate(e)
			slog.Debug("[shortcut] unregistered", "scope", scope.String(), "accelerator", accel)
		}
	})
}

// IsRegistered reports whether scope has at least one entry for accel,
// whether or not it is currently bound.
func (m *Manager) IsRegistered(scope Scope, accel string) bool {
	m.checkAccelerator(accel)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.FindIndex(scope, accel) >= 0
}

// UnregisterAll releases and removes every shortcut of scope.
func (m *Manager) UnregisterAll(scope Scope) {
	m.do(func() {
		if !m.registry.Has(scope) {
			return
		}
		m.ctl.drop(scope)
		if win, ok := scope.Window(); ok {
			m.host.Unwatch(win)
		}
	})
}

// EnableAll binds every shortcut of scope regardless of engagement. Use it
// to restore shortcuts suspended with DisableAll.
func (m *Manager) EnableAll(scope Scope) {
	m.do(func() {
		m.ctl.activateAll(scope)
	})
}

// DisableAll releases every shortcut of scope without removing it.
func (m *Manager) DisableAll(scope Scope) {
	m.do(func() {
		m.ctl.deactivateAll(scope)
	})
}

// Engage arms AnyWindow and win's shortcuts. Host adapters call it when win
// becomes focused, visible and not minimized.
func (m *Manager) Engage(win WindowID) {
	m.do(func() {
		m.ctl.engage(win)
	})
}

// Disengage releases AnyWindow and win's shortcuts. Host adapters call it
// when an engaged window loses focus, is hidden, minimized or closed.
func (m *Manager) Disengage(win WindowID) {
	m.do(func() {
		m.ctl.disengage(win)
	})
}

// Close drops win's row after releasing its bindings. It is the terminal
// transition for the window; registering on the same ID later starts over.
func (m *Manager) Close(win WindowID) {
	m.do(func() {
		scope := ForWindow(win)
		if !m.registry.Has(scope) {
			return
		}
		m.ctl.drop(scope)
		m.host.Unwatch(win)
	})
}

// CloseAll releases and removes every shortcut, AnyWindow included. Host
// adapters call it when the last window has closed.
func (m *Manager) CloseAll() {
	m.do(func() {
		for _, scope := range m.registry.Scopes() {
			m.ctl.drop(scope)
			if win, ok := scope.Window(); ok {
				m.host.Unwatch(win)
			}
		}
	})
}

// EntrySnapshot describes one entry at snapshot time.
type EntrySnapshot struct {
	Accelerator string `json:"accelerator"`
	Active      bool   `json:"active"`
	// Owner is true when this entry's action is the one the table fires.
	Owner bool `json:"owner"`
}

// ScopeSnapshot describes one registry row.
type ScopeSnapshot struct {
	Scope   Scope           `json:"-"`
	Name    string          `json:"scope"`
	Entries []EntrySnapshot `json:"entries"`
}

// Snapshot returns the registry contents, AnyWindow first.
func (m *Manager) Snapshot() []ScopeSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	scopes := m.registry.Scopes()
	out := make([]ScopeSnapshot, 0, len(scopes))
	for _, scope := range scopes {
		row := m.registry.Entries(scope)
		snap := ScopeSnapshot{
			Scope:   scope,
			Name:    scope.String(),
			Entries: make([]EntrySnapshot, 0, len(row)),
		}
		for _, e := range row {
			snap.Entries = append(snap.Entries, EntrySnapshot{
				Accelerator: e.accelerator,
				Active:      e.active,
				Owner:       e.active && m.ctl.owner(e.key) == e,
			})
		}
		out = append(out, snap)
	}
	return out
}

type detachedHost struct{}

func (detachedHost) Engaged(WindowID) bool { return false }
func (detachedHost) AnyEngaged() bool      { return false }
func (detachedHost) Watch(WindowID)        {}
func (detachedHost) Unwatch(WindowID)      {}
