package host

import (
	"log/slog"
	"sync"

	"localshortcut/internal/shortcut"
)

// Transitions is the lifecycle surface a Tracker drives. *shortcut.Manager
// implements it.
type Transitions interface {
	Engage(win shortcut.WindowID)
	Disengage(win shortcut.WindowID)
	Close(win shortcut.WindowID)
	CloseAll()
}

// Tracker implements shortcut.Host on top of a Source and turns Source
// events into Engage/Disengage/Close/CloseAll calls.
//
// Engagement is edge-triggered: Engage is sent only when a window becomes
// engaged and Disengage only when an engaged window stops being engaged.
// Hiding or closing a window that never had focus therefore leaves
// app-wide shortcuts alone.
type Tracker struct {
	source Source

	mu          sync.Mutex
	target      Transitions
	watched     map[shortcut.WindowID]bool
	engaged     map[shortcut.WindowID]bool
	unsubscribe func()
}

// NewTracker creates a Tracker reading state from source. Call Attach to
// start delivering transitions.
func NewTracker(source Source) *Tracker {
	return &Tracker{
		source:  source,
		watched: map[shortcut.WindowID]bool{},
		engaged: map[shortcut.WindowID]bool{},
	}
}

// Attach subscribes to the source and delivers transitions to target.
// Windows already engaged at attach time are recorded without an Engage
// call; registrations consult Engaged directly.
func (t *Tracker) Attach(target Transitions) {
	t.mu.Lock()
	if t.unsubscribe != nil {
		t.mu.Unlock()
		slog.Warn("[host] tracker already attached")
		return
	}
	t.target = target
	for _, id := range t.source.Windows() {
		if state, ok := t.source.State(id); ok && state.Engaged() {
			t.engaged[id] = true
		}
	}
	t.mu.Unlock()

	unsubscribe := t.source.Subscribe(t.handle)

	t.mu.Lock()
	t.unsubscribe = unsubscribe
	t.mu.Unlock()
}

// Detach stops event delivery.
func (t *Tracker) Detach() {
	t.mu.Lock()
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.target = nil
	t.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Engaged reports whether win is focused, visible and not minimized.
func (t *Tracker) Engaged(win shortcut.WindowID) bool {
	state, ok := t.source.State(win)
	return ok && state.Engaged()
}

// AnyEngaged reports whether any window is engaged.
func (t *Tracker) AnyEngaged() bool {
	for _, id := range t.source.Windows() {
		if t.Engaged(id) {
			return true
		}
	}
	return false
}

// Watch marks win as owning a shortcut row; its close event drops the row.
func (t *Tracker) Watch(win shortcut.WindowID) {
	t.mu.Lock()
	t.watched[win] = true
	t.mu.Unlock()
}

// Unwatch clears the mark set by Watch.
func (t *Tracker) Unwatch(win shortcut.WindowID) {
	t.mu.Lock()
	delete(t.watched, win)
	t.mu.Unlock()
}

// IsWatched reports whether win owns a shortcut row.
func (t *Tracker) IsWatched(win shortcut.WindowID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.watched[win]
}

type action int

const (
	actionNone action = iota
	actionEngage
	actionDisengage
)

func (t *Tracker) handle(ev Event) {
	t.mu.Lock()
	target := t.target
	if target == nil {
		t.mu.Unlock()
		return
	}
	if ev.Kind == EventAllClosed {
		t.engaged = map[shortcut.WindowID]bool{}
		t.mu.Unlock()
		slog.Debug("[host] all windows closed, clearing shortcuts")
		target.CloseAll()
		return
	}
	// Every window's engagement decides AnyWindow, so edges are computed for
	// all windows. Only the row teardown on close needs a watched window.
	watched := t.watched[ev.Window]
	was := t.engaged[ev.Window]
	now := false
	if ev.Kind != EventClose {
		now = t.Engaged(ev.Window)
	}
	if now {
		t.engaged[ev.Window] = true
	} else {
		delete(t.engaged, ev.Window)
	}
	t.mu.Unlock()

	next := actionNone
	switch {
	case now && !was:
		next = actionEngage
	case was && !now:
		next = actionDisengage
	}
	slog.Debug("[host] window event", "event", ev.Kind.String(), "window", string(ev.Window), "engaged", now)

	switch next {
	case actionEngage:
		target.Engage(ev.Window)
	case actionDisengage:
		target.Disengage(ev.Window)
	}
	if ev.Kind == EventClose && watched {
		target.Close(ev.Window)
	}
}
