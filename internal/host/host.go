// Package host adapts window-system events to shortcut lifecycle
// transitions.
package host

import "localshortcut/internal/shortcut"

// EventKind is a window-system transition.
type EventKind int

const (
	EventFocus EventKind = iota
	EventBlur
	EventShow
	EventHide
	EventMinimize
	EventRestore
	EventClose
	// EventAllClosed fires after the last window has closed. Window is empty.
	EventAllClosed
)

func (k EventKind) String() string {
	switch k {
	case EventFocus:
		return "focus"
	case EventBlur:
		return "blur"
	case EventShow:
		return "show"
	case EventHide:
		return "hide"
	case EventMinimize:
		return "minimize"
	case EventRestore:
		return "restore"
	case EventClose:
		return "close"
	case EventAllClosed:
		return "all-closed"
	default:
		return "unknown"
	}
}

// Event is delivered after the window state has changed.
type Event struct {
	Kind   EventKind
	Window shortcut.WindowID
}

// WindowState is a window's focus-family state.
type WindowState struct {
	Focused   bool
	Visible   bool
	Minimized bool
}

// Engaged reports whether shortcuts scoped to the window may be live.
func (s WindowState) Engaged() bool {
	return s.Focused && s.Visible && !s.Minimized
}

// Source is a window system: it reports window state and delivers events.
// Source must not hold internal locks while invoking subscribers.
type Source interface {
	Subscribe(fn func(Event)) (unsubscribe func())
	State(id shortcut.WindowID) (WindowState, bool)
	Windows() []shortcut.WindowID
}
