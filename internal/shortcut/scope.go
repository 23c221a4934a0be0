package shortcut

import "fmt"

// WindowID identifies a host window. The host owns window lifetime; the
// shortcut layer only compares IDs.
type WindowID string

// Scope is either one window or AnyWindow.
type Scope struct {
	window WindowID
	any    bool
}

// AnyWindow scopes a shortcut to every window of the application.
var AnyWindow = Scope{any: true}

// ForWindow scopes a shortcut to a single window.
func ForWindow(id WindowID) Scope {
	return Scope{window: id}
}

// IsAny reports whether s is AnyWindow.
func (s Scope) IsAny() bool { return s.any }

// Window returns the window ID of a window scope. ok is false for AnyWindow.
func (s Scope) Window() (id WindowID, ok bool) {
	if s.any {
		return "", false
	}
	return s.window, true
}

func (s Scope) String() string {
	if s.any {
		return "any-window"
	}
	return fmt.Sprintf("window:%s", s.window)
}
