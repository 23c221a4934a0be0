// Package shortcut keeps keyboard shortcuts scoped to windows.
//
// A Manager owns a Registry of shortcut entries per Scope (one window, or
// AnyWindow) and a lifecycle controller that binds and unbinds those entries
// in a shared hotkeys.Table as windows gain and lose engagement. A window is
// engaged while it is focused, visible and not minimized; AnyWindow is
// engaged while any window is.
//
// Host adapters (see package host) translate window-system events into the
// Engage, Disengage, Close and CloseAll transitions and answer engagement
// queries through the Host interface.
package shortcut
