//go:build !windows

package hotkeys

import "log/slog"

// NewSystemTable returns an in-process table on platforms without a global
// hotkey backend. Bindings only fire through Dispatch (frontend key events).
func NewSystemTable() (Table, error) {
	slog.Info("[hotkey] OS-level global hotkeys are not supported on this platform; using in-process table")
	return NewMemoryTable(), nil
}
