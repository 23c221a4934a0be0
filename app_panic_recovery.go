package main

import (
	"log/slog"
	"runtime/debug"
)

// recoverActionPanic logs a panic raised by a shortcut action. Actions run
// on the table's delivery goroutine; a panic there must not take the table
// down with it.
func recoverActionPanic(action string, recovered any) bool {
	if recovered != nil {
		slog.Error("[DEBUG-PANIC] shortcut action recovered from panic",
			"action", action,
			"panic", recovered,
			"stack", string(debug.Stack()),
		)
		return true
	}
	return false
}
