// Package hotkeys provides the process-wide accelerator table: one callback
// per accelerator, last writer wins.
package hotkeys

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"localshortcut/internal/accelerator"
)

// ErrEmptyAccelerator is returned when an accelerator is blank.
var ErrEmptyAccelerator = errors.New("accelerator is empty")

// ErrNilCallback is returned when Register is called without a callback.
var ErrNilCallback = errors.New("callback is required")

// Table binds accelerators to callbacks. Implementations key bindings by
// accelerator.Normalize so equivalent spellings address the same slot.
type Table interface {
	// Register binds accel to fn, replacing any existing binding.
	Register(accel string, fn func()) error
	// Unregister removes the binding for accel. Missing bindings are a no-op.
	Unregister(accel string) error
	// IsRegistered reports whether accel currently has a binding.
	IsRegistered(accel string) bool
	// Dispatch invokes the callback bound to accel, if any, and reports
	// whether one ran. The callback runs on the caller's goroutine.
	Dispatch(accel string) bool
}

// MemoryTable is an in-process Table. Keys reach it through Dispatch, either
// from a frontend key listener or from tests simulating key delivery.
type MemoryTable struct {
	mu       sync.Mutex
	bindings map[string]func()
}

// NewMemoryTable creates an empty table.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{bindings: map[string]func(){}}
}

// Register binds accel to fn.
func (t *MemoryTable) Register(accel string, fn func()) error {
	key, err := normalizedKey(accel)
	if err != nil {
		return err
	}
	if fn == nil {
		return ErrNilCallback
	}
	t.mu.Lock()
	_, replaced := t.bindings[key]
	t.bindings[key] = fn
	t.mu.Unlock()
	if replaced {
		slog.Debug("[hotkey] binding replaced", "accelerator", key)
	}
	return nil
}

// Unregister removes the binding for accel.
func (t *MemoryTable) Unregister(accel string) error {
	key, err := normalizedKey(accel)
	if err != nil {
		return err
	}
	t.mu.Lock()
	delete(t.bindings, key)
	t.mu.Unlock()
	return nil
}

// IsRegistered reports whether accel has a binding.
func (t *MemoryTable) IsRegistered(accel string) bool {
	key := accelerator.Normalize(accel)
	t.mu.Lock()
	_, ok := t.bindings[key]
	t.mu.Unlock()
	return ok
}

// Dispatch runs the callback bound to accel outside the table lock so the
// callback may register or unregister bindings.
func (t *MemoryTable) Dispatch(accel string) bool {
	key := accelerator.Normalize(accel)
	t.mu.Lock()
	fn := t.bindings[key]
	t.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// Bound returns the normalized accelerators that currently have bindings,
// sorted for stable output.
func (t *MemoryTable) Bound() []string {
	t.mu.Lock()
	out := make([]string, 0, len(t.bindings))
	for key := range t.bindings {
		out = append(out, key)
	}
	t.mu.Unlock()
	sort.Strings(out)
	return out
}

func normalizedKey(accel string) (string, error) {
	key := accelerator.Normalize(accel)
	if strings.TrimSpace(key) == "" {
		return "", ErrEmptyAccelerator
	}
	return key, nil
}
