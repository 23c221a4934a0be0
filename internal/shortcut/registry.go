package shortcut

import (
	"sort"

	"localshortcut/internal/accelerator"
)

// Action is the callback bound to a shortcut.
type Action func()

// Entry is one registered shortcut.
type Entry struct {
	accelerator string
	key         string
	action      Action
	scope       Scope
	active      bool
}

// Accelerator returns the accelerator as registered.
func (e *Entry) Accelerator() string { return e.accelerator }

// Scope returns the scope that owns the entry.
func (e *Entry) Scope() Scope { return e.scope }

// Active reports whether the entry currently holds a table binding.
func (e *Entry) Active() bool { return e.active }

// Registry maps scopes to their shortcut entries in insertion order.
// It never touches the accelerator table and is not safe for concurrent use;
// Manager serializes access.
type Registry struct {
	rows map[Scope][]*Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rows: map[Scope][]*Entry{}}
}

// Add appends a new entry to scope's row, creating the row if needed.
// Duplicates are kept.
func (r *Registry) Add(scope Scope, accel string, action Action) *Entry {
	e := &Entry{
		accelerator: accel,
		key:         accelerator.Normalize(accel),
		action:      action,
		scope:       scope,
	}
	r.rows[scope] = append(r.rows[scope], e)
	return e
}

// FindIndex returns the index of the first entry in scope whose accelerator
// equals accel exactly, or -1.
func (r *Registry) FindIndex(scope Scope, accel string) int {
	for i, e := range r.rows[scope] {
		if e.accelerator == accel {
			return i
		}
	}
	return -1
}

// IndexOf returns the position of e in its scope's row, or -1 when e has
// been removed.
func (r *Registry) IndexOf(e *Entry) int {
	for i, other := range r.rows[e.scope] {
		if other == e {
			return i
		}
	}
	return -1
}

// RemoveAt removes and returns the entry at index i of scope's row. The row
// itself is kept even when it becomes empty.
func (r *Registry) RemoveAt(scope Scope, i int) *Entry {
	row := r.rows[scope]
	if i < 0 || i >= len(row) {
		return nil
	}
	e := row[i]
	r.rows[scope] = append(row[:i:i], row[i+1:]...)
	return e
}

// Drop deletes scope's row and returns its entries.
func (r *Registry) Drop(scope Scope) []*Entry {
	row := r.rows[scope]
	delete(r.rows, scope)
	return row
}

// Has reports whether scope has a row.
func (r *Registry) Has(scope Scope) bool {
	_, ok := r.rows[scope]
	return ok
}

// Entries returns a copy of scope's row.
func (r *Registry) Entries(scope Scope) []*Entry {
	row := r.rows[scope]
	if len(row) == 0 {
		return nil
	}
	out := make([]*Entry, len(row))
	copy(out, row)
	return out
}

// Scopes returns every scope with a row: AnyWindow first, then windows
// ordered by ID.
func (r *Registry) Scopes() []Scope {
	out := make([]Scope, 0, len(r.rows))
	for scope := range r.rows {
		out = append(out, scope)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].any != out[j].any {
			return out[i].any
		}
		return out[i].window < out[j].window
	})
	return out
}
