package shortcut

import (
	"log/slog"

	"localshortcut/internal/hotkeys"
)

// ChangeKind classifies a Change.
type ChangeKind int

const (
	// ChangeBound means the entry now owns its accelerator in the table.
	ChangeBound ChangeKind = iota
	// ChangeUnbound means the entry no longer holds a binding.
	ChangeUnbound
	// ChangeRejected means the table refused the binding.
	ChangeRejected
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeBound:
		return "bound"
	case ChangeUnbound:
		return "unbound"
	case ChangeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Change reports a binding transition to an Observer.
type Change struct {
	Kind        ChangeKind
	Scope       Scope
	Accelerator string
	Err         error
}

// controller is the only writer of the accelerator table. For each
// normalized accelerator it keeps the active entries in bind order; the last
// one owns the table slot. Unbinding the owner hands the slot back to the
// previous active entry, so removing a shortcut from one scope never strips
// a binding that another scope still holds.
type controller struct {
	registry *Registry
	table    hotkeys.Table
	owners   map[string][]*Entry
	pending  []Change
}

func newController(registry *Registry, table hotkeys.Table) *controller {
	return &controller{
		registry: registry,
		table:    table,
		owners:   map[string][]*Entry{},
	}
}

func (c *controller) notify(change Change) {
	c.pending = append(c.pending, change)
}

// takePending returns and clears the changes queued since the last call.
func (c *controller) takePending() []Change {
	out := c.pending
	c.pending = nil
	return out
}

// activate binds e, making it the owner of its accelerator.
func (c *controller) activate(e *Entry) {
	if e.active {
		return
	}
	if err := c.table.Register(e.accelerator, e.action); err != nil {
		slog.Warn("[shortcut] accelerator rejected by table",
			"accelerator", e.accelerator, "scope", e.scope.String(), "error", err)
		c.notify(Change{Kind: ChangeRejected, Scope: e.scope, Accelerator: e.accelerator, Err: err})
		return
	}
	e.active = true
	c.owners[e.key] = append(c.owners[e.key], e)
	c.notify(Change{Kind: ChangeBound, Scope: e.scope, Accelerator: e.accelerator})
}

// deactivate releases e. When e owned the table slot, the most recent other
// active entry for the same accelerator is rebound; otherwise the slot is
// cleared.
func (c *controller) deactivate(e *Entry) {
	if !e.active {
		return
	}
	e.active = false
	c.notify(Change{Kind: ChangeUnbound, Scope: e.scope, Accelerator: e.accelerator})

	stack := c.owners[e.key]
	idx := -1
	for i, held := range stack {
		if held == e {
			idx = i
			break
		}
	}
	if idx < 0 {
		slog.Warn("[shortcut] active entry missing from owner stack", "accelerator", e.accelerator)
		return
	}
	wasOwner := idx == len(stack)-1
	stack = append(stack[:idx:idx], stack[idx+1:]...)
	if !wasOwner {
		c.owners[e.key] = stack
		return
	}

	for len(stack) > 0 {
		next := stack[len(stack)-1]
		err := c.table.Register(next.accelerator, next.action)
		if err == nil {
			c.owners[e.key] = stack
			c.notify(Change{Kind: ChangeBound, Scope: next.scope, Accelerator: next.accelerator})
			return
		}
		slog.Warn("[shortcut] rebinding shadowed accelerator failed",
			"accelerator", next.accelerator, "scope", next.scope.String(), "error", err)
		next.active = false
		stack = stack[:len(stack)-1]
		c.notify(Change{Kind: ChangeRejected, Scope: next.scope, Accelerator: next.accelerator, Err: err})
	}
	delete(c.owners, e.key)
	if err := c.table.Unregister(e.accelerator); err != nil {
		slog.Warn("[shortcut] unregister from table failed", "accelerator", e.accelerator, "error", err)
	}
}

// activateAll binds every entry of scope in insertion order.
func (c *controller) activateAll(scope Scope) {
	for _, e := range c.registry.Entries(scope) {
		c.activate(e)
	}
}

// deactivateAll releases every active entry of scope.
func (c *controller) deactivateAll(scope Scope) {
	for _, e := range c.registry.Entries(scope) {
		c.deactivate(e)
	}
}

// engage arms AnyWindow first, then the window's own row, so window
// shortcuts win over app-wide ones for the same accelerator.
func (c *controller) engage(win WindowID) {
	if c.registry.Has(AnyWindow) {
		c.activateAll(AnyWindow)
	}
	c.activateAll(ForWindow(win))
}

// disengage tears down AnyWindow along with the window's row. The next
// engage re-arms AnyWindow.
func (c *controller) disengage(win WindowID) {
	if c.registry.Has(AnyWindow) {
		c.deactivateAll(AnyWindow)
	}
	c.deactivateAll(ForWindow(win))
}

// drop deactivates and deletes scope's row.
func (c *controller) drop(scope Scope) {
	c.deactivateAll(scope)
	c.registry.Drop(scope)
}

// owner returns the entry currently holding key's table slot.
func (c *controller) owner(key string) *Entry {
	stack := c.owners[key]
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}
