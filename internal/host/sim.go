package host

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"localshortcut/internal/shortcut"
)

// Sim is an in-memory window system. It follows common desktop behavior:
// at most one window is focused, focusing a window blurs the previous one,
// hiding or minimizing the focused window blurs it, and Show/Restore focus
// the window. Events are delivered synchronously after each state change,
// with no Sim lock held.
type Sim struct {
	mu          sync.Mutex
	windows     map[shortcut.WindowID]*WindowState
	order       []shortcut.WindowID
	focused     shortcut.WindowID
	subscribers map[int]func(Event)
	nextSub     int
}

// NewSim creates an empty window system.
func NewSim() *Sim {
	return &Sim{
		windows:     map[shortcut.WindowID]*WindowState{},
		subscribers: map[int]func(Event){},
	}
}

// SimWindow is a handle to a Sim window.
type SimWindow struct {
	sim *Sim
	id  shortcut.WindowID
}

// ID returns the window identity.
func (w *SimWindow) ID() shortcut.WindowID { return w.id }

// Focus focuses the window. The previously focused window is blurred first.
func (w *SimWindow) Focus() { w.sim.focus(w.id) }

// Blur removes focus from the window.
func (w *SimWindow) Blur() { w.sim.blur(w.id) }

// Show makes the window visible and focuses it.
func (w *SimWindow) Show() { w.sim.show(w.id) }

// Hide hides the window.
func (w *SimWindow) Hide() { w.sim.hide(w.id) }

// Minimize minimizes the window.
func (w *SimWindow) Minimize() { w.sim.minimize(w.id) }

// Restore un-minimizes the window and focuses it.
func (w *SimWindow) Restore() { w.sim.restore(w.id) }

// Close destroys the window.
func (w *SimWindow) Close() { w.sim.close(w.id) }

// NewWindow creates a visible, unfocused window.
func (s *Sim) NewWindow() *SimWindow {
	id := shortcut.WindowID(uuid.NewString())
	s.mu.Lock()
	s.windows[id] = &WindowState{Visible: true}
	s.order = append(s.order, id)
	s.mu.Unlock()
	return &SimWindow{sim: s, id: id}
}

// Focused returns the focused window, if any.
func (s *Sim) Focused() (shortcut.WindowID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focused, s.focused != ""
}

// Subscribe registers fn for every event.
func (s *Sim) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// State returns a copy of the window's state.
func (s *Sim) State(id shortcut.WindowID) (WindowState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.windows[id]
	if !ok {
		return WindowState{}, false
	}
	return *st, true
}

// Windows returns live windows in creation order.
func (s *Sim) Windows() []shortcut.WindowID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

// emit delivers events in order. Caller must not hold s.mu.
func (s *Sim) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	keys := make([]int, 0, len(s.subscribers))
	for k := range s.subscribers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	subs := make([]func(Event), 0, len(keys))
	for _, k := range keys {
		subs = append(subs, s.subscribers[k])
	}
	s.mu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

// blurLocked clears focus from id and returns the blur event to emit.
func (s *Sim) blurLocked(id shortcut.WindowID) []Event {
	st, ok := s.windows[id]
	if !ok || !st.Focused {
		return nil
	}
	st.Focused = false
	if s.focused == id {
		s.focused = ""
	}
	return []Event{{Kind: EventBlur, Window: id}}
}

// focusLocked focuses id, blurring the previous window. Hidden or minimized
// windows cannot take focus.
func (s *Sim) focusLocked(id shortcut.WindowID) []Event {
	st, ok := s.windows[id]
	if !ok || st.Focused || !st.Visible || st.Minimized {
		return nil
	}
	var events []Event
	if s.focused != "" && s.focused != id {
		events = append(events, s.blurLocked(s.focused)...)
	}
	st.Focused = true
	s.focused = id
	return append(events, Event{Kind: EventFocus, Window: id})
}

// step runs mutate under the lock and then emits what it returned.
func (s *Sim) step(mutate func() []Event) {
	s.mu.Lock()
	events := mutate()
	s.mu.Unlock()
	s.emit(events...)
}

func (s *Sim) focus(id shortcut.WindowID) {
	s.step(func() []Event { return s.focusLocked(id) })
}

func (s *Sim) blur(id shortcut.WindowID) {
	s.step(func() []Event { return s.blurLocked(id) })
}

func (s *Sim) show(id shortcut.WindowID) {
	s.step(func() []Event {
		st, ok := s.windows[id]
		if !ok {
			return nil
		}
		var events []Event
		if !st.Visible {
			st.Visible = true
			events = append(events, Event{Kind: EventShow, Window: id})
		}
		return append(events, s.focusLocked(id)...)
	})
}

func (s *Sim) hide(id shortcut.WindowID) {
	s.step(func() []Event {
		st, ok := s.windows[id]
		if !ok || !st.Visible {
			return nil
		}
		events := s.blurLocked(id)
		st.Visible = false
		return append(events, Event{Kind: EventHide, Window: id})
	})
}

func (s *Sim) minimize(id shortcut.WindowID) {
	s.step(func() []Event {
		st, ok := s.windows[id]
		if !ok || st.Minimized {
			return nil
		}
		events := s.blurLocked(id)
		st.Minimized = true
		return append(events, Event{Kind: EventMinimize, Window: id})
	})
}

func (s *Sim) restore(id shortcut.WindowID) {
	s.step(func() []Event {
		st, ok := s.windows[id]
		if !ok || !st.Minimized {
			return nil
		}
		st.Minimized = false
		events := []Event{{Kind: EventRestore, Window: id}}
		return append(events, s.focusLocked(id)...)
	})
}

func (s *Sim) close(id shortcut.WindowID) {
	s.step(func() []Event {
		if _, ok := s.windows[id]; !ok {
			return nil
		}
		events := s.blurLocked(id)
		delete(s.windows, id)
		s.order = slices.DeleteFunc(s.order, func(other shortcut.WindowID) bool { return other == id })
		events = append(events, Event{Kind: EventClose, Window: id})
		if len(s.windows) == 0 {
			events = append(events, Event{Kind: EventAllClosed})
		}
		return events
	})
}
