// Package wailshost exposes the Wails main window as a host.Source.
//
// Wails v2 has no native focus events, so the frontend reports them with
// runtime events (see frontend/dist/index.html). Minimized state is read
// from the Wails runtime when visibility changes.
package wailshost

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"localshortcut/internal/host"
	"localshortcut/internal/shortcut"
)

// MainWindow is the ID of the single Wails window.
const MainWindow shortcut.WindowID = "main"

// Frontend event names.
const (
	EventFocus = "window:focus"
	EventBlur  = "window:blur"
	EventShow  = "window:show"
	EventHide  = "window:hide"
)

var (
	runtimeEventsOnFn          = runtime.EventsOn
	runtimeWindowIsMinimisedFn = runtime.WindowIsMinimised
)

// Source tracks the Wails main window state.
type Source struct {
	ctx context.Context

	mu          sync.Mutex
	state       host.WindowState
	closed      bool
	subscribers map[int]func(host.Event)
	nextSub     int
	cancels     []func()
}

// New subscribes to the frontend window events on ctx. The window starts
// visible and unfocused until the frontend reports focus.
func New(ctx context.Context) *Source {
	s := &Source{
		ctx:         ctx,
		state:       host.WindowState{Visible: true},
		subscribers: map[int]func(host.Event){},
	}
	handlers := map[string]func(){
		EventFocus: s.onFocus,
		EventBlur:  s.onBlur,
		EventShow:  s.onShow,
		EventHide:  s.onHide,
	}
	for name, fn := range handlers {
		cancel := runtimeEventsOnFn(ctx, name, func(...interface{}) { fn() })
		s.cancels = append(s.cancels, cancel)
	}
	return s
}

// Window returns the ID of the window this source tracks.
func (s *Source) Window() shortcut.WindowID {
	return MainWindow
}

// Stop cancels the frontend event subscriptions.
func (s *Source) Stop() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()
	for _, cancel := range cancels {
		if cancel != nil {
			cancel()
		}
	}
}

// Subscribe registers fn for window events.
func (s *Source) Subscribe(fn func(host.Event)) func() {
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

// State returns the main window state.
func (s *Source) State(id shortcut.WindowID) (host.WindowState, bool) {
	if id != MainWindow {
		return host.WindowState{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return host.WindowState{}, false
	}
	return s.state, true
}

// Windows returns the main window while it is open.
func (s *Source) Windows() []shortcut.WindowID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return []shortcut.WindowID{MainWindow}
}

// SetVisible records a visibility change made by the Go side, such as
// runtime.WindowHide from a toggle hotkey.
func (s *Source) SetVisible(visible bool) {
	if visible {
		s.onShow()
		return
	}
	s.onHide()
}

// Close marks the window closed and emits the close and all-closed events.
// Wails apps have one window, so closing it ends the shortcut lifetime.
func (s *Source) Close() {
	s.apply(func(st *host.WindowState) []host.EventKind {
		if s.closed {
			return nil
		}
		var kinds []host.EventKind
		if st.Focused {
			st.Focused = false
			kinds = append(kinds, host.EventBlur)
		}
		s.closed = true
		return append(kinds, host.EventClose, host.EventAllClosed)
	})
}

func (s *Source) onFocus() {
	s.apply(func(st *host.WindowState) []host.EventKind {
		if st.Focused {
			return nil
		}
		st.Focused = true
		return []host.EventKind{host.EventFocus}
	})
}

func (s *Source) onBlur() {
	s.apply(func(st *host.WindowState) []host.EventKind {
		if !st.Focused {
			return nil
		}
		st.Focused = false
		return []host.EventKind{host.EventBlur}
	})
}

func (s *Source) onShow() {
	s.apply(func(st *host.WindowState) []host.EventKind {
		var kinds []host.EventKind
		if st.Minimized {
			st.Minimized = false
			kinds = append(kinds, host.EventRestore)
		}
		if !st.Visible {
			st.Visible = true
			kinds = append(kinds, host.EventShow)
		}
		return kinds
	})
}

// onHide distinguishes minimize from hide by asking the runtime. The query
// runs before taking the lock. A hidden or minimized window loses focus.
func (s *Source) onHide() {
	minimised := runtimeWindowIsMinimisedFn(s.ctx)
	s.apply(func(st *host.WindowState) []host.EventKind {
		if (minimised && st.Minimized) || (!minimised && !st.Visible) {
			return nil
		}
		var kinds []host.EventKind
		if st.Focused {
			st.Focused = false
			kinds = append(kinds, host.EventBlur)
		}
		if minimised {
			st.Minimized = true
			return append(kinds, host.EventMinimize)
		}
		st.Visible = false
		return append(kinds, host.EventHide)
	})
}

// apply mutates state under the lock, then delivers the resulting events
// with no lock held.
func (s *Source) apply(mutate func(st *host.WindowState) []host.EventKind) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	kinds := mutate(&s.state)
	subs := make([]func(host.Event), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, kind := range kinds {
		ev := host.Event{Kind: kind, Window: MainWindow}
		if kind == host.EventAllClosed {
			ev.Window = ""
		}
		slog.Debug("[wailshost] window event", "event", kind.String())
		for _, fn := range subs {
			fn(ev)
		}
	}
}
