package wailshost

import (
	"context"
	"reflect"
	"testing"

	"localshortcut/internal/host"
	"localshortcut/internal/hotkeys"
	"localshortcut/internal/shortcut"
)

type fakeRuntime struct {
	handlers  map[string]func(...interface{})
	cancelled []string
	minimised bool
}

func installFakeRuntime(t *testing.T) *fakeRuntime {
	t.Helper()
	rt := &fakeRuntime{handlers: map[string]func(...interface{}){}}
	origOn := runtimeEventsOnFn
	origMin := runtimeWindowIsMinimisedFn
	runtimeEventsOnFn = func(_ context.Context, name string, cb func(...interface{})) func() {
		rt.handlers[name] = cb
		return func() { rt.cancelled = append(rt.cancelled, name) }
	}
	runtimeWindowIsMinimisedFn = func(context.Context) bool { return rt.minimised }
	t.Cleanup(func() {
		runtimeEventsOnFn = origOn
		runtimeWindowIsMinimisedFn = origMin
	})
	return rt
}

func (rt *fakeRuntime) fire(t *testing.T, name string) {
	t.Helper()
	cb, ok := rt.handlers[name]
	if !ok {
		t.Fatalf("no handler registered for %q", name)
	}
	cb()
}

func recordKinds(s *Source) *[]string {
	var kinds []string
	s.Subscribe(func(ev host.Event) { kinds = append(kinds, ev.Kind.String()) })
	return &kinds
}

func TestSourceTranslatesFrontendEvents(t *testing.T) {
	rt := installFakeRuntime(t)
	s := New(context.Background())
	kinds := recordKinds(s)

	rt.fire(t, EventFocus)
	rt.fire(t, EventFocus)
	rt.fire(t, EventHide)
	rt.fire(t, EventShow)
	rt.fire(t, EventFocus)
	rt.minimised = true
	rt.fire(t, EventHide)
	rt.minimised = false
	rt.fire(t, EventShow)

	want := []string{"focus", "blur", "hide", "show", "focus", "blur", "minimize", "restore"}
	if !reflect.DeepEqual(*kinds, want) {
		t.Fatalf("events = %v, want %v", *kinds, want)
	}
}

func TestSourceState(t *testing.T) {
	rt := installFakeRuntime(t)
	s := New(context.Background())

	if _, ok := s.State("other"); ok {
		t.Fatal("State(other) ok = true, want false")
	}
	rt.fire(t, EventFocus)
	st, ok := s.State(MainWindow)
	if !ok || !st.Engaged() {
		t.Fatalf("State(main) = (%+v, %v), want engaged", st, ok)
	}

	s.Close()
	if _, ok := s.State(MainWindow); ok {
		t.Fatal("State(main) ok = true after Close")
	}
	if got := s.Windows(); len(got) != 0 {
		t.Fatalf("Windows() = %v after Close, want none", got)
	}
}

func TestSourceCloseEmitsSweep(t *testing.T) {
	rt := installFakeRuntime(t)
	s := New(context.Background())
	kinds := recordKinds(s)
	rt.fire(t, EventFocus)

	s.Close()
	s.Close()
	rt.fire(t, EventFocus)

	want := []string{"focus", "blur", "close", "all-closed"}
	if !reflect.DeepEqual(*kinds, want) {
		t.Fatalf("events = %v, want %v", *kinds, want)
	}
}

func TestSourceStopCancelsSubscriptions(t *testing.T) {
	rt := installFakeRuntime(t)
	s := New(context.Background())
	s.Stop()
	if len(rt.cancelled) != 4 {
		t.Fatalf("cancelled = %v, want 4 subscriptions", rt.cancelled)
	}
}

func TestSourceDrivesShortcutLifecycle(t *testing.T) {
	rt := installFakeRuntime(t)
	s := New(context.Background())
	table := hotkeys.NewMemoryTable()
	tracker := host.NewTracker(s)
	manager := shortcut.NewManager(shortcut.Options{Table: table, Host: tracker})
	tracker.Attach(manager)
	defer tracker.Detach()

	calls := 0
	manager.Register(shortcut.ForWindow(MainWindow), "CmdOrCtrl+R", func() { calls++ })
	if table.Dispatch("CmdOrCtrl+R") {
		t.Fatal("binding live before the frontend reported focus")
	}

	rt.fire(t, EventFocus)
	table.Dispatch("CmdOrCtrl+R")
	rt.minimised = true
	rt.fire(t, EventHide)
	table.Dispatch("CmdOrCtrl+R")
	rt.minimised = false
	rt.fire(t, EventShow)
	rt.fire(t, EventFocus)
	table.Dispatch("CmdOrCtrl+R")

	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestSourceAppShortcutsAfterFocusBeforeVisible(t *testing.T) {
	tests := []struct {
		name      string
		minimised bool
	}{
		{name: "hidden", minimised: false},
		{name: "minimised", minimised: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := installFakeRuntime(t)
			s := New(context.Background())
			table := hotkeys.NewMemoryTable()
			tracker := host.NewTracker(s)
			manager := shortcut.NewManager(shortcut.Options{Table: table, Host: tracker})
			tracker.Attach(manager)
			defer tracker.Detach()

			calls := 0
			manager.Register(shortcut.AnyWindow, "Ctrl+P", func() { calls++ })

			rt.fire(t, EventFocus)
			table.Dispatch("Ctrl+P")
			rt.minimised = tt.minimised
			rt.fire(t, EventHide)
			rt.minimised = false
			// The page reports focus before the visibility change.
			rt.fire(t, EventFocus)
			rt.fire(t, EventShow)
			table.Dispatch("Ctrl+P")

			st, _ := s.State(MainWindow)
			if !st.Engaged() {
				t.Fatalf("state = %+v, want engaged", st)
			}
			if calls != 2 {
				t.Fatalf("calls = %d, want 2", calls)
			}
		})
	}
}

func TestSourceWindow(t *testing.T) {
	installFakeRuntime(t)
	s := New(context.Background())
	if got := s.Window(); got != MainWindow {
		t.Fatalf("Window() = %q, want %q", got, MainWindow)
	}
	if got := s.Windows(); len(got) != 1 || got[0] != MainWindow {
		t.Fatalf("Windows() = %v, want [%s]", got, MainWindow)
	}
}
