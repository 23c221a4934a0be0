package main

import (
	"context"
	"log/slog"

	"localshortcut/internal/shortcut"
	"localshortcut/internal/wsserver"
)

// Runtime events emitted to the frontend.
const (
	eventShortcutTriggered = "shortcut:triggered"
	eventShortcutChanged   = "shortcut:changed"
	eventConfigReloaded    = "config:reloaded"
	eventWarning           = "app:warning"
)

// triggerPayload is the shortcut:triggered event body.
type triggerPayload struct {
	Accelerator string `json:"accelerator"`
	Action      string `json:"action"`
	Scope       string `json:"scope"`
}

// changePayload is the shortcut:changed event body.
type changePayload struct {
	Kind        string `json:"kind"`
	Scope       string `json:"scope"`
	Accelerator string `json:"accelerator"`
	Error       string `json:"error,omitempty"`
}

func newChangePayload(change shortcut.Change) changePayload {
	p := changePayload{
		Kind:        change.Kind.String(),
		Scope:       change.Scope.String(),
		Accelerator: change.Accelerator,
	}
	if change.Err != nil {
		p.Error = change.Err.Error()
	}
	return p
}

// emitRuntimeEvent emits via the app context and delegates to emitRuntimeEventWithContext.
func (a *App) emitRuntimeEvent(name string, payload any) {
	a.emitRuntimeEventWithContext(a.runtimeContext(), name, payload)
}

// emitRuntimeEventWithContext emits a runtime event only when ctx is non-nil.
func (a *App) emitRuntimeEventWithContext(ctx context.Context, name string, payload any) {
	if ctx == nil {
		slog.Warn("[EVENT] runtime event dropped because app context is nil", "event", name)
		return
	}
	runtimeEventsEmitFn(ctx, name, payload)
}

// publish sends payload to the inspector when it is running.
func (a *App) publish(topic string, payload any) {
	if a.inspector == nil {
		return
	}
	a.inspector.Publish(topic, payload)
}

// onShortcutChange forwards manager binding changes to the UI.
func (a *App) onShortcutChange(change shortcut.Change) {
	payload := newChangePayload(change)
	a.emitRuntimeEvent(eventShortcutChanged, payload)
	a.publish(wsserver.TopicChange, payload)
}
