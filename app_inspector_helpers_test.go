package main

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"localshortcut/internal/wsserver"
)

func dialInspector(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	if url == "" {
		t.Fatal("inspector URL is empty")
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial inspector: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	readInspectorFrame(t, conn, wsserver.TopicHello)
	return conn
}

func subscribeInspector(t *testing.T, conn *websocket.Conn, topic string) {
	t.Helper()
	msg, err := json.Marshal(map[string]any{"action": "subscribe", "topics": []string{topic}})
	if err != nil {
		t.Fatalf("marshal subscribe: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
}

func waitInspectorTopic(t *testing.T, app *App, topic string) {
	t.Helper()
	if !waitForCondition(t, 2*time.Second, func() bool {
		return slices.Contains(app.inspector.Topics(), topic)
	}) {
		t.Fatalf("inspector never subscribed to %q; topics = %v", topic, app.inspector.Topics())
	}
}

// readInspectorFrame reads frames until one for topic arrives.
func readInspectorFrame(t *testing.T, conn *websocket.Conn, topic string) wsserver.Frame {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %s frame: %v", topic, err)
		}
		frame, err := wsserver.DecodeFrame(raw)
		if err != nil {
			t.Fatalf("DecodeFrame() error = %v", err)
		}
		if frame.Topic == topic {
			return frame
		}
	}
}

func decodePayload(t *testing.T, frame wsserver.Frame, out any) {
	t.Helper()
	if err := json.Unmarshal(frame.Payload, out); err != nil {
		t.Fatalf("decode %s payload: %v", frame.Topic, err)
	}
}
