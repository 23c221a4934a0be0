package wsserver

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestEncodeDecodeFrame(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("JST", 9*3600))
	tests := []struct {
		name        string
		topic       string
		payload     any
		wantPayload string
	}{
		{
			name:        "struct payload",
			topic:       TopicChange,
			payload:     map[string]string{"kind": "bound", "accelerator": "Ctrl+A"},
			wantPayload: `{"accelerator":"Ctrl+A","kind":"bound"}`,
		},
		{
			name:        "error payload",
			topic:       TopicError,
			payload:     ErrorPayload{Message: "boom"},
			wantPayload: `{"message":"boom"}`,
		},
		{
			name:  "nil payload omitted",
			topic: TopicSnapshot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raw, err := EncodeFrame(tt.topic, 42, at, tt.payload)
			if err != nil {
				t.Fatalf("EncodeFrame() error = %v", err)
			}
			frame, err := DecodeFrame(raw)
			if err != nil {
				t.Fatalf("DecodeFrame() error = %v", err)
			}
			if frame.Topic != tt.topic || frame.Seq != 42 {
				t.Fatalf("frame = %+v, want topic %q seq 42", frame, tt.topic)
			}
			if !frame.Time.Equal(at) || frame.Time.Location() != time.UTC {
				t.Fatalf("frame.Time = %v, want %v in UTC", frame.Time, at)
			}
			if string(frame.Payload) != tt.wantPayload {
				t.Fatalf("frame.Payload = %s, want %s", frame.Payload, tt.wantPayload)
			}
			if tt.payload == nil && strings.Contains(string(raw), "payload") {
				t.Fatalf("encoded frame %s contains payload key, want omitted", raw)
			}
		})
	}
}

func TestEncodeFrameErrors(t *testing.T) {
	t.Parallel()

	if _, err := EncodeFrame("", 1, time.Now(), nil); err == nil {
		t.Fatal("EncodeFrame(empty topic) expected error")
	}
	if _, err := EncodeFrame(TopicTrigger, 1, time.Now(), func() {}); err == nil {
		t.Fatal("EncodeFrame(func payload) expected marshal error")
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "invalid json", raw: "{"},
		{name: "missing topic", raw: `{"seq":1}`},
		{name: "empty", raw: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := DecodeFrame([]byte(tt.raw)); err == nil {
				t.Fatalf("DecodeFrame(%q) expected error", tt.raw)
			}
		})
	}
}

func TestSubscribable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		topic string
		want  bool
	}{
		{topic: TopicChange, want: true},
		{topic: TopicTrigger, want: true},
		{topic: TopicWarning, want: true},
		{topic: TopicSnapshot, want: true},
		{topic: TopicHello, want: false},
		{topic: TopicError, want: false},
		{topic: "", want: false},
	}
	for _, tt := range tests {
		if got := subscribable(tt.topic); got != tt.want {
			t.Fatalf("subscribable(%q) = %v, want %v", tt.topic, got, tt.want)
		}
	}
}

func TestClientMsgJSON(t *testing.T) {
	t.Parallel()

	var msg clientMsg
	if err := json.Unmarshal([]byte(`{"action":"subscribe","topics":["change"]}`), &msg); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if msg.Action != subscribeAction || len(msg.Topics) != 1 || msg.Topics[0] != TopicChange {
		t.Fatalf("clientMsg = %+v, want subscribe [change]", msg)
	}
}
