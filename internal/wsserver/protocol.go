// Package wsserver provides a localhost WebSocket stream of shortcut
// activity for the inspector panel.
//
// # Frame protocol
//
// Server frames are JSON text messages:
//
//	{"topic":"change","seq":7,"time":"...","payload":{...}}
//
//   - topic: one of the Topic constants.
//   - seq: per-hub sequence number, strictly increasing across topics.
//   - payload: topic-specific JSON object.
//
// Client frames select topics and request snapshots:
//
//	{"action":"subscribe","topics":["change","trigger"]}
//	{"action":"unsubscribe","topics":["trigger"]}
//	{"action":"snapshot"}
//
// A new connection receives a hello frame and is subscribed to nothing.
package wsserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Topics published by the hub.
const (
	TopicHello    = "hello"
	TopicChange   = "change"
	TopicTrigger  = "trigger"
	TopicWarning  = "warning"
	TopicSnapshot = "snapshot"
	TopicError    = "error"
)

// maxTopicLen bounds topic names so a misbehaving client cannot grow the
// subscription set with large keys.
const maxTopicLen = 64

// Frame is a server-to-client message.
type Frame struct {
	Topic   string          `json:"topic"`
	Seq     uint64          `json:"seq"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hello is the payload of the first frame on every connection.
type Hello struct {
	Session string   `json:"session"`
	Topics  []string `json:"topics"`
}

// ErrorPayload is the payload of an error frame.
type ErrorPayload struct {
	Message string `json:"message"`
}

// EncodeFrame marshals payload into a frame for topic.
func EncodeFrame(topic string, seq uint64, at time.Time, payload any) ([]byte, error) {
	if topic == "" {
		return nil, errors.New("wsserver: encode frame: topic must not be empty")
	}
	frame := Frame{Topic: topic, Seq: seq, Time: at.UTC()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("wsserver: encode frame %s: %w", topic, err)
		}
		frame.Payload = raw
	}
	out, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("wsserver: encode frame %s: %w", topic, err)
	}
	return out, nil
}

// DecodeFrame parses a frame produced by EncodeFrame. The payload is left
// raw for the caller to decode.
func DecodeFrame(raw []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Frame{}, fmt.Errorf("wsserver: decode frame: %w", err)
	}
	if frame.Topic == "" {
		return Frame{}, errors.New("wsserver: decode frame: missing topic")
	}
	return frame, nil
}

// clientAction values for clientMsg.Action.
const (
	subscribeAction   = "subscribe"
	unsubscribeAction = "unsubscribe"
	snapshotAction    = "snapshot"
)

// clientMsg is the JSON payload for client requests.
type clientMsg struct {
	Action string   `json:"action"`
	Topics []string `json:"topics,omitempty"`
}

// subscribable reports whether clients may subscribe to topic.
func subscribable(topic string) bool {
	switch topic {
	case TopicChange, TopicTrigger, TopicWarning, TopicSnapshot:
		return true
	default:
		return false
	}
}
