// Package shared holds the JSON envelopes exchanged with the browser over the
// desktop WebSocket.
package shared

import (
	"encoding/json"

	"github.com/antibyte/webdesk/pkg/desktop"
	"github.com/antibyte/webdesk/pkg/notify"
)

// RequestType names a client -> server request.
type RequestType string

const (
	RequestViewport    RequestType = "viewport"    // Width, Height
	RequestOpen        RequestType = "open"        // App, Params
	RequestClose       RequestType = "close"       // WindowID
	RequestMinimize    RequestType = "minimize"    // WindowID, Minimized
	RequestMaximize    RequestType = "maximize"    // WindowID
	RequestFocus       RequestType = "focus"       // WindowID
	RequestPointerDown RequestType = "pointerdown" // WindowID (optional), X, Y
	RequestPointerMove RequestType = "pointermove" // X, Y
	RequestPointerUp   RequestType = "pointerup"
	RequestKey         RequestType = "key"   // WindowID, Key
	RequestInput       RequestType = "input" // WindowID, Action, Text, Arg
	RequestDismiss     RequestType = "dismiss"
	RequestKeepalive   RequestType = "keepalive"
)

// Request is one message from the browser. Only the fields relevant to Type
// are set.
type Request struct {
	Type      RequestType     `json:"type"`
	WindowID  string          `json:"windowId,omitempty"`
	Key       string          `json:"key,omitempty"`
	Text      string          `json:"text,omitempty"`
	X         int             `json:"x,omitempty"`
	Y         int             `json:"y,omitempty"`
	App       string          `json:"app,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Width     int             `json:"width,omitempty"`
	Height    int             `json:"height,omitempty"`
	Minimized bool            `json:"minimized,omitempty"`
	URL       string          `json:"url,omitempty"`
	Tab       string          `json:"tab,omitempty"`
	Action    string          `json:"action,omitempty"`
	Arg       string          `json:"arg,omitempty"`
	ID        string          `json:"id,omitempty"` // notification id for dismiss
}

// Input converts the request into window content input. URL and Tab fill
// Arg for the browser actions that need them.
func (r Request) Input() desktop.Input {
	in := desktop.Input{Key: r.Key, Text: r.Text, Action: r.Action}
	switch {
	case r.URL != "":
		in.Arg = r.URL
	case r.Tab != "":
		in.Arg = r.Tab
	default:
		in.Arg = r.Arg
	}
	return in
}

// MessageType names a server -> client message.
type MessageType string

const (
	MessageTypeSnapshot     MessageType = "snapshot"     // full desktop state
	MessageTypeSession      MessageType = "session"      // session id and token after connect
	MessageTypeError        MessageType = "error"        // request rejected
	MessageTypeNotification MessageType = "notification" // pushed as soon as it is raised
)

// Message is one server -> client frame.
type Message struct {
	Type          MessageType           `json:"type"`
	Content       string                `json:"content,omitempty"`
	SessionID     string                `json:"sessionId,omitempty"`
	Token         string                `json:"token,omitempty"`
	Desktop       *desktop.Snapshot     `json:"desktop,omitempty"`
	Notifications []notify.Notification `json:"notifications,omitempty"`
}

// SnapshotMessage wraps a desktop snapshot.
func SnapshotMessage(s desktop.Snapshot) Message {
	return Message{Type: MessageTypeSnapshot, Desktop: &s}
}

func ErrorMessage(content string) Message {
	return Message{Type: MessageTypeError, Content: content}
}
