package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	ProtocolVersion = 1

	InboundTypeSend   = "send"
	InboundTypeToggle = "toggle"
	InboundTypeRead   = "read"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventSnapshot = "snapshot"
	EventPersona  = "persona"
)

// SendData is a new message typed by the active persona.
type SendData struct {
	Content string `json:"content"`
}

// ReadData asks to mark the counterpart's messages as read on behalf of
// Persona. An empty Persona means the active one.
type ReadData struct {
	Persona string `json:"persona,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MessageData is a stored message on the wire. TS is epoch milliseconds.
type MessageData struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Sender  string `json:"sender"`
	IsSent  bool   `json:"is_sent"`
	IsRead  bool   `json:"is_read"`
	TS      int64  `json:"ts"`
}

// TimelineEntry is a message as rendered for the viewing persona.
type TimelineEntry struct {
	Message    MessageData `json:"message"`
	ShowHeader bool        `json:"show_header"`
	Header     string      `json:"header,omitempty"`
	Mine       bool        `json:"mine"`
	ShowTicks  bool        `json:"show_ticks"`
	Read       bool        `json:"read"`
}

// Snapshot is the whole conversation as seen by Persona. It is the payload
// of both snapshot and persona events.
type Snapshot struct {
	Persona string          `json:"persona"`
	Entries []TimelineEntry `json:"entries"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
