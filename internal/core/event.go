package core

import "github.com/vovakirdan/duochat/internal/store"

// EventKind is a notification the core emits to attached clients.
type EventKind int

const (
	// EventSnapshot delivers the full, time-ordered message list.
	EventSnapshot EventKind = iota
	// EventPersona notifies clients that the active persona changed.
	EventPersona
	// EventError notifies clients that a queued write failed.
	EventError
)

// Event is sent to clients to describe the current conversation state.
// Snapshot and persona events both carry the persona and the messages so a
// client can re-render from either one.
type Event struct {
	Kind     EventKind
	Persona  store.Persona
	Messages []store.Message
	Error    *CoreError
}
