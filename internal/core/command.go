package core

import "github.com/vovakirdan/duochat/internal/store"

// CommandKind describes which write the conversation loop should perform.
type CommandKind int

const (
	// CommandSendMessage persists a message built at call time.
	CommandSendMessage CommandKind = iota
	// CommandMarkRead marks the counterpart's unread messages as read.
	CommandMarkRead
)

// Command represents a write queued for the conversation loop.
type Command struct {
	Kind    CommandKind
	Message store.Message // CommandSendMessage
	Persona store.Persona // CommandMarkRead: the persona doing the reading
}
