//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package core

import (
	"context"

	"github.com/vovakirdan/duochat/internal/feed"
	"github.com/vovakirdan/duochat/internal/store"
)

// ChatService abstracts message persistence for the Conversation.
// This interface allows the controller to drive writes without
// depending directly on the service layer implementation.
type ChatService interface {
	// AddMessage persists a newly created message.
	AddMessage(ctx context.Context, msg store.Message) error

	// UpdateMessage writes an existing message back in full.
	UpdateMessage(ctx context.Context, msg store.Message) error

	// GetUnreadMessages returns the unread messages of sender.
	GetUnreadMessages(ctx context.Context, sender store.Persona) ([]store.Message, error)

	// GetMessages returns the live, time-ordered message feed.
	GetMessages() feed.Feed[[]store.Message]
}
