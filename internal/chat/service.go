//go:generate go run go.uber.org/mock/mockgen -destination=../mocks/mock_store.go -package=mocks github.com/vovakirdan/duochat/internal/store Store
package chat

import (
	"context"

	"github.com/vovakirdan/duochat/internal/feed"
	"github.com/vovakirdan/duochat/internal/store"
)

// Service is the entry point consumers use to reach the message store.
// It passes calls straight through; intent lives in the caller.
type Service struct {
	store store.Store
}

// New creates a chat service over st.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// AddMessage persists a newly created message.
func (s *Service) AddMessage(ctx context.Context, msg store.Message) error {
	return s.store.Insert(ctx, msg)
}

// UpdateMessage writes an existing message back in full.
func (s *Service) UpdateMessage(ctx context.Context, msg store.Message) error {
	return s.store.Update(ctx, msg)
}

// GetUnreadMessages returns the unread messages of sender.
func (s *Service) GetUnreadMessages(ctx context.Context, sender store.Persona) ([]store.Message, error) {
	return s.store.QueryUnread(ctx, sender)
}

// GetMessages returns the live, time-ordered message feed.
func (s *Service) GetMessages() feed.Feed[[]store.Message] {
	return s.store.Messages()
}
