package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/duochat/internal/feed"
)

// LiveStore implements Store on top of a Backend. After every committed
// write it recomputes QueryAll and publishes the result on its feed.
type LiveStore struct {
	backend Backend
	feed    *feed.Subject[[]Message]
	log     *zerolog.Logger

	// mu orders write+snapshot pairs so snapshots follow commit order,
	// and keeps the backend open for the duration of every call.
	mu     sync.Mutex
	closed bool
}

// NewLive wraps backend and seeds the feed with its current contents.
func NewLive(ctx context.Context, backend Backend, logger *zerolog.Logger) (*LiveStore, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	initial, err := backend.QueryAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load initial messages: %w", err)
	}
	if initial == nil {
		initial = []Message{}
	}

	return &LiveStore{
		backend: backend,
		feed:    feed.NewSubject(initial),
		log:     logger,
	}, nil
}

// Insert persists msg, replacing any record with the same ID.
func (s *LiveStore) Insert(ctx context.Context, msg Message) error {
	return s.write(ctx, "insert", msg)
}

// Update writes msg back in full. A missing ID is created.
func (s *LiveStore) Update(ctx context.Context, msg Message) error {
	return s.write(ctx, "update", msg)
}

func (s *LiveStore) write(ctx context.Context, op string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if err := s.backend.Upsert(ctx, msg); err != nil {
		return fmt.Errorf("%s message: %w", op, err)
	}

	snapshot, err := s.backend.QueryAll(ctx)
	if err != nil {
		// The write is committed; the next successful write resyncs the feed.
		s.log.Error().Err(err).Str("op", op).Str("message_id", msg.ID).Msg("failed to refresh message feed")
		return nil
	}
	if snapshot == nil {
		snapshot = []Message{}
	}
	s.feed.Publish(snapshot)

	s.log.Debug().Str("op", op).Str("message_id", msg.ID).Int("messages", len(snapshot)).Msg("message feed refreshed")
	return nil
}

// QueryAll returns every message ordered by timestamp ascending.
func (s *LiveStore) QueryAll(ctx context.Context) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	msgs, err := s.backend.QueryAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return msgs, nil
}

// QueryUnread returns the unread messages of sender.
func (s *LiveStore) QueryUnread(ctx context.Context, sender Persona) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	msgs, err := s.backend.QueryUnread(ctx, sender)
	if err != nil {
		return nil, fmt.Errorf("query unread messages: %w", err)
	}
	return msgs, nil
}

// Messages returns the live view of QueryAll.
func (s *LiveStore) Messages() feed.Feed[[]Message] {
	return s.feed
}

// Close closes the feed and the backend.
func (s *LiveStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.feed.Close()
	return s.backend.Close()
}
