package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/duochat/internal/feed"
)

// SchemaVersion is the on-disk layout version. Backends that find a
// different version discard their data and recreate the schema.
const SchemaVersion = 2

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
	// ErrUnknownPersona is returned when a sender value is not one of the two personas.
	ErrUnknownPersona = errors.New("unknown persona")
)

// Persona is one of the two fixed conversation participants.
type Persona int

const (
	PersonaPrimary Persona = iota
	PersonaSecondary
)

// String returns the persisted name of the persona.
func (p Persona) String() string {
	switch p {
	case PersonaPrimary:
		return "User"
	case PersonaSecondary:
		return "Other"
	default:
		return fmt.Sprintf("Persona(%d)", int(p))
	}
}

// Valid reports whether p is one of the two personas.
func (p Persona) Valid() bool {
	return p == PersonaPrimary || p == PersonaSecondary
}

// Other returns the counterpart of p.
func (p Persona) Other() Persona {
	if p == PersonaPrimary {
		return PersonaSecondary
	}
	return PersonaPrimary
}

// ParsePersona maps a persisted name back to a Persona.
func ParsePersona(s string) (Persona, error) {
	switch s {
	case "User":
		return PersonaPrimary, nil
	case "Other":
		return PersonaSecondary, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPersona, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Persona) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPersona, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Persona) UnmarshalText(text []byte) error {
	parsed, err := ParsePersona(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Message represents a persisted chat message.
type Message struct {
	ID        string
	Content   string
	Sender    Persona
	IsSent    bool // sender was the active persona at creation; display only
	Timestamp time.Time
	IsRead    bool
}

// Backend is the durable part of a message store. Every write is a
// replace-by-id: an existing record is overwritten, never merged.
type Backend interface {
	// Upsert inserts msg or replaces the record with the same ID.
	Upsert(ctx context.Context, msg Message) error

	// QueryAll returns every message ordered by timestamp, then ID.
	QueryAll(ctx context.Context) ([]Message, error)

	// QueryUnread returns unread messages from sender ordered by timestamp, then ID.
	QueryUnread(ctx context.Context, sender Persona) ([]Message, error)

	// Close releases the underlying storage.
	Close() error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// Insert persists msg, replacing any record with the same ID.
	Insert(ctx context.Context, msg Message) error

	// Update writes msg back in full. A missing ID is created.
	Update(ctx context.Context, msg Message) error

	// QueryAll returns every message ordered by timestamp ascending.
	QueryAll(ctx context.Context) ([]Message, error)

	// QueryUnread returns the unread messages of sender.
	QueryUnread(ctx context.Context, sender Persona) ([]Message, error)
}

// Store aggregates persistence with the live message feed.
type Store interface {
	MessageStore

	// Messages returns the live view of QueryAll.
	Messages() feed.Feed[[]Message]

	// Close closes the feed and the underlying storage.
	Close() error
}
