package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/duochat/internal/feed"
	"github.com/vovakirdan/duochat/internal/store"
)

const (
	commandBuffer = 64
	// commandTimeout bounds a single queued write, including those drained
	// after Run is asked to stop.
	commandTimeout = 5 * time.Second
)

// Conversation holds the active persona and turns user actions into
// writes against the chat service. Writes queued with SendMessage and
// MarkMessagesAsRead run on the Run loop; results are observed only
// through the message feed.
type Conversation struct {
	chat     ChatService
	log      *zerolog.Logger
	commands chan *Command
	stopped  chan struct{}
	stopOnce sync.Once
	// sending is held shared by enqueue while it may still send, and
	// exclusively by the shutdown drain.
	sending sync.RWMutex

	mu      sync.Mutex
	active  store.Persona
	persona *feed.Subject[store.Persona]
	clients map[*Client]struct{}

	now   func() time.Time
	newID func() string
}

// NewConversation creates a conversation with the primary persona active.
func NewConversation(chat ChatService, logger *zerolog.Logger) *Conversation {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Conversation{
		chat:     chat,
		log:      logger,
		commands: make(chan *Command, commandBuffer),
		stopped:  make(chan struct{}),
		active:   store.PersonaPrimary,
		persona:  feed.NewSubject(store.PersonaPrimary),
		clients:  make(map[*Client]struct{}),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Active returns the persona currently speaking.
func (c *Conversation) Active() store.Persona {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// TogglePersona switches the active persona and returns the new one.
// It does not touch the store.
func (c *Conversation) TogglePersona() store.Persona {
	c.mu.Lock()
	c.active = c.active.Other()
	next := c.active
	c.persona.Publish(next)
	c.mu.Unlock()

	c.log.Debug().Stringer("persona", next).Msg("persona toggled")
	return next
}

// Persona returns a live view of the active persona.
func (c *Conversation) Persona() feed.Feed[store.Persona] {
	return c.persona
}

// Messages returns the live, time-ordered message feed.
func (c *Conversation) Messages() feed.Feed[[]store.Message] {
	return c.chat.GetMessages()
}

// NewMessage builds an unread message from the active persona, stamped now.
func (c *Conversation) NewMessage(content string) store.Message {
	sender := c.Active()
	return store.Message{
		ID:        c.newID(),
		Content:   content,
		Sender:    sender,
		IsSent:    sender == store.PersonaPrimary,
		Timestamp: c.now(),
		IsRead:    false,
	}
}

// Send builds a message from the active persona and persists it.
func (c *Conversation) Send(ctx context.Context, content string) (store.Message, error) {
	msg := c.NewMessage(content)
	if err := c.chat.AddMessage(ctx, msg); err != nil {
		return msg, fmt.Errorf("add message: %w", err)
	}
	return msg, nil
}

// SendMessage queues a message from the persona active at call time.
func (c *Conversation) SendMessage(content string) error {
	return c.enqueue(&Command{Kind: CommandSendMessage, Message: c.NewMessage(content)})
}

// MarkRead marks every unread message of active's counterpart as read.
// Each message is rewritten on its own; on failure the messages already
// updated stay read and the count of those is returned with the error.
func (c *Conversation) MarkRead(ctx context.Context, active store.Persona) (int, error) {
	if !active.Valid() {
		return 0, fmt.Errorf("%w: %d", store.ErrUnknownPersona, int(active))
	}

	unread, err := c.chat.GetUnreadMessages(ctx, active.Other())
	if err != nil {
		return 0, fmt.Errorf("get unread messages: %w", err)
	}

	updated := 0
	for _, msg := range unread {
		msg.IsRead = true
		if err := c.chat.UpdateMessage(ctx, msg); err != nil {
			return updated, fmt.Errorf("update message %s: %w", msg.ID, err)
		}
		updated++
	}
	return updated, nil
}

// MarkMessagesAsRead queues MarkRead for active.
func (c *Conversation) MarkMessagesAsRead(active store.Persona) error {
	return c.enqueue(&Command{Kind: CommandMarkRead, Persona: active})
}

func (c *Conversation) enqueue(cmd *Command) error {
	c.sending.RLock()
	defer c.sending.RUnlock()

	select {
	case <-c.stopped:
		return ErrStopped
	default:
	}

	select {
	case c.commands <- cmd:
		return nil
	case <-c.stopped:
		return ErrStopped
	}
}

// Run executes queued commands until ctx is cancelled. Commands accepted
// before that are still executed before Run returns; later ones are
// rejected with ErrStopped.
func (c *Conversation) Run(ctx context.Context) {
	defer c.shutdown(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case cmd := <-c.commands:
			c.handle(ctx, cmd)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Conversation) shutdown(ctx context.Context) {
	c.stopOnce.Do(func() { close(c.stopped) })

	// Wait out senders that passed the stopped check before draining.
	c.sending.Lock()
	defer c.sending.Unlock()

	drained := 0
	for {
		select {
		case cmd := <-c.commands:
			c.handle(ctx, cmd)
			drained++
		default:
			c.log.Debug().Int("drained", drained).Msg("conversation loop stopped")
			return
		}
	}
}

func (c *Conversation) handle(parent context.Context, cmd *Command) {
	// A command is run to completion even when the loop is stopping.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), commandTimeout)
	defer cancel()

	switch cmd.Kind {
	case CommandSendMessage:
		if err := c.chat.AddMessage(ctx, cmd.Message); err != nil {
			c.reportError(err, "failed to add message", cmd.Message.ID)
			return
		}
		c.log.Debug().Str("message_id", cmd.Message.ID).Stringer("sender", cmd.Message.Sender).Msg("message sent")
	case CommandMarkRead:
		updated, err := c.MarkRead(ctx, cmd.Persona)
		if err != nil {
			c.log.Warn().Int("updated", updated).Msg("mark as read stopped early")
			c.reportError(err, "failed to mark messages as read", "")
			return
		}
		c.log.Debug().Int("updated", updated).Stringer("reader", cmd.Persona).Msg("messages marked as read")
	default:
		c.log.Warn().Int("kind", int(cmd.Kind)).Msg("unknown command")
	}
}

func (c *Conversation) reportError(err error, msg, messageID string) {
	ev := c.log.Error().Err(err)
	if messageID != "" {
		ev = ev.Str("message_id", messageID)
	}
	ev.Msg(msg)

	event := &Event{
		Kind:  EventError,
		Error: coreError(ErrCodeStorage, msg),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for client := range c.clients {
		client.tryDeliver(event)
	}
}

// Attach starts pushing snapshot, persona and error events to client.
// The returned function detaches it; it is safe to call more than once.
func (c *Conversation) Attach(client *Client) func() {
	messages := c.Messages()

	msgTok := messages.Subscribe(func(msgs []store.Message) {
		client.deliver(&Event{Kind: EventSnapshot, Persona: c.Active(), Messages: msgs})
	})
	personaTok := c.persona.Subscribe(func(p store.Persona) {
		client.deliver(&Event{Kind: EventPersona, Persona: p, Messages: messages.Latest()})
	})

	var once sync.Once
	detach := func() {
		once.Do(func() {
			messages.Unsubscribe(msgTok)
			c.persona.Unsubscribe(personaTok)
			client.detach()

			c.mu.Lock()
			delete(c.clients, client)
			c.mu.Unlock()
		})
	}

	c.mu.Lock()
	c.clients[client] = struct{}{}
	c.mu.Unlock()

	c.log.Debug().Str("client_id", client.ID).Msg("client attached")
	return detach
}

// Clients returns the number of attached clients.
func (c *Conversation) Clients() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}
