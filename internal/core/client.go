package core

import "sync"

// Client is a user interface attached to the conversation.
type Client struct {
	ID     string
	Events chan *Event

	done     chan struct{}
	doneOnce sync.Once
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id string) *Client {
	return &Client{
		ID:     id,
		Events: make(chan *Event, 8),
		done:   make(chan struct{}),
	}
}

// deliver blocks until the client takes ev or is detached.
func (c *Client) deliver(ev *Event) {
	select {
	case c.Events <- ev:
	case <-c.done:
	}
}

// tryDeliver drops ev if the client is slow.
func (c *Client) tryDeliver(ev *Event) {
	select {
	case c.Events <- ev:
	default:
	}
}

func (c *Client) detach() {
	c.doneOnce.Do(func() { close(c.done) })
}
