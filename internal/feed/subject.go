// Package feed implements a latest-value publish/subscribe primitive.
//
// A Subject keeps the most recent value and pushes it to every subscriber.
// Subscribers never see deltas, only whole values, and a subscriber that
// falls behind only receives the newest pending value.
package feed

import "sync"

// Token identifies a subscription. The zero Token is never issued.
type Token uint64

// Feed is the read-only side of a Subject.
type Feed[T any] interface {
	// Subscribe registers fn. fn is called with the current value first and
	// then with every later value, sequentially, on a goroutine owned by the
	// subscription.
	Subscribe(fn func(T)) Token

	// Unsubscribe removes the subscription. It reports whether tok was active.
	Unsubscribe(tok Token) bool

	// Latest returns the most recently published value.
	Latest() T
}

// Subject holds the latest value of T and notifies subscribers on Publish.
// Values are shared between subscribers and must be treated as read-only.
type Subject[T any] struct {
	mu     sync.Mutex
	latest T
	next   Token
	subs   map[Token]*subscriber[T]
	closed bool
}

type subscriber[T any] struct {
	fn      func(T)
	mailbox chan T
	done    chan struct{}
}

// NewSubject creates a subject seeded with initial.
func NewSubject[T any](initial T) *Subject[T] {
	return &Subject[T]{
		latest: initial,
		subs:   make(map[Token]*subscriber[T]),
	}
}

// Subscribe implements Feed. Subscribing to a closed subject returns the
// zero Token and fn is never called.
func (s *Subject[T]) Subscribe(fn func(T)) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}

	s.next++
	tok := s.next
	sub := &subscriber[T]{
		fn:      fn,
		mailbox: make(chan T, 1),
		done:    make(chan struct{}),
	}
	sub.mailbox <- s.latest
	s.subs[tok] = sub

	go sub.run()
	return tok
}

// Unsubscribe implements Feed. A callback already in flight finishes, but
// no further values are delivered.
func (s *Subject[T]) Unsubscribe(tok Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[tok]
	if !ok {
		return false
	}
	delete(s.subs, tok)
	close(sub.done)
	return true
}

// Latest implements Feed.
func (s *Subject[T]) Latest() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Publish stores v as the latest value and offers it to every subscriber.
// A value still waiting in a subscriber's mailbox is replaced by v.
func (s *Subject[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.latest = v
	for _, sub := range s.subs {
		sub.offer(v)
	}
}

// Subscribers returns the number of active subscriptions.
func (s *Subject[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close drops every subscription. Later Publish calls are ignored.
func (s *Subject[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for tok, sub := range s.subs {
		delete(s.subs, tok)
		close(sub.done)
	}
}

// offer must be called with the subject lock held, which makes the
// publisher the only sender on mailbox.
func (sub *subscriber[T]) offer(v T) {
	select {
	case sub.mailbox <- v:
		return
	default:
	}
	// Mailbox is full: drop the stale value (unless the subscriber just
	// took it) and leave only v.
	select {
	case <-sub.mailbox:
	default:
	}
	sub.mailbox <- v
}

func (sub *subscriber[T]) run() {
	for {
		select {
		case <-sub.done:
			return
		case v := <-sub.mailbox:
			select {
			case <-sub.done:
				return
			default:
			}
			sub.fn(v)
		}
	}
}
