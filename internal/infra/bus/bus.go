// Package bus provides a named notification bus with explicit subscription tokens.
//
// Handlers run synchronously on the goroutine that posts the notification.
// There is no ordering guarantee across different notification names.
package bus

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Name identifies a notification.
type Name string

// Notification is delivered to subscribers of a name.
type Notification struct {
	Name Name
}

// Handler receives notifications.
type Handler func(Notification)

// Token identifies a subscription so it can be removed.
type Token string

type subscription struct {
	token   Token
	handler Handler
}

// Bus fans out notifications to subscribers.
// It is safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Name][]subscription
	names  map[Token]Name
	closed bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		subs:  make(map[Name][]subscription),
		names: make(map[Token]Name),
	}
}

// Subscribe registers handler for name and returns its token.
// Subscribing to a closed bus returns a token that is never notified.
func (b *Bus) Subscribe(name Name, handler Handler) Token {
	token := Token(uuid.NewString())

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return token
	}

	b.subs[name] = append(b.subs[name], subscription{token: token, handler: handler})
	b.names[token] = name
	return token
}

// Unsubscribe removes the subscription behind token. Unknown tokens are ignored.
func (b *Bus) Unsubscribe(token Token) {
	b.mu.Lock()
	defer b.mu.Unlock()

	name, ok := b.names[token]
	if !ok {
		return
	}
	delete(b.names, token)

	subs := b.subs[name]
	for i, s := range subs {
		if s.token == token {
			b.subs[name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[name]) == 0 {
		delete(b.subs, name)
	}
}

// Post delivers a notification to every current subscriber of name.
func (b *Bus) Post(name Name) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[name]))
	for _, s := range b.subs[name] {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	log.Trace().Str("name", string(name)).Int("subscribers", len(handlers)).Msg("Post")

	n := Notification{Name: name}
	for _, h := range handlers {
		h(n)
	}
}

// Subscribers returns the number of subscribers for name.
func (b *Bus) Subscribers(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// Close removes all subscriptions. Later posts are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.subs = make(map[Name][]subscription)
	b.names = make(map[Token]Name)
}
