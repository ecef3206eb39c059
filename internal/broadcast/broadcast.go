// Package broadcast fans server messages out to every connection subscribed
// to a scope: the whole lobby, or one room's membership. Delivery is
// at-least-once to clients subscribed at call time; clients racing into a
// scope get current state from their own join reply instead of backfill.
package broadcast

import (
	"sync"

	"go.uber.org/zap"

	"github.com/devjyo/minigame-lobby-backend/internal/protocol"
)

// Scope is a broadcast target.
type Scope string

const LobbyScope Scope = "lobby"

func RoomScope(roomID string) Scope { return Scope("room:" + roomID) }

type Broadcaster struct {
	mu      sync.Mutex
	clients map[string]chan protocol.ServerMessage
	scopes  map[Scope]map[string]struct{}
	log     *zap.Logger
}

func New(log *zap.Logger) *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]chan protocol.ServerMessage),
		scopes:  make(map[Scope]map[string]struct{}),
		log:     log,
	}
}

// AddClient registers a connection's outbox. The broadcaster owns the
// channel from here on: it is closed exactly once, either by RemoveClient
// or when the client is dropped for falling behind.
func (b *Broadcaster) AddClient(clientID string, outbox chan protocol.ServerMessage) {
	b.mu.Lock()
	b.clients[clientID] = outbox
	b.mu.Unlock()
}

// RemoveClient drops the client from every scope and closes its outbox.
// Safe to call for an already-removed client.
func (b *Broadcaster) RemoveClient(clientID string) {
	b.mu.Lock()
	b.dropLocked(clientID)
	b.mu.Unlock()
}

func (b *Broadcaster) Subscribe(scope Scope, clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[clientID]; !ok {
		return
	}
	set, ok := b.scopes[scope]
	if !ok {
		set = make(map[string]struct{})
		b.scopes[scope] = set
	}
	set[clientID] = struct{}{}
}

func (b *Broadcaster) Unsubscribe(scope Scope, clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.scopes[scope]; ok {
		delete(set, clientID)
		if len(set) == 0 {
			delete(b.scopes, scope)
		}
	}
}

// DropScope forgets a scope entirely. Called when a room is torn down; the
// member connections themselves stay registered.
func (b *Broadcaster) DropScope(scope Scope) {
	b.mu.Lock()
	delete(b.scopes, scope)
	b.mu.Unlock()
}

// Broadcast delivers msg to every connection subscribed to scope.
func (b *Broadcaster) Broadcast(scope Scope, msg protocol.ServerMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for clientID := range b.scopes[scope] {
		b.sendLocked(clientID, msg)
	}
}

// Send delivers msg to a single connection. Unknown clients are ignored;
// the connection may have been dropped between resolve and send.
func (b *Broadcaster) Send(clientID string, msg protocol.ServerMessage) {
	b.mu.Lock()
	b.sendLocked(clientID, msg)
	b.mu.Unlock()
}

func (b *Broadcaster) sendLocked(clientID string, msg protocol.ServerMessage) {
	ch, ok := b.clients[clientID]
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
		// Client is slow/full - drop them. Closing the outbox ends the
		// writer loop, which tears the connection down through the normal
		// disconnect path.
		b.log.Warn("dropping slow client", zap.String("client", clientID), zap.String("event", msg.Event))
		b.dropLocked(clientID)
	}
}

func (b *Broadcaster) dropLocked(clientID string) {
	ch, ok := b.clients[clientID]
	if !ok {
		return
	}
	delete(b.clients, clientID)
	for scope, set := range b.scopes {
		delete(set, clientID)
		if len(set) == 0 {
			delete(b.scopes, scope)
		}
	}
	close(ch)
}
