package broadcast

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/devjyo/minigame-lobby-backend/internal/protocol"
)

func TestBroadcaster_ScopedDelivery(t *testing.T) {
	b := New(zap.NewNop())

	in := make(chan protocol.ServerMessage, 4)
	out := make(chan protocol.ServerMessage, 4)
	b.AddClient("in", in)
	b.AddClient("out", out)
	b.Subscribe(LobbyScope, "in")

	b.Broadcast(LobbyScope, protocol.ServerMessage{Event: "ping"})

	select {
	case msg := <-in:
		if msg.Event != "ping" {
			t.Fatalf("want ping, got %q", msg.Event)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscribed client got nothing")
	}
	select {
	case msg := <-out:
		t.Fatalf("unsubscribed client received %+v", msg)
	default:
	}
}

func TestBroadcaster_UnsubscribeStopsDelivery(t *testing.T) {
	b := New(zap.NewNop())

	ch := make(chan protocol.ServerMessage, 4)
	b.AddClient("c1", ch)
	scope := RoomScope("r1")
	b.Subscribe(scope, "c1")
	b.Unsubscribe(scope, "c1")

	b.Broadcast(scope, protocol.ServerMessage{Event: "ping"})
	select {
	case msg := <-ch:
		t.Fatalf("received after unsubscribe: %+v", msg)
	default:
	}
}

func TestBroadcaster_SlowClientDropped(t *testing.T) {
	b := New(zap.NewNop())

	ch := make(chan protocol.ServerMessage, 1)
	b.AddClient("slow", ch)
	b.Subscribe(LobbyScope, "slow")

	b.Broadcast(LobbyScope, protocol.ServerMessage{Event: "one"})
	b.Broadcast(LobbyScope, protocol.ServerMessage{Event: "two"}) // overflows, client dropped

	if msg := <-ch; msg.Event != "one" {
		t.Fatalf("want buffered event, got %q", msg.Event)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("outbox should be closed after drop")
	}

	// Further sends to the dropped client must be no-ops.
	b.Send("slow", protocol.ServerMessage{Event: "three"})
	b.RemoveClient("slow")
}

func TestBroadcaster_SubscribeUnknownClientIgnored(t *testing.T) {
	b := New(zap.NewNop())
	b.Subscribe(LobbyScope, "ghost")
	b.Broadcast(LobbyScope, protocol.ServerMessage{Event: "ping"})
}
