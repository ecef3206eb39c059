package room

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/devjyo/minigame-lobby-backend/internal/broadcast"
	"github.com/devjyo/minigame-lobby-backend/internal/protocol"
)

// helper: receive one event with a timeout so tests never hang
func recvEvent(t *testing.T, ch <-chan protocol.ServerMessage, within time.Duration) protocol.ServerMessage {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return msg
	case <-time.After(within):
		t.Fatalf("timed out waiting for event")
		return protocol.ServerMessage{} // unreachable
	}
}

func recvNoEvent(t *testing.T, ch <-chan protocol.ServerMessage, within time.Duration) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no event within %v, but got: %+v", within, msg)
	case <-time.After(within):
	}
}

func recvErr(t *testing.T, ch <-chan error, within time.Duration) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(within):
		t.Fatalf("timed out waiting for error reply")
		return nil // unreachable
	}
}

func getView(t *testing.T, r *Room) View {
	t.Helper()
	reply := make(chan View, 1)
	r.Inbox() <- GetState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

type testRoom struct {
	r       *Room
	b       *broadcast.Broadcaster
	hostOut chan protocol.ServerMessage
	empty   chan string
}

func newTestRoom(t *testing.T, capacity int, startDelay time.Duration) *testRoom {
	t.Helper()
	b := broadcast.New(zap.NewNop())
	hostOut := make(chan protocol.ServerMessage, 8)
	b.AddClient("c-host", hostOut)
	empty := make(chan string, 1)
	r := New(Config{
		ID:         "room1",
		Name:       "r1",
		Capacity:   capacity,
		StartDelay: startDelay,
		OnEmpty:    func(id string) { empty <- id },
	}, "A", "c-host", b, zap.NewNop())
	return &testRoom{r: r, b: b, hostOut: hostOut, empty: empty}
}

func (tr *testRoom) join(t *testing.T, userName, clientID string) JoinReply {
	t.Helper()
	out := make(chan protocol.ServerMessage, 8)
	tr.b.AddClient(clientID, out)
	reply := make(chan JoinReply, 1)
	tr.r.Inbox() <- Join{UserName: userName, ClientID: clientID, Reply: reply}
	select {
	case res := <-reply:
		return res
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for join reply")
		return JoinReply{} // unreachable
	}
}

func TestRoom_Join_BroadcastsToExistingMembers(t *testing.T) {
	tr := newTestRoom(t, 3, time.Second)

	res := tr.join(t, "B", "c2")
	if res.Err != nil {
		t.Fatalf("join: unexpected error %v", res.Err)
	}
	if len(res.Members) != 2 || res.Members[0].UserName != "A" || res.Members[1].UserName != "B" {
		t.Fatalf("join reply members: got %+v", res.Members)
	}
	if res.Members[1].Ready {
		t.Fatalf("new member must join un-ready")
	}

	msg := recvEvent(t, tr.hostOut, time.Second)
	if msg.Event != protocol.EvtUserEnterRoom {
		t.Fatalf("want user_enter_room, got %q", msg.Event)
	}
	if msg.Data.(protocol.UserEvent).UserName != "B" {
		t.Fatalf("user_enter_room payload: %+v", msg.Data)
	}
}

func TestRoom_Join_FullRoomRejected(t *testing.T) {
	tr := newTestRoom(t, 2, time.Second)

	if res := tr.join(t, "B", "c2"); res.Err != nil {
		t.Fatalf("join B: %v", res.Err)
	}
	res := tr.join(t, "C", "c3")
	if res.Err != ErrRoomFull {
		t.Fatalf("want ErrRoomFull, got %v", res.Err)
	}

	v := getView(t, tr.r)
	if len(v.Members) != 2 {
		t.Fatalf("membership changed on rejected join: %+v", v.Members)
	}
}

func TestRoom_HostLeave_PromotesNextMember(t *testing.T) {
	tr := newTestRoom(t, 3, time.Second)
	tr.join(t, "B", "c2")
	tr.join(t, "C", "c3")

	reply := make(chan error, 1)
	tr.r.Inbox() <- Leave{UserName: "A", ClientID: "c-host", Reply: reply}
	if err := recvErr(t, reply, time.Second); err != nil {
		t.Fatalf("leave: %v", err)
	}

	v := getView(t, tr.r)
	if v.HostName != "B" {
		t.Fatalf("want host B after A leaves, got %q", v.HostName)
	}
	if v.Status != StatusOpen {
		t.Fatalf("room should stay open, got %v", v.Status)
	}
}

func TestRoom_LastLeave_ClosesRoom(t *testing.T) {
	tr := newTestRoom(t, 2, time.Second)

	reply := make(chan error, 1)
	tr.r.Inbox() <- Leave{UserName: "A", ClientID: "c-host", Reply: reply}
	if err := recvErr(t, reply, time.Second); err != nil {
		t.Fatalf("leave: %v", err)
	}

	select {
	case id := <-tr.empty:
		if id != "room1" {
			t.Fatalf("OnEmpty got %q", id)
		}
	case <-time.After(time.Second):
		t.Fatalf("OnEmpty never called")
	}
}

func TestRoom_SetReady_BroadcastsFlag(t *testing.T) {
	tr := newTestRoom(t, 2, time.Second)
	tr.join(t, "B", "c2")
	_ = recvEvent(t, tr.hostOut, time.Second) // drain user_enter_room

	reply := make(chan error, 1)
	tr.r.Inbox() <- SetReady{UserName: "B", Ready: true, Reply: reply}
	if err := recvErr(t, reply, time.Second); err != nil {
		t.Fatalf("ready: %v", err)
	}

	msg := recvEvent(t, tr.hostOut, time.Second)
	if msg.Event != protocol.EvtReady {
		t.Fatalf("want ready event, got %q", msg.Event)
	}
	ev := msg.Data.(protocol.ReadyEvent)
	if ev.UserName != "B" || !ev.Ready {
		t.Fatalf("ready payload: %+v", ev)
	}

	tr.r.Inbox() <- SetReady{UserName: "ghost", Ready: true, Reply: reply}
	if err := recvErr(t, reply, time.Second); err != ErrNotAMember {
		t.Fatalf("want ErrNotAMember, got %v", err)
	}
}

func TestRoom_RequestStart_NonHostRejected(t *testing.T) {
	tr := newTestRoom(t, 2, time.Second)
	tr.join(t, "B", "c2")
	_ = recvEvent(t, tr.hostOut, time.Second) // drain user_enter_room

	reply := make(chan error, 1)
	tr.r.Inbox() <- RequestStart{UserName: "B", Reply: reply}
	if err := recvErr(t, reply, time.Second); err != ErrNotHost {
		t.Fatalf("want ErrNotHost, got %v", err)
	}

	// No state change, no broadcast.
	recvNoEvent(t, tr.hostOut, 100*time.Millisecond)
	if v := getView(t, tr.r); v.Status != StatusOpen {
		t.Fatalf("status mutated by rejected start: %v", v.Status)
	}
}

func TestRoom_RequestStart_RequiresAllGuestsReady(t *testing.T) {
	tr := newTestRoom(t, 3, time.Second)
	tr.join(t, "B", "c2")
	tr.join(t, "C", "c3")

	reply := make(chan error, 1)
	tr.r.Inbox() <- RequestStart{UserName: "A", Reply: reply}
	if err := recvErr(t, reply, time.Second); err != ErrNotAllReady {
		t.Fatalf("want ErrNotAllReady, got %v", err)
	}
}

func TestRoom_StartFlow_TimerDrivesInGame(t *testing.T) {
	tr := newTestRoom(t, 2, 30*time.Millisecond)
	tr.join(t, "B", "c2")
	_ = recvEvent(t, tr.hostOut, time.Second) // user_enter_room

	readyReply := make(chan error, 1)
	tr.r.Inbox() <- SetReady{UserName: "B", Ready: true, Reply: readyReply}
	recvErr(t, readyReply, time.Second)
	_ = recvEvent(t, tr.hostOut, time.Second) // ready

	// The host's own ready flag does not gate the start.
	startReply := make(chan error, 1)
	tr.r.Inbox() <- RequestStart{UserName: "A", Reply: startReply}
	if err := recvErr(t, startReply, time.Second); err != nil {
		t.Fatalf("request_start: %v", err)
	}

	msg := recvEvent(t, tr.hostOut, time.Second)
	if msg.Event != protocol.EvtStart {
		t.Fatalf("want start broadcast, got %q", msg.Event)
	}
	if v := getView(t, tr.r); v.Status != StatusStarting {
		t.Fatalf("want starting, got %v", v.Status)
	}

	time.Sleep(150 * time.Millisecond)
	if v := getView(t, tr.r); v.Status != StatusInGame {
		t.Fatalf("want ingame after settle interval, got %v", v.Status)
	}
}

func TestRoom_LeaveDuringStarting_CancelsCountdown(t *testing.T) {
	tr := newTestRoom(t, 2, 50*time.Millisecond)
	tr.join(t, "B", "c2")

	readyReply := make(chan error, 1)
	tr.r.Inbox() <- SetReady{UserName: "B", Ready: true, Reply: readyReply}
	recvErr(t, readyReply, time.Second)

	startReply := make(chan error, 1)
	tr.r.Inbox() <- RequestStart{UserName: "A", Reply: startReply}
	if err := recvErr(t, startReply, time.Second); err != nil {
		t.Fatalf("request_start: %v", err)
	}

	leaveReply := make(chan error, 1)
	tr.r.Inbox() <- Leave{UserName: "B", ClientID: "c2", Reply: leaveReply}
	recvErr(t, leaveReply, time.Second)

	// Past the settle interval: the stale fire must have been dropped.
	time.Sleep(200 * time.Millisecond)
	if v := getView(t, tr.r); v.Status != StatusOpen {
		t.Fatalf("want open after aborted countdown, got %v", v.Status)
	}
}

func TestRoom_JoinWhileStarting_Rejected(t *testing.T) {
	tr := newTestRoom(t, 3, time.Second)
	tr.join(t, "B", "c2")

	readyReply := make(chan error, 1)
	tr.r.Inbox() <- SetReady{UserName: "B", Ready: true, Reply: readyReply}
	recvErr(t, readyReply, time.Second)

	startReply := make(chan error, 1)
	tr.r.Inbox() <- RequestStart{UserName: "A", Reply: startReply}
	if err := recvErr(t, startReply, time.Second); err != nil {
		t.Fatalf("request_start: %v", err)
	}

	res := tr.join(t, "C", "c3")
	if res.Err != ErrRoomNotJoinable {
		t.Fatalf("want ErrRoomNotJoinable, got %v", res.Err)
	}
}

func TestRoom_Chat_RelayedToMembers(t *testing.T) {
	tr := newTestRoom(t, 2, time.Second)
	tr.join(t, "B", "c2")
	_ = recvEvent(t, tr.hostOut, time.Second) // user_enter_room

	tr.r.Inbox() <- Chat{UserName: "B", Message: "glhf"}
	msg := recvEvent(t, tr.hostOut, time.Second)
	if msg.Event != protocol.EvtChat {
		t.Fatalf("want chat, got %q", msg.Event)
	}
	ev := msg.Data.(protocol.ChatEvent)
	if ev.UserName != "B" || ev.Message != "glhf" {
		t.Fatalf("chat payload: %+v", ev)
	}

	// Non-members are ignored.
	tr.r.Inbox() <- Chat{UserName: "ghost", Message: "boo"}
	recvNoEvent(t, tr.hostOut, 100*time.Millisecond)
}
