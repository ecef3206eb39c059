// Package room implements the per-room coordinator: one goroutine owns a
// room's membership, readiness, and lifecycle, and all mutations arrive as
// messages on its inbox. Cross-actor effects (directory updates, teardown)
// leave through the OnChanged/OnEmpty callbacks as asynchronous sends.
package room

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/devjyo/minigame-lobby-backend/internal/broadcast"
	"github.com/devjyo/minigame-lobby-backend/internal/protocol"
)

var (
	ErrRoomFull        = errors.New("room full")
	ErrRoomNotJoinable = errors.New("room not joinable")
	ErrNotAMember      = errors.New("not a room member")
	ErrNotHost         = errors.New("not the host")
	ErrNotAllReady     = errors.New("not all members ready")
)

// Status is the room lifecycle. Open may be re-entered from Starting when a
// member leaves mid-countdown; Closed is terminal.
type Status string

const (
	StatusOpen     Status = "open"
	StatusStarting Status = "starting"
	StatusInGame   Status = "ingame"
	StatusClosed   Status = "closed"
)

// member order is seating order; index 0 is the host.
type member struct {
	userName string
	clientID string
	ready    bool
}

type Config struct {
	ID         string
	Name       string
	Capacity   int
	StartDelay time.Duration

	// OnChanged reports the current summary and member list after every
	// mutation. OnEmpty reports that the room closed and should be removed
	// from the directory. Both must not call back into the room.
	OnChanged func(protocol.RoomSummary, []protocol.Member)
	OnEmpty   func(roomID string)
}

type Room struct {
	cfg     Config
	inbox   chan Msg
	members []member
	status  Status

	timerGen   int
	startTimer *time.Timer

	b    *broadcast.Broadcaster
	log  *zap.Logger
	done chan struct{}
}

// New spawns the room actor with its creator as sole member and host. The
// creator's connection is subscribed to the room scope immediately, so it
// sees every broadcast from the first join onward.
func New(cfg Config, hostName, hostClientID string, b *broadcast.Broadcaster, log *zap.Logger) *Room {
	r := &Room{
		cfg:     cfg,
		inbox:   make(chan Msg, 64),
		members: []member{{userName: hostName, clientID: hostClientID}},
		status:  StatusOpen,
		b:       b,
		log:     log.With(zap.String("room", cfg.ID)),
		done:    make(chan struct{}),
	}
	b.Subscribe(broadcast.RoomScope(cfg.ID), hostClientID)
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.done:
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)
			case Leave:
				r.handleLeave(msg)
			case SetReady:
				r.handleSetReady(msg)
			case RequestStart:
				r.handleRequestStart(msg)
			case Chat:
				r.handleChat(msg)
			case timerFired:
				r.handleTimerFired(msg)
			case GetState:
				msg.Reply <- View{
					Status:   r.status,
					Members:  r.memberList(),
					HostName: r.hostName(),
				}
			case Shutdown:
				r.close()
				return
			}
			if r.status == StatusClosed {
				return
			}
		}
	}
}

func (r *Room) handleJoin(msg Join) {
	if r.status != StatusOpen {
		msg.Reply <- JoinReply{Err: ErrRoomNotJoinable}
		return
	}
	if len(r.members) >= r.cfg.Capacity {
		msg.Reply <- JoinReply{Err: ErrRoomFull}
		return
	}

	// Existing members hear about the newcomer; the newcomer gets the full
	// member list in the reply, so it is subscribed only after the send.
	r.broadcast(protocol.EvtUserEnterRoom, protocol.UserEvent{UserName: msg.UserName})
	r.members = append(r.members, member{userName: msg.UserName, clientID: msg.ClientID})
	r.b.Subscribe(broadcast.RoomScope(r.cfg.ID), msg.ClientID)

	if !r.checkInvariants() {
		msg.Reply <- JoinReply{Err: ErrRoomNotJoinable}
		return
	}
	r.notifyChanged()
	msg.Reply <- JoinReply{Summary: r.summary(), Members: r.memberList()}
}

func (r *Room) handleLeave(msg Leave) {
	idx := r.indexOf(msg.UserName)
	if idx < 0 {
		if msg.Reply != nil {
			msg.Reply <- ErrNotAMember
		}
		return
	}

	wasHost := idx == 0
	r.b.Unsubscribe(broadcast.RoomScope(r.cfg.ID), msg.ClientID)
	r.members = append(r.members[:idx], r.members[idx+1:]...)

	if r.status == StatusStarting {
		// A departure aborts the countdown; the room reopens for joins.
		r.stopTimer()
		r.status = StatusOpen
	}

	if len(r.members) == 0 {
		r.close()
		if msg.Reply != nil {
			msg.Reply <- nil
		}
		return
	}

	if wasHost {
		r.log.Info("host left, promoting next member",
			zap.String("left", msg.UserName),
			zap.String("host", r.members[0].userName))
	}
	r.broadcast(protocol.EvtUserExitRoom, protocol.UserEvent{UserName: msg.UserName})
	if !r.checkInvariants() {
		if msg.Reply != nil {
			msg.Reply <- nil
		}
		return
	}
	r.notifyChanged()
	if msg.Reply != nil {
		msg.Reply <- nil
	}
}

func (r *Room) handleSetReady(msg SetReady) {
	idx := r.indexOf(msg.UserName)
	if idx < 0 {
		msg.Reply <- ErrNotAMember
		return
	}
	r.members[idx].ready = msg.Ready
	// Same-value toggles still broadcast; clients reduce idempotently.
	r.broadcast(protocol.EvtReady, protocol.ReadyEvent{UserName: msg.UserName, Ready: msg.Ready})
	r.notifyChanged()
	msg.Reply <- nil
}

func (r *Room) handleRequestStart(msg RequestStart) {
	if r.status != StatusOpen {
		msg.Reply <- ErrRoomNotJoinable
		return
	}
	if r.hostName() != msg.UserName {
		msg.Reply <- ErrNotHost
		return
	}
	// The host's own ready flag does not gate the start.
	for _, m := range r.members[1:] {
		if !m.ready {
			msg.Reply <- ErrNotAllReady
			return
		}
	}

	r.status = StatusStarting
	r.broadcast(protocol.EvtStart, struct{}{})
	r.notifyChanged()

	r.timerGen++
	gen := r.timerGen
	r.startTimer = time.AfterFunc(r.cfg.StartDelay, func() {
		select {
		case r.inbox <- timerFired{gen: gen}:
		case <-r.done:
		}
	})
	msg.Reply <- nil
}

func (r *Room) handleChat(msg Chat) {
	if r.indexOf(msg.UserName) < 0 {
		return
	}
	r.broadcast(protocol.EvtChat, protocol.ChatEvent{UserName: msg.UserName, Message: msg.Message})
}

func (r *Room) handleTimerFired(msg timerFired) {
	if msg.gen != r.timerGen || r.status != StatusStarting {
		// Stale fire from a cancelled countdown.
		return
	}
	r.status = StatusInGame
	r.log.Info("room entered game", zap.String("name", r.cfg.Name))
	r.notifyChanged()
}

// checkInvariants validates what must hold after any mutation of a
// non-empty room. A violation is a programming error: the room is closed
// rather than kept running with corrupt state. Returns false when closed.
func (r *Room) checkInvariants() bool {
	ok := len(r.members) <= r.cfg.Capacity
	seen := make(map[string]struct{}, len(r.members))
	for _, m := range r.members {
		if _, dup := seen[m.userName]; dup {
			ok = false
		}
		seen[m.userName] = struct{}{}
	}
	if ok {
		return true
	}
	r.log.Error("room state invariant violated, closing room",
		zap.Int("members", len(r.members)), zap.Int("capacity", r.cfg.Capacity))
	r.close()
	return false
}

func (r *Room) close() {
	if r.status == StatusClosed {
		return
	}
	r.stopTimer()
	r.status = StatusClosed
	r.b.DropScope(broadcast.RoomScope(r.cfg.ID))
	close(r.done)
	if r.cfg.OnEmpty != nil {
		r.cfg.OnEmpty(r.cfg.ID)
	}
}

func (r *Room) stopTimer() {
	if r.startTimer != nil {
		r.startTimer.Stop()
		r.startTimer = nil
	}
	r.timerGen++
}

func (r *Room) broadcast(event string, data any) {
	r.b.Broadcast(broadcast.RoomScope(r.cfg.ID), protocol.ServerMessage{Event: event, Data: data})
}

func (r *Room) notifyChanged() {
	if r.cfg.OnChanged != nil {
		r.cfg.OnChanged(r.summary(), r.memberList())
	}
}

func (r *Room) summary() protocol.RoomSummary {
	return protocol.RoomSummary{
		RoomID:     r.cfg.ID,
		RoomName:   r.cfg.Name,
		Capacity:   r.cfg.Capacity,
		NumMembers: len(r.members),
		Status:     string(r.status),
	}
}

func (r *Room) memberList() []protocol.Member {
	out := make([]protocol.Member, len(r.members))
	for i, m := range r.members {
		out[i] = protocol.Member{UserName: m.userName, Ready: m.ready}
	}
	return out
}

func (r *Room) hostName() string {
	if len(r.members) == 0 {
		return ""
	}
	return r.members[0].userName
}

func (r *Room) indexOf(userName string) int {
	for i, m := range r.members {
		if m.userName == userName {
			return i
		}
	}
	return -1
}
