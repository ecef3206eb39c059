// Package lobby implements the lobby directory: the single actor that owns
// the set of users waiting outside rooms and the index of live rooms. It
// spawns room actors and is the only component holding their handles, so a
// user is always in exactly one of {lobby users, one room's members}.
package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devjyo/minigame-lobby-backend/internal/broadcast"
	"github.com/devjyo/minigame-lobby-backend/internal/protocol"
	"github.com/devjyo/minigame-lobby-backend/internal/room"
)

var (
	ErrDuplicateName   = errors.New("user name already taken")
	ErrInvalidCapacity = errors.New("invalid room capacity")
)

type roomEntry struct {
	handle  *room.Room
	summary protocol.RoomSummary
	members []protocol.Member
	// listed is true while the room appears in lobby snapshots, i.e. while
	// its status is open or starting.
	listed bool
}

type Directory struct {
	inbox      chan Msg
	users      []string // insertion order
	rooms      map[string]*roomEntry
	roomOrder  []string // creation order
	startDelay time.Duration

	b      *broadcast.Broadcaster
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewDirectory(parent context.Context, startDelay time.Duration, b *broadcast.Broadcaster, log *zap.Logger) *Directory {
	ctx, cancel := context.WithCancel(parent)
	d := &Directory{
		inbox:      make(chan Msg, 64),
		rooms:      make(map[string]*roomEntry),
		startDelay: startDelay,
		b:          b,
		log:        log.Named("lobby"),
		ctx:        ctx,
		cancel:     cancel,
	}
	go d.loop()
	return d
}

func (d *Directory) Inbox() chan<- Msg { return d.inbox }

func (d *Directory) loop() {
	for {
		select {
		case <-d.ctx.Done():
			d.shutdown()
			return

		case m := <-d.inbox:
			switch msg := m.(type) {
			case EnterLobby:
				d.handleEnter(msg)
			case ExitLobby:
				if !d.removeUser(msg.UserName, msg.ClientID) {
					d.log.Warn("exit_lobby for absent user", zap.String("user", msg.UserName))
				}
			case DetachUser:
				d.removeUser(msg.UserName, msg.ClientID)
			case CreateRoom:
				d.handleCreateRoom(msg)
			case GetRoom:
				if e, ok := d.rooms[msg.RoomID]; ok {
					msg.Reply <- e.handle
				} else {
					msg.Reply <- nil
				}
			case Snapshot:
				msg.Reply <- d.snapshot()
			case RoomChanged:
				d.handleRoomChanged(msg)
			case RoomEmpty:
				d.handleRoomEmpty(msg)
			case GetState:
				snap := d.snapshot()
				msg.Reply <- View{Users: snap.UserList, NumRooms: len(d.rooms), Rooms: snap.GameRoomList}
			case Shutdown:
				d.shutdown()
				return
			}
		}
	}
}

func (d *Directory) handleEnter(msg EnterLobby) {
	if d.nameInUse(msg.UserName) {
		msg.Reply <- EnterReply{Err: ErrDuplicateName}
		return
	}
	// Current occupants hear about the newcomer; the newcomer's own view
	// comes back in the reply, so it is subscribed only after the send.
	d.b.Broadcast(broadcast.LobbyScope, protocol.ServerMessage{
		Event: protocol.EvtUserEnterLobby,
		Data:  protocol.UserEvent{UserName: msg.UserName},
	})
	d.users = append(d.users, msg.UserName)
	d.b.Subscribe(broadcast.LobbyScope, msg.ClientID)
	msg.Reply <- EnterReply{Snapshot: d.snapshot()}
}

// removeUser unsubscribes the connection and announces the departure.
// Reports whether the user was present.
func (d *Directory) removeUser(userName, clientID string) bool {
	idx := -1
	for i, u := range d.users {
		if u == userName {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	d.users = append(d.users[:idx], d.users[idx+1:]...)
	d.b.Unsubscribe(broadcast.LobbyScope, clientID)
	d.b.Broadcast(broadcast.LobbyScope, protocol.ServerMessage{
		Event: protocol.EvtUserExitLobby,
		Data:  protocol.UserEvent{UserName: userName},
	})
	return true
}

func (d *Directory) handleCreateRoom(msg CreateRoom) {
	if msg.Capacity < 1 {
		msg.Reply <- CreateReply{Err: ErrInvalidCapacity}
		return
	}

	// The creator leaves the lobby user list silently: lobby clients learn
	// of the move from user_create_room itself.
	for i, u := range d.users {
		if u == msg.UserName {
			d.users = append(d.users[:i], d.users[i+1:]...)
			break
		}
	}
	d.b.Unsubscribe(broadcast.LobbyScope, msg.ClientID)

	roomID := uuid.NewString()
	rm := room.New(room.Config{
		ID:         roomID,
		Name:       msg.RoomName,
		Capacity:   msg.Capacity,
		StartDelay: d.startDelay,
		OnChanged: func(summary protocol.RoomSummary, members []protocol.Member) {
			select {
			case d.inbox <- RoomChanged{Summary: summary, Members: members}:
			case <-d.ctx.Done():
			}
		},
		OnEmpty: func(roomID string) {
			select {
			case d.inbox <- RoomEmpty{RoomID: roomID}:
			case <-d.ctx.Done():
			}
		},
	}, msg.UserName, msg.ClientID, d.b, d.log)

	entry := &roomEntry{
		handle: rm,
		summary: protocol.RoomSummary{
			RoomID:     roomID,
			RoomName:   msg.RoomName,
			Capacity:   msg.Capacity,
			NumMembers: 1,
			Status:     string(room.StatusOpen),
		},
		members: []protocol.Member{{UserName: msg.UserName}},
		listed:  true,
	}
	d.rooms[roomID] = entry
	d.roomOrder = append(d.roomOrder, roomID)

	d.b.Broadcast(broadcast.LobbyScope, protocol.ServerMessage{
		Event: protocol.EvtUserCreateRoom,
		Data: protocol.UserCreateRoomEvent{
			RoomID:     entry.summary.RoomID,
			RoomName:   entry.summary.RoomName,
			Capacity:   entry.summary.Capacity,
			NumMembers: entry.summary.NumMembers,
			Status:     entry.summary.Status,
			UserName:   msg.UserName,
		},
	})
	d.log.Info("room created",
		zap.String("room", roomID),
		zap.String("name", msg.RoomName),
		zap.String("host", msg.UserName))
	msg.Reply <- CreateReply{Room: rm, Summary: entry.summary, Members: entry.members}
}

func (d *Directory) handleRoomChanged(msg RoomChanged) {
	entry, ok := d.rooms[msg.Summary.RoomID]
	if !ok {
		return
	}
	entry.summary = msg.Summary
	entry.members = msg.Members

	joinable := msg.Summary.Status == string(room.StatusOpen) || msg.Summary.Status == string(room.StatusStarting)
	if entry.listed && !joinable {
		// The room left the joinable set (game started); lobby clients
		// drop it, but the entry stays resolvable for member leave_room.
		entry.listed = false
		d.broadcastDeleteRoom(msg.Summary.RoomID)
	}
}

func (d *Directory) handleRoomEmpty(msg RoomEmpty) {
	entry, ok := d.rooms[msg.RoomID]
	if !ok {
		return
	}
	if entry.listed {
		d.broadcastDeleteRoom(msg.RoomID)
	}
	delete(d.rooms, msg.RoomID)
	for i, id := range d.roomOrder {
		if id == msg.RoomID {
			d.roomOrder = append(d.roomOrder[:i], d.roomOrder[i+1:]...)
			break
		}
	}
	d.log.Info("room removed", zap.String("room", msg.RoomID))
}

func (d *Directory) broadcastDeleteRoom(roomID string) {
	d.b.Broadcast(broadcast.LobbyScope, protocol.ServerMessage{
		Event: protocol.EvtDeleteRoom,
		Data:  protocol.DeleteRoomEvent{RoomID: roomID},
	})
}

func (d *Directory) nameInUse(userName string) bool {
	for _, u := range d.users {
		if u == userName {
			return true
		}
	}
	for _, e := range d.rooms {
		for _, m := range e.members {
			if m.UserName == userName {
				return true
			}
		}
	}
	return false
}

func (d *Directory) snapshot() protocol.LobbySnapshot {
	users := make([]string, len(d.users))
	copy(users, d.users)
	roomList := make([]protocol.RoomSummary, 0, len(d.roomOrder))
	for _, id := range d.roomOrder {
		if e := d.rooms[id]; e != nil && e.listed {
			roomList = append(roomList, e.summary)
		}
	}
	return protocol.LobbySnapshot{UserList: users, GameRoomList: roomList}
}

func (d *Directory) shutdown() {
	for _, e := range d.rooms {
		select {
		case e.handle.Inbox() <- room.Shutdown{}:
		default:
		}
	}
	clear(d.rooms)
	d.roomOrder = nil
	d.cancel()
}
