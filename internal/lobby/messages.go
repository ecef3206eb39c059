package lobby

import (
	"github.com/devjyo/minigame-lobby-backend/internal/protocol"
	"github.com/devjyo/minigame-lobby-backend/internal/room"
)

type Msg interface{ isDirectoryMsg() }

type EnterLobby struct {
	UserName string
	ClientID string
	Reply    chan EnterReply
}

type EnterReply struct {
	Snapshot protocol.LobbySnapshot
	Err      error
}

// ExitLobby removes a user from the lobby (explicit exit or disconnect).
// Absence is a logged no-op, not an error.
type ExitLobby struct {
	UserName string
	ClientID string
}

// DetachUser removes a lobby occupant who moved into a room via join_room.
// Lobby clients are told through user_exit_lobby; the room announces the
// arrival on its own scope.
type DetachUser struct {
	UserName string
	ClientID string
}

type CreateRoom struct {
	UserName string
	ClientID string
	RoomName string
	Capacity int
	Reply    chan CreateReply
}

type CreateReply struct {
	Room    *room.Room
	Summary protocol.RoomSummary
	Members []protocol.Member
	Err     error
}

type GetRoom struct {
	RoomID string
	Reply  chan *room.Room
}

// Snapshot is the listUsers/listRooms read: current lobby occupants plus
// rooms still open to joins, in insertion/creation order.
type Snapshot struct {
	Reply chan protocol.LobbySnapshot
}

// RoomChanged carries a room actor's post-mutation summary into the
// directory; posted asynchronously by the OnChanged callback.
type RoomChanged struct {
	Summary protocol.RoomSummary
	Members []protocol.Member
}

// RoomEmpty reports that a room closed; posted by the OnEmpty callback.
type RoomEmpty struct {
	RoomID string
}

// GetState reflects internal state without data races; test-only.
type GetState struct {
	Reply chan View
}

type Shutdown struct{}

func (EnterLobby) isDirectoryMsg()  {}
func (ExitLobby) isDirectoryMsg()   {}
func (DetachUser) isDirectoryMsg()  {}
func (CreateRoom) isDirectoryMsg()  {}
func (GetRoom) isDirectoryMsg()     {}
func (Snapshot) isDirectoryMsg()    {}
func (RoomChanged) isDirectoryMsg() {}
func (RoomEmpty) isDirectoryMsg()   {}
func (GetState) isDirectoryMsg()    {}
func (Shutdown) isDirectoryMsg()    {}

type View struct {
	Users    []string
	NumRooms int
	Rooms    []protocol.RoomSummary
}
