// Package protocol defines the JSON wire format shared by the gateway and
// the lobby/room actors: one event per text frame, shaped as
// {"event": <name>, "data": {...}}.
package protocol

import "encoding/json"

// Inbound event names (client -> server).
const (
	EvtEnterLobby   = "enter_lobby"
	EvtExitLobby    = "exit_lobby"
	EvtCreateRoom   = "create_room"
	EvtJoinRoom     = "join_room"
	EvtLeaveRoom    = "leave_room"
	EvtReady        = "ready"
	EvtRequestStart = "request_start"
	EvtChat         = "chat"
)

// Outbound-only event names (server -> client). Replies to inbound events
// reuse the inbound name with a status field.
const (
	EvtConnection     = "connection"
	EvtUserEnterLobby = "user_enter_lobby"
	EvtUserExitLobby  = "user_exit_lobby"
	EvtUserCreateRoom = "user_create_room"
	EvtDeleteRoom     = "delete_room"
	EvtUserEnterRoom  = "user_enter_room"
	EvtUserExitRoom   = "user_exit_room"
	EvtExitRoom       = "exit_room"
	EvtStart          = "start"
)

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Member is one seat in a room. The first member of a room's userList is
// the host; clients render it that way and the server enforces it.
type Member struct {
	UserName string `json:"userName"`
	Ready    bool   `json:"ready"`
}

// RoomSummary is the lobby-side view of a room.
type RoomSummary struct {
	RoomID     string `json:"roomId"`
	RoomName   string `json:"roomName"`
	Capacity   int    `json:"capacity"`
	NumMembers int    `json:"numMembers"`
	Status     string `json:"status"`
}

// LobbySnapshot is the point-in-time lobby view pushed on connect and
// returned from enter_lobby / exit_room.
type LobbySnapshot struct {
	UserList     []string      `json:"userList"`
	GameRoomList []RoomSummary `json:"gameRoomList"`
}
