package protocol

// Requests decoded from ClientMessage.Data.

type EnterLobbyRequest struct {
	UserName string `json:"userName"`
}

type CreateRoomRequest struct {
	RoomName string `json:"roomName"`
	Capacity int    `json:"capacity"`
}

type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
}

type ReadyRequest struct {
	Ready bool `json:"ready"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

// Replies to the originating connection.

type EnterLobbyReply struct {
	Status       string        `json:"status"`
	Reason       string        `json:"reason,omitempty"`
	UserList     []string      `json:"userList,omitempty"`
	GameRoomList []RoomSummary `json:"gameRoomList,omitempty"`
}

type CreateRoomReply struct {
	Status   string   `json:"status"`
	Reason   string   `json:"reason,omitempty"`
	RoomID   string   `json:"roomId,omitempty"`
	RoomName string   `json:"roomName,omitempty"`
	Capacity int      `json:"capacity,omitempty"`
	UserList []Member `json:"userList,omitempty"`
}

// JoinRoomReply mirrors CreateRoomReply so the client can populate its room
// view from either path.
type JoinRoomReply = CreateRoomReply

type ExitRoomReply struct {
	Status       string        `json:"status"`
	Reason       string        `json:"reason,omitempty"`
	UserList     []string      `json:"userList"`
	GameRoomList []RoomSummary `json:"gameRoomList"`
}

// FailReply is the generic {status:"fail", reason} response for any inbound
// event without a richer reply shape.
type FailReply struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Pushed events.

type UserEvent struct {
	UserName string `json:"userName"`
}

type UserCreateRoomEvent struct {
	RoomID     string `json:"roomId"`
	RoomName   string `json:"roomName"`
	Capacity   int    `json:"capacity"`
	NumMembers int    `json:"numMembers"`
	Status     string `json:"status"`
	UserName   string `json:"userName"`
}

type DeleteRoomEvent struct {
	RoomID string `json:"roomId"`
}

type ReadyEvent struct {
	UserName string `json:"userName"`
	Ready    bool   `json:"ready"`
}

type ChatEvent struct {
	UserName string `json:"userName"`
	Message  string `json:"message"`
}
