package room

import "github.com/devjyo/minigame-lobby-backend/internal/protocol"

type Msg interface{ isRoomMsg() }

type Join struct {
	UserName string
	ClientID string
	Reply    chan JoinReply
}

type JoinReply struct {
	Summary protocol.RoomSummary
	Members []protocol.Member
	Err     error
}

type Leave struct {
	UserName string
	ClientID string
	Reply    chan error
}

type SetReady struct {
	UserName string
	Ready    bool
	Reply    chan error
}

type RequestStart struct {
	UserName string
	Reply    chan error
}

type Chat struct {
	UserName string
	Message  string
}

// GetState reflects internal state without data races; test-only.
type GetState struct {
	Reply chan View
}

type Shutdown struct{}

// timerFired is posted back into the inbox by the start timer. Gen guards
// against a stale fire after the countdown was cancelled.
type timerFired struct{ gen int }

func (Join) isRoomMsg()         {}
func (Leave) isRoomMsg()        {}
func (SetReady) isRoomMsg()     {}
func (RequestStart) isRoomMsg() {}
func (Chat) isRoomMsg()         {}
func (GetState) isRoomMsg()     {}
func (Shutdown) isRoomMsg()     {}
func (timerFired) isRoomMsg()   {}

type View struct {
	Status   Status
	Members  []protocol.Member
	HostName string
}
