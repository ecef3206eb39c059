package gateway

import (
	"errors"

	"github.com/devjyo/minigame-lobby-backend/internal/lobby"
	"github.com/devjyo/minigame-lobby-backend/internal/registry"
	"github.com/devjyo/minigame-lobby-backend/internal/room"
)

// Wire-level failure reasons carried in {status:"fail", reason}.
const (
	reasonDuplicateName   = "duplicate_name"
	reasonInvalidCapacity = "invalid_capacity"
	reasonRoomFull        = "room_full"
	reasonRoomNotJoinable = "room_not_joinable"
	reasonNotAMember      = "not_a_member"
	reasonNotHost         = "not_host"
	reasonNotAllReady     = "not_all_ready"
	reasonNotFound        = "not_found"
	reasonBadRequest      = "bad_request"
)

// failReason translates a domain error into its wire reason. Domain errors
// never close the connection; they come back as a failure-status reply.
func failReason(err error) string {
	switch {
	case errors.Is(err, lobby.ErrDuplicateName):
		return reasonDuplicateName
	case errors.Is(err, lobby.ErrInvalidCapacity):
		return reasonInvalidCapacity
	case errors.Is(err, room.ErrRoomFull):
		return reasonRoomFull
	case errors.Is(err, room.ErrRoomNotJoinable):
		return reasonRoomNotJoinable
	case errors.Is(err, room.ErrNotAMember):
		return reasonNotAMember
	case errors.Is(err, room.ErrNotHost):
		return reasonNotHost
	case errors.Is(err, room.ErrNotAllReady):
		return reasonNotAllReady
	case errors.Is(err, registry.ErrNotFound):
		return reasonNotFound
	default:
		return reasonBadRequest
	}
}
