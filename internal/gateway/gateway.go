// Package gateway is the single inbound dispatch point: it accepts the
// websocket, owns the per-connection session, maps each named client event
// to exactly one lobby-directory or room operation, and runs the disconnect
// cascade. No client-supplied identity is trusted; everything is resolved
// through the connection registry first.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devjyo/minigame-lobby-backend/internal/broadcast"
	"github.com/devjyo/minigame-lobby-backend/internal/lobby"
	"github.com/devjyo/minigame-lobby-backend/internal/protocol"
	"github.com/devjyo/minigame-lobby-backend/internal/registry"
	"github.com/devjyo/minigame-lobby-backend/internal/room"
)

const (
	writeTimeout = 3 * time.Second
	replyTimeout = 5 * time.Second
	outboxSize   = 16
)

type Deps struct {
	Registry  *registry.Registry
	Broadcast *broadcast.Broadcaster
	Directory *lobby.Directory
	Log       *zap.Logger
	// OriginPatterns is handed to the websocket accept; empty means
	// same-origin only.
	OriginPatterns []string
}

func Handler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: d.OriginPatterns,
		})
		if err != nil {
			d.Log.Warn("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		sess := d.Registry.Register(connID)
		log := d.Log.With(zap.String("conn", connID))

		outbox := make(chan protocol.ServerMessage, outboxSize)
		d.Broadcast.AddClient(connID, outbox)

		c := &client{Deps: d, conn: conn, connID: connID, sess: sess, log: log}
		defer c.teardown()

		// Writer goroutine: drains the outbox until the broadcaster closes
		// it (teardown or slow-consumer drop), then forces the reader out.
		writeCtx, writeCancel := context.WithCancel(context.Background())
		defer writeCancel()
		go func() {
			for msg := range outbox {
				payload, err := json.Marshal(msg)
				if err != nil {
					log.Error("marshal outbound event", zap.String("event", msg.Event), zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			conn.Close(websocket.StatusPolicyViolation, "write side closed")
		}()

		// Initial snapshot, before the client has entered the lobby.
		snap := c.lobbySnapshot()
		c.send(protocol.ServerMessage{Event: protocol.EvtConnection, Data: snap})

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read loop ended", zap.Error(err))
				}
				return
			}

			var cm protocol.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				log.Warn("bad json frame", zap.Error(err))
				continue
			}
			c.dispatch(cm)
		}
	}
}

type client struct {
	Deps
	conn   *websocket.Conn
	connID string
	sess   *registry.Session
	log    *zap.Logger
}

func (c *client) dispatch(cm protocol.ClientMessage) {
	// Identity comes from the registry, never from the payload: a client
	// cannot act as a user or room its connection does not own.
	sess, err := c.Registry.Resolve(c.connID)
	if err != nil {
		c.fail(cm.Event, reasonNotFound)
		return
	}
	c.sess = sess

	switch cm.Event {
	case protocol.EvtEnterLobby:
		c.enterLobby(cm.Data)
	case protocol.EvtExitLobby:
		c.exitLobby()
	case protocol.EvtCreateRoom:
		c.createRoom(cm.Data)
	case protocol.EvtJoinRoom:
		c.joinRoom(cm.Data)
	case protocol.EvtLeaveRoom:
		c.leaveRoom()
	case protocol.EvtReady:
		c.setReady(cm.Data)
	case protocol.EvtRequestStart:
		c.requestStart()
	case protocol.EvtChat:
		c.chat(cm.Data)
	default:
		c.log.Warn("unknown event ignored", zap.String("event", cm.Event))
	}
}

func (c *client) enterLobby(data json.RawMessage) {
	var req protocol.EnterLobbyRequest
	if err := json.Unmarshal(data, &req); err != nil || req.UserName == "" {
		c.fail(protocol.EvtEnterLobby, reasonBadRequest)
		return
	}
	if c.sess.UserName != "" {
		c.fail(protocol.EvtEnterLobby, reasonBadRequest)
		return
	}

	reply := make(chan lobby.EnterReply, 1)
	c.Directory.Inbox() <- lobby.EnterLobby{UserName: req.UserName, ClientID: c.connID, Reply: reply}
	res, ok := await(c, reply)
	if !ok {
		return
	}
	if res.Err != nil {
		c.fail(protocol.EvtEnterLobby, failReason(res.Err))
		return
	}
	c.sess.UserName = req.UserName
	c.send(protocol.ServerMessage{Event: protocol.EvtEnterLobby, Data: protocol.EnterLobbyReply{
		Status:       protocol.StatusSuccess,
		UserList:     res.Snapshot.UserList,
		GameRoomList: res.Snapshot.GameRoomList,
	}})
}

func (c *client) exitLobby() {
	if c.sess.UserName == "" || c.sess.RoomID != "" {
		c.log.Warn("exit_lobby outside lobby ignored", zap.String("user", c.sess.UserName))
		return
	}
	c.Directory.Inbox() <- lobby.ExitLobby{UserName: c.sess.UserName, ClientID: c.connID}
	c.sess.UserName = ""
}

func (c *client) createRoom(data json.RawMessage) {
	var req protocol.CreateRoomRequest
	if err := json.Unmarshal(data, &req); err != nil || req.RoomName == "" {
		c.fail(protocol.EvtCreateRoom, reasonBadRequest)
		return
	}
	if !c.inLobby() {
		c.fail(protocol.EvtCreateRoom, reasonBadRequest)
		return
	}

	reply := make(chan lobby.CreateReply, 1)
	c.Directory.Inbox() <- lobby.CreateRoom{
		UserName: c.sess.UserName,
		ClientID: c.connID,
		RoomName: req.RoomName,
		Capacity: req.Capacity,
		Reply:    reply,
	}
	res, ok := await(c, reply)
	if !ok {
		return
	}
	if res.Err != nil {
		c.fail(protocol.EvtCreateRoom, failReason(res.Err))
		return
	}
	c.sess.RoomID = res.Summary.RoomID
	c.send(protocol.ServerMessage{Event: protocol.EvtCreateRoom, Data: protocol.CreateRoomReply{
		Status:   protocol.StatusSuccess,
		RoomID:   res.Summary.RoomID,
		RoomName: res.Summary.RoomName,
		Capacity: res.Summary.Capacity,
		UserList: res.Members,
	}})
}

func (c *client) joinRoom(data json.RawMessage) {
	var req protocol.JoinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == "" {
		c.fail(protocol.EvtJoinRoom, reasonBadRequest)
		return
	}
	if !c.inLobby() {
		c.fail(protocol.EvtJoinRoom, reasonBadRequest)
		return
	}

	rm, ok := c.getRoom(req.RoomID)
	if !ok {
		return
	}
	if rm == nil {
		c.fail(protocol.EvtJoinRoom, failReason(room.ErrRoomNotJoinable))
		return
	}

	reply := make(chan room.JoinReply, 1)
	rm.Inbox() <- room.Join{UserName: c.sess.UserName, ClientID: c.connID, Reply: reply}
	res, okAwait := await(c, reply)
	if !okAwait {
		return
	}
	if res.Err != nil {
		c.fail(protocol.EvtJoinRoom, failReason(res.Err))
		return
	}

	c.Directory.Inbox() <- lobby.DetachUser{UserName: c.sess.UserName, ClientID: c.connID}
	c.sess.RoomID = req.RoomID
	c.send(protocol.ServerMessage{Event: protocol.EvtJoinRoom, Data: protocol.JoinRoomReply{
		Status:   protocol.StatusSuccess,
		RoomID:   res.Summary.RoomID,
		RoomName: res.Summary.RoomName,
		Capacity: res.Summary.Capacity,
		UserList: res.Members,
	}})
}

func (c *client) leaveRoom() {
	if !c.inRoom() {
		c.fail(protocol.EvtExitRoom, reasonBadRequest)
		return
	}
	c.leaveCurrentRoom()

	// Back to the lobby: the exit_room reply carries the refreshed
	// snapshot so the client can render it without a second round trip.
	reply := make(chan lobby.EnterReply, 1)
	c.Directory.Inbox() <- lobby.EnterLobby{UserName: c.sess.UserName, ClientID: c.connID, Reply: reply}
	res, ok := await(c, reply)
	if !ok {
		return
	}
	if res.Err != nil {
		// The name cannot collide with itself; anything here is a bug.
		c.log.Error("re-entering lobby after leave_room failed", zap.Error(res.Err))
		c.fail(protocol.EvtExitRoom, failReason(res.Err))
		return
	}
	c.send(protocol.ServerMessage{Event: protocol.EvtExitRoom, Data: protocol.ExitRoomReply{
		Status:       protocol.StatusSuccess,
		UserList:     res.Snapshot.UserList,
		GameRoomList: res.Snapshot.GameRoomList,
	}})
}

func (c *client) setReady(data json.RawMessage) {
	var req protocol.ReadyRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.fail(protocol.EvtReady, reasonBadRequest)
		return
	}
	rm, ok := c.currentRoom(protocol.EvtReady)
	if !ok {
		return
	}
	reply := make(chan error, 1)
	rm.Inbox() <- room.SetReady{UserName: c.sess.UserName, Ready: req.Ready, Reply: reply}
	if err, okAwait := await(c, reply); okAwait && err != nil {
		c.fail(protocol.EvtReady, failReason(err))
	}
}

func (c *client) requestStart() {
	rm, ok := c.currentRoom(protocol.EvtRequestStart)
	if !ok {
		return
	}
	reply := make(chan error, 1)
	rm.Inbox() <- room.RequestStart{UserName: c.sess.UserName, Reply: reply}
	if err, okAwait := await(c, reply); okAwait && err != nil {
		c.fail(protocol.EvtRequestStart, failReason(err))
	}
}

func (c *client) chat(data json.RawMessage) {
	var req protocol.ChatRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Message == "" {
		return
	}
	rm, ok := c.currentRoom(protocol.EvtChat)
	if !ok {
		return
	}
	rm.Inbox() <- room.Chat{UserName: c.sess.UserName, Message: req.Message}
}

// teardown is the disconnect cascade: whatever scope the session occupied
// is left through the same path an explicit request would take.
func (c *client) teardown() {
	if c.sess.RoomID != "" {
		c.leaveCurrentRoom()
	} else if c.sess.UserName != "" {
		c.Directory.Inbox() <- lobby.ExitLobby{UserName: c.sess.UserName, ClientID: c.connID}
	}
	c.Broadcast.RemoveClient(c.connID)
	c.Registry.Unregister(c.connID)
}

func (c *client) leaveCurrentRoom() {
	rm, ok := c.getRoom(c.sess.RoomID)
	if ok && rm != nil {
		reply := make(chan error, 1)
		rm.Inbox() <- room.Leave{UserName: c.sess.UserName, ClientID: c.connID, Reply: reply}
		await(c, reply)
	}
	c.sess.RoomID = ""
}

func (c *client) inLobby() bool { return c.sess.UserName != "" && c.sess.RoomID == "" }
func (c *client) inRoom() bool  { return c.sess.UserName != "" && c.sess.RoomID != "" }

// currentRoom resolves the session's room handle or sends a fail reply.
func (c *client) currentRoom(event string) (*room.Room, bool) {
	if !c.inRoom() {
		c.fail(event, reasonBadRequest)
		return nil, false
	}
	rm, ok := c.getRoom(c.sess.RoomID)
	if !ok {
		return nil, false
	}
	if rm == nil {
		c.fail(event, failReason(room.ErrNotAMember))
		return nil, false
	}
	return rm, true
}

func (c *client) getRoom(roomID string) (*room.Room, bool) {
	reply := make(chan *room.Room, 1)
	c.Directory.Inbox() <- lobby.GetRoom{RoomID: roomID, Reply: reply}
	return await(c, reply)
}

func (c *client) lobbySnapshot() protocol.LobbySnapshot {
	reply := make(chan protocol.LobbySnapshot, 1)
	c.Directory.Inbox() <- lobby.Snapshot{Reply: reply}
	snap, _ := await(c, reply)
	return snap
}

// await receives an actor reply with a timeout so a wedged actor cannot
// hang the connection goroutine forever.
func await[T any](c *client, ch <-chan T) (T, bool) {
	select {
	case v := <-ch:
		return v, true
	case <-time.After(replyTimeout):
		var zero T
		c.log.Error("timed out waiting for actor reply")
		return zero, false
	}
}

func (c *client) send(msg protocol.ServerMessage) {
	c.Broadcast.Send(c.connID, msg)
}

func (c *client) fail(event, reason string) {
	c.send(protocol.ServerMessage{Event: event, Data: protocol.FailReply{
		Status: protocol.StatusFail,
		Reason: reason,
	}})
}
