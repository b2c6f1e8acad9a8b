package chathub

import (
	"encoding/json"
	"log"
	"time"

	"campuslink/backend/internal/models"
	"campuslink/backend/internal/storage"

	"github.com/google/uuid"
)

// Command is one inbound realtime event, tagged with the authenticated user
// and the connection it arrived on.
type Command struct {
	ConnID string
	UserID string
	Event  string
	Data   json.RawMessage
}

// Hub owns the in-memory connection state (registry, presence, broadcast
// groups) and serializes every mutation through a single goroutine. Engine
// calls happen inside that loop too, so presence enter/leave for one user
// can never interleave.
type Hub struct {
	Registry *ConnectionRegistry
	Presence *PresenceTracker
	Groups   *GroupTable
	Engine   *Engine
	Storage  storage.Storage

	// Channels
	RegisterCh   chan Client
	UnregisterCh chan string
	CommandCh    chan Command
	// EmissionCh lets REST handlers route their fan-out through the loop.
	EmissionCh chan []models.Emission

	instanceID string
	clients    map[string]Client // connID -> client
	remoteCh   chan models.RemoteEvent
}

func NewHub(s storage.Storage, engine *Engine) *Hub {
	return &Hub{
		Registry:     NewConnectionRegistry(),
		Presence:     NewPresenceTracker(),
		Groups:       NewGroupTable(),
		Engine:       engine,
		Storage:      s,
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan string),
		CommandCh:    make(chan Command),
		EmissionCh:   make(chan []models.Emission, 16),
		instanceID:   uuid.New().String(),
		clients:      make(map[string]Client),
		remoteCh:     make(chan models.RemoteEvent),
	}
}

// Run is the hub's main dispatcher. All connection-state mutations and all
// emission deliveries happen on this goroutine.
func (h *Hub) Run() {
	log.Println("Hub started.")
	for {
		select {
		case c := <-h.RegisterCh:
			h.register(c)
		case connID := <-h.UnregisterCh:
			h.unregister(connID)
		case cmd := <-h.CommandCh:
			h.dispatch(cmd)
		case emissions := <-h.EmissionCh:
			h.deliverAll(emissions, true)
		case ev := <-h.remoteCh:
			if ev.Origin != h.instanceID {
				h.deliver(ev.Emission)
			}
		}
	}
}

// ListenEvents bridges the shared Redis channel into the hub loop so
// emissions published by other instances reach this instance's connections.
// Started by main, not by Run, so tests can drive a hub without Redis.
func (h *Hub) ListenEvents() {
	pubsub := h.Storage.SubscribeEvents()
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var ev models.RemoteEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Printf("ERROR: bad remote event payload: %v", err)
			continue
		}
		h.remoteCh <- ev
	}
}

// Deliver hands emissions produced outside the loop (REST handlers) to the
// hub for delivery and cross-instance publication.
func (h *Hub) Deliver(emissions []models.Emission) {
	if len(emissions) == 0 {
		return
	}
	h.EmissionCh <- emissions
}

// DetachUserFromRoom removes the user's live connection from a room's
// broadcast group after they left or were removed. The group subscription is
// the access boundary for room fan-out.
func (h *Hub) DetachUserFromRoom(userID, roomID string) {
	if connID, ok := h.Registry.Lookup(userID); ok {
		h.Groups.Leave(connID, RoomGroup(roomID))
	}
}

// register wires a freshly-authenticated connection: registry entry
// (last-connect-wins), the per-user fallback group, and the user_online
// broadcast to everyone else.
func (h *Hub) register(c Client) {
	connID := c.GetConnID()
	userID := c.GetUserID()

	h.clients[connID] = c
	h.Registry.Register(userID, connID)
	h.Groups.Join(connID, UserGroup(userID))

	log.Printf("Connection %s registered for user %s", connID, userID)
	h.deliverAll([]models.Emission{
		models.EmitToAll(userID, models.EvtUserOnline, models.PresencePayload{UserID: userID}),
	}, true)
}

// unregister tears down a connection. It is idempotent: a second disconnect
// signal for the same id is a no-op, so user_offline is never
// double-broadcast. A stale connection (already replaced in the registry by
// a newer one for the same user) is cleaned up without presence side
// effects.
func (h *Hub) unregister(connID string) {
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	delete(h.clients, connID)
	h.Groups.LeaveAll(connID)

	userID, wasCurrent := h.Registry.Unregister(connID)
	if wasCurrent {
		// Implicit chat-page leave on disconnect.
		h.deliverAll(h.Presence.Leave(userID), true)

		if err := h.Storage.UpdateUserLastSeen(userID, time.Now()); err != nil {
			log.Printf("WARN: failed to update last seen for %s: %v", userID, err)
		}
		h.deliverAll([]models.Emission{
			models.EmitToAll(userID, models.EvtUserOffline, models.PresencePayload{UserID: userID}),
		}, true)
	}

	c.Close()
	log.Printf("Connection %s unregistered", connID)
}

// roomRef is the common inbound payload carrying a room id.
type roomRef struct {
	ConversationID string `json:"conversationId"`
}

type roomRefBatch struct {
	RoomIDs []string `json:"roomIds"`
}

type markReadInput struct {
	ConversationID string   `json:"conversationId"`
	MessageIDs     []string `json:"messageIds"`
}

// dispatch routes one inbound event to the domain logic and delivers the
// resulting emissions. Authorization and not-found failures go back to the
// originating connection only.
func (h *Hub) dispatch(cmd Command) {
	switch cmd.Event {
	case models.EvtChatPageEnter:
		h.deliverAll(h.Presence.Enter(cmd.UserID), true)

	case models.EvtChatPageLeave:
		h.deliverAll(h.Presence.Leave(cmd.UserID), true)

	case models.EvtJoinRooms:
		var in roomRefBatch
		if err := json.Unmarshal(cmd.Data, &in); err != nil {
			h.commandError(cmd, err)
			return
		}
		for _, roomID := range in.RoomIDs {
			h.joinRoom(cmd, roomID)
		}

	case models.EvtJoinRoom, models.EvtJoinChannel, models.EvtJoinGroup:
		var in roomRef
		if err := json.Unmarshal(cmd.Data, &in); err != nil {
			h.commandError(cmd, err)
			return
		}
		h.joinRoom(cmd, in.ConversationID)

	case models.EvtLeaveRoom, models.EvtLeaveChannel, models.EvtLeaveGroup:
		var in roomRef
		if err := json.Unmarshal(cmd.Data, &in); err != nil {
			h.commandError(cmd, err)
			return
		}
		h.Groups.Leave(cmd.ConnID, RoomGroup(in.ConversationID))

	case models.EvtTypingStart, models.EvtTypingStop:
		var in roomRef
		if err := json.Unmarshal(cmd.Data, &in); err != nil {
			h.commandError(cmd, err)
			return
		}
		emissions, err := h.Engine.Typing(cmd.UserID, in.ConversationID, cmd.Event == models.EvtTypingStart)
		if err != nil {
			h.commandError(cmd, err)
			return
		}
		h.deliverAll(emissions, true)

	case models.EvtSendMessage:
		var in SendMessageInput
		if err := json.Unmarshal(cmd.Data, &in); err != nil {
			h.commandError(cmd, err)
			return
		}
		emissions, _, err := h.Engine.SendMessage(cmd.UserID, in)
		if err != nil {
			h.commandError(cmd, err)
			return
		}
		h.deliverAll(emissions, true)

	case models.EvtMarkRead:
		var in markReadInput
		if err := json.Unmarshal(cmd.Data, &in); err != nil {
			h.commandError(cmd, err)
			return
		}
		emissions, err := h.Engine.MarkRead(cmd.UserID, in.ConversationID, in.MessageIDs)
		if err != nil {
			h.commandError(cmd, err)
			return
		}
		h.deliverAll(emissions, true)

	case models.EvtCallUser:
		h.relayCall(cmd)

	case models.EvtCallAccepted, models.EvtCallRejected, models.EvtCallEnded:
		var in models.CallPayload
		if err := json.Unmarshal(cmd.Data, &in); err != nil {
			h.commandError(cmd, err)
			return
		}
		in.FromUserID = cmd.UserID
		if in.ToUserID == "" {
			return
		}
		h.deliverAll([]models.Emission{
			models.EmitToUser(in.ToUserID, cmd.Event, in),
		}, true)

	default:
		log.Printf("WARN: unknown event %q from user %s", cmd.Event, cmd.UserID)
	}
}

// joinRoom subscribes the connection to a room group after re-checking
// membership against storage.
func (h *Hub) joinRoom(cmd Command, roomID string) {
	if _, err := h.Engine.Authorize(cmd.UserID, roomID); err != nil {
		h.commandError(cmd, err)
		return
	}
	h.Groups.Join(cmd.ConnID, RoomGroup(roomID))
}

// relayCall forwards call signaling without persistence: direct calls target
// one user, group calls the room group minus the caller.
func (h *Hub) relayCall(cmd Command) {
	var in models.CallPayload
	if err := json.Unmarshal(cmd.Data, &in); err != nil {
		h.commandError(cmd, err)
		return
	}
	in.FromUserID = cmd.UserID

	switch {
	case in.ToUserID != "":
		h.deliverAll([]models.Emission{
			models.EmitToUser(in.ToUserID, models.EvtIncomingCall, in),
		}, true)
	case in.ConversationID != "":
		if _, err := h.Engine.Authorize(cmd.UserID, in.ConversationID); err != nil {
			h.commandError(cmd, err)
			return
		}
		h.deliverAll([]models.Emission{
			models.EmitToRoom(in.ConversationID, cmd.UserID, models.EvtIncomingGroupCall, in),
		}, true)
	}
}

// commandError reports a failure back to the acting connection only; it is
// never broadcast.
func (h *Hub) commandError(cmd Command, err error) {
	log.Printf("WARN: %s from user %s failed: %v", cmd.Event, cmd.UserID, err)
	h.deliver(models.EmitToConnection(cmd.ConnID, models.EvtMessageError, models.ErrorPayload{
		Code:    errorCode(err),
		Message: err.Error(),
	}))
}

// deliverAll delivers locally and, when publish is set, forwards the
// emissions to the other instances via Redis (best-effort).
func (h *Hub) deliverAll(emissions []models.Emission, publish bool) {
	for _, em := range emissions {
		h.deliver(em)
		if publish {
			if err := h.Storage.PublishEvent(models.RemoteEvent{Origin: h.instanceID, Emission: em}); err != nil {
				log.Printf("WARN: failed to publish %s event: %v", em.Event, err)
			}
		}
	}
}

// deliver routes one emission to live connections. A registry miss on a
// user target falls back to the user's own broadcast group; an empty group
// means the event is dropped. Notifications are best-effort.
func (h *Hub) deliver(em models.Emission) {
	ev := models.ServerEvent{Event: em.Event, Data: em.Payload}

	switch em.Target.Kind {
	case models.ToConnection:
		h.send(em.Target.ConnectionID, ev)

	case models.ToUser:
		if connID, ok := h.Registry.Lookup(em.Target.UserID); ok {
			if h.send(connID, ev) {
				return
			}
		}
		// Registry miss or stale entry: fall back to the user group that
		// every connection joins at registration.
		members := h.Groups.Members(UserGroup(em.Target.UserID))
		if len(members) == 0 {
			log.Printf("INFO: dropping %s for offline user %s", em.Event, em.Target.UserID)
			return
		}
		for _, connID := range members {
			h.send(connID, ev)
		}

	case models.ToRoom:
		for _, connID := range h.Groups.Members(RoomGroup(em.Target.RoomID)) {
			if h.excluded(connID, em.Target.ExcludeUserID) {
				continue
			}
			h.send(connID, ev)
		}

	case models.ToAll:
		for connID := range h.clients {
			if h.excluded(connID, em.Target.ExcludeUserID) {
				continue
			}
			h.send(connID, ev)
		}
	}
}

func (h *Hub) excluded(connID, excludeUserID string) bool {
	if excludeUserID == "" {
		return false
	}
	userID, ok := h.Registry.LookupUser(connID)
	return ok && userID == excludeUserID
}

// send writes to a client's send channel without blocking the hub loop; a
// full buffer means the event is dropped for that connection.
func (h *Hub) send(connID string, ev models.ServerEvent) bool {
	c, ok := h.clients[connID]
	if !ok {
		return false
	}
	select {
	case c.GetSendChannel() <- ev:
		return true
	default:
		log.Printf("WARN: send buffer full for connection %s, dropping %s", connID, ev.Event)
		return false
	}
}
