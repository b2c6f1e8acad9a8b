package models

import (
	"encoding/json"
	"time"
)

// Inbound event names (client -> server).
const (
	EvtJoinChannel   = "join_channel"
	EvtLeaveChannel  = "leave_channel"
	EvtJoinGroup     = "join_group"
	EvtLeaveGroup    = "leave_group"
	EvtJoinRooms     = "join_rooms"
	EvtJoinRoom      = "join_room"
	EvtLeaveRoom     = "leave_room"
	EvtChatPageEnter = "chat_page_enter"
	EvtChatPageLeave = "chat_page_leave"
	EvtTypingStart   = "typing_start"
	EvtTypingStop    = "typing_stop"
	EvtSendMessage   = "send_message"
	EvtMarkRead      = "mark_read"
	EvtCallUser      = "call_user"
	EvtCallAccepted  = "call_accepted"
	EvtCallRejected  = "call_rejected"
	EvtCallEnded     = "call_ended"
)

// Outbound event names (server -> client).
const (
	EvtMessageReceived   = "message_received"
	EvtMessageSent       = "message_sent"
	EvtMessageError      = "message_error"
	EvtMessagesRead      = "messages_read"
	EvtMessageDeleted    = "message_deleted"
	EvtUserTyping        = "user_typing"
	EvtUserStoppedTyping = "user_stopped_typing"
	EvtUserOnline        = "user_online"
	EvtUserOffline       = "user_offline"
	EvtUserOnChatPage    = "user_on_chat_page"
	EvtUserLeftChatPage  = "user_left_chat_page"
	EvtIncomingCall      = "incoming_call"
	EvtIncomingGroupCall = "incoming_group_call"
	EvtMemberJoined      = "member_joined"
	EvtMemberRemoved     = "member_removed"
	EvtMemberLeft        = "member_left"
	EvtAdminAdded        = "admin_added"
	EvtChannelCreated    = "channel_created"
	EvtChannelDeleted    = "channel_deleted"
	EvtRoomUpdated       = "room_updated"
	EvtRoomDeleted       = "room_deleted"
	EvtChatCleared       = "chat_cleared"
)

// ClientEvent is the frame read off a websocket connection.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerEvent is the frame written to a websocket connection.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// TargetKind selects how an Emission is routed.
type TargetKind string

const (
	// ToConnection delivers to one specific connection.
	ToConnection TargetKind = "connection"
	// ToUser delivers via the registry, falling back to the user's own
	// broadcast group when the registry misses.
	ToUser TargetKind = "user"
	// ToRoom delivers to every connection joined to the room group.
	ToRoom TargetKind = "room"
	// ToAll delivers to every live connection.
	ToAll TargetKind = "broadcast"
)

// Target addresses one Emission.
type Target struct {
	Kind         TargetKind `json:"kind"`
	ConnectionID string     `json:"connectionId,omitempty"`
	UserID       string     `json:"userId,omitempty"`
	RoomID       string     `json:"roomId,omitempty"`
	// ExcludeUserID suppresses delivery to that user's connections within a
	// room or broadcast target.
	ExcludeUserID string `json:"excludeUserId,omitempty"`
}

// Emission is one (target, event, payload) delivery instruction produced by
// the domain layer and executed by the transport. Keeping the domain side as
// plain values makes fan-out logic testable without a live connection.
type Emission struct {
	Target  Target `json:"target"`
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Helpers for the common target shapes.

func EmitToConnection(connID, event string, payload any) Emission {
	return Emission{Target: Target{Kind: ToConnection, ConnectionID: connID}, Event: event, Payload: payload}
}

func EmitToUser(userID, event string, payload any) Emission {
	return Emission{Target: Target{Kind: ToUser, UserID: userID}, Event: event, Payload: payload}
}

func EmitToRoom(roomID, excludeUserID, event string, payload any) Emission {
	return Emission{Target: Target{Kind: ToRoom, RoomID: roomID, ExcludeUserID: excludeUserID}, Event: event, Payload: payload}
}

func EmitToAll(excludeUserID, event string, payload any) Emission {
	return Emission{Target: Target{Kind: ToAll, ExcludeUserID: excludeUserID}, Event: event, Payload: payload}
}

// RemoteEvent is the envelope published on the Redis event channel so other
// instances can deliver an Emission to their own connections. Origin lets an
// instance skip events it published itself.
type RemoteEvent struct {
	Origin   string   `json:"origin"`
	Emission Emission `json:"emission"`
}

// MessagePayload is the wire form of a message, with the per-viewer IsRead
// flag resolved.
type MessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       *string   `json:"senderId,omitempty"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	FileURL        string    `json:"fileUrl,omitempty"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ReadReceiptPayload announces that ReaderID has read MessageIDs in a room.
type ReadReceiptPayload struct {
	ConversationID string   `json:"conversationId"`
	ReaderID       string   `json:"readerId"`
	MessageIDs     []string `json:"messageIds"`
}

// PresencePayload carries a single user id for online/offline and
// chat-page events.
type PresencePayload struct {
	UserID string `json:"userId"`
}

// TypingPayload identifies who is typing where.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// MembershipPayload describes a group membership change.
type MembershipPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	// ActorID is the user who performed the change, when different.
	ActorID string `json:"actorId,omitempty"`
}

// RoomPayload carries a room snapshot for created/updated/deleted events.
type RoomPayload struct {
	ConversationID string   `json:"conversationId"`
	Type           string   `json:"type,omitempty"`
	Name           string   `json:"name,omitempty"`
	Participants   []string `json:"participants,omitempty"`
}

// CallPayload is relayed between call parties without persistence. Signal is
// an opaque blob owned by the clients (SDP offers and the like).
type CallPayload struct {
	ConversationID string          `json:"conversationId,omitempty"`
	FromUserID     string          `json:"fromUserId"`
	ToUserID       string          `json:"toUserId,omitempty"`
	CallType       string          `json:"callType,omitempty"`
	Signal         json.RawMessage `json:"signal,omitempty"`
}

// ErrorPayload is sent back to the acting connection only.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
