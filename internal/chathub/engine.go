package chathub

import (
	"log"
	"time"

	"campuslink/backend/internal/models"
	"campuslink/backend/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Engine executes validated realtime commands against storage and computes
// the emissions the transport must deliver. It holds no connection state of
// its own, which keeps every fan-out rule unit-testable without a socket.
type Engine struct {
	Storage         storage.Storage
	MaxGroupMembers int

	validate *validator.Validate
}

func NewEngine(s storage.Storage, maxGroupMembers int) *Engine {
	return &Engine{
		Storage:         s,
		MaxGroupMembers: maxGroupMembers,
		validate:        validator.New(),
	}
}

// Authorize reloads the room and checks membership. It runs on every
// room-scoped operation; membership is never trusted from a prior check,
// because participants can change between actions.
func (e *Engine) Authorize(userID, roomID string) (*models.Conversation, error) {
	conv, err := e.Storage.GetConversationByID(roomID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrRoomNotFound
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

// SendMessageInput is the payload of send_message and the REST send body.
type SendMessageInput struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Content        string `json:"content" validate:"required_without=FileURL,max=4000"`
	Type           string `json:"messageType" validate:"omitempty,oneof=text image file"`
	FileURL        string `json:"fileUrl" validate:"omitempty,url"`
}

// SendMessage persists a message and fans it out to the room group. The
// outbound copy always carries isRead:false, for the sender's own echo too;
// the sender additionally gets a message_sent ack with the new id.
func (e *Engine) SendMessage(userID string, in SendMessageInput) ([]models.Emission, *models.MessagePayload, error) {
	if err := e.validate.Struct(in); err != nil {
		return nil, nil, err
	}
	conv, err := e.Authorize(userID, in.ConversationID)
	if err != nil {
		return nil, nil, err
	}

	msgType := in.Type
	if msgType == "" {
		msgType = models.MessageText
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       &userID,
		Content:        in.Content,
		Type:           msgType,
		FileURL:        in.FileURL,
		ReadBy:         []string{},
	}
	if err := e.Storage.CreateMessage(msg); err != nil {
		return nil, nil, err
	}
	if err := e.Storage.UpdateConversationLastMessage(conv.ID, msg.ID, msg.CreatedAt); err != nil {
		return nil, nil, err
	}

	payload := messagePayload(msg, false)
	emissions := []models.Emission{
		models.EmitToRoom(conv.ID, "", models.EvtMessageReceived, payload),
		models.EmitToUser(userID, models.EvtMessageSent, payload),
	}
	return emissions, &payload, nil
}

// MarkRead records read receipts. Malformed ids (anything that is not a
// UUID) are silently dropped rather than errored. Direct rooms notify the
// single peer via targeted emission; group rooms broadcast to everyone but
// the reader.
func (e *Engine) MarkRead(userID, roomID string, messageIDs []string) ([]models.Emission, error) {
	conv, err := e.Authorize(userID, roomID)
	if err != nil {
		return nil, err
	}

	valid := lo.Filter(messageIDs, func(id string, _ int) bool {
		_, parseErr := uuid.Parse(id)
		return parseErr == nil
	})
	if len(valid) == 0 {
		return nil, nil
	}

	if err := e.Storage.MarkMessagesRead(valid, conv.ID, userID); err != nil {
		return nil, err
	}

	receipt := models.ReadReceiptPayload{
		ConversationID: conv.ID,
		ReaderID:       userID,
		MessageIDs:     valid,
	}
	if conv.IsGroup() {
		return []models.Emission{
			models.EmitToRoom(conv.ID, userID, models.EvtMessagesRead, receipt),
		}, nil
	}
	// Direct room: only the other party's read view matters.
	other := conv.OtherParticipant(userID)
	if other == "" {
		return nil, nil
	}
	return []models.Emission{
		models.EmitToUser(other, models.EvtMessagesRead, receipt),
	}, nil
}

// DeleteMessage soft-deletes one of the caller's own messages and announces
// the deletion to the room group.
func (e *Engine) DeleteMessage(userID, messageID string) ([]models.Emission, error) {
	msg, err := e.Storage.GetMessageByID(messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.Deleted {
		return nil, ErrMessageNotFound
	}
	if msg.SenderID == nil || *msg.SenderID != userID {
		return nil, ErrNotSender
	}

	now := time.Now()
	msg.Deleted = true
	msg.DeletedAt = &now
	if err := e.Storage.SaveMessage(msg); err != nil {
		return nil, err
	}

	return []models.Emission{
		models.EmitToRoom(msg.ConversationID, "", models.EvtMessageDeleted, map[string]string{
			"conversationId": msg.ConversationID,
			"messageId":      msg.ID,
		}),
	}, nil
}

// Typing relays typing indicators to the rest of the room.
func (e *Engine) Typing(userID, roomID string, started bool) ([]models.Emission, error) {
	conv, err := e.Authorize(userID, roomID)
	if err != nil {
		return nil, err
	}
	event := models.EvtUserTyping
	if !started {
		event = models.EvtUserStoppedTyping
	}
	return []models.Emission{
		models.EmitToRoom(conv.ID, userID, event, models.TypingPayload{
			ConversationID: conv.ID,
			UserID:         userID,
		}),
	}, nil
}

// History returns the room's messages with the per-viewer read flag
// resolved. Direct rooms flip the perspective by authorship: the requester's
// own messages are read once the peer acknowledged them, the peer's once the
// requester did. Group rooms always answer relative to the requester.
// System messages are read by construction.
func (e *Engine) History(userID, roomID string) ([]models.MessagePayload, error) {
	conv, err := e.Authorize(userID, roomID)
	if err != nil {
		return nil, err
	}
	msgs, err := e.Storage.GetMessagesForRoom(conv.ID)
	if err != nil {
		return nil, err
	}

	out := make([]models.MessagePayload, 0, len(msgs))
	for i := range msgs {
		out = append(out, messagePayload(&msgs[i], readFlagFor(conv, &msgs[i], userID)))
	}
	return out, nil
}

func readFlagFor(conv *models.Conversation, msg *models.Message, viewerID string) bool {
	if msg.IsSystem() {
		return true
	}
	if conv.IsGroup() {
		return msg.ReadByUser(viewerID)
	}
	if msg.SenderID != nil && *msg.SenderID == viewerID {
		return msg.ReadByUser(conv.OtherParticipant(viewerID))
	}
	return msg.ReadByUser(viewerID)
}

// FriendsPresence builds the polling snapshot for /online-users: each friend
// with chat-page presence and durable last-seen.
func (e *Engine) FriendsPresence(userID string, presence *PresenceTracker) ([]models.FriendPresence, error) {
	friendIDs, err := e.Storage.GetFriendIDs(userID)
	if err != nil {
		return nil, err
	}
	friends, err := e.Storage.GetUsersByIDs(friendIDs)
	if err != nil {
		return nil, err
	}

	out := make([]models.FriendPresence, 0, len(friends))
	for _, f := range friends {
		out = append(out, models.FriendPresence{
			UserID:     f.ID,
			Name:       f.Name,
			OnChatPage: presence.OnPage(f.ID),
			LastSeen:   f.LastSeen,
		})
	}
	return out, nil
}

// userName resolves a display name for system-message rendering, falling
// back to the raw id when the lookup fails (best-effort).
func (e *Engine) userName(userID string) string {
	user, err := e.Storage.GetUserByID(userID)
	if err != nil || user == nil {
		log.Printf("WARN: could not resolve name for user %s", userID)
		return userID
	}
	return user.Name
}

func messagePayload(msg *models.Message, isRead bool) models.MessagePayload {
	return models.MessagePayload{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Type:           msg.Type,
		FileURL:        msg.FileURL,
		IsRead:         isRead,
		CreatedAt:      msg.CreatedAt,
	}
}
