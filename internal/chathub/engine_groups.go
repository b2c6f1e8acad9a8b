package chathub

import (
	"fmt"
	"time"

	"campuslink/backend/internal/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Room lifecycle and group membership operations. Every membership mutation
// persists the participant/admin update, synthesizes a system message
// announcing the change, bumps the room's last-message pointer and emits both
// the structured event and the rendered system message to the room group.

// EnsureDirectRoom returns the direct room between two users, creating it on
// first contact.
func (e *Engine) EnsureDirectRoom(userID, otherID string) (*models.Conversation, []models.Emission, error) {
	if otherID == "" || otherID == userID {
		return nil, nil, ErrRoomNotFound
	}
	conv, err := e.Storage.GetDirectConversation(userID, otherID)
	if err != nil {
		return nil, nil, err
	}
	if conv != nil {
		return conv, nil, nil
	}

	conv = &models.Conversation{
		Type:          models.ConversationDirect,
		Participants:  []string{userID, otherID},
		CreatedBy:     userID,
		LastMessageAt: time.Now(),
	}
	if err := e.Storage.SaveConversation(conv); err != nil {
		return nil, nil, err
	}

	payload := roomPayload(conv)
	emissions := []models.Emission{
		models.EmitToUser(userID, models.EvtChannelCreated, payload),
		models.EmitToUser(otherID, models.EvtChannelCreated, payload),
	}
	return conv, emissions, nil
}

// CreateGroupInput is the payload for group creation.
type CreateGroupInput struct {
	Name      string   `json:"name" binding:"required" validate:"required,max=120"`
	MemberIDs []string `json:"memberIds" validate:"max=256"`
}

// CreateGroup creates a group room with the creator as its first admin and
// notifies every initial participant.
func (e *Engine) CreateGroup(userID string, in CreateGroupInput) (*models.Conversation, []models.Emission, error) {
	if err := e.validate.Struct(in); err != nil {
		return nil, nil, err
	}

	participants := lo.Uniq(append([]string{userID}, in.MemberIDs...))
	if len(participants) > e.MaxGroupMembers {
		return nil, nil, ErrGroupFull
	}

	conv := &models.Conversation{
		Type:          models.ConversationGroup,
		Name:          in.Name,
		Participants:  participants,
		Admins:        []string{userID},
		CreatedBy:     userID,
		JoinCode:      uuid.New().String()[:8],
		LastMessageAt: time.Now(),
	}
	if err := e.Storage.SaveConversation(conv); err != nil {
		return nil, nil, err
	}

	sysEmissions, err := e.announce(conv, fmt.Sprintf("%s created the group", e.userName(userID)))
	if err != nil {
		return nil, nil, err
	}

	payload := roomPayload(conv)
	emissions := make([]models.Emission, 0, len(participants)+len(sysEmissions))
	for _, p := range participants {
		emissions = append(emissions, models.EmitToUser(p, models.EvtChannelCreated, payload))
	}
	emissions = append(emissions, sysEmissions...)
	return conv, emissions, nil
}

// JoinByCode adds the caller to the group behind a join link. Joining a
// group the caller already belongs to is a no-op.
func (e *Engine) JoinByCode(userID, code string) (*models.Conversation, []models.Emission, error) {
	conv, err := e.Storage.GetConversationByJoinCode(code)
	if err != nil {
		return nil, nil, err
	}
	if conv == nil {
		return nil, nil, ErrRoomNotFound
	}
	if conv.HasParticipant(userID) {
		return conv, nil, nil
	}
	if len(conv.Participants) >= e.MaxGroupMembers {
		return nil, nil, ErrGroupFull
	}

	conv.Participants = append(conv.Participants, userID)
	if err := e.Storage.SaveConversation(conv); err != nil {
		return nil, nil, err
	}

	emissions, err := e.membershipEmissions(conv, models.EvtMemberJoined,
		models.MembershipPayload{ConversationID: conv.ID, UserID: userID},
		fmt.Sprintf("%s joined the group", e.userName(userID)))
	return conv, emissions, err
}

// AddMember lets an admin add a user to a group.
func (e *Engine) AddMember(actorID, roomID, newUserID string) ([]models.Emission, error) {
	conv, err := e.authorizeGroupAdmin(actorID, roomID)
	if err != nil {
		return nil, err
	}
	if conv.HasParticipant(newUserID) {
		return nil, ErrAlreadyMember
	}
	if len(conv.Participants) >= e.MaxGroupMembers {
		return nil, ErrGroupFull
	}

	conv.Participants = append(conv.Participants, newUserID)
	if err := e.Storage.SaveConversation(conv); err != nil {
		return nil, err
	}

	emissions, err := e.membershipEmissions(conv, models.EvtMemberJoined,
		models.MembershipPayload{ConversationID: conv.ID, UserID: newUserID, ActorID: actorID},
		fmt.Sprintf("%s was added to the group", e.userName(newUserID)))
	if err != nil {
		return nil, err
	}
	// The new member is not in the room group yet; tell them directly.
	emissions = append(emissions, models.EmitToUser(newUserID, models.EvtChannelCreated, roomPayload(conv)))
	return emissions, nil
}

// RemoveMember lets an admin remove a participant. The user is stripped from
// both the participant and admin lists in a single persisted update, so
// nobody stays admin of a room they are not in.
func (e *Engine) RemoveMember(actorID, roomID, targetID string) ([]models.Emission, error) {
	conv, err := e.authorizeGroupAdmin(actorID, roomID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(targetID) {
		return nil, ErrNotParticipant
	}

	stripMember(conv, targetID)
	if err := e.Storage.SaveConversation(conv); err != nil {
		return nil, err
	}

	emissions, err := e.membershipEmissions(conv, models.EvtMemberRemoved,
		models.MembershipPayload{ConversationID: conv.ID, UserID: targetID, ActorID: actorID},
		fmt.Sprintf("%s was removed from the group", e.userName(targetID)))
	if err != nil {
		return nil, err
	}
	// Removed users no longer receive room broadcasts once their connection
	// leaves the group, but they should still learn about the removal.
	emissions = append(emissions, models.EmitToUser(targetID, models.EvtMemberRemoved,
		models.MembershipPayload{ConversationID: conv.ID, UserID: targetID, ActorID: actorID}))
	return emissions, nil
}

// LeaveGroup removes the caller from the group, stripping admin rights in
// the same update.
func (e *Engine) LeaveGroup(userID, roomID string) ([]models.Emission, error) {
	conv, err := e.Authorize(userID, roomID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup() {
		return nil, ErrNotGroup
	}

	stripMember(conv, userID)
	if err := e.Storage.SaveConversation(conv); err != nil {
		return nil, err
	}

	return e.membershipEmissions(conv, models.EvtMemberLeft,
		models.MembershipPayload{ConversationID: conv.ID, UserID: userID},
		fmt.Sprintf("%s left the group", e.userName(userID)))
}

// PromoteAdmin grants admin rights to an existing participant.
func (e *Engine) PromoteAdmin(actorID, roomID, targetID string) ([]models.Emission, error) {
	conv, err := e.authorizeGroupAdmin(actorID, roomID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(targetID) {
		return nil, ErrNotParticipant
	}
	if conv.HasAdmin(targetID) {
		return nil, nil
	}

	conv.Admins = append(conv.Admins, targetID)
	if err := e.Storage.SaveConversation(conv); err != nil {
		return nil, err
	}

	return e.membershipEmissions(conv, models.EvtAdminAdded,
		models.MembershipPayload{ConversationID: conv.ID, UserID: targetID, ActorID: actorID},
		fmt.Sprintf("%s is now an admin", e.userName(targetID)))
}

// RenameGroup updates the group name.
func (e *Engine) RenameGroup(actorID, roomID, name string) ([]models.Emission, error) {
	conv, err := e.authorizeGroupAdmin(actorID, roomID)
	if err != nil {
		return nil, err
	}
	conv.Name = name
	if err := e.Storage.SaveConversation(conv); err != nil {
		return nil, err
	}
	return []models.Emission{
		models.EmitToRoom(conv.ID, "", models.EvtRoomUpdated, roomPayload(conv)),
	}, nil
}

// DeleteGroup hard-deletes a group and its history. Creator only. Direct
// rooms are never deleted.
func (e *Engine) DeleteGroup(actorID, roomID string) ([]models.Emission, error) {
	conv, err := e.Authorize(actorID, roomID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup() {
		return nil, ErrNotGroup
	}
	if conv.CreatedBy != actorID {
		return nil, ErrNotCreator
	}

	// Emissions target the room group, which still holds the members'
	// connections until they process the deletion.
	payload := roomPayload(conv)
	emissions := []models.Emission{
		models.EmitToRoom(conv.ID, "", models.EvtRoomDeleted, payload),
		models.EmitToRoom(conv.ID, "", models.EvtChannelDeleted, payload),
	}
	if err := e.Storage.DeleteConversationCascade(conv.ID); err != nil {
		return nil, err
	}
	return emissions, nil
}

// ClearConversation wipes the message history of a room the caller belongs
// to, keeping the room.
func (e *Engine) ClearConversation(userID, roomID string) ([]models.Emission, error) {
	conv, err := e.Authorize(userID, roomID)
	if err != nil {
		return nil, err
	}
	if err := e.Storage.ClearMessages(conv.ID); err != nil {
		return nil, err
	}
	return []models.Emission{
		models.EmitToRoom(conv.ID, "", models.EvtChatCleared, map[string]string{
			"conversationId": conv.ID,
			"clearedBy":      userID,
		}),
	}, nil
}

// authorizeGroupAdmin loads the room and checks the actor is a participant
// with admin rights in a group room.
func (e *Engine) authorizeGroupAdmin(actorID, roomID string) (*models.Conversation, error) {
	conv, err := e.Authorize(actorID, roomID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup() {
		return nil, ErrNotGroup
	}
	if !conv.HasAdmin(actorID) && conv.CreatedBy != actorID {
		return nil, ErrNotAdmin
	}
	return conv, nil
}

// announce persists a system message (nil sender, read by construction),
// bumps the last-message pointer and returns its room broadcast.
func (e *Engine) announce(conv *models.Conversation, text string) ([]models.Emission, error) {
	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       nil,
		Content:        text,
		Type:           models.MessageSystem,
		ReadBy:         []string{},
	}
	if err := e.Storage.CreateMessage(msg); err != nil {
		return nil, err
	}
	if err := e.Storage.UpdateConversationLastMessage(conv.ID, msg.ID, msg.CreatedAt); err != nil {
		return nil, err
	}
	return []models.Emission{
		models.EmitToRoom(conv.ID, "", models.EvtMessageReceived, messagePayload(msg, true)),
	}, nil
}

// membershipEmissions bundles the structured membership event with the
// rendered system message for one mutation.
func (e *Engine) membershipEmissions(conv *models.Conversation, event string, payload models.MembershipPayload, text string) ([]models.Emission, error) {
	sys, err := e.announce(conv, text)
	if err != nil {
		return nil, err
	}
	out := []models.Emission{models.EmitToRoom(conv.ID, "", event, payload)}
	return append(out, sys...), nil
}

// stripMember drops a user from participants and admins together so the two
// lists cannot diverge.
func stripMember(conv *models.Conversation, userID string) {
	conv.Participants = lo.Filter(conv.Participants, func(id string, _ int) bool { return id != userID })
	conv.Admins = lo.Filter(conv.Admins, func(id string, _ int) bool { return id != userID })
}

func roomPayload(conv *models.Conversation) models.RoomPayload {
	return models.RoomPayload{
		ConversationID: conv.ID,
		Type:           conv.Type,
		Name:           conv.Name,
		Participants:   conv.Participants,
	}
}
