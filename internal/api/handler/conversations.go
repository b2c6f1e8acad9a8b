package handler

import (
	"net/http"

	"campuslink/backend/internal/chathub"

	"github.com/gin-gonic/gin"
)

// REST fallback for clients without a live socket. Every mutation routes its
// fan-out through the hub so connected clients still see it in realtime.

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// ListConversations returns the caller's rooms, most recently active first.
func (h *Handler) ListConversations(c *gin.Context) {
	convs, err := h.Storage.GetConversationsForUser(currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

type directRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// CreateDirectConversation returns the direct room with another user,
// creating it on first contact.
func (h *Handler) CreateDirectConversation(c *gin.Context) {
	var req directRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conv, emissions, err := h.Engine.EnsureDirectRoom(currentUser(c), req.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.Hub.Deliver(emissions)
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// GetMessages returns the room history with per-viewer read flags.
func (h *Handler) GetMessages(c *gin.Context) {
	msgs, err := h.Engine.History(currentUser(c), c.Param("roomId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type sendRequest struct {
	Content string `json:"content"`
	Type    string `json:"messageType"`
	FileURL string `json:"fileUrl"`
}

// SendMessage is the socketless send path. It shares the engine (and
// therefore the persistence path) with send_message, so a follow-up read
// sees the message either way. The room comes from the path, not the body.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in := chathub.SendMessageInput{
		ConversationID: c.Param("roomId"),
		Content:        req.Content,
		Type:           req.Type,
		FileURL:        req.FileURL,
	}

	emissions, payload, err := h.Engine.SendMessage(currentUser(c), in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.Hub.Deliver(emissions)
	c.JSON(http.StatusCreated, gin.H{"message": payload})
}

// ClearConversation wipes the history of a room the caller belongs to.
func (h *Handler) ClearConversation(c *gin.Context) {
	emissions, err := h.Engine.ClearConversation(currentUser(c), c.Param("roomId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.Hub.Deliver(emissions)
	c.Status(http.StatusNoContent)
}

// DeleteMessage soft-deletes one of the caller's own messages.
func (h *Handler) DeleteMessage(c *gin.Context) {
	emissions, err := h.Engine.DeleteMessage(currentUser(c), c.Param("messageId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.Hub.Deliver(emissions)
	c.Status(http.StatusNoContent)
}

// OnlineUsers is the polling-friendly presence snapshot: each friend with
// their chat-page status and durable last-seen.
func (h *Handler) OnlineUsers(c *gin.Context) {
	friends, err := h.Engine.FriendsPresence(currentUser(c), h.Hub.Presence)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// CreateGroup creates a group room with the caller as first admin.
func (h *Handler) CreateGroup(c *gin.Context) {
	var in chathub.CreateGroupInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conv, emissions, err := h.Engine.CreateGroup(currentUser(c), in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.Hub.Deliver(emissions)
	c.JSON(http.StatusCreated, gin.H{"conversation": conv})
}

type joinRequest struct {
	Code string `json:"code" binding:"required"`
}

// JoinGroup adds the caller to a group via its join code.
func (h *Handler) JoinGroup(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conv, emissions, err := h.Engine.JoinByCode(currentUser(c), req.Code)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.Hub.Deliver(emissions)
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

type memberRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// AddMember lets an admin add a user to a group.
func (h *Handler) AddMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	emissions, err := h.Engine.AddMember(currentUser(c), c.Param("roomId"), req.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.Hub.Deliver(emissions)
	c.Status(http.StatusNoContent)
}

// RemoveMember lets an admin remove a participant. The removed user's live
// connection also leaves the room's broadcast group, since that subscription
// is the access boundary for room fan-out.
func (h *Handler) RemoveMember(c *gin.Context) {
	roomID := c.Param("roomId")
	targetID := c.Param("userId")

	emissions, err := h.Engine.RemoveMember(currentUser(c), roomID, targetID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.Hub.DetachUserFromRoom(targetID, roomID)
	h.Hub.Deliver(emissions)
	c.Status(http.StatusNoContent)
}

// LeaveGroup removes the caller from a group.
func (h *Handler) LeaveGroup(c *gin.Context) {
	roomID := c.Param("roomId")
	userID := currentUser(c)

	emissions, err := h.Engine.LeaveGroup(userID, roomID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.Hub.DetachUserFromRoom(userID, roomID)
	h.Hub.Deliver(emissions)
	c.Status(http.StatusNoContent)
}

// PromoteAdmin grants admin rights to an existing participant.
func (h *Handler) PromoteAdmin(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	emissions, err := h.Engine.PromoteAdmin(currentUser(c), c.Param("roomId"), req.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.Hub.Deliver(emissions)
	c.Status(http.StatusNoContent)
}

type renameRequest struct {
	Name string `json:"name" binding:"required"`
}

// RenameGroup updates the group name.
func (h *Handler) RenameGroup(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	emissions, err := h.Engine.RenameGroup(currentUser(c), c.Param("roomId"), req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.Hub.Deliver(emissions)
	c.Status(http.StatusNoContent)
}

// DeleteGroup hard-deletes a group and its history. Creator only.
func (h *Handler) DeleteGroup(c *gin.Context) {
	emissions, err := h.Engine.DeleteGroup(currentUser(c), c.Param("roomId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.Hub.Deliver(emissions)
	c.Status(http.StatusNoContent)
}
