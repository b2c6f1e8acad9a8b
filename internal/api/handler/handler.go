package handler

import (
	"errors"
	"net/http"
	"time"

	"campuslink/backend/internal/chathub"
	"campuslink/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Handler bundles the dependencies the HTTP surface needs.
type Handler struct {
	Hub     *chathub.Hub
	Engine  *chathub.Engine
	Storage storage.Storage

	JWTSecret      []byte
	TokenTTL       time.Duration
	SendBufferSize int
}

func NewHandler(hub *chathub.Hub, engine *chathub.Engine, s storage.Storage, jwtSecret string, tokenTTL time.Duration, sendBufferSize int) *Handler {
	return &Handler{
		Hub:            hub,
		Engine:         engine,
		Storage:        s,
		JWTSecret:      []byte(jwtSecret),
		TokenTTL:       tokenTTL,
		SendBufferSize: sendBufferSize,
	}
}

// RegisterRoutes wires the REST fallback and the websocket upgrade. The REST
// endpoints mirror the socket operations for clients without an open
// realtime connection.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/login", h.Login)
	r.GET("/ws", h.ServeWebSocket)

	authed := r.Group("/", h.AuthMiddleware())
	{
		authed.GET("/conversations", h.ListConversations)
		authed.POST("/conversations/direct", h.CreateDirectConversation)
		authed.GET("/conversations/:roomId/messages", h.GetMessages)
		authed.POST("/conversations/:roomId/messages", h.SendMessage)
		authed.DELETE("/conversations/:roomId/messages", h.ClearConversation)
		authed.DELETE("/messages/:messageId", h.DeleteMessage)
		authed.GET("/online-users", h.OnlineUsers)

		authed.POST("/groups", h.CreateGroup)
		authed.POST("/groups/join", h.JoinGroup)
		authed.POST("/groups/:roomId/members", h.AddMember)
		authed.DELETE("/groups/:roomId/members/:userId", h.RemoveMember)
		authed.POST("/groups/:roomId/leave", h.LeaveGroup)
		authed.POST("/groups/:roomId/admins", h.PromoteAdmin)
		authed.PATCH("/groups/:roomId", h.RenameGroup)
		authed.DELETE("/groups/:roomId", h.DeleteGroup)
	}
}

// abortWithError maps domain sentinels onto HTTP statuses.
func abortWithError(c *gin.Context, err error) {
	var vErrs validator.ValidationErrors
	switch {
	case errors.Is(err, chathub.ErrRoomNotFound), errors.Is(err, chathub.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, chathub.ErrNotParticipant),
		errors.Is(err, chathub.ErrNotSender),
		errors.Is(err, chathub.ErrNotAdmin),
		errors.Is(err, chathub.ErrNotCreator):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, chathub.ErrNotGroup),
		errors.Is(err, chathub.ErrGroupFull),
		errors.Is(err, chathub.ErrAlreadyMember),
		errors.As(err, &vErrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chathub.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
