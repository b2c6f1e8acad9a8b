package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"campuslink/backend/internal/chathub"
	"campuslink/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) FindOrCreateUser(email, name string) (*models.User, error) {
	args := m.Called(email, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) GetUserByID(userID string) (*models.User, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) GetUsersByIDs(userIDs []string) ([]models.User, error) {
	args := m.Called(userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockStorage) UpdateUserLastSeen(userID string, ts time.Time) error {
	args := m.Called(userID, ts)
	return args.Error(0)
}

func (m *MockStorage) GetFriendIDs(userID string) ([]string, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) GetConversationByID(roomID string) (*models.Conversation, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockStorage) GetDirectConversation(userA, userB string) (*models.Conversation, error) {
	args := m.Called(userA, userB)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockStorage) GetConversationByJoinCode(code string) (*models.Conversation, error) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockStorage) GetConversationsForUser(userID string) ([]models.Conversation, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *MockStorage) SaveConversation(conv *models.Conversation) error {
	args := m.Called(conv)
	return args.Error(0)
}

func (m *MockStorage) UpdateConversationLastMessage(roomID, messageID string, ts time.Time) error {
	args := m.Called(roomID, messageID, ts)
	return args.Error(0)
}

func (m *MockStorage) DeleteConversationCascade(roomID string) error {
	args := m.Called(roomID)
	return args.Error(0)
}

func (m *MockStorage) ClearMessages(roomID string) error {
	args := m.Called(roomID)
	return args.Error(0)
}

func (m *MockStorage) CreateMessage(msg *models.Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockStorage) SaveMessage(msg *models.Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockStorage) GetMessageByID(messageID string) (*models.Message, error) {
	args := m.Called(messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockStorage) GetMessagesForRoom(roomID string) ([]models.Message, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) MarkMessagesRead(messageIDs []string, roomID, userID string) error {
	args := m.Called(messageIDs, roomID, userID)
	return args.Error(0)
}

func (m *MockStorage) PublishEvent(ev models.RemoteEvent) error {
	args := m.Called(ev)
	return args.Error(0)
}

func (m *MockStorage) SubscribeEvents() *redis.PubSub {
	args := m.Called()
	return args.Get(0).(*redis.PubSub)
}

func newRestHandler(s *MockStorage) (*Handler, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	engine := chathub.NewEngine(s, 64)
	hub := chathub.NewHub(s, engine)
	go hub.Run()

	h := NewHandler(hub, engine, s, "test-secret", time.Hour, 16)
	r := gin.New()
	h.RegisterRoutes(r)
	return h, r
}

func TestSendMessage_RoomIDComesFromPath(t *testing.T) {
	s := new(MockStorage)
	h, r := newRestHandler(s)

	s.On("PublishEvent", mock.AnythingOfType("models.RemoteEvent")).Return(nil)
	s.On("GetConversationByID", "room_1").Return(&models.Conversation{
		ID:           "room_1",
		Type:         models.ConversationDirect,
		Participants: []string{"user_A", "user_B"},
	}, nil)
	s.On("CreateMessage", mock.AnythingOfType("*models.Message")).
		Run(func(args mock.Arguments) {
			msg := args.Get(0).(*models.Message)
			msg.ID = uuid.New().String()
			msg.CreatedAt = time.Now()
		}).
		Return(nil)
	s.On("UpdateConversationLastMessage",
		mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Return(nil)

	token, err := h.generateToken("user_A")
	require.NoError(t, err)

	// The body carries no conversationId; the path parameter is the room.
	req := httptest.NewRequest(http.MethodPost, "/conversations/room_1/messages",
		strings.NewReader(`{"content":"hello"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Message models.MessagePayload `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "room_1", resp.Message.ConversationID)
	require.Equal(t, "hello", resp.Message.Content)
	require.False(t, resp.Message.IsRead)
}

func TestSendMessage_NotParticipant(t *testing.T) {
	s := new(MockStorage)
	h, r := newRestHandler(s)

	s.On("GetConversationByID", "room_1").Return(&models.Conversation{
		ID:           "room_1",
		Type:         models.ConversationDirect,
		Participants: []string{"user_A", "user_B"},
	}, nil)

	token, err := h.generateToken("user_C")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/conversations/room_1/messages",
		strings.NewReader(`{"content":"hello"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
	s.AssertNotCalled(t, "CreateMessage", mock.Anything)
}
