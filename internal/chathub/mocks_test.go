package chathub_test

import (
	"time"

	"campuslink/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
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

// MockClient is a channel-backed Client for hub tests.
type MockClient struct {
	connID      string
	userID      string
	RecvChannel chan models.ServerEvent
}

func newMockClient(connID, userID string) *MockClient {
	return &MockClient{
		connID:      connID,
		userID:      userID,
		RecvChannel: make(chan models.ServerEvent, 64),
	}
}

func (c *MockClient) GetConnID() string { return c.connID }
func (c *MockClient) GetUserID() string { return c.userID }

func (c *MockClient) GetSendChannel() chan<- models.ServerEvent {
	return c.RecvChannel
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	// Not needed for testing
}

// drainEvents empties the client's receive channel and counts events by name.
func drainEvents(c *MockClient) map[string]int {
	counts := make(map[string]int)
	for {
		select {
		case ev := <-c.RecvChannel:
			counts[ev.Event]++
		default:
			return counts
		}
	}
}
