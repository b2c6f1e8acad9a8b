package storage

import (
	"context"
	"errors"
	"log"
	"time"

	"campuslink/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Storage is the persistence collaborator consumed by the realtime core.
// Rooms and messages are owned here; the core keeps no server-side cache and
// re-reads current state for every authorization check.
type Storage interface {
	// Users
	FindOrCreateUser(email, name string) (*models.User, error)
	GetUserByID(userID string) (*models.User, error)
	GetUsersByIDs(userIDs []string) ([]models.User, error)
	UpdateUserLastSeen(userID string, ts time.Time) error
	GetFriendIDs(userID string) ([]string, error)

	// Conversations
	GetConversationByID(roomID string) (*models.Conversation, error)
	GetDirectConversation(userA, userB string) (*models.Conversation, error)
	GetConversationByJoinCode(code string) (*models.Conversation, error)
	GetConversationsForUser(userID string) ([]models.Conversation, error)
	SaveConversation(conv *models.Conversation) error
	UpdateConversationLastMessage(roomID, messageID string, ts time.Time) error
	DeleteConversationCascade(roomID string) error
	ClearMessages(roomID string) error

	// Messages
	CreateMessage(msg *models.Message) error
	SaveMessage(msg *models.Message) error
	GetMessageByID(messageID string) (*models.Message, error)
	GetMessagesForRoom(roomID string) ([]models.Message, error)
	MarkMessagesRead(messageIDs []string, roomID, userID string) error

	// Cross-instance event fan-out
	PublishEvent(ev models.RemoteEvent) error
	SubscribeEvents() *redis.PubSub
}

// Service implements Storage on PostgreSQL (GORM) plus Redis pub/sub.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// FindOrCreateUser looks a user up by email, creating the row on first
// contact.
func (s *Service) FindOrCreateUser(email, name string) (*models.User, error) {
	var user models.User
	defaults := models.User{Email: email, Name: name}

	result := s.DB.Where("email = ?", email).FirstOrCreate(&user, defaults)
	if result.Error != nil {
		log.Printf("ERROR: failed to find or create user %s: %v", email, result.Error)
		return nil, result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("INFO: new user %s created (id %s)", email, user.ID)
	}
	return &user, nil
}

func (s *Service) GetUserByID(userID string) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) GetUsersByIDs(userIDs []string) ([]models.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := s.DB.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUserLastSeen is best-effort: callers log and swallow failures.
func (s *Service) UpdateUserLastSeen(userID string, ts time.Time) error {
	return s.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_seen", ts).Error
}

// GetFriendIDs returns the accepted friend ids for userID.
func (s *Service) GetFriendIDs(userID string) ([]string, error) {
	var ids []string
	if err := s.DB.Model(&models.Friendship{}).
		Where("user_id = ?", userID).
		Pluck("friend_id", &ids).Error; err != nil {
		log.Printf("ERROR: failed to load friend ids for %s: %v", userID, err)
		return nil, err
	}
	return ids, nil
}
