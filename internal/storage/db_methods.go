package storage

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"campuslink/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// eventsChannel is the Redis pub/sub channel shared by all instances.
const eventsChannel = "realtime:events"

func (s *Service) GetConversationByID(roomID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.First(&conv, "id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Printf("ERROR: failed to load conversation %s: %v", roomID, err)
		return nil, err
	}
	return &conv, nil
}

// GetDirectConversation finds the direct room between two users regardless
// of participant order.
func (s *Service) GetDirectConversation(userA, userB string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.
		Where("type = ?", models.ConversationDirect).
		Where("participants @> ARRAY[?, ?]::text[]", userA, userB).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *Service) GetConversationByJoinCode(code string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.
		Where("type = ? AND join_code = ?", models.ConversationGroup, code).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetConversationsForUser lists the rooms userID participates in, most
// recently active first.
func (s *Service) GetConversationsForUser(userID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := s.DB.
		Where("participants @> ARRAY[?]::text[]", userID).
		Order("last_message_at DESC").
		Find(&convs).Error
	if err != nil {
		log.Printf("ERROR: failed to list conversations for %s: %v", userID, err)
		return nil, err
	}
	return convs, nil
}

func (s *Service) SaveConversation(conv *models.Conversation) error {
	return s.DB.Save(conv).Error
}

func (s *Service) UpdateConversationLastMessage(roomID, messageID string, ts time.Time) error {
	return s.DB.Model(&models.Conversation{}).
		Where("id = ?", roomID).
		Updates(map[string]interface{}{
			"last_message_id": messageID,
			"last_message_at": ts,
		}).Error
}

// DeleteConversationCascade hard-deletes a room and its whole message
// history in one transaction. Only group rooms are ever deleted this way.
func (s *Service) DeleteConversationCascade(roomID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", roomID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Conversation{}, "id = ?", roomID).Error
	})
}

// ClearMessages removes every message in a room but keeps the room itself.
func (s *Service) ClearMessages(roomID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", roomID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", roomID).
			Updates(map[string]interface{}{"last_message_id": nil, "last_message_at": time.Now()}).Error
	})
}

func (s *Service) CreateMessage(msg *models.Message) error {
	if msg.ReadBy == nil {
		msg.ReadBy = []string{}
	}
	if err := s.DB.Create(msg).Error; err != nil {
		log.Printf("ERROR: failed to save message for room %s: %v", msg.ConversationID, err)
		return err
	}
	return nil
}

func (s *Service) SaveMessage(msg *models.Message) error {
	return s.DB.Save(msg).Error
}

func (s *Service) GetMessageByID(messageID string) (*models.Message, error) {
	var msg models.Message
	err := s.DB.First(&msg, "id = ?", messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetMessagesForRoom loads the non-deleted history in send order.
func (s *Service) GetMessagesForRoom(roomID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.DB.
		Where("conversation_id = ? AND deleted = false", roomID).
		Order("created_at asc").
		Find(&msgs).Error
	if err != nil {
		log.Printf("ERROR: failed to get history for room %s: %v", roomID, err)
		return nil, err
	}
	return msgs, nil
}

// MarkMessagesRead adds userID to the read set of each message, with
// set-union semantics so re-marking is a no-op.
func (s *Service) MarkMessagesRead(messageIDs []string, roomID, userID string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var msgs []models.Message
		if err := tx.
			Where("conversation_id = ? AND id IN ?", roomID, messageIDs).
			Find(&msgs).Error; err != nil {
			return err
		}
		for i := range msgs {
			if lo.Contains(msgs[i].ReadBy, userID) {
				continue
			}
			msgs[i].ReadBy = append(msgs[i].ReadBy, userID)
			if err := tx.Save(&msgs[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// PublishEvent pushes an emission envelope onto the shared Redis channel.
func (s *Service) PublishEvent(ev models.RemoteEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, eventsChannel, payload).Err()
}

// SubscribeEvents subscribes to the shared event channel.
func (s *Service) SubscribeEvents() *redis.PubSub {
	return s.Redis.Subscribe(s.Ctx, eventsChannel)
}
