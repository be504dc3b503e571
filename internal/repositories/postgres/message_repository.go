package postgres

import (
	"context"
	"fmt"

	"realtime-chat/internal/models"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db}
}

// Create inserts the message, moves the room's last message pointer and bumps
// the unread counter of every other participant, all in one transaction.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		if err := tx.Model(&models.Room{}).
			Where("id = ?", msg.RoomID).
			Update("last_message_id", msg.ID).Error; err != nil {
			return fmt.Errorf("update last message: %w", err)
		}

		unread := tx.Model(&models.RoomParticipant{}).Where("room_id = ?", msg.RoomID)
		if msg.AuthorID != nil {
			unread = unread.Where("user_id <> ?", *msg.AuthorID)
		}
		if err := unread.UpdateColumn("unread_count", gorm.Expr("unread_count + 1")).Error; err != nil {
			return fmt.Errorf("increment unread: %w", err)
		}
		return nil
	})
	return translate("create message", err)
}

func (r *MessageRepository) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, translate("find message", err)
	}
	return &msg, nil
}

// Delete removes the row. The room pointer is cleared when it referenced it.
func (r *MessageRepository) Delete(ctx context.Context, msg *models.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Room{}).
			Where("id = ? AND last_message_id = ?", msg.RoomID, msg.ID).
			Update("last_message_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Message{}, "id = ?", msg.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return translate("delete message", err)
}
