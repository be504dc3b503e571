package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */
// Message is a chat message. AuthorID is nil once the author account is gone.
type Message struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RoomID      uint      `gorm:"not null;index:idx_room_created" json:"room_id"`
	AuthorID    *uint     `gorm:"index" json:"author_id"`
	DisplayName string    `json:"display_name"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	CreatedAt   time.Time `gorm:"index:idx_room_created" json:"created_at"`
}

func (m *Message) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
