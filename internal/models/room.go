package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Room type constants
const (
	RoomTypeGroup   = "group"
	RoomTypePrivate = "private"
)

/** --------------------ENTITIES-------------------- */
// Room is a chat. A private room has exactly two participants and a
// PrivateKey of the form "min:max" so the same pair never gets two rooms.
type Room struct {
	gorm.Model
	Name          string  `json:"name"`
	Type          string  `gorm:"not null;type:varchar(20);index" json:"type"`
	PrivateKey    *string `gorm:"uniqueIndex;type:varchar(64)" json:"-"`
	LastMessageID *string `gorm:"type:varchar(36)" json:"last_message_id,omitempty"`

	Participants []RoomParticipant `gorm:"foreignKey:RoomID" json:"participants,omitempty"`
}

func (r *Room) IsPrivate() bool {
	return r.Type == RoomTypePrivate
}

// HasParticipant reports whether userID is one of the room participants.
// Participants must be preloaded.
func (r *Room) HasParticipant(userID uint) bool {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ParticipantIDs returns the preloaded participant user ids.
func (r *Room) ParticipantIDs() []uint {
	ids := make([]uint, 0, len(r.Participants))
	for _, p := range r.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// PrivateRoomKey returns the unique key of the DM between two users.
func PrivateRoomKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

type RoomParticipant struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	RoomID      uint       `gorm:"not null;uniqueIndex:idx_room_participant" json:"room_id"`
	UserID      uint       `gorm:"not null;uniqueIndex:idx_room_participant;index" json:"user_id"`
	UnreadCount int        `gorm:"not null;default:0" json:"unread_count"`
	LastReadAt  *time.Time `json:"last_read_at,omitempty"`
	IsMuted     bool       `gorm:"not null;default:false" json:"is_muted"`
	CreatedAt   time.Time  `json:"created_at"`
}
