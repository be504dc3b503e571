package models

import "time"

// GroupChatSubscription opts a user into group.new notifications of a room.
type GroupChatSubscription struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_room_subscription" json:"user_id"`
	RoomID    uint      `gorm:"not null;uniqueIndex:idx_user_room_subscription;index" json:"room_id"`
	IsMuted   bool      `gorm:"not null;default:false" json:"is_muted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SubscriptionStatus struct {
	RoomID     uint `json:"room_id"`
	Subscribed bool `json:"subscribed"`
	Muted      bool `json:"muted"`
}

type MuteRequest struct {
	Muted bool `json:"muted"`
}
