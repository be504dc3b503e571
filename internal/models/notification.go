package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types
const (
	NotificationFriendRequest = "friend.request"
	NotificationFriendAccept  = "friend.accept"
	NotificationDMBadge       = "dm.badge"
	NotificationDMRead        = "dm.read"
	NotificationPresence      = "presence"
	NotificationSystem        = "system"
	NotificationGroupNew      = "group.new"
)

// Preference categories a notification type is filtered by
const (
	KindMessage = "message"
	KindGroup   = "group"
	KindGeneric = "generic"
)

/** --------------------ENTITIES-------------------- */
// Notification is the durable record behind a pushed notification. IsRead only
// ever goes from false to true.
type Notification struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	UserID    uint           `gorm:"not null;index:idx_notification_user_read" json:"user_id"`
	Type      string         `gorm:"not null;type:varchar(32)" json:"type"`
	Payload   datatypes.JSON `json:"payload"`
	IsRead    bool           `gorm:"not null;default:false;index:idx_notification_user_read" json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

/** -------------------- DTOs -------------------- */
type MarkReadRequest struct {
	IDs []uint `json:"ids"`
	All bool   `json:"all"`
}

type MarkReadResponse struct {
	Updated     int64 `json:"updated"`
	UnreadCount int   `json:"unread_count"`
}

type NotificationListResponse struct {
	Items    []Notification `json:"items"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    int64          `json:"total"`
}
