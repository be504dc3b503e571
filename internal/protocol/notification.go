package protocol

import "time"

// Notification channel frames use `kind` as their discriminator.
const (
	KindNotification = "notification"
	KindMetaInit     = "meta:init"
	KindMetaUnread   = "meta:unread"
	KindPong         = "pong"
)

type NotificationFrame struct {
	Kind        string                 `json:"kind"`
	ID          uint                   `json:"id,omitempty"`
	Type        string                 `json:"type"`
	UnreadCount int                    `json:"unread_count"`
	Payload     map[string]interface{} `json:"payload"`
}

type MetaFrame struct {
	Kind        string `json:"kind"`
	UnreadCount int    `json:"unread_count"`
}

type NotificationPong struct {
	Kind      string `json:"kind"`
	Timestamp string `json:"timestamp"`
}

func NewNotificationFrame(id uint, typ string, unread int, payload map[string]interface{}) NotificationFrame {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return NotificationFrame{
		Kind:        KindNotification,
		ID:          id,
		Type:        typ,
		UnreadCount: unread,
		Payload:     payload,
	}
}

func NewMetaInitFrame(unread int) MetaFrame {
	return MetaFrame{Kind: KindMetaInit, UnreadCount: unread}
}

func NewMetaUnreadFrame(unread int) MetaFrame {
	return MetaFrame{Kind: KindMetaUnread, UnreadCount: unread}
}

func NewNotificationPong(at time.Time) NotificationPong {
	return NotificationPong{Kind: KindPong, Timestamp: Timestamp(at)}
}
