package services

import (
	"context"
	"errors"
	"time"

	"realtime-chat/internal/models"
	"realtime-chat/internal/repositories"
)

var (
	ErrNotFound        = repositories.ErrNotFound
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("authentication required")
	ErrEmptyContent    = errors.New("empty message content")
)

// Storage collaborators. The gorm repositories in repositories/postgres
// satisfy them; tests use in-memory fakes.

type RoomStore interface {
	GetByID(ctx context.Context, roomID uint) (*models.Room, error)
}

type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	FindByID(ctx context.Context, id string) (*models.Message, error)
	Delete(ctx context.Context, msg *models.Message) error
}

type UserStore interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
	GetDisplayName(ctx context.Context, id uint) (string, error)
	GetPreferences(ctx context.Context, id uint) (models.NotificationPreferences, error)
	UpdatePresence(ctx context.Context, id uint, online bool, at time.Time) error
}

type FriendStore interface {
	GetFriendIDs(ctx context.Context, userID uint) ([]uint, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	CountUnread(ctx context.Context, userID uint) (int, error)
	List(ctx context.Context, userID uint, isRead *bool, page, pageSize int) ([]models.Notification, int64, error)
	MarkRead(ctx context.Context, userID uint, ids []uint, all bool) (int64, error)
}

type SubscriptionStore interface {
	Get(ctx context.Context, userID, roomID uint) (*models.GroupChatSubscription, error)
	Subscribe(ctx context.Context, userID, roomID uint) error
	Unsubscribe(ctx context.Context, userID, roomID uint) error
	SetMuted(ctx context.Context, userID, roomID uint, muted bool) error
	ListSubscriberIDs(ctx context.Context, roomID, excludeUserID uint) ([]uint, error)
}

// MessageHook runs after a message was committed and announced.
type MessageHook interface {
	OnMessageCreated(ctx context.Context, room *models.Room, msg *models.Message) error
}
