package postgres

import (
	"context"

	"realtime-chat/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db}
}

func (r *SubscriptionRepository) Get(ctx context.Context, userID, roomID uint) (*models.GroupChatSubscription, error) {
	var sub models.GroupChatSubscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND room_id = ?", userID, roomID).
		First(&sub).Error
	if err != nil {
		return nil, translate("get subscription", err)
	}
	return &sub, nil
}

// Subscribe is idempotent.
func (r *SubscriptionRepository) Subscribe(ctx context.Context, userID, roomID uint) error {
	sub := models.GroupChatSubscription{UserID: userID, RoomID: roomID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&sub).Error
	return translate("subscribe", err)
}

func (r *SubscriptionRepository) Unsubscribe(ctx context.Context, userID, roomID uint) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND room_id = ?", userID, roomID).
		Delete(&models.GroupChatSubscription{}).Error
	return translate("unsubscribe", err)
}

func (r *SubscriptionRepository) SetMuted(ctx context.Context, userID, roomID uint, muted bool) error {
	err := r.db.WithContext(ctx).Model(&models.GroupChatSubscription{}).
		Where("user_id = ? AND room_id = ?", userID, roomID).
		Update("is_muted", muted).Error
	return translate("set muted", err)
}

// ListSubscriberIDs returns the unmuted subscribers of a room except excludeUserID.
func (r *SubscriptionRepository) ListSubscriberIDs(ctx context.Context, roomID, excludeUserID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.GroupChatSubscription{}).
		Where("room_id = ? AND is_muted = ? AND user_id <> ?", roomID, false, excludeUserID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, translate("list subscribers", err)
	}
	return ids, nil
}
