package postgres

import (
	"context"

	"realtime-chat/internal/models"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return translate("create notification", r.db.WithContext(ctx).Create(n).Error)
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uint) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, translate("count unread", err)
	}
	return int(count), nil
}

// List pages through a user's notifications, newest first. isRead filters
// when non-nil.
func (r *NotificationRepository) List(ctx context.Context, userID uint, isRead *bool, page, pageSize int) ([]models.Notification, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if isRead != nil {
		q = q.Where("is_read = ?", *isRead)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("count notifications", err)
	}

	var items []models.Notification
	err := q.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	if err != nil {
		return nil, 0, translate("list notifications", err)
	}
	return items, total, nil
}

// MarkRead flips unread rows of userID to read. Rows already read are left
// alone so is_read never reverts. An empty ids slice with all=false is a no-op.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID uint, ids []uint, all bool) (int64, error) {
	if !all && len(ids) == 0 {
		return 0, nil
	}
	q := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false)
	if !all {
		q = q.Where("id IN ?", ids)
	}
	res := q.Update("is_read", true)
	if res.Error != nil {
		return 0, translate("mark read", res.Error)
	}
	return res.RowsAffected, nil
}
