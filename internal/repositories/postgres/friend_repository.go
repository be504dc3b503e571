package postgres

import (
	"context"

	"realtime-chat/internal/models"

	"gorm.io/gorm"
)

type FriendRepository struct {
	db *gorm.DB
}

func NewFriendRepository(db *gorm.DB) *FriendRepository {
	return &FriendRepository{db}
}

func (r *FriendRepository) Create(ctx context.Context, a, b uint) error {
	f := models.NewFriendship(a, b)
	return translate("create friendship", r.db.WithContext(ctx).Create(&f).Error)
}

// GetFriendIDs returns the other side of every friendship of userID.
func (r *FriendRepository) GetFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var rows []models.Friendship
	err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Find(&rows).Error
	if err != nil {
		return nil, translate("get friends", err)
	}
	ids := make([]uint, 0, len(rows))
	for _, f := range rows {
		ids = append(ids, f.Other(userID))
	}
	return ids, nil
}
