package postgres

import (
	"context"

	"realtime-chat/internal/models"

	"gorm.io/gorm"
)

type RoomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db}
}

func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	return translate("create room", r.db.WithContext(ctx).Create(room).Error)
}

// GetByID loads a room with its participants.
func (r *RoomRepository) GetByID(ctx context.Context, roomID uint) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).Preload("Participants").First(&room, roomID).Error
	if err != nil {
		return nil, translate("get room", err)
	}
	return &room, nil
}

func (r *RoomRepository) GetParticipant(ctx context.Context, roomID, userID uint) (*models.RoomParticipant, error) {
	var p models.RoomParticipant
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&p).Error
	if err != nil {
		return nil, translate("get participant", err)
	}
	return &p, nil
}
