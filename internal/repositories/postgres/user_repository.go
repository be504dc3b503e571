package postgres

import (
	"context"
	"time"

	"realtime-chat/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return translate("create user", r.db.WithContext(ctx).Create(user).Error)
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate("find user", err)
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate("find user by email", err)
	}
	return &user, nil
}

func (r *UserRepository) GetDisplayName(ctx context.Context, id uint) (string, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.DisplayName(), nil
}

func (r *UserRepository) GetPreferences(ctx context.Context, id uint) (models.NotificationPreferences, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return models.NotificationPreferences{}, err
	}
	return user.Preferences(), nil
}

// UpdatePresence records the debounced online flag and the last seen time.
func (r *UserRepository) UpdatePresence(ctx context.Context, id uint, online bool, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_online": online, "last_seen": at})
	if res.Error != nil {
		return translate("update presence", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("update presence", gorm.ErrRecordNotFound)
	}
	return nil
}
