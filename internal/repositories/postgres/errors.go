package postgres

import (
	"errors"
	"fmt"

	"realtime-chat/internal/repositories"

	"gorm.io/gorm"
)

// translate maps gorm errors onto the repository sentinels.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, repositories.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, repositories.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
