package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"realtime-chat/internal/models"
)

// SubscriptionService manages which users receive group.new notifications for
// a group room.
type SubscriptionService struct {
	subs   SubscriptionStore
	rooms  RoomStore
	logger *slog.Logger
}

func NewSubscriptionService(subs SubscriptionStore, rooms RoomStore, logger *slog.Logger) *SubscriptionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionService{subs: subs, rooms: rooms, logger: logger.With("component", "subscriptions")}
}

// groupRoom returns ErrForbidden for private rooms; they notify through dm.badge.
func (s *SubscriptionService) groupRoom(ctx context.Context, roomID uint) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.IsPrivate() {
		return fmt.Errorf("room %d is private: %w", roomID, ErrForbidden)
	}
	return nil
}

func (s *SubscriptionService) Status(ctx context.Context, userID, roomID uint) (*models.SubscriptionStatus, error) {
	if err := s.groupRoom(ctx, roomID); err != nil {
		return nil, err
	}
	status := &models.SubscriptionStatus{RoomID: roomID}
	sub, err := s.subs.Get(ctx, userID, roomID)
	switch {
	case errors.Is(err, ErrNotFound):
		return status, nil
	case err != nil:
		return nil, err
	}
	status.Subscribed = true
	status.Muted = sub.IsMuted
	return status, nil
}

func (s *SubscriptionService) Subscribe(ctx context.Context, userID, roomID uint) (*models.SubscriptionStatus, error) {
	if err := s.groupRoom(ctx, roomID); err != nil {
		return nil, err
	}
	if err := s.subs.Subscribe(ctx, userID, roomID); err != nil {
		return nil, err
	}
	s.logger.Debug("Subscribed", "userID", userID, "roomID", roomID)
	return s.Status(ctx, userID, roomID)
}

func (s *SubscriptionService) Unsubscribe(ctx context.Context, userID, roomID uint) (*models.SubscriptionStatus, error) {
	if err := s.groupRoom(ctx, roomID); err != nil {
		return nil, err
	}
	if err := s.subs.Unsubscribe(ctx, userID, roomID); err != nil {
		return nil, err
	}
	return &models.SubscriptionStatus{RoomID: roomID}, nil
}

// SetMuted requires an existing subscription.
func (s *SubscriptionService) SetMuted(ctx context.Context, userID, roomID uint, muted bool) (*models.SubscriptionStatus, error) {
	status, err := s.Status(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	if !status.Subscribed {
		return nil, fmt.Errorf("subscription %d/%d: %w", userID, roomID, ErrNotFound)
	}
	if err := s.subs.SetMuted(ctx, userID, roomID, muted); err != nil {
		return nil, err
	}
	status.Muted = muted
	return status, nil
}
