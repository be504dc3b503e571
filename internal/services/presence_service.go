package services

import (
	"context"
	"log/slog"
	"time"

	"realtime-chat/internal/models"
)

// OnlineRegistry mirrors the debounced online flag somewhere other instances
// can read it. RedisService implements it.
type OnlineRegistry interface {
	SetUserOnline(ctx context.Context, userID uint) error
	SetUserOffline(ctx context.Context, userID uint) error
}

// PresenceService reacts to user online/offline transitions: it records the
// status and tells the user's friends, unless the user hides their presence.
type PresenceService struct {
	users    UserStore
	friends  FriendStore
	notifier *NotificationService
	registry OnlineRegistry
	logger   *slog.Logger
}

func NewPresenceService(users UserStore, friends FriendStore, notifier *NotificationService, registry OnlineRegistry, logger *slog.Logger) *PresenceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PresenceService{
		users:    users,
		friends:  friends,
		notifier: notifier,
		registry: registry,
		logger:   logger.With("component", "presence-fanout"),
	}
}

// PresenceChanged is the presence.Listener hook. Failures are logged here;
// the tracker has nobody to return them to.
func (s *PresenceService) PresenceChanged(ctx context.Context, userID uint, online bool, at time.Time) {
	if err := s.users.UpdatePresence(ctx, userID, online, at); err != nil {
		s.logger.Warn("Failed to record presence", "userID", userID, "online", online, "error", err)
	}
	if s.registry != nil {
		var err error
		if online {
			err = s.registry.SetUserOnline(ctx, userID)
		} else {
			err = s.registry.SetUserOffline(ctx, userID)
		}
		if err != nil {
			s.logger.Warn("Failed to update online registry", "userID", userID, "error", err)
		}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to load user for presence fanout", "userID", userID, "error", err)
		return
	}
	if !user.ShowOnline {
		return
	}

	friendIDs, err := s.friends.GetFriendIDs(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to load friends", "userID", userID, "error", err)
		return
	}
	if len(friendIDs) == 0 {
		return
	}

	payload := presencePayload(userID, online, at)
	if err := s.notifier.NotifyUsers(ctx, friendIDs, models.NotificationPresence, payload); err != nil {
		s.logger.Warn("Presence fanout incomplete", "userID", userID, "online", online, "error", err)
	}
}
