package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"realtime-chat/internal/broadcast"
	"realtime-chat/internal/metrics"
	"realtime-chat/internal/models"
	"realtime-chat/internal/protocol"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	previewLimit = 80
	previewCut   = 77
)

// NotificationService delivers personal notifications. Durable rows are
// written before the live push so a client that receives the push can always
// fetch the row.
type NotificationService struct {
	store    NotificationStore
	users    UserStore
	subs     SubscriptionStore
	backbone broadcast.Backbone
	logger   *slog.Logger
}

func NewNotificationService(store NotificationStore, users UserStore, subs SubscriptionStore, backbone broadcast.Backbone, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		store:    store,
		users:    users,
		subs:     subs,
		backbone: backbone,
		logger:   logger.With("component", "notifications"),
	}
}

// NotifyUser pushes a live-only notification to the user's topic. Nothing is
// queued when the user has no open notification connection.
func (s *NotificationService) NotifyUser(ctx context.Context, userID uint, typ string, payload map[string]interface{}) error {
	return s.push(ctx, userID, 0, typ, payload)
}

// NotifyUsers pushes to every user. A failure for one recipient does not stop
// delivery to the rest; all failures are returned joined.
func (s *NotificationService) NotifyUsers(ctx context.Context, userIDs []uint, typ string, payload map[string]interface{}) error {
	var errs []error
	for _, id := range userIDs {
		if err := s.NotifyUser(ctx, id, typ, payload); err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// CreateAndNotify checks the recipient's preferences for kind and, when
// allowed, persists (if persist is set) and then pushes. It reports whether
// the notification went out.
func (s *NotificationService) CreateAndNotify(ctx context.Context, userID uint, typ, kind string, payload map[string]interface{}, persist bool) (bool, error) {
	prefs, err := s.users.GetPreferences(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load preferences of user %d: %w", userID, err)
	}
	if !Allowed(prefs, kind) {
		metrics.NotificationsSuppressed.WithLabelValues(typ).Inc()
		return false, nil
	}

	var id uint
	if persist {
		raw, err := json.Marshal(payload)
		if err != nil {
			return false, fmt.Errorf("encode notification payload: %w", err)
		}
		n := &models.Notification{UserID: userID, Type: typ, Payload: datatypes.JSON(raw)}
		if err := s.store.Create(ctx, n); err != nil {
			return false, fmt.Errorf("persist notification: %w", err)
		}
		id = n.ID
	}

	if err := s.push(ctx, userID, id, typ, payload); err != nil {
		return false, err
	}
	return true, nil
}

// NotifyRoomSubscribers sends a notification to the unmuted subscribers of a
// room, excluding the acting user, and returns how many were delivered.
func (s *NotificationService) NotifyRoomSubscribers(ctx context.Context, roomID, actorID uint, typ, kind string, payload map[string]interface{}) (int, error) {
	ids, err := s.subs.ListSubscriberIDs(ctx, roomID, actorID)
	if err != nil {
		return 0, err
	}

	delivered := 0
	var errs []error
	for _, id := range ids {
		if id == actorID {
			continue
		}
		ok, err := s.CreateAndNotify(ctx, id, typ, kind, payload, true)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", id, err))
			continue
		}
		if ok {
			delivered++
		}
	}
	return delivered, errors.Join(errs...)
}

func (s *NotificationService) NotifyFriendRequest(ctx context.Context, toUserID, fromUserID uint) error {
	_, err := s.CreateAndNotify(ctx, toUserID, models.NotificationFriendRequest, models.KindGeneric,
		map[string]interface{}{"by": fromUserID}, true)
	return err
}

func (s *NotificationService) NotifyFriendAccept(ctx context.Context, toUserID, byUserID uint) error {
	_, err := s.CreateAndNotify(ctx, toUserID, models.NotificationFriendAccept, models.KindGeneric,
		map[string]interface{}{"by": byUserID}, true)
	return err
}

// NotifyDMRead tells the other side of a DM that its messages were read.
func (s *NotificationService) NotifyDMRead(ctx context.Context, toUserID, roomID, readerID uint) error {
	return s.NotifyUser(ctx, toUserID, models.NotificationDMRead,
		map[string]interface{}{"room_id": roomID, "by": readerID})
}

// OnMessageCreated turns a new message into a dm.badge for the other DM
// participant or group.new for the room's subscribers.
func (s *NotificationService) OnMessageCreated(ctx context.Context, room *models.Room, msg *models.Message) error {
	var author uint
	if msg.AuthorID != nil {
		author = *msg.AuthorID
	}
	payload := map[string]interface{}{
		"room_id": room.ID,
		"preview": Preview(msg.Content),
		"by":      msg.AuthorID,
	}

	if !room.IsPrivate() {
		_, err := s.NotifyRoomSubscribers(ctx, room.ID, author, models.NotificationGroupNew, models.KindGroup, payload)
		return err
	}

	var errs []error
	for _, id := range room.ParticipantIDs() {
		if id == author {
			continue
		}
		if _, err := s.CreateAndNotify(ctx, id, models.NotificationDMBadge, models.KindMessage, payload, true); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

func (s *NotificationService) List(ctx context.Context, userID uint, isRead *bool, page, pageSize int) (*models.NotificationListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	items, total, err := s.store.List(ctx, userID, isRead, page, pageSize)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Notification{}
	}
	return &models.NotificationListResponse{Items: items, Page: page, PageSize: pageSize, Total: total}, nil
}

// MarkRead marks the given notifications (or all of them) read and pushes the
// new unread counter to the user's open connections.
func (s *NotificationService) MarkRead(ctx context.Context, userID uint, req models.MarkReadRequest) (*models.MarkReadResponse, error) {
	updated, err := s.store.MarkRead(ctx, userID, req.IDs, req.All)
	if err != nil {
		return nil, err
	}
	unread, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.publishFrame(ctx, userID, protocol.NewMetaUnreadFrame(unread)); err != nil {
		s.logger.Warn("Failed to push unread counter", "userID", userID, "error", err)
	}
	return &models.MarkReadResponse{Updated: updated, UnreadCount: unread}, nil
}

func (s *NotificationService) push(ctx context.Context, userID, id uint, typ string, payload map[string]interface{}) error {
	unread, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return fmt.Errorf("count unread of user %d: %w", userID, err)
	}
	if err := s.publishFrame(ctx, userID, protocol.NewNotificationFrame(id, typ, unread, payload)); err != nil {
		return err
	}
	metrics.NotificationsDelivered.WithLabelValues(typ).Inc()
	return nil
}

func (s *NotificationService) publishFrame(ctx context.Context, userID uint, frame interface{}) error {
	data, err := protocol.Encode(frame)
	if err != nil {
		return fmt.Errorf("encode notification frame: %w", err)
	}
	if err := s.backbone.Publish(ctx, broadcast.UserTopic(userID), broadcast.Event{Data: data}); err != nil {
		return fmt.Errorf("publish to user %d: %w", userID, err)
	}
	return nil
}

// Allowed applies the recipient's preferences to a notification kind. Push
// off disables everything; generic notifications only need push.
func Allowed(prefs models.NotificationPreferences, kind string) bool {
	if !prefs.Push {
		return false
	}
	switch kind {
	case models.KindMessage:
		return prefs.Messages
	case models.KindGroup:
		return prefs.Groups
	default:
		return true
	}
}

// Preview shortens message content for notification payloads.
func Preview(content string) string {
	p := []rune(strings.TrimSpace(content))
	if len(p) > previewLimit {
		return string(p[:previewCut]) + "…"
	}
	return string(p)
}

// presencePayload is shared by the presence service and its tests.
func presencePayload(userID uint, online bool, at time.Time) map[string]interface{} {
	return map[string]interface{}{
		"user_id":   userID,
		"online":    online,
		"last_seen": protocol.Timestamp(at),
	}
}
