package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"realtime-chat/internal/broadcast"
	"realtime-chat/internal/models"
	"realtime-chat/internal/protocol"
)

const GuestName = "Guest"

// RoomService authorizes room joins and shapes the events fanned out to a
// room topic.
type RoomService struct {
	rooms    RoomStore
	messages MessageStore
	users    UserStore
	backbone broadcast.Backbone
	hook     MessageHook
	logger   *slog.Logger
}

func NewRoomService(rooms RoomStore, messages MessageStore, users UserStore, backbone broadcast.Backbone, hook MessageHook, logger *slog.Logger) *RoomService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomService{
		rooms:    rooms,
		messages: messages,
		users:    users,
		backbone: backbone,
		hook:     hook,
		logger:   logger.With("component", "rooms"),
	}
}

// Authorize loads the room and checks that userID may join it. Group rooms
// are open to everyone including anonymous connections; private rooms only to
// their two participants.
func (s *RoomService) Authorize(ctx context.Context, roomID uint, userID *uint) (*models.Room, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsPrivate() {
		return room, nil
	}
	if userID == nil || !room.HasParticipant(*userID) {
		return nil, fmt.Errorf("room %d: %w", roomID, ErrForbidden)
	}
	return room, nil
}

// DisplayName resolves the name shown next to typing and presence events.
func (s *RoomService) DisplayName(ctx context.Context, userID *uint) string {
	if userID == nil {
		return GuestName
	}
	name, err := s.users.GetDisplayName(ctx, *userID)
	if err != nil || name == "" {
		if err != nil {
			s.logger.Warn("Failed to resolve display name", "userID", *userID, "error", err)
		}
		return fmt.Sprintf("user%d", *userID)
	}
	return name
}

// CreateMessage persists a message sent over the websocket fallback path and
// announces it to the room. tempID is echoed back so the sender can reconcile
// its optimistic copy.
func (s *RoomService) CreateMessage(ctx context.Context, room *models.Room, authorID *uint, displayName, content, tempID string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if authorID == nil {
		return nil, ErrUnauthenticated
	}

	msg := &models.Message{
		RoomID:      room.ID,
		AuthorID:    authorID,
		DisplayName: displayName,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	frame := protocol.NewMessageFrame(protocol.MessagePayload{
		ID:          msg.ID,
		RoomID:      msg.RoomID,
		AuthorID:    msg.AuthorID,
		DisplayName: msg.DisplayName,
		Content:     msg.Content,
		CreatedAt:   msg.CreatedAt,
		TempID:      tempID,
	})
	if err := s.publish(ctx, room.ID, "", frame); err != nil {
		return msg, err
	}

	if s.hook != nil {
		if err := s.hook.OnMessageCreated(ctx, room, msg); err != nil {
			s.logger.Warn("Message notifications failed", "roomID", room.ID, "messageID", msg.ID, "error", err)
		}
	}
	return msg, nil
}

// DeleteMessage removes a message on behalf of its author and tells the room.
func (s *RoomService) DeleteMessage(ctx context.Context, messageID string, userID uint) error {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.AuthorID == nil || *msg.AuthorID != userID {
		return fmt.Errorf("message %s: %w", messageID, ErrForbidden)
	}
	if err := s.messages.Delete(ctx, msg); err != nil {
		return err
	}
	return s.PublishMessageDeleted(ctx, msg.RoomID, msg.ID)
}

// PublishMessageDeleted is the entry point for deletions made elsewhere.
func (s *RoomService) PublishMessageDeleted(ctx context.Context, roomID uint, messageID string) error {
	return s.publish(ctx, roomID, "", protocol.NewDeleteFrame(messageID))
}

// PublishTyping fans a typing indicator out to everyone in the room except
// the connection that produced it.
func (s *RoomService) PublishTyping(ctx context.Context, roomID uint, originConnID string, isTyping bool, userID *uint, displayName string) error {
	return s.publish(ctx, roomID, originConnID, protocol.NewTypingFrame(isTyping, userID, displayName))
}

func (s *RoomService) PublishPresence(ctx context.Context, roomID uint, event string, userID *uint, displayName string, count int) error {
	return s.publish(ctx, roomID, "", protocol.NewPresenceFrame(event, userID, displayName, count, time.Now()))
}

func (s *RoomService) publish(ctx context.Context, roomID uint, origin string, frame protocol.Frame) error {
	data, err := protocol.Encode(frame)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", frame.Type, err)
	}
	err = s.backbone.Publish(ctx, broadcast.RoomTopic(roomID), broadcast.Event{Origin: origin, Data: data})
	if err != nil {
		return fmt.Errorf("publish %s to room %d: %w", frame.Type, roomID, err)
	}
	return nil
}

// IsNotFound reports whether err means the room or message does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
