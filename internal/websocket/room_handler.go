package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"realtime-chat/internal/auth"
	"realtime-chat/internal/broadcast"
	"realtime-chat/internal/metrics"
	"realtime-chat/internal/models"
	"realtime-chat/internal/presence"
	"realtime-chat/internal/protocol"
	"realtime-chat/internal/services"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const cleanupTimeout = 5 * time.Second

// Options tunes the per-connection limits.
type Options struct {
	SendQueue       int
	MaxMessageBytes int64
	FrameRate       float64
	FrameBurst      int
}

// RoomHandler serves /ws/chat/{room_id}. A session goes through
// connecting (room id parse), authorizing (membership), joined, closed.
type RoomHandler struct {
	rooms    *services.RoomService
	tracker  *presence.Tracker
	backbone broadcast.Backbone
	hub      *Hub
	upgrader websocket.Upgrader
	opts     Options
	logger   *slog.Logger
}

func NewRoomHandler(rooms *services.RoomService, tracker *presence.Tracker, backbone broadcast.Backbone, hub *Hub, upgrader websocket.Upgrader, opts Options, logger *slog.Logger) *RoomHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomHandler{
		rooms:    rooms,
		tracker:  tracker,
		backbone: backbone,
		hub:      hub,
		upgrader: upgrader,
		opts:     opts,
		logger:   logger.With("component", "room-ws"),
	}
}

type roomSession struct {
	h        *RoomHandler
	client   *Client
	room     *models.Room
	topic    string
	identity auth.Identity
	name     string
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// Serve upgrades the request and runs the session until the socket closes.
func (h *RoomHandler) Serve(w http.ResponseWriter, r *http.Request, rawRoomID string, identity auth.Identity) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade websocket connection", "error", err)
		return
	}

	roomID, err := parseRoomID(rawRoomID)
	if err != nil {
		reject(conn, "room", err, h.logger)
		return
	}
	logger := h.logger.With("roomID", roomID)
	if identity.UserID != nil {
		logger = logger.With("userID", *identity.UserID)
	}

	ctx, cancel := context.WithTimeout(r.Context(), cleanupTimeout)
	room, err := h.rooms.Authorize(ctx, roomID, identity.UserID)
	var name string
	if err == nil {
		name = h.rooms.DisplayName(ctx, identity.UserID)
	}
	cancel()
	if err != nil {
		reject(conn, "room", err, logger)
		return
	}

	client := newClient(conn, "room", h.opts.SendQueue, logger)
	s := &roomSession{
		h:        h,
		client:   client,
		room:     room,
		topic:    broadcast.RoomTopic(room.ID),
		identity: identity,
		name:     name,
		limiter:  newFrameLimiter(h.opts),
		logger:   client.logger,
	}
	s.run()
}

func (s *roomSession) run() {
	c := s.client
	if !s.h.hub.register(c) {
		c.abort(broadcast.ErrClosed)
		return
	}
	defer s.h.hub.unregister(c)

	if err := s.h.backbone.Subscribe(c.ctx, s.topic, c); err != nil {
		c.abort(err)
		return
	}
	go c.writePump()

	var joinErr error
	s.h.tracker.JoinRoom(s.topic, c.id, func(count int) {
		joinErr = s.h.rooms.PublishPresence(c.ctx, s.room.ID, protocol.PresenceJoin, s.identity.UserID, s.name, count)
	})
	defer s.leave()

	s.logger.Info("Joined room", "displayName", s.name)
	if joinErr != nil {
		s.logger.Error("Failed to announce join", "error", joinErr)
		c.Close(websocket.CloseInternalServerErr, "broadcast unavailable")
		return
	}

	if err := c.readPump(s.h.opts.MaxMessageBytes, s.handleFrame); err != nil {
		code, reason := closeCode(err)
		s.logger.Error("Closing room session", "code", code, "error", err)
		c.Close(code, reason)
		return
	}
	c.Close(websocket.CloseNormalClosure, "")
}

// leave runs on every path out of the joined state.
func (s *roomSession) leave() {
	c := s.client
	c.Close(websocket.CloseNormalClosure, "")
	c.wait()

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := s.h.backbone.Unsubscribe(ctx, s.topic, c.id); err != nil {
		s.logger.Warn("Failed to unsubscribe", "error", err)
	}
	s.h.tracker.LeaveRoom(s.topic, c.id, func(count int) {
		if err := s.h.rooms.PublishPresence(ctx, s.room.ID, protocol.PresenceLeave, s.identity.UserID, s.name, count); err != nil {
			s.logger.Warn("Failed to announce leave", "error", err)
		}
	})
	s.logger.Info("Left room")
}

// handleFrame processes one inbound frame. Only errors that make the session
// unusable are returned; everything else is answered on this socket.
func (s *roomSession) handleFrame(data []byte) error {
	c := s.client
	if !s.limiter.Allow() {
		metrics.DroppedFrames.WithLabelValues("rate_limited").Inc()
		c.sendError(protocol.CodeRateLimited, "Too many frames")
		return nil
	}

	frame, err := protocol.DecodeInbound(data)
	if err != nil {
		metrics.InboundFrames.WithLabelValues("invalid").Inc()
		c.sendError(protocol.CodeInvalidFrame, "Invalid frame")
		return nil
	}

	switch f := frame.(type) {
	case protocol.Ping:
		metrics.InboundFrames.WithLabelValues("ping").Inc()
		_ = c.SendFrame(protocol.NewPongFrame(time.Now()))
		return nil

	case protocol.Typing:
		metrics.InboundFrames.WithLabelValues("typing").Inc()
		err := s.h.rooms.PublishTyping(c.ctx, s.room.ID, c.id, f.IsTyping, s.identity.UserID, s.name)
		if err != nil && isFatal(err) {
			return err
		}
		if err != nil {
			s.logger.Warn("Failed to publish typing", "error", err)
		}
		return nil

	case protocol.Message:
		metrics.InboundFrames.WithLabelValues("message").Inc()
		return s.handleMessage(f)

	case protocol.Unknown:
		metrics.InboundFrames.WithLabelValues("unknown").Inc()
		c.sendError(protocol.CodeInvalidFrame, "Unsupported frame type")
		return nil
	}
	return nil
}

func (s *roomSession) handleMessage(f protocol.Message) error {
	c := s.client
	_, err := s.h.rooms.CreateMessage(c.ctx, s.room, s.identity.UserID, s.name, f.Content, f.TempID)
	switch {
	case err == nil, errors.Is(err, services.ErrEmptyContent):
		return nil
	case errors.Is(err, services.ErrUnauthenticated):
		c.sendError(protocol.CodeUnauthorized, "Authentication required to send messages")
		return nil
	case isFatal(err):
		return err
	default:
		s.logger.Error("Failed to save message", "error", err)
		c.sendError(protocol.CodeMessageNotSent, "Message could not be saved")
		return nil
	}
}

func parseRoomID(raw string) (uint, error) {
	if raw == "" {
		return 0, errInvalidRoomID
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidRoomID
	}
	return uint(id), nil
}

func newFrameLimiter(opts Options) *rate.Limiter {
	if opts.FrameRate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := opts.FrameBurst
	if burst <= 0 {
		burst = int(opts.FrameRate)
	}
	return rate.NewLimiter(rate.Limit(opts.FrameRate), burst)
}
