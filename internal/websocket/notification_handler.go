package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"realtime-chat/internal/auth"
	"realtime-chat/internal/broadcast"
	"realtime-chat/internal/metrics"
	"realtime-chat/internal/presence"
	"realtime-chat/internal/protocol"
	"realtime-chat/internal/services"

	"github.com/gorilla/websocket"
)

// UnreadCounter reports the unread notification count of a user.
type UnreadCounter interface {
	UnreadCount(ctx context.Context, userID uint) (int, error)
}

// NotificationHandler serves /ws/notifications. Each authenticated socket
// follows the user topic and counts as one connection for presence.
type NotificationHandler struct {
	unread   UnreadCounter
	tracker  *presence.Tracker
	backbone broadcast.Backbone
	hub      *Hub
	upgrader websocket.Upgrader
	opts     Options
	logger   *slog.Logger
}

func NewNotificationHandler(unread UnreadCounter, tracker *presence.Tracker, backbone broadcast.Backbone, hub *Hub, upgrader websocket.Upgrader, opts Options, logger *slog.Logger) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{
		unread:   unread,
		tracker:  tracker,
		backbone: backbone,
		hub:      hub,
		upgrader: upgrader,
		opts:     opts,
		logger:   logger.With("component", "notification-ws"),
	}
}

func (h *NotificationHandler) Serve(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade websocket connection", "error", err)
		return
	}
	if !identity.Authenticated() {
		reject(conn, "notifications", services.ErrUnauthenticated, h.logger)
		return
	}
	userID := *identity.UserID

	c := newClient(conn, "notifications", h.opts.SendQueue, h.logger.With("userID", userID))
	if !h.hub.register(c) {
		c.abort(broadcast.ErrClosed)
		return
	}
	defer h.hub.unregister(c)

	topic := broadcast.UserTopic(userID)
	if err := h.backbone.Subscribe(c.ctx, topic, c); err != nil {
		c.abort(err)
		return
	}
	go c.writePump()

	unread, err := h.unread.UnreadCount(c.ctx, userID)
	if err != nil {
		c.logger.Warn("Failed to load unread count", "error", err)
		unread = 0
	}
	_ = c.SendFrame(protocol.NewMetaInitFrame(unread))

	h.tracker.Connect(context.WithoutCancel(c.ctx), userID)
	c.logger.Info("Notification channel connected")

	defer func() {
		c.Close(websocket.CloseNormalClosure, "")
		c.wait()

		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := h.backbone.Unsubscribe(ctx, topic, c.id); err != nil {
			c.logger.Warn("Failed to unsubscribe", "error", err)
		}
		h.tracker.Disconnect(userID)
		c.logger.Info("Notification channel disconnected")
	}()

	err = c.readPump(h.opts.MaxMessageBytes, func(data []byte) error {
		frame, err := protocol.DecodeInbound(data)
		if err != nil {
			metrics.InboundFrames.WithLabelValues("invalid").Inc()
			return nil
		}
		if _, ok := frame.(protocol.Ping); ok {
			metrics.InboundFrames.WithLabelValues("ping").Inc()
			_ = c.SendFrame(protocol.NewNotificationPong(time.Now()))
		}
		// anything else is ignored on this channel
		return nil
	})
	if err != nil {
		code, reason := closeCode(err)
		c.Close(code, reason)
	}
}
