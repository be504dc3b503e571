// Package metrics holds the Prometheus instruments of the realtime subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Broadcast backbone
	BroadcastPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_broadcast_published_total",
			Help: "Events published to the broadcast backbone",
		},
		[]string{"namespace"}, // "room", "user"
	)

	BroadcastDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_broadcast_delivered_total",
			Help: "Events handed to local subscribers",
		},
		[]string{"namespace"},
	)

	BroadcastFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_broadcast_failures_total",
			Help: "Publishes rejected by the backbone",
		},
		[]string{"namespace"},
	)

	BroadcastBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_broadcast_breaker_state",
			Help: "Redis backbone circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	// WebSocket sessions
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Currently open websocket sessions",
		},
		[]string{"channel"}, // "room", "notifications"
	)

	ConnectionRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_rejections_total",
			Help: "Websocket handshakes closed before join, by close code",
		},
		[]string{"channel", "code"},
	)

	InboundFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_inbound_frames_total",
			Help: "Inbound room frames by type",
		},
		[]string{"type"},
	)

	DroppedFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_dropped_frames_total",
			Help: "Frames dropped by a session",
		},
		[]string{"reason"}, // "send_buffer_full", "rate_limited", "invalid"
	)

	// Presence
	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_presence_online_users",
			Help: "Users with at least one notification connection or a pending offline timer",
		},
	)

	PresenceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_presence_transitions_total",
			Help: "User presence transitions",
		},
		[]string{"state"}, // "online", "offline"
	)

	// Notifications
	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_notifications_delivered_total",
			Help: "Notifications published to user topics",
		},
		[]string{"type"},
	)

	NotificationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_notifications_suppressed_total",
			Help: "Notifications skipped because of recipient preferences",
		},
		[]string{"type"},
	)
)
