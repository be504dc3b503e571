package websocket

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"realtime-chat/internal/broadcast"
	"realtime-chat/internal/metrics"
	"realtime-chat/internal/services"

	"github.com/gorilla/websocket"
)

// Application close codes
const (
	CloseUnauthorized = 4401
	CloseForbidden    = 4403
	CloseNotFound     = 4404
)

var (
	errClientClosed  = errors.New("client closed")
	errInvalidRoomID = errors.New("invalid room id")
)

// closeCode maps a join or session failure onto the close code the client sees.
func closeCode(err error) (int, string) {
	switch {
	case errors.Is(err, errInvalidRoomID), errors.Is(err, services.ErrNotFound):
		return CloseNotFound, "room not found"
	case errors.Is(err, services.ErrForbidden):
		return CloseForbidden, "forbidden"
	case errors.Is(err, services.ErrUnauthenticated):
		return CloseUnauthorized, "unauthorized"
	case errors.Is(err, broadcast.ErrBackboneUnavailable):
		return websocket.CloseInternalServerErr, "broadcast unavailable"
	default:
		return websocket.CloseInternalServerErr, "internal error"
	}
}

// reject closes a freshly upgraded connection that never joined a topic.
func reject(conn *websocket.Conn, channel string, err error, logger *slog.Logger) {
	code, reason := closeCode(err)
	metrics.ConnectionRejections.WithLabelValues(channel, strconv.Itoa(code)).Inc()
	if code == websocket.CloseInternalServerErr {
		logger.Error("Rejecting websocket connection", "code", code, "error", err)
	} else {
		logger.Info("Rejecting websocket connection", "code", code, "reason", err)
	}

	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}

// abort ends a registered client's session before it reached the joined state.
func (c *Client) abort(err error) {
	code, reason := closeCode(err)
	metrics.ConnectionRejections.WithLabelValues(c.channel, strconv.Itoa(code)).Inc()
	c.logger.Error("Aborting websocket session", "code", code, "error", err)
	c.Close(code, reason)
}

// isFatal reports whether a frame error should end the session.
func isFatal(err error) bool {
	return errors.Is(err, broadcast.ErrBackboneUnavailable) || errors.Is(err, broadcast.ErrClosed)
}
