// Package broadcast is the topic based publish/subscribe layer that fans
// realtime events out to connected sessions.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBackboneUnavailable means the pub/sub layer cannot currently accept
	// subscriptions or publishes.
	ErrBackboneUnavailable = errors.New("broadcast backbone unavailable")
	ErrClosed              = errors.New("broadcast backbone closed")
)

const (
	roomTopicPrefix = "room:"
	userTopicPrefix = "user:"
)

// Event is the unit of fanout. Data is an already encoded outbound frame so
// every subscriber writes the same bytes. Origin, when set, names the
// connection that produced the event; that connection does not receive it.
type Event struct {
	Origin string `json:"origin,omitempty"`
	Data   []byte `json:"data"`
}

// Subscriber receives events for the topics it joined. Deliver must not block.
type Subscriber interface {
	ID() string
	Deliver(Event)
}

// Backbone is the contract shared by the in-process and redis implementations.
//
// Publish delivers to the subscribers present at call time only. A publish to a
// topic without subscribers is a no-op and unsubscribing an unknown pair is a no-op.
type Backbone interface {
	Subscribe(ctx context.Context, topic string, sub Subscriber) error
	Unsubscribe(ctx context.Context, topic string, subscriberID string) error
	Publish(ctx context.Context, topic string, event Event) error
	Close() error
}

// RoomTopic returns the fanout topic of a chat room.
func RoomTopic(roomID uint) string {
	return fmt.Sprintf("%s%d", roomTopicPrefix, roomID)
}

// UserTopic returns the personal notification topic of a user.
func UserTopic(userID uint) string {
	return fmt.Sprintf("%s%d", userTopicPrefix, userID)
}

// Namespace returns "room", "user" or "other" for metrics labels.
func Namespace(topic string) string {
	switch {
	case strings.HasPrefix(topic, roomTopicPrefix):
		return "room"
	case strings.HasPrefix(topic, userTopicPrefix):
		return "user"
	default:
		return "other"
	}
}
