package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"realtime-chat/internal/metrics"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
)

const redisChannelPrefix = "chat:"

// DefaultSubscribeTimeout bounds the wait for redis to confirm a SUBSCRIBE.
const DefaultSubscribeTimeout = 5 * time.Second

type envelope struct {
	Origin string          `json:"origin,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// BreakerConfig configures the circuit breaker guarding redis calls.
type BreakerConfig struct {
	FailureThreshold uint32
	Timeout          time.Duration
	// SubscribeTimeout bounds how long Subscribe waits for the confirmation.
	SubscribeTimeout time.Duration
}

// RedisBackbone fans events out across instances. Local subscribers are kept
// in a registry; the instance holds one redis SUBSCRIBE per topic that has at
// least one local subscriber, and relays every received payload to them.
// Local delivery only happens through redis, so each event is delivered once.
// Subscribe returns only after redis confirmed the channel, so a publish that
// follows it is delivered.
type RedisBackbone struct {
	client  *redis.Client
	pubsub  *redis.PubSub
	reg     *registry
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger

	// serializes registry transitions with the matching SUBSCRIBE/UNSUBSCRIBE
	subMu sync.Mutex

	subscribeTimeout time.Duration
	pendingMu        sync.Mutex
	pending          map[string]chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRedisBackbone(client *redis.Client, cfg BreakerConfig, logger *slog.Logger) *RedisBackbone {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = DefaultSubscribeTimeout
	}
	logger = logger.With("component", "redis-backbone")

	ctx, cancel := context.WithCancel(context.Background())
	b := &RedisBackbone{
		client: client,
		reg:    newRegistry(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),

		subscribeTimeout: cfg.SubscribeTimeout,
		pending:          make(map[string]chan struct{}),
	}
	b.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "redis-backbone",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			metrics.BroadcastBreakerState.Set(float64(to))
		},
	})

	b.pubsub = client.Subscribe(ctx)
	go b.relay()
	return b
}

func (b *RedisBackbone) Subscribe(ctx context.Context, topic string, sub Subscriber) error {
	if b.ctx.Err() != nil {
		return ErrClosed
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()

	if !b.reg.add(topic, sub) {
		return nil
	}
	channel := redisChannelPrefix + topic
	_, err := b.breaker.Execute(func() (any, error) {
		confirmed := b.expect(channel)
		if err := b.pubsub.Subscribe(ctx, channel); err != nil {
			b.forget(channel)
			return nil, err
		}
		return nil, b.awaitConfirm(ctx, channel, confirmed)
	})
	if err != nil {
		b.reg.remove(topic, sub.ID())
		return unavailable("subscribe", topic, err)
	}
	b.logger.Debug("Subscribed to redis channel", "topic", topic)
	return nil
}

func (b *RedisBackbone) Unsubscribe(ctx context.Context, topic string, subscriberID string) error {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	if !b.reg.remove(topic, subscriberID) {
		return nil
	}
	if b.ctx.Err() != nil {
		return nil
	}
	if err := b.pubsub.Unsubscribe(ctx, redisChannelPrefix+topic); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", topic, err)
	}
	return nil
}

func (b *RedisBackbone) Publish(ctx context.Context, topic string, event Event) error {
	if b.ctx.Err() != nil {
		return ErrClosed
	}
	payload, err := json.Marshal(envelope{Origin: event.Origin, Data: event.Data})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = b.breaker.Execute(func() (any, error) {
		return nil, b.client.Publish(ctx, redisChannelPrefix+topic, payload).Err()
	})
	if err != nil {
		metrics.BroadcastFailures.WithLabelValues(Namespace(topic)).Inc()
		return unavailable("publish", topic, err)
	}
	metrics.BroadcastPublished.WithLabelValues(Namespace(topic)).Inc()
	return nil
}

// expect registers a waiter for the SUBSCRIBE confirmation of channel.
func (b *RedisBackbone) expect(channel string) chan struct{} {
	ch := make(chan struct{})
	b.pendingMu.Lock()
	b.pending[channel] = ch
	b.pendingMu.Unlock()
	return ch
}

func (b *RedisBackbone) forget(channel string) {
	b.pendingMu.Lock()
	delete(b.pending, channel)
	b.pendingMu.Unlock()
}

// confirmed releases the waiter of channel, if any.
func (b *RedisBackbone) confirmed(channel string) {
	b.pendingMu.Lock()
	ch, ok := b.pending[channel]
	delete(b.pending, channel)
	b.pendingMu.Unlock()
	if ok {
		close(ch)
	}
}

func (b *RedisBackbone) awaitConfirm(ctx context.Context, channel string, ch chan struct{}) error {
	timer := time.NewTimer(b.subscribeTimeout)
	defer timer.Stop()

	select {
	case <-ch:
		return nil
	case <-timer.C:
		b.forget(channel)
		return fmt.Errorf("no confirmation for %s after %s", channel, b.subscribeTimeout)
	case <-ctx.Done():
		b.forget(channel)
		return ctx.Err()
	case <-b.ctx.Done():
		b.forget(channel)
		return ErrClosed
	}
}

// relay distributes redis messages to local subscribers until Close.
func (b *RedisBackbone) relay() {
	defer close(b.done)

	for item := range b.pubsub.ChannelWithSubscriptions() {
		var msg *redis.Message
		switch v := item.(type) {
		case *redis.Subscription:
			if v.Kind == "subscribe" {
				b.confirmed(v.Channel)
			}
			continue
		case *redis.Message:
			msg = v
		default:
			continue
		}
		topic := strings.TrimPrefix(msg.Channel, redisChannelPrefix)

		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			b.logger.Error("Failed to decode redis event", "channel", msg.Channel, "error", err)
			continue
		}
		n := b.reg.fanout(topic, Event{Origin: env.Origin, Data: env.Data})
		metrics.BroadcastDelivered.WithLabelValues(Namespace(topic)).Add(float64(n))
	}
}

func (b *RedisBackbone) Close() error {
	b.cancel()
	err := b.pubsub.Close()
	<-b.done
	return err
}

func unavailable(op, topic string, err error) error {
	return fmt.Errorf("%s %s: %w: %v", op, topic, ErrBackboneUnavailable, err)
}
