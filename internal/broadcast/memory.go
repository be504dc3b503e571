package broadcast

import (
	"context"
	"sync"

	"realtime-chat/internal/metrics"
)

// registry tracks local subscribers per topic. Topics exist only while they
// have at least one subscriber.
type registry struct {
	mu     sync.RWMutex
	topics map[string]map[string]Subscriber
}

func newRegistry() *registry {
	return &registry{topics: make(map[string]map[string]Subscriber)}
}

// add returns true when the topic was created by this call.
func (r *registry) add(topic string, sub Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.topics[topic]
	if !ok {
		subs = make(map[string]Subscriber)
		r.topics[topic] = subs
	}
	subs[sub.ID()] = sub
	return !ok
}

// remove returns true when the topic became empty and was dropped.
func (r *registry) remove(topic, subscriberID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.topics[topic]
	if !ok {
		return false
	}
	if _, ok := subs[subscriberID]; !ok {
		return false
	}
	delete(subs, subscriberID)
	if len(subs) == 0 {
		delete(r.topics, topic)
		return true
	}
	return false
}

func (r *registry) snapshot(topic string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.topics[topic]
	if len(subs) == 0 {
		return nil
	}
	out := make([]Subscriber, 0, len(subs))
	for _, s := range subs {
		out = append(out, s)
	}
	return out
}

func (r *registry) topicNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.topics))
	for t := range r.topics {
		out = append(out, t)
	}
	return out
}

// fanout delivers outside the registry lock so a slow topic never blocks
// subscribe/unsubscribe on other topics.
func (r *registry) fanout(topic string, event Event) int {
	delivered := 0
	for _, s := range r.snapshot(topic) {
		if event.Origin != "" && event.Origin == s.ID() {
			continue
		}
		s.Deliver(event)
		delivered++
	}
	return delivered
}

// MemoryBackbone is the single-instance backbone. Publish delivers
// synchronously in the caller's goroutine, so events from one sender keep
// their order.
type MemoryBackbone struct {
	reg *registry

	mu     sync.RWMutex
	closed bool
}

func NewMemoryBackbone() *MemoryBackbone {
	return &MemoryBackbone{reg: newRegistry()}
}

func (b *MemoryBackbone) Subscribe(_ context.Context, topic string, sub Subscriber) error {
	if b.isClosed() {
		return ErrClosed
	}
	b.reg.add(topic, sub)
	return nil
}

func (b *MemoryBackbone) Unsubscribe(_ context.Context, topic string, subscriberID string) error {
	b.reg.remove(topic, subscriberID)
	return nil
}

func (b *MemoryBackbone) Publish(_ context.Context, topic string, event Event) error {
	if b.isClosed() {
		return ErrClosed
	}
	n := b.reg.fanout(topic, event)
	metrics.BroadcastPublished.WithLabelValues(Namespace(topic)).Inc()
	metrics.BroadcastDelivered.WithLabelValues(Namespace(topic)).Add(float64(n))
	return nil
}

// Topics lists the topics that currently have subscribers.
func (b *MemoryBackbone) Topics() []string {
	return b.reg.topicNames()
}

func (b *MemoryBackbone) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *MemoryBackbone) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}
