package broadcast

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	id string

	mu     sync.Mutex
	events []Event
}

func (c *collector) ID() string { return c.id }

func (c *collector) Deliver(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) payloads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, string(e.Data))
	}
	return out
}

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "room:42", RoomTopic(42))
	assert.Equal(t, "user:7", UserTopic(7))
	assert.Equal(t, "room", Namespace("room:1"))
	assert.Equal(t, "user", Namespace("user:1"))
	assert.Equal(t, "other", Namespace("misc"))
}

func TestMemoryPublishDeliversToCurrentSubscribers(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackbone()
	a, bb, c := &collector{id: "a"}, &collector{id: "b"}, &collector{id: "c"}

	require.NoError(t, b.Subscribe(ctx, "room:1", a))
	require.NoError(t, b.Subscribe(ctx, "room:1", bb))
	require.NoError(t, b.Publish(ctx, "room:1", Event{Data: []byte("1")}))

	require.NoError(t, b.Subscribe(ctx, "room:1", c))
	require.NoError(t, b.Unsubscribe(ctx, "room:1", "a"))
	require.NoError(t, b.Publish(ctx, "room:1", Event{Data: []byte("2")}))

	require.NoError(t, b.Unsubscribe(ctx, "room:1", "b"))
	require.NoError(t, b.Publish(ctx, "room:1", Event{Data: []byte("3")}))

	require.NoError(t, b.Subscribe(ctx, "room:1", a))
	require.NoError(t, b.Publish(ctx, "room:1", Event{Data: []byte("4")}))

	assert.Equal(t, []string{"1", "4"}, a.payloads())
	assert.Equal(t, []string{"1", "2"}, bb.payloads())
	assert.Equal(t, []string{"2", "3", "4"}, c.payloads())
}

func TestMemoryOriginIsSkipped(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackbone()
	a, c := &collector{id: "a"}, &collector{id: "c"}
	require.NoError(t, b.Subscribe(ctx, "room:1", a))
	require.NoError(t, b.Subscribe(ctx, "room:1", c))

	require.NoError(t, b.Publish(ctx, "room:1", Event{Origin: "a", Data: []byte("typing")}))

	assert.Empty(t, a.payloads())
	assert.Equal(t, []string{"typing"}, c.payloads())
}

func TestMemoryNoops(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackbone()

	assert.NoError(t, b.Publish(ctx, "room:404", Event{Data: []byte("x")}))
	assert.NoError(t, b.Unsubscribe(ctx, "room:404", "nobody"))
	assert.Empty(t, b.Topics())
}

func TestMemoryTopicsDropWhenEmpty(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackbone()
	a := &collector{id: "a"}

	require.NoError(t, b.Subscribe(ctx, "user:1", a))
	assert.Equal(t, []string{"user:1"}, b.Topics())

	require.NoError(t, b.Unsubscribe(ctx, "user:1", "a"))
	assert.Empty(t, b.Topics())
}

func TestMemoryClosed(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackbone()
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.Subscribe(ctx, "room:1", &collector{id: "a"}), ErrClosed)
	assert.ErrorIs(t, b.Publish(ctx, "room:1", Event{}), ErrClosed)
}

func TestRegistryAddRemoveTransitions(t *testing.T) {
	r := newRegistry()
	a, c := &collector{id: "a"}, &collector{id: "c"}

	assert.True(t, r.add("room:1", a))
	assert.False(t, r.add("room:1", c))
	assert.False(t, r.remove("room:1", "a"))
	assert.False(t, r.remove("room:1", "ghost"))
	assert.True(t, r.remove("room:1", "c"))
	assert.False(t, r.remove("room:1", "c"))
}
