package presence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transition struct {
	userID uint
	online bool
}

type recorder struct {
	mu     sync.Mutex
	events []transition
}

func (r *recorder) PresenceChanged(_ context.Context, userID uint, online bool, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, transition{userID, online})
}

func (r *recorder) snapshot() []transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transition(nil), r.events...)
}

// gated records each call and then holds it until gate is closed.
type gated struct {
	recorder
	gate chan struct{}
}

func (g *gated) PresenceChanged(ctx context.Context, userID uint, online bool, at time.Time) {
	g.recorder.PresenceChanged(ctx, userID, online, at)
	select {
	case <-g.gate:
	case <-ctx.Done():
	}
}

func settle(t *testing.T, tr *Tracker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.wait(ctx))
}

func within(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("call did not return within %s", d)
	}
}

func TestJoinLeaveCounts(t *testing.T) {
	tr := NewTracker(nil)

	var announced []int
	announce := func(n int) { announced = append(announced, n) }

	assert.Equal(t, 1, tr.JoinRoom("room:1", "a", announce))
	assert.Equal(t, 2, tr.JoinRoom("room:1", "b", announce))
	assert.Equal(t, 1, tr.JoinRoom("room:2", "c", announce))
	assert.Equal(t, 1, tr.LeaveRoom("room:1", "a", announce))

	assert.Equal(t, []int{1, 2, 1, 1}, announced)
	assert.Equal(t, 1, tr.RoomCount("room:1"))
	assert.Equal(t, 1, tr.RoomCount("room:2"))
}

func TestLeaveUnknownConnection(t *testing.T) {
	tr := NewTracker(nil)
	tr.JoinRoom("room:1", "a", nil)

	called := false
	assert.Equal(t, 1, tr.LeaveRoom("room:1", "ghost", func(int) { called = true }))
	assert.Equal(t, 0, tr.LeaveRoom("room:9", "a", func(int) { called = true }))
	assert.False(t, called)
}

func TestEmptyRoomIsDropped(t *testing.T) {
	tr := NewTracker(nil)
	tr.JoinRoom("room:1", "a", nil)
	tr.LeaveRoom("room:1", "a", nil)

	tr.roomsMu.Lock()
	_, ok := tr.rooms["room:1"]
	tr.roomsMu.Unlock()
	assert.False(t, ok)

	assert.Equal(t, 1, tr.JoinRoom("room:1", "b", nil))
}

func TestConcurrentJoinLeaveLastCount(t *testing.T) {
	tr := NewTracker(nil)
	const joins, leaves = 50, 20

	for i := 0; i < joins; i++ {
		tr.JoinRoom("room:7", fmt.Sprintf("c%d", i), nil)
	}

	var mu sync.Mutex
	var last int
	announce := func(n int) {
		mu.Lock()
		last = n
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < leaves; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.LeaveRoom("room:7", fmt.Sprintf("c%d", i), announce)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, joins-leaves, last)
	assert.Equal(t, joins-leaves, tr.RoomCount("room:7"))
}

func TestAnnouncedCountsAreOrdered(t *testing.T) {
	tr := NewTracker(nil)

	var mu sync.Mutex
	var counts []int
	announce := func(n int) {
		mu.Lock()
		counts = append(counts, n)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.JoinRoom("room:3", fmt.Sprintf("c%d", i), announce)
		}(i)
	}
	wg.Wait()

	require.Len(t, counts, 30)
	for i, n := range counts {
		assert.Equal(t, i+1, n)
	}
}

func TestUserOnlineOnce(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec, WithOfflineDelay(time.Hour))
	ctx := context.Background()

	tr.Connect(ctx, 5)
	tr.Connect(ctx, 5)
	tr.Disconnect(5)
	settle(t, tr)

	assert.Equal(t, []transition{{5, true}}, rec.snapshot())
	assert.True(t, tr.IsOnline(5))
	assert.Equal(t, 1, tr.Connections(5))
}

func TestOfflineAfterDelay(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec, WithOfflineDelay(30*time.Millisecond))

	tr.Connect(context.Background(), 9)
	tr.Disconnect(9)

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []transition{{9, true}, {9, false}}, rec.snapshot())
	assert.False(t, tr.IsOnline(9))
}

func TestReconnectWithinWindow(t *testing.T) {
	rec := &recorder{}
	delay := 80 * time.Millisecond
	tr := NewTracker(rec, WithOfflineDelay(delay))
	ctx := context.Background()

	tr.Connect(ctx, 3)
	tr.Disconnect(3)
	time.Sleep(delay / 2)
	tr.Connect(ctx, 3)

	time.Sleep(2 * delay)
	settle(t, tr)
	assert.Equal(t, []transition{{3, true}}, rec.snapshot())
	assert.True(t, tr.IsOnline(3))
}

func TestStaleTimerIsNoop(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec, WithOfflineDelay(time.Hour))
	ctx := context.Background()

	tr.Connect(ctx, 4)
	tr.Disconnect(4)

	tr.usersMu.Lock()
	u := tr.users[4]
	tr.usersMu.Unlock()
	require.NotNil(t, u)

	u.mu.Lock()
	gen := u.gen
	u.mu.Unlock()

	// reconnect cancels the timer, then the old callback runs anyway
	tr.Connect(ctx, 4)
	tr.expire(4, u, gen)
	settle(t, tr)

	assert.Equal(t, []transition{{4, true}}, rec.snapshot())
	assert.True(t, tr.IsOnline(4))
}

func TestDisconnectUnknownUser(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec)
	tr.Disconnect(77)
	assert.Empty(t, rec.snapshot())
}

func TestShutdownFlushesOnlineUsers(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec, WithOfflineDelay(time.Hour))
	ctx := context.Background()

	tr.Connect(ctx, 1)
	tr.Connect(ctx, 2)
	tr.Disconnect(2)
	settle(t, tr)

	tr.Shutdown(ctx)

	events := rec.snapshot()
	assert.Len(t, events, 4)
	assert.ElementsMatch(t, []transition{{1, true}, {2, true}, {1, false}, {2, false}}, events)

	// no effect after shutdown
	tr.Connect(ctx, 1)
	assert.Len(t, rec.snapshot(), 4)
}

func TestSlowListenerDoesNotBlockConnections(t *testing.T) {
	l := &gated{gate: make(chan struct{})}
	tr := NewTracker(l, WithOfflineDelay(time.Hour))
	ctx := context.Background()
	defer close(l.gate)

	within(t, 500*time.Millisecond, func() { tr.Connect(ctx, 7) })
	require.Eventually(t, func() bool { return len(l.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	// the listener is now stuck on the first transition
	within(t, 500*time.Millisecond, func() {
		tr.Connect(ctx, 7)
		assert.True(t, tr.IsOnline(7))
		assert.Equal(t, 2, tr.Connections(7))
		tr.Disconnect(7)
	})
	assert.Equal(t, []transition{{7, true}}, l.snapshot())
}

func TestListenerCallHasDeadline(t *testing.T) {
	var mu sync.Mutex
	var got error
	l := ListenerFunc(func(ctx context.Context, _ uint, _ bool, _ time.Time) {
		<-ctx.Done()
		mu.Lock()
		got = ctx.Err()
		mu.Unlock()
	})
	tr := NewTracker(l, WithListenerTimeout(20*time.Millisecond))

	tr.Connect(context.Background(), 1)
	settle(t, tr)

	mu.Lock()
	defer mu.Unlock()
	assert.ErrorIs(t, got, context.DeadlineExceeded)
}

func TestTransitionsDeliveredInOrder(t *testing.T) {
	l := &gated{gate: make(chan struct{})}
	tr := NewTracker(l, WithOfflineDelay(10*time.Millisecond))

	tr.Connect(context.Background(), 2)
	require.Eventually(t, func() bool { return len(l.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	tr.Disconnect(2)
	require.Eventually(t, func() bool { return !tr.IsOnline(2) }, time.Second, 5*time.Millisecond)

	close(l.gate)
	settle(t, tr)
	assert.Equal(t, []transition{{2, true}, {2, false}}, l.snapshot())
}

func TestRevertedQueuedTransitionIsDropped(t *testing.T) {
	l := &gated{gate: make(chan struct{})}
	tr := NewTracker(l, WithOfflineDelay(10*time.Millisecond))
	ctx := context.Background()

	tr.Connect(ctx, 3)
	require.Eventually(t, func() bool { return len(l.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	// offline is queued behind the blocked call, then reverted by a reconnect
	tr.Disconnect(3)
	require.Eventually(t, func() bool { return !tr.IsOnline(3) }, time.Second, 5*time.Millisecond)
	tr.Connect(ctx, 3)

	close(l.gate)
	settle(t, tr)
	assert.Equal(t, []transition{{3, true}}, l.snapshot())
	assert.True(t, tr.IsOnline(3))
}
