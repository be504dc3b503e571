// Package presence tracks who is connected: per room topic as a set of
// connection ids, and per user as a debounced online flag.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"realtime-chat/internal/metrics"
)

// DefaultOfflineDelay absorbs tab refreshes and short network drops.
const DefaultOfflineDelay = 20 * time.Second

// DefaultListenerTimeout bounds one listener call.
const DefaultListenerTimeout = 10 * time.Second

// Listener is told about user online/offline transitions. Calls run outside
// the tracker's locks on a per-user dispatch goroutine, so transitions of one
// user arrive in order and never more than one call per user is in flight.
type Listener interface {
	PresenceChanged(ctx context.Context, userID uint, online bool, at time.Time)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, userID uint, online bool, at time.Time)

func (f ListenerFunc) PresenceChanged(ctx context.Context, userID uint, online bool, at time.Time) {
	f(ctx, userID, online, at)
}

// Announce is called with the room cardinality right after a join or leave.
type Announce func(count int)

type roomEntry struct {
	mu    sync.Mutex
	conns map[string]struct{}
	dead  bool
}

type userEntry struct {
	mu       sync.Mutex
	conns    int
	online   bool
	lastSeen time.Time
	timer    *time.Timer
	gen      uint64
	dead     bool
}

// userQueue holds transitions decided but not yet handed to the listener. It
// outlives userEntry so a reconnect right after an expiry keeps its order.
type userQueue struct {
	pending []change
}

type change struct {
	ctx    context.Context
	online bool
	at     time.Time
}

// Tracker is the process-wide presence state. Create one at server start and
// call Shutdown when stopping.
type Tracker struct {
	offlineDelay    time.Duration
	listenerTimeout time.Duration
	listener        Listener
	logger       *slog.Logger
	now          func() time.Time

	roomsMu sync.Mutex
	rooms   map[string]*roomEntry

	usersMu sync.Mutex
	users   map[uint]*userEntry
	closed  bool

	queuesMu sync.Mutex
	queues   map[uint]*userQueue
	dispatch sync.WaitGroup
}

type Option func(*Tracker)

func WithOfflineDelay(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.offlineDelay = d
		}
	}
}

func WithListenerTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.listenerTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func NewTracker(listener Listener, opts ...Option) *Tracker {
	t := &Tracker{
		offlineDelay:    DefaultOfflineDelay,
		listenerTimeout: DefaultListenerTimeout,
		listener:        listener,
		logger:          slog.Default(),
		now:             time.Now,
		rooms:           make(map[string]*roomEntry),
		users:           make(map[uint]*userEntry),
		queues:          make(map[uint]*userQueue),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "presence")
	return t
}

// =============================================================================
// Room presence
// =============================================================================

// lockRoom returns the live entry for topic with its lock held.
func (t *Tracker) lockRoom(topic string, create bool) *roomEntry {
	for {
		t.roomsMu.Lock()
		r, ok := t.rooms[topic]
		if !ok {
			if !create {
				t.roomsMu.Unlock()
				return nil
			}
			r = &roomEntry{conns: make(map[string]struct{})}
			t.rooms[topic] = r
		}
		t.roomsMu.Unlock()

		r.mu.Lock()
		if !r.dead {
			return r
		}
		// emptied and dropped between lookup and lock
		r.mu.Unlock()
	}
}

// JoinRoom adds connID to the room set and returns the new cardinality. When
// announce is non-nil it runs before the room is unlocked, so presence counts
// of one room are published in the order they were produced.
func (t *Tracker) JoinRoom(topic, connID string, announce Announce) int {
	r := t.lockRoom(topic, true)
	defer r.mu.Unlock()

	r.conns[connID] = struct{}{}
	count := len(r.conns)
	if announce != nil {
		announce(count)
	}
	return count
}

// LeaveRoom removes connID and returns the remaining cardinality. Leaving a
// room the connection never joined returns the current count and does not
// announce.
func (t *Tracker) LeaveRoom(topic, connID string, announce Announce) int {
	r := t.lockRoom(topic, false)
	if r == nil {
		return 0
	}
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; !ok {
		return len(r.conns)
	}
	delete(r.conns, connID)
	count := len(r.conns)
	if count == 0 {
		r.dead = true
		t.roomsMu.Lock()
		if t.rooms[topic] == r {
			delete(t.rooms, topic)
		}
		t.roomsMu.Unlock()
	}
	if announce != nil {
		announce(count)
	}
	return count
}

// RoomCount is the live cardinality of a room.
func (t *Tracker) RoomCount(topic string) int {
	r := t.lockRoom(topic, false)
	if r == nil {
		return 0
	}
	defer r.mu.Unlock()
	return len(r.conns)
}

// =============================================================================
// User presence
// =============================================================================

func (t *Tracker) lockUser(userID uint, create bool) *userEntry {
	for {
		t.usersMu.Lock()
		if t.closed {
			t.usersMu.Unlock()
			return nil
		}
		u, ok := t.users[userID]
		if !ok {
			if !create {
				t.usersMu.Unlock()
				return nil
			}
			u = &userEntry{}
			t.users[userID] = u
		}
		t.usersMu.Unlock()

		u.mu.Lock()
		if !u.dead {
			return u
		}
		u.mu.Unlock()
	}
}

// Connect records a new notification connection for userID. A pending offline
// timer is cancelled. The listener hears "online" only when the user was
// offline, so a quick reconnect produces no event at all.
func (t *Tracker) Connect(ctx context.Context, userID uint) {
	u := t.lockUser(userID, true)
	if u == nil {
		return
	}
	defer u.mu.Unlock()

	u.conns++
	u.cancelTimer()
	u.lastSeen = t.now()
	if u.online {
		return
	}
	u.online = true
	metrics.OnlineUsers.Inc()
	metrics.PresenceTransitions.WithLabelValues("online").Inc()
	t.logger.Debug("User online", "userID", userID)
	t.notify(ctx, userID, u, true)
}

// Disconnect records a closed notification connection. When the last
// connection of the user closes, the offline transition is scheduled after the
// debounce delay.
func (t *Tracker) Disconnect(userID uint) {
	u := t.lockUser(userID, false)
	if u == nil {
		return
	}
	defer u.mu.Unlock()

	if u.conns == 0 {
		return
	}
	u.conns--
	u.lastSeen = t.now()
	if u.conns > 0 {
		return
	}

	u.cancelTimer()
	gen := u.gen
	u.timer = time.AfterFunc(t.offlineDelay, func() {
		t.expire(userID, u, gen)
	})
}

// expire runs on the debounce timer. A stale generation means the timer was
// cancelled after it had already fired, which makes it a no-op.
func (t *Tracker) expire(userID uint, u *userEntry, gen uint64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.dead || u.gen != gen || u.conns > 0 || !u.online {
		return
	}
	u.timer = nil
	t.goOffline(context.Background(), userID, u)
	t.dropUser(userID, u)
}

// goOffline must be called with u.mu held.
func (t *Tracker) goOffline(ctx context.Context, userID uint, u *userEntry) {
	u.online = false
	u.lastSeen = t.now()
	metrics.OnlineUsers.Dec()
	metrics.PresenceTransitions.WithLabelValues("offline").Inc()
	t.logger.Debug("User offline", "userID", userID)
	t.notify(ctx, userID, u, false)
}

// notify queues a transition for the listener. It must be called with u.mu
// held, which orders the transitions of one user. A queued transition that the
// new one reverts is dropped instead, since the listener never saw it.
func (t *Tracker) notify(ctx context.Context, userID uint, u *userEntry, online bool) {
	if t.listener == nil {
		return
	}
	c := change{ctx: context.WithoutCancel(ctx), online: online, at: u.lastSeen}

	t.queuesMu.Lock()
	defer t.queuesMu.Unlock()

	q, draining := t.queues[userID]
	if !draining {
		q = &userQueue{}
		t.queues[userID] = q
	}
	if n := len(q.pending); n > 0 && q.pending[n-1].online != online {
		q.pending = q.pending[:n-1]
		return
	}
	q.pending = append(q.pending, c)
	if !draining {
		t.dispatch.Add(1)
		go t.drain(userID, q)
	}
}

// drain delivers the user's queued transitions one at a time. No tracker lock
// is held during the listener call.
func (t *Tracker) drain(userID uint, q *userQueue) {
	defer t.dispatch.Done()
	for {
		t.queuesMu.Lock()
		if len(q.pending) == 0 {
			delete(t.queues, userID)
			t.queuesMu.Unlock()
			return
		}
		c := q.pending[0]
		q.pending = q.pending[1:]
		t.queuesMu.Unlock()

		t.deliver(userID, c)
	}
}

func (t *Tracker) deliver(userID uint, c change) {
	ctx, cancel := context.WithTimeout(c.ctx, t.listenerTimeout)
	defer cancel()
	t.listener.PresenceChanged(ctx, userID, c.online, c.at)
}

// wait blocks until every queued transition was delivered or ctx is done.
func (t *Tracker) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.dispatch.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) dropUser(userID uint, u *userEntry) {
	u.dead = true
	t.usersMu.Lock()
	if t.users[userID] == u {
		delete(t.users, userID)
	}
	t.usersMu.Unlock()
}

func (u *userEntry) cancelTimer() {
	u.gen++
	if u.timer != nil {
		u.timer.Stop()
		u.timer = nil
	}
}

// IsOnline reports the debounced state of a user.
func (t *Tracker) IsOnline(userID uint) bool {
	u := t.lockUser(userID, false)
	if u == nil {
		return false
	}
	defer u.mu.Unlock()
	return u.online
}

// Connections is the number of open notification connections of a user.
func (t *Tracker) Connections(userID uint) int {
	u := t.lockUser(userID, false)
	if u == nil {
		return 0
	}
	defer u.mu.Unlock()
	return u.conns
}

// Shutdown cancels every pending timer and marks all online users offline so
// their friends are not left with a stale online flag. It returns once those
// transitions were delivered or ctx is done.
func (t *Tracker) Shutdown(ctx context.Context) {
	t.usersMu.Lock()
	t.closed = true
	users := make(map[uint]*userEntry, len(t.users))
	for id, u := range t.users {
		users[id] = u
	}
	t.users = make(map[uint]*userEntry)
	t.usersMu.Unlock()

	for id, u := range users {
		u.mu.Lock()
		u.cancelTimer()
		if u.online && !u.dead {
			t.goOffline(ctx, id, u)
		}
		u.dead = true
		u.mu.Unlock()
	}
	if err := t.wait(ctx); err != nil {
		t.logger.Warn("Presence flush interrupted", "error", err)
		return
	}
	t.logger.Info("Presence tracker stopped", "users", len(users))
}
