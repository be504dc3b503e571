package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"realtime-chat/internal/broadcast"
	"realtime-chat/internal/models"
	"realtime-chat/internal/repositories"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
)

type fakeRooms struct {
	rooms map[uint]*models.Room
}

func (f *fakeRooms) GetByID(_ context.Context, id uint) (*models.Room, error) {
	r, ok := f.rooms[id]
	if !ok {
		return nil, fmt.Errorf("get room: %w", repositories.ErrNotFound)
	}
	return r, nil
}

type fakeMessages struct {
	mu   sync.Mutex
	rows map[string]*models.Message
	err  error
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{rows: make(map[string]*models.Message)}
}

func (f *fakeMessages) Create(_ context.Context, m *models.Message) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = m.BeforeCreate(nil)
	f.rows[m.ID] = m
	return nil
}

func (f *fakeMessages) FindByID(_ context.Context, id string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return m, nil
}

func (f *fakeMessages) Delete(_ context.Context, m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, m.ID)
	return nil
}

func (f *fakeMessages) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeUsers struct {
	mu       sync.Mutex
	users    map[uint]*models.User
	presence map[uint]bool
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: make(map[uint]*models.User), presence: make(map[uint]bool)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func user(id uint, name string) *models.User {
	return &models.User{
		Model:          gorm.Model{ID: id},
		Nickname:       name,
		NotifyPush:     true,
		NotifyMessages: true,
		NotifyGroups:   true,
		ShowOnline:     true,
	}
}

func (f *fakeUsers) FindByID(_ context.Context, id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetDisplayName(ctx context.Context, id uint) (string, error) {
	u, err := f.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return u.DisplayName(), nil
}

func (f *fakeUsers) GetPreferences(ctx context.Context, id uint) (models.NotificationPreferences, error) {
	u, err := f.FindByID(ctx, id)
	if err != nil {
		return models.NotificationPreferences{}, err
	}
	return u.Preferences(), nil
}

func (f *fakeUsers) UpdatePresence(_ context.Context, id uint, online bool, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presence[id] = online
	return nil
}

type fakeFriends map[uint][]uint

func (f fakeFriends) GetFriendIDs(_ context.Context, id uint) ([]uint, error) {
	return f[id], nil
}

type fakeNotifications struct {
	mu   sync.Mutex
	rows []*models.Notification
}

func (f *fakeNotifications) Create(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = uint(len(f.rows) + 1)
	n.CreatedAt = time.Now()
	f.rows = append(f.rows, n)
	return nil
}

func (f *fakeNotifications) CountUnread(_ context.Context, userID uint) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.UserID == userID && !r.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifications) List(_ context.Context, userID uint, isRead *bool, page, pageSize int) ([]models.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, r := range f.rows {
		if r.UserID == userID && (isRead == nil || r.IsRead == *isRead) {
			out = append(out, *r)
		}
	}
	total := int64(len(out))
	start := (page - 1) * pageSize
	if start > len(out) {
		start = len(out)
	}
	end := start + pageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, userID uint, ids []uint, all bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[uint]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for _, r := range f.rows {
		if r.UserID != userID || r.IsRead {
			continue
		}
		if all || want[r.ID] {
			r.IsRead = true
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifications) forUser(userID uint) []*models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Notification
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

type fakeSubs struct {
	mu   sync.Mutex
	subs map[[2]uint]*models.GroupChatSubscription
}

func newFakeSubs() *fakeSubs {
	return &fakeSubs{subs: make(map[[2]uint]*models.GroupChatSubscription)}
}

func (f *fakeSubs) Get(_ context.Context, userID, roomID uint) (*models.GroupChatSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[[2]uint{userID, roomID}]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return s, nil
}

func (f *fakeSubs) Subscribe(_ context.Context, userID, roomID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[[2]uint{userID, roomID}]; !ok {
		f.subs[[2]uint{userID, roomID}] = &models.GroupChatSubscription{UserID: userID, RoomID: roomID}
	}
	return nil
}

func (f *fakeSubs) Unsubscribe(_ context.Context, userID, roomID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, [2]uint{userID, roomID})
	return nil
}

func (f *fakeSubs) SetMuted(_ context.Context, userID, roomID uint, muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.subs[[2]uint{userID, roomID}]; ok {
		s.IsMuted = muted
	}
	return nil
}

func (f *fakeSubs) ListSubscriberIDs(_ context.Context, roomID, exclude uint) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uint
	for k, s := range f.subs {
		if k[1] == roomID && k[0] != exclude && !s.IsMuted {
			ids = append(ids, k[0])
		}
	}
	return ids, nil
}

// sink collects frames published to one topic.
type sink struct {
	id string

	mu     sync.Mutex
	frames []map[string]interface{}
}

func (s *sink) ID() string { return s.id }

func (s *sink) Deliver(e broadcast.Event) {
	var m map[string]interface{}
	_ = json.Unmarshal(e.Data, &m)
	s.mu.Lock()
	s.frames = append(s.frames, m)
	s.mu.Unlock()
}

func (s *sink) all() []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]interface{}(nil), s.frames...)
}

func listen(b broadcast.Backbone, topic string) *sink {
	s := &sink{id: "sink-" + topic}
	_ = b.Subscribe(context.Background(), topic, s)
	return s
}

// failingBackbone rejects publishes to the listed topics.
type failingBackbone struct {
	broadcast.Backbone
	fail map[string]bool
}

func (f *failingBackbone) Publish(ctx context.Context, topic string, e broadcast.Event) error {
	if f.fail[topic] {
		return broadcast.ErrBackboneUnavailable
	}
	return f.Backbone.Publish(ctx, topic, e)
}

type hookSpy struct {
	mu    sync.Mutex
	calls []string
}

func (h *hookSpy) OnMessageCreated(_ context.Context, _ *models.Room, msg *models.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, msg.ID)
	return nil
}
