package routes

import (
	"context"
	"sync"
	"time"

	"realtime-chat/internal/broadcast"
	"realtime-chat/internal/models"
	"realtime-chat/internal/repositories"

	"gorm.io/gorm"
)

type roomStore map[uint]*models.Room

func (s roomStore) GetByID(_ context.Context, id uint) (*models.Room, error) {
	if r, ok := s[id]; ok {
		return r, nil
	}
	return nil, repositories.ErrNotFound
}

type messageStore struct {
	mu   sync.Mutex
	rows map[string]*models.Message
}

func (s *messageStore) Create(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = m.BeforeCreate(nil)
	s.rows[m.ID] = m
	return nil
}

func (s *messageStore) FindByID(_ context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.rows[id]; ok {
		return m, nil
	}
	return nil, repositories.ErrNotFound
}

func (s *messageStore) Delete(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, m.ID)
	return nil
}

type userStore struct{}

func (userStore) FindByID(_ context.Context, id uint) (*models.User, error) {
	return &models.User{Model: gorm.Model{ID: id}, NotifyPush: true, NotifyMessages: true, NotifyGroups: true, ShowOnline: true}, nil
}

func (userStore) GetDisplayName(context.Context, uint) (string, error) { return "alice", nil }

func (userStore) GetPreferences(context.Context, uint) (models.NotificationPreferences, error) {
	return models.NotificationPreferences{Push: true, Messages: true, Groups: true}, nil
}

func (userStore) UpdatePresence(context.Context, uint, bool, time.Time) error { return nil }

type notificationStore struct {
	mu   sync.Mutex
	rows []*models.Notification
}

func (s *notificationStore) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = uint(len(s.rows) + 1)
	s.rows = append(s.rows, n)
	return nil
}

func (s *notificationStore) CountUnread(_ context.Context, userID uint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rows {
		if r.UserID == userID && !r.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *notificationStore) List(_ context.Context, userID uint, isRead *bool, _, _ int) ([]models.Notification, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, r := range s.rows {
		if r.UserID == userID && (isRead == nil || *isRead == r.IsRead) {
			out = append(out, *r)
		}
	}
	return out, int64(len(out)), nil
}

func (s *notificationStore) MarkRead(_ context.Context, userID uint, ids []uint, all bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.rows {
		if r.UserID != userID || r.IsRead {
			continue
		}
		match := all
		for _, id := range ids {
			match = match || id == r.ID
		}
		if match {
			r.IsRead = true
			n++
		}
	}
	return n, nil
}

type subStore struct {
	mu   sync.Mutex
	subs map[[2]uint]*models.GroupChatSubscription
}

func (s *subStore) Get(_ context.Context, userID, roomID uint) (*models.GroupChatSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[[2]uint{userID, roomID}]; ok {
		return sub, nil
	}
	return nil, repositories.ErrNotFound
}

func (s *subStore) Subscribe(_ context.Context, userID, roomID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[[2]uint{userID, roomID}]; !ok {
		s.subs[[2]uint{userID, roomID}] = &models.GroupChatSubscription{UserID: userID, RoomID: roomID}
	}
	return nil
}

func (s *subStore) Unsubscribe(_ context.Context, userID, roomID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, [2]uint{userID, roomID})
	return nil
}

func (s *subStore) SetMuted(_ context.Context, userID, roomID uint, muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[[2]uint{userID, roomID}]; ok {
		sub.IsMuted = muted
	}
	return nil
}

func (s *subStore) ListSubscriberIDs(context.Context, uint, uint) ([]uint, error) { return nil, nil }

// recorder is a broadcast subscriber that keeps raw frames.
type recorder struct {
	mu     sync.Mutex
	frames []string
}

func (r *recorder) ID() string { return "recorder" }

func (r *recorder) Deliver(e broadcast.Event) {
	r.mu.Lock()
	r.frames = append(r.frames, string(e.Data))
	r.mu.Unlock()
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.frames...)
}
