package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"realtime-chat/internal/auth"
	"realtime-chat/internal/broadcast"
	"realtime-chat/internal/models"
	"realtime-chat/internal/presence"
	"realtime-chat/internal/repositories"
	"realtime-chat/internal/services"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type roomStore map[uint]*models.Room

func (s roomStore) GetByID(_ context.Context, id uint) (*models.Room, error) {
	r, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("get room %d: %w", id, repositories.ErrNotFound)
	}
	return r, nil
}

type messageStore struct {
	mu   sync.Mutex
	rows []*models.Message
}

func (s *messageStore) Create(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = m.BeforeCreate(nil)
	s.rows = append(s.rows, m)
	return nil
}

func (s *messageStore) FindByID(_ context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.rows {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *messageStore) Delete(context.Context, *models.Message) error { return nil }

func (s *messageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type userStore struct{}

func (userStore) FindByID(_ context.Context, id uint) (*models.User, error) {
	return &models.User{Model: gorm.Model{ID: id}, Nickname: fmt.Sprintf("u%d", id)}, nil
}

func (userStore) GetDisplayName(_ context.Context, id uint) (string, error) {
	return fmt.Sprintf("u%d", id), nil
}

func (userStore) GetPreferences(context.Context, uint) (models.NotificationPreferences, error) {
	return models.NotificationPreferences{Push: true, Messages: true, Groups: true}, nil
}

func (userStore) UpdatePresence(context.Context, uint, bool, time.Time) error { return nil }

type unreadCounter int

func (u unreadCounter) UnreadCount(context.Context, uint) (int, error) { return int(u), nil }

// downBackbone fails every subscribe the way the redis backbone does once its
// breaker is open.
type downBackbone struct{ broadcast.Backbone }

func (downBackbone) Subscribe(context.Context, string, broadcast.Subscriber) error {
	return broadcast.ErrBackboneUnavailable
}

type testEnv struct {
	server   *httptest.Server
	backbone broadcast.Backbone
	tracker  *presence.Tracker
	hub      *Hub
	messages *messageStore
}

func testRooms() roomStore {
	return roomStore{
		42: {Model: gorm.Model{ID: 42}, Type: models.RoomTypeGroup},
		7: {
			Model: gorm.Model{ID: 7},
			Type:  models.RoomTypePrivate,
			Participants: []models.RoomParticipant{
				{RoomID: 7, UserID: 1},
				{RoomID: 7, UserID: 2},
			},
		},
	}
}

// newTestEnv serves /ws/chat/{id} and /ws/notifications. The identity is taken
// from the uid query parameter.
func newTestEnv(t *testing.T, bb broadcast.Backbone, opts Options) *testEnv {
	t.Helper()
	if bb == nil {
		bb = broadcast.NewMemoryBackbone()
	}
	env := &testEnv{
		backbone: bb,
		tracker:  presence.NewTracker(nil, presence.WithOfflineDelay(time.Hour)),
		hub:      NewHub(),
		messages: &messageStore{},
	}
	rooms := services.NewRoomService(testRooms(), env.messages, userStore{}, bb, nil, nil)
	up := NewUpgrader(nil)
	roomHandler := NewRoomHandler(rooms, env.tracker, bb, env.hub, up, opts, nil)
	notifHandler := NewNotificationHandler(unreadCounter(3), env.tracker, bb, env.hub, up, opts, nil)

	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.Anonymous()
		if raw := r.URL.Query().Get("uid"); raw != "" {
			n, _ := strconv.ParseUint(raw, 10, 64)
			uid := uint(n)
			id.UserID = &uid
		}
		switch {
		case r.URL.Path == "/ws/notifications":
			notifHandler.Serve(w, r, id)
		case strings.HasPrefix(r.URL.Path, "/ws/chat"):
			raw := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/ws/chat"), "/")
			roomHandler.Serve(w, r, raw, id)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// closeCodeOf reads until the server closes the socket and returns the code.
func closeCodeOf(t *testing.T, conn *websocket.Conn) int {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		require.ErrorAs(t, err, &ce)
		return ce.Code
	}
}

func data(frame map[string]any) map[string]any {
	d, _ := frame["data"].(map[string]any)
	return d
}
