package protocol

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Inbound
	}{
		{"ping", `{"type":"ping"}`, Ping{}},
		{"typing on", `{"type":"typing","isTyping":true}`, Typing{IsTyping: true}},
		{"typing default", `{"type":"typing"}`, Typing{}},
		{"message", `{"type":"message","content":"hi","tempId":"t-1"}`, Message{Content: "hi", TempID: "t-1"}},
		{"message without content", `{"type":"message"}`, Message{}},
		{"unknown tag", `{"type":"wave"}`, Unknown{Type: "wave"}},
		{"extra fields", `{"type":"ping","foo":1}`, Ping{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInbound([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeInboundInvalid(t *testing.T) {
	for _, in := range []string{"", "   ", "not json", `{"content":"x"}`, `["ping"]`, `{"type":`} {
		_, err := DecodeInbound([]byte(in))
		assert.ErrorIs(t, err, ErrInvalidFrame, "input %q", in)
	}
}

func TestTimestampFormat(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 4, 5, 123_000_000, time.FixedZone("X", 3600))
	assert.Equal(t, "2024-03-01T09:04:05.123Z", Timestamp(at))
}

func TestPresenceFrameShape(t *testing.T) {
	uid := uint(7)
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	raw, err := Encode(NewPresenceFrame(PresenceJoin, &uid, "Alice", 2, at))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "presence", got["type"])
	assert.NotContains(t, got, "payload")

	data := got["data"].(map[string]any)
	assert.Equal(t, "join", data["event"])
	assert.Equal(t, float64(7), data["user_id"])
	assert.Equal(t, "Alice", data["display_name"])
	assert.Equal(t, float64(2), data["count"])
	assert.Equal(t, "2024-03-01T00:00:00.000Z", data["timestamp"])
}

func TestAnonymousTypingHasNullUser(t *testing.T) {
	raw, err := Encode(NewTypingFrame(true, nil, "Guest"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"typing","data":{"isTyping":true,"user_id":null,"display_name":"Guest"}}`, string(raw))
}

func TestMessageFrameShape(t *testing.T) {
	uid := uint(3)
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	raw, err := Encode(NewMessageFrame(MessagePayload{
		ID:          "m-1",
		RoomID:      42,
		AuthorID:    &uid,
		DisplayName: "Alice",
		Content:     "hello",
		CreatedAt:   at,
	}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message:new","payload":{"id":"m-1","room_id":42,"author_id":3,"display_name":"Alice","content":"hello","created_at":"2024-03-01T00:00:00Z"}}`, string(raw))
}

func TestErrorAndPongFrames(t *testing.T) {
	raw, err := Encode(NewErrorFrame(CodeInvalidFrame, "Unsupported frame"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","data":{"code":4000,"message":"Unsupported frame"}}`, string(raw))

	raw, err = Encode(NewDeleteFrame("m-9"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message:delete","payload":{"id":"m-9"}}`, string(raw))
}

func TestNotificationFrames(t *testing.T) {
	raw, err := Encode(NewNotificationFrame(12, "friend.request", 3, map[string]any{"from_user_id": 5}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"notification","id":12,"type":"friend.request","unread_count":3,"payload":{"from_user_id":5}}`, string(raw))

	raw, err = Encode(NewMetaInitFrame(0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"meta:init","unread_count":0}`, string(raw))
}
