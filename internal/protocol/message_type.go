package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// ErrInvalidFrame is returned when an inbound frame is not valid JSON or has no type.
var ErrInvalidFrame = errors.New("invalid frame")

// FrameType is the `type` tag carried by every room channel frame.
type FrameType string

// Inbound room frame types
const (
	FrameTypePing    FrameType = "ping"
	FrameTypeTyping  FrameType = "typing"
	FrameTypeMessage FrameType = "message"
)

// Outbound room frame types
const (
	FrameTypeMessageNew    FrameType = "message:new"
	FrameTypeMessageDelete FrameType = "message:delete"
	FrameTypePresence      FrameType = "presence"
	FrameTypePong          FrameType = "pong"
	FrameTypeError         FrameType = "error"
)

// Error frame codes
const (
	CodeInvalidFrame   = 4000
	CodeRateLimited    = 4029
	CodeUnauthorized   = 4401
	CodeMessageNotSent = 4500
)

// Presence events
const (
	PresenceJoin  = "join"
	PresenceLeave = "leave"
)

func (ft FrameType) String() string {
	return string(ft)
}

// Inbound is a decoded client frame. The concrete type is one of
// Ping, Typing, Message or Unknown.
type Inbound interface {
	frameType() FrameType
}

type Ping struct{}

type Typing struct {
	IsTyping bool
}

type Message struct {
	Content string
	TempID  string
}

// Unknown carries the tag of a frame this server does not handle.
type Unknown struct {
	Type string
}

func (Ping) frameType() FrameType    { return FrameTypePing }
func (Typing) frameType() FrameType  { return FrameTypeTyping }
func (Message) frameType() FrameType { return FrameTypeMessage }
func (u Unknown) frameType() FrameType {
	return FrameType(u.Type)
}

type rawInbound struct {
	Type     string  `json:"type"`
	IsTyping bool    `json:"isTyping"`
	Content  *string `json:"content"`
	TempID   string  `json:"tempId"`
}

// DecodeInbound parses a text frame once at the protocol boundary.
func DecodeInbound(data []byte) (Inbound, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrInvalidFrame
	}

	var raw rawInbound
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}

	switch FrameType(raw.Type) {
	case FrameTypePing:
		return Ping{}, nil
	case FrameTypeTyping:
		return Typing{IsTyping: raw.IsTyping}, nil
	case FrameTypeMessage:
		msg := Message{TempID: raw.TempID}
		if raw.Content != nil {
			msg.Content = *raw.Content
		}
		return msg, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrInvalidFrame)
	default:
		return Unknown{Type: raw.Type}, nil
	}
}

// Frame is a self-describing outbound room frame.
type Frame struct {
	Type    FrameType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type MessagePayload struct {
	ID          string    `json:"id"`
	RoomID      uint      `json:"room_id"`
	AuthorID    *uint     `json:"author_id"`
	DisplayName string    `json:"display_name"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	TempID      string    `json:"tempId,omitempty"`
}

type DeletePayload struct {
	ID string `json:"id"`
}

type TypingData struct {
	IsTyping    bool   `json:"isTyping"`
	UserID      *uint  `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type PresenceData struct {
	Event       string `json:"event"`
	UserID      *uint  `json:"user_id"`
	DisplayName string `json:"display_name"`
	Count       int    `json:"count"`
	Timestamp   string `json:"timestamp"`
}

type PongData struct {
	Timestamp string `json:"timestamp"`
}

type ErrorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewMessageFrame(p MessagePayload) Frame {
	return Frame{Type: FrameTypeMessageNew, Payload: p}
}

func NewDeleteFrame(messageID string) Frame {
	return Frame{Type: FrameTypeMessageDelete, Payload: DeletePayload{ID: messageID}}
}

func NewTypingFrame(isTyping bool, userID *uint, displayName string) Frame {
	return Frame{Type: FrameTypeTyping, Data: TypingData{
		IsTyping:    isTyping,
		UserID:      userID,
		DisplayName: displayName,
	}}
}

func NewPresenceFrame(event string, userID *uint, displayName string, count int, at time.Time) Frame {
	return Frame{Type: FrameTypePresence, Data: PresenceData{
		Event:       event,
		UserID:      userID,
		DisplayName: displayName,
		Count:       count,
		Timestamp:   Timestamp(at),
	}}
}

func NewPongFrame(at time.Time) Frame {
	return Frame{Type: FrameTypePong, Data: PongData{Timestamp: Timestamp(at)}}
}

func NewErrorFrame(code int, message string) Frame {
	return Frame{Type: FrameTypeError, Data: ErrorData{Code: code, Message: message}}
}

// Timestamp formats t as ISO 8601 in UTC with millisecond precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Encode serializes any outbound frame.
func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
