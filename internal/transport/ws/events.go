package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tetherim/tether/internal/domain"
	"github.com/tetherim/tether/internal/remote"
)

// Event types - Server → Client
const (
	EventTypeMessageNew     = "message.new"
	EventTypeMessageUpdated = "message.updated"
	EventTypeMessageDeleted = "message.deleted"
	EventTypeMemberAdded    = "chat.member_added"
	EventTypeTyping         = "typing"
	EventTypePresence       = "presence"
	EventTypePong           = "pong"
	EventTypeError          = "error"
)

// Event types - Client → Server
const (
	EventTypePing        = "ping"
	EventTypeTypingStart = "typing.start"
	EventTypeTypingStop  = "typing.stop"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	ChatID    *uuid.UUID      `json:"chat_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

type MessagePayload struct {
	domain.Message
}

type MessageDeletedPayload struct {
	ID        uuid.UUID  `json:"id"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type MemberAddedPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

type TypingPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Active bool      `json:"active"`
}

type PresencePayload struct {
	UserID     uuid.UUID  `json:"user_id"`
	Status     string     `json:"status"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrUnknownEvent marks an envelope type this client does not consume.
// Callers skip it; new server-side event types must not break old clients.
var ErrUnknownEvent = errors.New("unknown event type")

// NewEvent creates a client→server event with the current timestamp.
func NewEvent(eventType string, chatID *uuid.UUID, payload any) (*Event, error) {
	var data json.RawMessage
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return &Event{
		Type:      eventType,
		ChatID:    chatID,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}

// Decode normalizes a server envelope into a tagged event variant.
// Payloads are validated here, before anything reaches the reconciler.
func Decode(evt *Event) (remote.Event, error) {
	switch evt.Type {
	case EventTypeMessageNew, EventTypeMessageUpdated:
		var p MessagePayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", evt.Type, err)
		}
		if p.ID == uuid.Nil || p.ChatID == uuid.Nil {
			return nil, fmt.Errorf("%s payload missing ids", evt.Type)
		}
		if evt.Type == EventTypeMessageNew {
			return remote.MessageInserted{Message: p.Message}, nil
		}
		return remote.MessageUpdated{Message: p.Message}, nil

	case EventTypeMessageDeleted:
		if evt.ChatID == nil {
			return nil, fmt.Errorf("%s requires chat_id", evt.Type)
		}
		var p MessageDeletedPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", evt.Type, err)
		}
		deleted := remote.MessageDeleted{ChatID: *evt.ChatID, MessageID: p.ID}
		if p.DeletedAt != nil {
			deleted.DeletedAt = *p.DeletedAt
		}
		return deleted, nil

	case EventTypeMemberAdded:
		if evt.ChatID == nil {
			return nil, fmt.Errorf("%s requires chat_id", evt.Type)
		}
		var p MemberAddedPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", evt.Type, err)
		}
		return remote.MemberAdded{ChatID: *evt.ChatID, UserID: p.UserID}, nil

	case EventTypeTyping:
		if evt.ChatID == nil {
			return nil, fmt.Errorf("%s requires chat_id", evt.Type)
		}
		var p TypingPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", evt.Type, err)
		}
		return remote.TypingChanged{ChatID: *evt.ChatID, UserID: p.UserID, Active: p.Active}, nil

	case EventTypePresence:
		var p PresencePayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", evt.Type, err)
		}
		return remote.PresenceChanged{Presence: domain.Presence{
			UserID:     p.UserID,
			Status:     domain.PresenceStatus(p.Status),
			LastSeenAt: p.LastSeenAt,
		}}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, evt.Type)
	}
}
