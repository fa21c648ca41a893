package remote

import (
	"time"

	"github.com/google/uuid"
	"github.com/tetherim/tether/internal/domain"
)

// Event is a normalized change notification from the push stream.
// Delivery is at-least-once: duplicates are possible and ordering across
// entities is not guaranteed, so every variant must apply idempotently.
type Event interface {
	isEvent()
}

type MessageInserted struct {
	Message domain.Message
}

type MessageUpdated struct {
	Message domain.Message
}

type MessageDeleted struct {
	ChatID    uuid.UUID
	MessageID uuid.UUID
	DeletedAt time.Time
}

type MemberAdded struct {
	ChatID uuid.UUID
	UserID uuid.UUID
}

type TypingChanged struct {
	ChatID uuid.UUID
	UserID uuid.UUID
	Active bool
}

type PresenceChanged struct {
	Presence domain.Presence
}

func (MessageInserted) isEvent() {}
func (MessageUpdated) isEvent()  {}
func (MessageDeleted) isEvent()  {}
func (MemberAdded) isEvent()     {}
func (TypingChanged) isEvent()   {}
func (PresenceChanged) isEvent() {}
