package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChatKind string

const (
	ChatDirect ChatKind = "direct"
	ChatGroup  ChatKind = "group"
)

// GroupChatFallbackName is shown for group chats without an explicit name.
const GroupChatFallbackName = "Group Chat"

type Chat struct {
	ID        uuid.UUID   `json:"id"`
	Kind      ChatKind    `json:"kind"`
	Members   []uuid.UUID `json:"members"`
	Name      *string     `json:"name,omitempty"`
	CreatedBy uuid.UUID   `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
	E2EE      bool        `json:"e2ee"`

	// ClientToken is the correlation id of a locally-created chat. The
	// backend echoes it so the optimistic copy can be matched to the
	// authoritative one. Zero for server-originated chats.
	ClientToken uuid.UUID `json:"client_token,omitempty"`
	// Pending marks an optimistic chat not yet confirmed by the backend.
	Pending bool `json:"-"`
}

func (c *Chat) HasMember(userID uuid.UUID) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// IsDirectBetween reports whether this is the direct chat whose member set
// is exactly {a, b}.
func (c *Chat) IsDirectBetween(a, b uuid.UUID) bool {
	if c.Kind != ChatDirect || len(c.Members) != 2 || a == b {
		return false
	}
	return (c.Members[0] == a && c.Members[1] == b) ||
		(c.Members[0] == b && c.Members[1] == a)
}

// DisplayName resolves the name to render for self: group chats use their
// name (or the fallback), direct chats the other member's display name.
func (c *Chat) DisplayName(self uuid.UUID, lookup func(uuid.UUID) (User, bool)) string {
	if c.Kind == ChatGroup {
		if c.Name != nil && *c.Name != "" {
			return *c.Name
		}
		return GroupChatFallbackName
	}
	for _, m := range c.Members {
		if m == self {
			continue
		}
		if u, ok := lookup(m); ok {
			return u.DisplayName
		}
	}
	return "Unknown"
}
