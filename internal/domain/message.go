package domain

import (
	"bytes"
	"strings"
	"time"

	"github.com/google/uuid"
)

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaFile  MediaKind = "file"
)

type Media struct {
	ID       uuid.UUID `json:"id"`
	Kind     MediaKind `json:"kind"`
	URL      string    `json:"url"`
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	MimeType string    `json:"mime_type"`
}

type Reaction struct {
	Emoji  string    `json:"emoji"`
	UserID uuid.UUID `json:"user_id"`
}

type Message struct {
	ID        uuid.UUID  `json:"id"`
	ChatID    uuid.UUID  `json:"chat_id"`
	AuthorID  uuid.UUID  `json:"author_id"`
	Content   *string    `json:"content,omitempty"`
	ReplyToID *uuid.UUID `json:"reply_to_id,omitempty"`
	Media     []Media    `json:"media,omitempty"`
	Reactions []Reaction `json:"reactions,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	// ClientToken correlates an optimistic message with the authoritative
	// copy the backend eventually returns (echoed on the push stream too).
	ClientToken uuid.UUID `json:"client_token,omitempty"`
	// Pending marks an optimistic message not yet confirmed by the backend.
	Pending bool `json:"-"`
}

// Empty reports whether the message carries neither text nor media.
// Such a message is invalid and must never reach the store.
func (m *Message) Empty() bool {
	if len(m.Media) > 0 {
		return false
	}
	return m.Content == nil || strings.TrimSpace(*m.Content) == ""
}

func (m *Message) Deleted() bool {
	return m.DeletedAt != nil
}

func (m *Message) HasReaction(emoji string, userID uuid.UUID) bool {
	for _, r := range m.Reactions {
		if r.Emoji == emoji && r.UserID == userID {
			return true
		}
	}
	return false
}

// Less orders messages for display: creation time, ties broken by id so
// the order is stable regardless of arrival order.
func (m *Message) Less(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return bytes.Compare(m.ID[:], other.ID[:]) < 0
}

// ReactionGroup is the display aggregation of one emoji on a message.
type ReactionGroup struct {
	Emoji   string `json:"emoji"`
	Count   int    `json:"count"`
	Reacted bool   `json:"reacted"`
}

// GroupReactions aggregates reactions by emoji in first-seen order and
// flags the groups the given user is part of.
func GroupReactions(reactions []Reaction, self uuid.UUID) []ReactionGroup {
	var groups []ReactionGroup
	index := make(map[string]int)
	for _, r := range reactions {
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			groups = append(groups, ReactionGroup{Emoji: r.Emoji})
		}
		groups[i].Count++
		if r.UserID == self {
			groups[i].Reacted = true
		}
	}
	return groups
}
