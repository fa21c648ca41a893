package store

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tetherim/tether/internal/domain"
)

// sortChatLocked re-establishes display order for one chat. Order is a
// strict function of (created_at, id), never of arrival order.
func (s *Store) sortChatLocked(chatID uuid.UUID) {
	msgs := s.messages[chatID]
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Less(&msgs[j])
	})
}

// StageMessage inserts an optimistic message and indexes its correlation
// token for later confirm or rollback.
func (s *Store) StageMessage(m domain.Message) {
	m.Pending = true
	s.mu.Lock()
	s.msgTokens[m.ClientToken] = m.ID
	s.messages[m.ChatID] = append(s.messages[m.ChatID], m)
	s.msgChat[m.ID] = m.ChatID
	s.sortChatLocked(m.ChatID)
	s.mu.Unlock()
	s.notify(Change{Entity: EntityMessage, Op: OpUpsert, ID: m.ID, ChatID: m.ChatID})
}

// ConfirmMessage swaps the pending message staged under token for the
// authoritative one, in place. Returns false when the token is no longer
// pending — the push-stream insert won the race and this call is a no-op.
func (s *Store) ConfirmMessage(token uuid.UUID, authoritative domain.Message) bool {
	authoritative.Pending = false
	authoritative.ClientToken = token
	s.mu.Lock()
	oldID, ok := s.msgTokens[token]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.replaceLocked(oldID, authoritative)
	delete(s.msgTokens, token)
	s.mu.Unlock()
	s.notify(Change{Entity: EntityMessage, Op: OpUpsert, ID: authoritative.ID, ChatID: authoritative.ChatID})
	return true
}

// RemoveMessageByToken rolls back an optimistic message after a failed
// send. Unlike server-confirmed deletes this is a hard removal: the
// backend never saw the message, so no tombstone is needed.
func (s *Store) RemoveMessageByToken(token uuid.UUID) bool {
	s.mu.Lock()
	id, ok := s.msgTokens[token]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.msgTokens, token)
	chatID, ok := s.msgChat[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.msgChat, id)
	msgs := s.messages[chatID]
	for i := range msgs {
		if msgs[i].ID == id {
			s.messages[chatID] = append(msgs[:i], msgs[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.notify(Change{Entity: EntityMessage, Op: OpRemove, ID: id, ChatID: chatID})
	return true
}

// ApplyMessage merges a server-originated message. The dedup key is the
// authoritative id, with the correlation token as the bridge to a still-
// pending optimistic copy. Safe to replay: applying the same message twice
// leaves the same state as applying it once.
func (s *Store) ApplyMessage(m domain.Message) {
	m.Pending = false
	s.mu.Lock()
	if _, known := s.msgChat[m.ID]; known {
		s.replaceLocked(m.ID, m)
	} else if oldID, ok := s.msgTokens[m.ClientToken]; m.ClientToken != uuid.Nil && ok {
		s.replaceLocked(oldID, m)
		delete(s.msgTokens, m.ClientToken)
	} else {
		s.messages[m.ChatID] = append(s.messages[m.ChatID], m)
		s.msgChat[m.ID] = m.ChatID
		s.sortChatLocked(m.ChatID)
	}
	s.mu.Unlock()
	s.notify(Change{Entity: EntityMessage, Op: OpUpsert, ID: m.ID, ChatID: m.ChatID})
}

func (s *Store) replaceLocked(oldID uuid.UUID, m domain.Message) {
	chatID := s.msgChat[oldID]
	msgs := s.messages[chatID]
	for i := range msgs {
		if msgs[i].ID == oldID {
			msgs[i] = m
			break
		}
	}
	if oldID != m.ID {
		delete(s.msgChat, oldID)
	}
	s.msgChat[m.ID] = m.ChatID
	if chatID != m.ChatID {
		// should not happen (chat id is immutable), keep the list coherent
		s.log.Warn("message moved between chats", "message_id", m.ID)
	}
	s.sortChatLocked(chatID)
}

// PatchMessage shallow-merges via fn. Patching an unknown id is a logged
// no-op: events for unseen parents are an expected race, not a fault.
func (s *Store) PatchMessage(id uuid.UUID, fn func(*domain.Message)) bool {
	s.mu.Lock()
	chatID, ok := s.msgChat[id]
	if !ok {
		s.mu.Unlock()
		s.log.Debug("patch on unknown message", "message_id", id)
		return false
	}
	msgs := s.messages[chatID]
	for i := range msgs {
		if msgs[i].ID == id {
			fn(&msgs[i])
			break
		}
	}
	s.sortChatLocked(chatID)
	s.mu.Unlock()
	s.notify(Change{Entity: EntityMessage, Op: OpPatch, ID: id, ChatID: chatID})
	return true
}

// TombstoneMessage applies a logical delete. The record stays in place so
// reply references remain resolvable.
func (s *Store) TombstoneMessage(id uuid.UUID, at time.Time) bool {
	return s.PatchMessage(id, func(m *domain.Message) {
		if m.DeletedAt == nil {
			t := at
			m.DeletedAt = &t
		}
	})
}

// SetReaction idempotently adds (on) or removes (off) the (emoji, user)
// pair. Returns whether the message was found.
func (s *Store) SetReaction(messageID uuid.UUID, emoji string, userID uuid.UUID, on bool) bool {
	return s.PatchMessage(messageID, func(m *domain.Message) {
		has := m.HasReaction(emoji, userID)
		switch {
		case on && !has:
			m.Reactions = append(m.Reactions, domain.Reaction{Emoji: emoji, UserID: userID})
		case !on && has:
			// fresh slice: snapshots returned earlier share the old backing
			// array and must not see the compaction
			out := make([]domain.Reaction, 0, len(m.Reactions))
			for _, r := range m.Reactions {
				if r.Emoji == emoji && r.UserID == userID {
					continue
				}
				out = append(out, r)
			}
			m.Reactions = out
		}
	})
}

func (s *Store) Message(id uuid.UUID) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chatID, ok := s.msgChat[id]
	if !ok {
		return domain.Message{}, false
	}
	for _, m := range s.messages[chatID] {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Message{}, false
}

// Messages returns a copy of the ordered message list for a chat.
func (s *Store) Messages(chatID uuid.UUID) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Message(nil), s.messages[chatID]...)
}
