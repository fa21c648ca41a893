package store

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tetherim/tether/internal/domain"
)

type Entity string

const (
	EntityUser     Entity = "user"
	EntityChat     Entity = "chat"
	EntityMessage  Entity = "message"
	EntityPresence Entity = "presence"
	EntityTyping   Entity = "typing"
)

type Op string

const (
	OpUpsert Op = "upsert"
	OpPatch  Op = "patch"
	OpRemove Op = "remove"
)

// Change describes one committed store mutation. ChatID is set for
// message and typing changes.
type Change struct {
	Entity Entity
	Op     Op
	ID     uuid.UUID
	ChatID uuid.UUID
}

// Store holds the canonical client-side view of conversations. It is the
// single source of truth for consumers: only the command layer and the
// reconciler write to it, everything else reads and subscribes.
type Store struct {
	mu  sync.RWMutex
	log *slog.Logger

	users    map[uuid.UUID]domain.User
	chats    map[uuid.UUID]domain.Chat
	messages map[uuid.UUID][]domain.Message // chat id → ordered list
	msgChat  map[uuid.UUID]uuid.UUID       // message id → chat id

	// correlation token → optimistic entity id, for confirm/rollback
	msgTokens  map[uuid.UUID]uuid.UUID
	chatTokens map[uuid.UUID]uuid.UUID

	presence map[uuid.UUID]domain.Presence
	typing   map[uuid.UUID]map[uuid.UUID]time.Time // chat id → user id → started

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

func New(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		log:        log,
		users:      make(map[uuid.UUID]domain.User),
		chats:      make(map[uuid.UUID]domain.Chat),
		messages:   make(map[uuid.UUID][]domain.Message),
		msgChat:    make(map[uuid.UUID]uuid.UUID),
		msgTokens:  make(map[uuid.UUID]uuid.UUID),
		chatTokens: make(map[uuid.UUID]uuid.UUID),
		presence:   make(map[uuid.UUID]domain.Presence),
		typing:     make(map[uuid.UUID]map[uuid.UUID]time.Time),
		subs:       make(map[int]func(Change)),
	}
}

// Subscribe registers an observer for committed changes and returns its
// cancel func. Observers run after the mutation commits, outside the store
// lock, so they may read the store (and even mutate it) without deadlock.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(changes ...Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

// --- Users ---

func (s *Store) UpsertUser(u domain.User) {
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
	s.notify(Change{Entity: EntityUser, Op: OpUpsert, ID: u.ID})
}

func (s *Store) User(id uuid.UUID) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// PatchUser shallow-merges via fn. A patch on an unknown id is a logged
// no-op: out-of-order events can reference users we have not cached yet.
func (s *Store) PatchUser(id uuid.UUID, fn func(*domain.User)) bool {
	s.mu.Lock()
	u, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		s.log.Debug("patch on unknown user", "user_id", id)
		return false
	}
	fn(&u)
	s.users[id] = u
	s.mu.Unlock()
	s.notify(Change{Entity: EntityUser, Op: OpPatch, ID: id})
	return true
}

// --- Chats ---

func (s *Store) UpsertChat(c domain.Chat) {
	s.mu.Lock()
	if c.Pending && c.ClientToken != uuid.Nil {
		s.chatTokens[c.ClientToken] = c.ID
	}
	s.chats[c.ID] = c
	s.mu.Unlock()
	s.notify(Change{Entity: EntityChat, Op: OpUpsert, ID: c.ID})
}

func (s *Store) Chat(id uuid.UUID) (domain.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[id]
	return c, ok
}

// Chats returns all chats, newest first.
func (s *Store) Chats() []domain.Chat {
	s.mu.RLock()
	out := make([]domain.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// FindDirectChat returns the direct chat whose member set is exactly
// {a, b}, if the store holds one.
func (s *Store) FindDirectChat(a, b uuid.UUID) (domain.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.chats {
		if c.IsDirectBetween(a, b) {
			return c, true
		}
	}
	return domain.Chat{}, false
}

// ConfirmChat swaps the optimistic chat staged under token for the
// authoritative one. Returns false when the token is unknown, which is
// normal when the push stream confirmed the chat first.
func (s *Store) ConfirmChat(token uuid.UUID, authoritative domain.Chat) bool {
	s.mu.Lock()
	oldID, ok := s.chatTokens[token]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.chatTokens, token)
	if oldID != authoritative.ID {
		delete(s.chats, oldID)
		// messages optimistically attached under the old chat id move over
		if msgs, ok := s.messages[oldID]; ok {
			for i := range msgs {
				msgs[i].ChatID = authoritative.ID
				s.msgChat[msgs[i].ID] = authoritative.ID
			}
			s.messages[authoritative.ID] = append(s.messages[authoritative.ID], msgs...)
			delete(s.messages, oldID)
			s.sortChatLocked(authoritative.ID)
		}
	}
	authoritative.Pending = false
	authoritative.ClientToken = token
	s.chats[authoritative.ID] = authoritative
	s.mu.Unlock()
	if oldID != authoritative.ID {
		s.notify(
			Change{Entity: EntityChat, Op: OpRemove, ID: oldID},
			Change{Entity: EntityChat, Op: OpUpsert, ID: authoritative.ID},
		)
	} else {
		s.notify(Change{Entity: EntityChat, Op: OpUpsert, ID: authoritative.ID})
	}
	return true
}

// RemoveChatByToken rolls back an optimistic chat after a failed create.
func (s *Store) RemoveChatByToken(token uuid.UUID) bool {
	s.mu.Lock()
	id, ok := s.chatTokens[token]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.chatTokens, token)
	delete(s.chats, id)
	for _, m := range s.messages[id] {
		delete(s.msgChat, m.ID)
	}
	delete(s.messages, id)
	s.mu.Unlock()
	s.notify(Change{Entity: EntityChat, Op: OpRemove, ID: id})
	return true
}

// AddChatMember idempotently adds a member to a known chat.
func (s *Store) AddChatMember(chatID, userID uuid.UUID) bool {
	s.mu.Lock()
	c, ok := s.chats[chatID]
	if !ok {
		s.mu.Unlock()
		s.log.Debug("member add on unknown chat", "chat_id", chatID)
		return false
	}
	if c.HasMember(userID) {
		s.mu.Unlock()
		return true
	}
	c.Members = append(append([]uuid.UUID(nil), c.Members...), userID)
	s.chats[chatID] = c
	s.mu.Unlock()
	s.notify(Change{Entity: EntityChat, Op: OpPatch, ID: chatID})
	return true
}

// --- Presence / typing ---

func (s *Store) SetPresence(p domain.Presence) {
	s.mu.Lock()
	s.presence[p.UserID] = p
	s.mu.Unlock()
	s.notify(Change{Entity: EntityPresence, Op: OpUpsert, ID: p.UserID})
}

func (s *Store) Presence(userID uuid.UUID) (domain.Presence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.presence[userID]
	return p, ok
}

// RemovePresence is a hard removal: presence is ephemeral, no tombstones.
func (s *Store) RemovePresence(userID uuid.UUID) {
	s.mu.Lock()
	delete(s.presence, userID)
	s.mu.Unlock()
	s.notify(Change{Entity: EntityPresence, Op: OpRemove, ID: userID})
}

func (s *Store) SetTyping(chatID, userID uuid.UUID, at time.Time) {
	s.mu.Lock()
	m, ok := s.typing[chatID]
	if !ok {
		m = make(map[uuid.UUID]time.Time)
		s.typing[chatID] = m
	}
	m[userID] = at
	s.mu.Unlock()
	s.notify(Change{Entity: EntityTyping, Op: OpUpsert, ID: userID, ChatID: chatID})
}

func (s *Store) ClearTyping(chatID, userID uuid.UUID) {
	s.mu.Lock()
	m, ok := s.typing[chatID]
	if ok {
		delete(m, userID)
		if len(m) == 0 {
			delete(s.typing, chatID)
		}
	}
	s.mu.Unlock()
	if ok {
		s.notify(Change{Entity: EntityTyping, Op: OpRemove, ID: userID, ChatID: chatID})
	}
}

// TypingUsers returns the users currently typing in a chat, in stable order.
func (s *Store) TypingUsers(chatID uuid.UUID) []uuid.UUID {
	s.mu.RLock()
	out := make([]uuid.UUID, 0, len(s.typing[chatID]))
	for id := range s.typing[chatID] {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Typing returns the live typing signals for a chat, with when each one
// started, in stable order.
func (s *Store) Typing(chatID uuid.UUID) []domain.TypingState {
	s.mu.RLock()
	out := make([]domain.TypingState, 0, len(s.typing[chatID]))
	for id, at := range s.typing[chatID] {
		out = append(out, domain.TypingState{ChatID: chatID, UserID: id, StartedAt: at})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID.String() < out[j].UserID.String() })
	return out
}
