package service

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tetherim/tether/internal/domain"
	"github.com/tetherim/tether/internal/remote"
	"github.com/tetherim/tether/internal/store"
)

// Identity supplies the current authenticated user. Read-only input,
// refreshed on sign-in/sign-out transitions by the caller.
type Identity interface {
	CurrentUser() (domain.User, bool)
}

// Commands turns user intents into optimistic-then-confirmed state
// transitions: validate, stage in the store, call the backend, then
// confirm or roll back. The store is never left showing a mutation the
// backend rejected.
type Commands struct {
	store *store.Store
	api   remote.API
	id    Identity
	log   *slog.Logger

	searchGen atomic.Uint64

	mu       sync.Mutex
	replying map[uuid.UUID]uuid.UUID // chat id → message being replied to
}

func NewCommands(st *store.Store, api remote.API, id Identity, log *slog.Logger) *Commands {
	if log == nil {
		log = slog.Default()
	}
	return &Commands{
		store:    st,
		api:      api,
		id:       id,
		log:      log,
		replying: make(map[uuid.UUID]uuid.UUID),
	}
}

// SetReplyContext marks a message as the active reply target for a chat.
// The target must be a known message of that same chat.
func (c *Commands) SetReplyContext(chatID, messageID uuid.UUID) error {
	msg, ok := c.store.Message(messageID)
	if !ok || msg.ChatID != chatID {
		return ErrMessageNotFound
	}
	c.mu.Lock()
	c.replying[chatID] = messageID
	c.mu.Unlock()
	return nil
}

func (c *Commands) ReplyContext(chatID uuid.UUID) (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.replying[chatID]
	return id, ok
}

func (c *Commands) ClearReplyContext(chatID uuid.UUID) {
	c.mu.Lock()
	delete(c.replying, chatID)
	c.mu.Unlock()
}

func (c *Commands) self() (domain.User, error) {
	u, ok := c.id.CurrentUser()
	if !ok {
		return domain.User{}, ErrNoSession
	}
	return u, nil
}
