package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tetherim/tether/internal/domain"
	"github.com/tetherim/tether/internal/remote"
	"github.com/tetherim/tether/internal/store"
)

// Identity supplies the current authenticated user, used to decide which
// membership events warrant a follow-up fetch.
type Identity interface {
	CurrentUser() (domain.User, bool)
}

// Reconciler merges push-stream change notifications into the store. The
// stream is at-least-once and unordered across entities, so every apply
// is idempotent: replaying an event leaves the store unchanged.
type Reconciler struct {
	store  *store.Store
	api    remote.API
	id     Identity
	log    *slog.Logger
	flight singleflight.Group
}

func New(st *store.Store, api remote.API, id Identity, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{store: st, api: api, id: id, log: log}
}

// Apply merges one event. A nil return includes silently skipped events:
// an update for an unknown parent is a normal race, not a fault. Errors
// are only returned for failed follow-up fetches.
func (r *Reconciler) Apply(ctx context.Context, ev remote.Event) error {
	switch e := ev.(type) {
	case remote.MessageInserted:
		return r.applyInsert(ctx, e.Message)
	case remote.MessageUpdated:
		r.applyUpdate(e.Message)
		return nil
	case remote.MessageDeleted:
		r.applyDelete(e)
		return nil
	case remote.MemberAdded:
		return r.applyMemberAdded(ctx, e)
	default:
		r.log.Debug("unhandled event kind", "event", fmt.Sprintf("%T", ev))
		return nil
	}
}

func (r *Reconciler) applyInsert(ctx context.Context, m domain.Message) error {
	if _, ok := r.store.Chat(m.ChatID); !ok {
		// a message must never be exposed without its parent chat; fetch
		// the full chat (with members) first
		if err := r.ensureChat(ctx, m.ChatID); err != nil {
			return err
		}
	}
	r.store.ApplyMessage(m)
	return nil
}

func (r *Reconciler) applyUpdate(m domain.Message) {
	ok := r.store.PatchMessage(m.ID, func(cur *domain.Message) {
		cur.Content = m.Content
		cur.Media = m.Media
		cur.Reactions = m.Reactions
		cur.EditedAt = m.EditedAt
		cur.DeletedAt = m.DeletedAt
	})
	if !ok {
		r.log.Debug("update for unknown message dropped", "message_id", m.ID)
	}
}

func (r *Reconciler) applyDelete(e remote.MessageDeleted) {
	at := e.DeletedAt
	if at.IsZero() {
		at = time.Now()
	}
	if !r.store.TombstoneMessage(e.MessageID, at) {
		r.log.Debug("delete for unknown message dropped", "message_id", e.MessageID)
	}
}

func (r *Reconciler) applyMemberAdded(ctx context.Context, e remote.MemberAdded) error {
	if _, ok := r.store.Chat(e.ChatID); ok {
		r.store.AddChatMember(e.ChatID, e.UserID)
		return nil
	}
	self, ok := r.id.CurrentUser()
	if !ok || e.UserID != self.ID {
		// membership of a chat we don't hold and weren't added to
		r.log.Debug("membership for unknown chat dropped", "chat_id", e.ChatID)
		return nil
	}
	return r.ensureChat(ctx, e.ChatID)
}

// ensureChat fetches a chat with its member list and inserts both.
// Concurrent calls for the same chat collapse into one fetch.
func (r *Reconciler) ensureChat(ctx context.Context, chatID uuid.UUID) error {
	_, err, _ := r.flight.Do(chatID.String(), func() (any, error) {
		if _, ok := r.store.Chat(chatID); ok {
			return nil, nil
		}
		full, err := r.api.FetchChat(ctx, chatID)
		if err != nil {
			return nil, fmt.Errorf("fetching chat %s: %w", chatID, err)
		}
		for _, u := range full.Members {
			r.store.UpsertUser(u)
		}
		r.store.UpsertChat(full.Chat)
		return nil, nil
	})
	return err
}
