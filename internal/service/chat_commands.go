package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tetherim/tether/internal/domain"
	"github.com/tetherim/tether/internal/remote"
	"github.com/tetherim/tether/pkg/validator"
)

// CreateDirectChat returns the direct chat with otherUserID, reusing an
// existing one when the store already holds the exact {self, other} pair.
// The uniqueness is advisory: the backend is not assumed to enforce it.
func (c *Commands) CreateDirectChat(ctx context.Context, otherUserID uuid.UUID) (*domain.Chat, error) {
	self, err := c.self()
	if err != nil {
		return nil, err
	}
	if otherUserID == self.ID {
		return nil, ErrCannotDMSelf
	}
	if existing, ok := c.store.FindDirectChat(self.ID, otherUserID); ok {
		return &existing, nil
	}

	token := uuid.New()
	pending := domain.Chat{
		ID:          token,
		Kind:        domain.ChatDirect,
		Members:     []uuid.UUID{self.ID, otherUserID},
		CreatedBy:   self.ID,
		CreatedAt:   time.Now(),
		ClientToken: token,
		Pending:     true,
	}
	c.store.UpsertChat(pending)

	authoritative, err := c.api.CreateDirectChat(ctx, remote.CreateDirectChatInput{
		OtherUserID: otherUserID,
		ClientToken: token,
	})
	if err != nil {
		c.store.RemoveChatByToken(token)
		return nil, &RemoteError{Op: "create direct chat", Err: err}
	}

	confirmed := *authoritative
	c.store.ConfirmChat(token, confirmed)
	final, ok := c.store.Chat(confirmed.ID)
	if !ok {
		return &confirmed, nil
	}
	return &final, nil
}

// CreateGroupChat creates a named group. The creator always ends up in
// the member set, deduplicated if already selected.
func (c *Commands) CreateGroupChat(ctx context.Context, name string, memberIDs []uuid.UUID) (*domain.Chat, error) {
	self, err := c.self()
	if err != nil {
		return nil, err
	}

	members := dedupeMembers(memberIDs, self.ID)
	if errs := validator.ValidateGroupChat(name, len(members)-1); errs.HasErrors() {
		return nil, validationError(errs)
	}

	trimmed := strings.TrimSpace(name)
	token := uuid.New()
	pending := domain.Chat{
		ID:          token,
		Kind:        domain.ChatGroup,
		Members:     members,
		Name:        &trimmed,
		CreatedBy:   self.ID,
		CreatedAt:   time.Now(),
		ClientToken: token,
		Pending:     true,
	}
	c.store.UpsertChat(pending)

	authoritative, err := c.api.CreateGroupChat(ctx, remote.CreateGroupChatInput{
		Name:        trimmed,
		MemberIDs:   members,
		ClientToken: token,
	})
	if err != nil {
		c.store.RemoveChatByToken(token)
		return nil, &RemoteError{Op: "create group chat", Err: err}
	}

	confirmed := *authoritative
	c.store.ConfirmChat(token, confirmed)
	final, ok := c.store.Chat(confirmed.ID)
	if !ok {
		return &confirmed, nil
	}
	return &final, nil
}

// dedupeMembers returns memberIDs with duplicates removed and self
// guaranteed present.
func dedupeMembers(memberIDs []uuid.UUID, self uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{self: {}}
	out := []uuid.UUID{self}
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
