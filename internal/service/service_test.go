package service_test

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/tetherim/tether/internal/domain"
	"github.com/tetherim/tether/internal/remote"
	"github.com/tetherim/tether/internal/service"
	"github.com/tetherim/tether/internal/store"
)

// fakeAPI implements remote.API with per-call hooks; unset calls fail the
// test by returning errUnexpectedCall.
type fakeAPI struct {
	fetchChats       func(ctx context.Context) ([]remote.ChatWithMembers, error)
	fetchChat        func(ctx context.Context, chatID uuid.UUID) (*remote.ChatWithMembers, error)
	fetchMessages    func(ctx context.Context, chatID uuid.UUID) ([]domain.Message, error)
	sendMessage      func(ctx context.Context, in remote.SendMessageInput) (*domain.Message, error)
	addReaction      func(ctx context.Context, messageID uuid.UUID, emoji string) error
	removeReaction   func(ctx context.Context, messageID uuid.UUID, emoji string) error
	createDirectChat func(ctx context.Context, in remote.CreateDirectChatInput) (*domain.Chat, error)
	createGroupChat  func(ctx context.Context, in remote.CreateGroupChatInput) (*domain.Chat, error)
	searchUsers      func(ctx context.Context, query string) ([]domain.User, error)
	updateProfile    func(ctx context.Context, in remote.UpdateProfileInput) (*domain.User, error)
	uploadFile       func(ctx context.Context, filename, mimeType string, size int64, r io.Reader) (string, error)
}

type unexpectedCallError string

func (e unexpectedCallError) Error() string { return "unexpected call: " + string(e) }

func (f *fakeAPI) FetchChats(ctx context.Context) ([]remote.ChatWithMembers, error) {
	if f.fetchChats == nil {
		return nil, unexpectedCallError("FetchChats")
	}
	return f.fetchChats(ctx)
}

func (f *fakeAPI) FetchChat(ctx context.Context, chatID uuid.UUID) (*remote.ChatWithMembers, error) {
	if f.fetchChat == nil {
		return nil, unexpectedCallError("FetchChat")
	}
	return f.fetchChat(ctx, chatID)
}

func (f *fakeAPI) FetchMessages(ctx context.Context, chatID uuid.UUID) ([]domain.Message, error) {
	if f.fetchMessages == nil {
		return nil, unexpectedCallError("FetchMessages")
	}
	return f.fetchMessages(ctx, chatID)
}

func (f *fakeAPI) SendMessage(ctx context.Context, in remote.SendMessageInput) (*domain.Message, error) {
	if f.sendMessage == nil {
		return nil, unexpectedCallError("SendMessage")
	}
	return f.sendMessage(ctx, in)
}

func (f *fakeAPI) AddReaction(ctx context.Context, messageID uuid.UUID, emoji string) error {
	if f.addReaction == nil {
		return unexpectedCallError("AddReaction")
	}
	return f.addReaction(ctx, messageID, emoji)
}

func (f *fakeAPI) RemoveReaction(ctx context.Context, messageID uuid.UUID, emoji string) error {
	if f.removeReaction == nil {
		return unexpectedCallError("RemoveReaction")
	}
	return f.removeReaction(ctx, messageID, emoji)
}

func (f *fakeAPI) CreateDirectChat(ctx context.Context, in remote.CreateDirectChatInput) (*domain.Chat, error) {
	if f.createDirectChat == nil {
		return nil, unexpectedCallError("CreateDirectChat")
	}
	return f.createDirectChat(ctx, in)
}

func (f *fakeAPI) CreateGroupChat(ctx context.Context, in remote.CreateGroupChatInput) (*domain.Chat, error) {
	if f.createGroupChat == nil {
		return nil, unexpectedCallError("CreateGroupChat")
	}
	return f.createGroupChat(ctx, in)
}

func (f *fakeAPI) SearchUsers(ctx context.Context, query string) ([]domain.User, error) {
	if f.searchUsers == nil {
		return nil, unexpectedCallError("SearchUsers")
	}
	return f.searchUsers(ctx, query)
}

func (f *fakeAPI) UpdateProfile(ctx context.Context, in remote.UpdateProfileInput) (*domain.User, error) {
	if f.updateProfile == nil {
		return nil, unexpectedCallError("UpdateProfile")
	}
	return f.updateProfile(ctx, in)
}

func (f *fakeAPI) UploadFile(ctx context.Context, filename, mimeType string, size int64, r io.Reader) (string, error) {
	if f.uploadFile == nil {
		return "", unexpectedCallError("UploadFile")
	}
	return f.uploadFile(ctx, filename, mimeType, size, r)
}

// staticIdentity is a fixed signed-in user.
type staticIdentity struct {
	user domain.User
}

func (s staticIdentity) CurrentUser() (domain.User, bool) {
	return s.user, true
}

func newFixture(api *fakeAPI) (*store.Store, *service.Commands, domain.User) {
	self := domain.User{ID: uuid.New(), Username: "ada", DisplayName: "Ada", CreatedAt: time.Now()}
	st := store.New(nil)
	cmds := service.NewCommands(st, api, staticIdentity{user: self}, nil)
	return st, cmds, self
}

func seedChat(st *store.Store, kind domain.ChatKind, members ...uuid.UUID) domain.Chat {
	c := domain.Chat{
		ID:        uuid.New(),
		Kind:      kind,
		Members:   members,
		CreatedAt: time.Now(),
	}
	st.UpsertChat(c)
	return c
}
