package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetherim/tether/internal/domain"
	"github.com/tetherim/tether/internal/remote"
	"github.com/tetherim/tether/internal/service"
)

func TestCreateDirectChatReusesExisting(t *testing.T) {
	api := &fakeAPI{} // any remote call would fail the test
	st, cmds, self := newFixture(api)
	other := uuid.New()
	existing := seedChat(st, domain.ChatDirect, self.ID, other)

	got, err := cmds.CreateDirectChat(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID)
	assert.Len(t, st.Chats(), 1, "no duplicate entity may be created")
}

func TestCreateDirectChatConfirms(t *testing.T) {
	serverID := uuid.New()
	api := &fakeAPI{}
	st, cmds, self := newFixture(api)
	other := uuid.New()

	api.createDirectChat = func(ctx context.Context, in remote.CreateDirectChatInput) (*domain.Chat, error) {
		require.Equal(t, other, in.OtherUserID)
		require.NotEqual(t, uuid.Nil, in.ClientToken)
		return &domain.Chat{
			ID:        serverID,
			Kind:      domain.ChatDirect,
			Members:   []uuid.UUID{self.ID, other},
			CreatedBy: self.ID,
			CreatedAt: time.Now(),
		}, nil
	}

	got, err := cmds.CreateDirectChat(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, serverID, got.ID)
	assert.False(t, got.Pending)
	require.Len(t, st.Chats(), 1)

	// a second create must reuse the confirmed chat, not call the backend
	api.createDirectChat = nil
	again, err := cmds.CreateDirectChat(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, serverID, again.ID)
}

func TestCreateDirectChatRollsBackOnFailure(t *testing.T) {
	api := &fakeAPI{
		createDirectChat: func(ctx context.Context, in remote.CreateDirectChatInput) (*domain.Chat, error) {
			return nil, errors.New("conflict")
		},
	}
	st, cmds, _ := newFixture(api)

	_, err := cmds.CreateDirectChat(context.Background(), uuid.New())
	var remoteErr *service.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Empty(t, st.Chats())
}

func TestCreateDirectChatWithSelf(t *testing.T) {
	api := &fakeAPI{}
	_, cmds, self := newFixture(api)

	_, err := cmds.CreateDirectChat(context.Background(), self.ID)
	assert.ErrorIs(t, err, service.ErrCannotDMSelf)
}

func TestCreateGroupChatInsertsCreator(t *testing.T) {
	api := &fakeAPI{}
	st, cmds, self := newFixture(api)
	m1, m2 := uuid.New(), uuid.New()

	api.createGroupChat = func(ctx context.Context, in remote.CreateGroupChatInput) (*domain.Chat, error) {
		assert.Contains(t, in.MemberIDs, self.ID, "creator must be in the member set")
		assert.Len(t, in.MemberIDs, 3)
		name := in.Name
		return &domain.Chat{
			ID: uuid.New(), Kind: domain.ChatGroup,
			Members: in.MemberIDs, Name: &name,
			CreatedBy: self.ID, CreatedAt: time.Now(),
		}, nil
	}

	// self listed twice on purpose; it must be deduplicated
	got, err := cmds.CreateGroupChat(context.Background(), "  team  ", []uuid.UUID{m1, self.ID, m2, m1})
	require.NoError(t, err)
	assert.Equal(t, "team", *got.Name)
	require.Len(t, st.Chats(), 1)
}

func TestCreateGroupChatValidation(t *testing.T) {
	api := &fakeAPI{}
	st, cmds, _ := newFixture(api)

	_, err := cmds.CreateGroupChat(context.Background(), "   ", []uuid.UUID{uuid.New()})
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "name")

	_, err = cmds.CreateGroupChat(context.Background(), "team", nil)
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "members")
	assert.Empty(t, st.Chats())
}
