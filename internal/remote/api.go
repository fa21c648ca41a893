package remote

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/tetherim/tether/internal/domain"
)

// ChatWithMembers is the fetch unit for chats: the engine never exposes a
// chat without its member profiles.
type ChatWithMembers struct {
	Chat    domain.Chat   `json:"chat"`
	Members []domain.User `json:"members"`
}

type SendMessageInput struct {
	ChatID      uuid.UUID      `json:"chat_id"`
	Content     *string        `json:"content,omitempty"`
	ReplyToID   *uuid.UUID     `json:"reply_to_id,omitempty"`
	Media       []domain.Media `json:"media,omitempty"`
	ClientToken uuid.UUID      `json:"client_token"`
}

type CreateDirectChatInput struct {
	OtherUserID uuid.UUID `json:"other_user_id"`
	ClientToken uuid.UUID `json:"client_token"`
}

type CreateGroupChatInput struct {
	Name        string      `json:"name"`
	MemberIDs   []uuid.UUID `json:"member_ids"`
	ClientToken uuid.UUID   `json:"client_token"`
}

type UpdateProfileInput struct {
	DisplayName string  `json:"display_name"`
	Bio         *string `json:"bio,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// API is the request/response contract of the backing store. The engine
// treats any returned error as command failure and rolls back the
// associated optimistic write.
type API interface {
	FetchChats(ctx context.Context) ([]ChatWithMembers, error)
	FetchChat(ctx context.Context, chatID uuid.UUID) (*ChatWithMembers, error)
	FetchMessages(ctx context.Context, chatID uuid.UUID) ([]domain.Message, error)
	SendMessage(ctx context.Context, in SendMessageInput) (*domain.Message, error)
	AddReaction(ctx context.Context, messageID uuid.UUID, emoji string) error
	RemoveReaction(ctx context.Context, messageID uuid.UUID, emoji string) error
	CreateDirectChat(ctx context.Context, in CreateDirectChatInput) (*domain.Chat, error)
	CreateGroupChat(ctx context.Context, in CreateGroupChatInput) (*domain.Chat, error)
	SearchUsers(ctx context.Context, query string) ([]domain.User, error)
	UpdateProfile(ctx context.Context, in UpdateProfileInput) (*domain.User, error)
	UploadFile(ctx context.Context, filename, mimeType string, size int64, r io.Reader) (string, error)
}
