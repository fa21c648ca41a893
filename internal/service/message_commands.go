package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tetherim/tether/internal/domain"
	"github.com/tetherim/tether/internal/remote"
	"github.com/tetherim/tether/pkg/validator"
)

// SendMessage appends a message to a chat. The message appears
// immediately as a pending entry and is swapped for the authoritative
// copy when the backend confirms; on failure the pending entry is
// removed and the error surfaced. A successful send clears the chat's
// active reply context.
func (c *Commands) SendMessage(ctx context.Context, chatID uuid.UUID, content string, replyToID *uuid.UUID, media []domain.Media) (*domain.Message, error) {
	self, err := c.self()
	if err != nil {
		return nil, err
	}
	if _, ok := c.store.Chat(chatID); !ok {
		return nil, ErrChatNotFound
	}
	if errs := validator.ValidateMessage(content, len(media)); errs.HasErrors() {
		return nil, validationError(errs)
	}
	if replyToID != nil {
		target, ok := c.store.Message(*replyToID)
		if !ok || target.ChatID != chatID {
			errs := make(validator.ValidationErrors)
			errs.Add("reply_to", "Reply target must be a message in the same chat")
			return nil, validationError(errs)
		}
	}

	var text *string
	if trimmed := strings.TrimSpace(content); trimmed != "" {
		text = &trimmed
	}

	// The token doubles as the pending message's local id. It is unique
	// per invocation and never reused, so a double-submit stages two
	// distinct pending entries instead of racing on one.
	token := uuid.New()
	pending := domain.Message{
		ID:          token,
		ChatID:      chatID,
		AuthorID:    self.ID,
		Content:     text,
		ReplyToID:   replyToID,
		Media:       media,
		CreatedAt:   time.Now(),
		ClientToken: token,
	}
	c.store.StageMessage(pending)

	authoritative, err := c.api.SendMessage(ctx, remote.SendMessageInput{
		ChatID:      chatID,
		Content:     text,
		ReplyToID:   replyToID,
		Media:       media,
		ClientToken: token,
	})
	if err != nil {
		c.store.RemoveMessageByToken(token)
		return nil, &RemoteError{Op: "send message", Err: err}
	}

	confirmed := *authoritative
	if !c.store.ConfirmMessage(token, confirmed) {
		// the push-stream insert won the race; the store already holds
		// the authoritative copy
		c.log.Debug("send confirmed by stream first", "message_id", confirmed.ID)
	}
	c.ClearReplyContext(chatID)

	final, ok := c.store.Message(confirmed.ID)
	if !ok {
		return &confirmed, nil
	}
	return &final, nil
}

// ToggleReaction flips the caller's (emoji, message) reaction. The
// optimistic flip is reverted if the remote call fails, so rapid repeated
// toggles settle on the last confirmed intent.
func (c *Commands) ToggleReaction(ctx context.Context, chatID, messageID uuid.UUID, emoji string) error {
	self, err := c.self()
	if err != nil {
		return err
	}
	if errs := validator.ValidateReaction(emoji); errs.HasErrors() {
		return validationError(errs)
	}
	msg, ok := c.store.Message(messageID)
	if !ok || msg.ChatID != chatID {
		return ErrMessageNotFound
	}

	had := msg.HasReaction(emoji, self.ID)
	c.store.SetReaction(messageID, emoji, self.ID, !had)

	if had {
		err = c.api.RemoveReaction(ctx, messageID, emoji)
	} else {
		err = c.api.AddReaction(ctx, messageID, emoji)
	}
	if err != nil {
		c.store.SetReaction(messageID, emoji, self.ID, had)
		return &RemoteError{Op: "toggle reaction", Err: err}
	}
	return nil
}

// UploadAttachment uploads a file and returns the media record to attach
// to a later SendMessage. No store mutation happens here: media only
// becomes visible as part of a message.
func (c *Commands) UploadAttachment(ctx context.Context, filename, mimeType string, size int64, r io.Reader) (*domain.Media, error) {
	if _, err := c.self(); err != nil {
		return nil, err
	}
	url, err := c.api.UploadFile(ctx, filename, mimeType, size, r)
	if err != nil {
		return nil, &RemoteError{Op: "upload file", Err: err}
	}
	return &domain.Media{
		ID:       uuid.New(),
		Kind:     mediaKind(mimeType),
		URL:      url,
		Filename: filename,
		Size:     size,
		MimeType: mimeType,
	}, nil
}

func mediaKind(mimeType string) domain.MediaKind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return domain.MediaImage
	case strings.HasPrefix(mimeType, "video/"):
		return domain.MediaVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return domain.MediaAudio
	default:
		return domain.MediaFile
	}
}
