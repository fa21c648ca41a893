package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tetherim/tether/internal/domain"
)

const requestTimeout = 15 * time.Second

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("remote: unexpected status %d", e.StatusCode)
}

// Client is the HTTP implementation of API against the backend's JSON
// endpoints, authenticated with a bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return &StatusError{
		StatusCode: resp.StatusCode,
		Code:       payload.Error.Code,
		Message:    payload.Error.Message,
	}
}

func (c *Client) FetchChats(ctx context.Context) ([]ChatWithMembers, error) {
	var out struct {
		Chats []ChatWithMembers `json:"chats"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/chats", nil, &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

func (c *Client) FetchChat(ctx context.Context, chatID uuid.UUID) (*ChatWithMembers, error) {
	var out ChatWithMembers
	if err := c.do(ctx, http.MethodGet, "/api/v1/chats/"+chatID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchMessages(ctx context.Context, chatID uuid.UUID) ([]domain.Message, error) {
	var out struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/chats/"+chatID.String()+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) SendMessage(ctx context.Context, in SendMessageInput) (*domain.Message, error) {
	var out domain.Message
	if err := c.do(ctx, http.MethodPost, "/api/v1/chats/"+in.ChatID.String()+"/messages", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddReaction(ctx context.Context, messageID uuid.UUID, emoji string) error {
	in := map[string]string{"emoji": emoji}
	return c.do(ctx, http.MethodPut, "/api/v1/messages/"+messageID.String()+"/reactions", in, nil)
}

func (c *Client) RemoveReaction(ctx context.Context, messageID uuid.UUID, emoji string) error {
	path := "/api/v1/messages/" + messageID.String() + "/reactions?emoji=" + url.QueryEscape(emoji)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) CreateDirectChat(ctx context.Context, in CreateDirectChatInput) (*domain.Chat, error) {
	var out domain.Chat
	if err := c.do(ctx, http.MethodPost, "/api/v1/chats/direct", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateGroupChat(ctx context.Context, in CreateGroupChatInput) (*domain.Chat, error) {
	var out domain.Chat
	if err := c.do(ctx, http.MethodPost, "/api/v1/chats/group", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]domain.User, error) {
	var out struct {
		Users []domain.User `json:"users"`
	}
	path := "/api/v1/users/search?q=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*domain.User, error) {
	var out domain.User
	if err := c.do(ctx, http.MethodPatch, "/api/v1/profile", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadFile streams a file to the backend and returns its public URL.
func (c *Client) UploadFile(ctx context.Context, filename, mimeType string, size int64, r io.Reader) (string, error) {
	path := c.baseURL + "/api/v1/files?filename=" + url.QueryEscape(filename)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, r)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", mimeType)
	if size > 0 {
		req.ContentLength = size
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", decodeError(resp)
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.URL, nil
}
