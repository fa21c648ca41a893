// Package identity derives the current authenticated user from the
// access token issued at sign-in. The token is parsed, not verified:
// verification is the server's job, the client only needs the claims.
package identity

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tetherim/tether/internal/domain"
	"github.com/tetherim/tether/pkg/prefs"
)

const sessionKey = "session/token"

var ErrNoStoredSession = errors.New("no stored session")

type Identity struct {
	mu    sync.RWMutex
	user  domain.User
	token string
}

// FromToken builds an identity from an access token's claims.
func FromToken(token string) (*Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parsing access token: %w", err)
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("reading token subject: %w", err)
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid user id in token: %w", err)
	}

	user := domain.User{ID: userID}
	if v, ok := claims["username"].(string); ok {
		user.Username = v
	}
	if v, ok := claims["display_name"].(string); ok {
		user.DisplayName = v
	}
	if user.DisplayName == "" {
		user.DisplayName = user.Username
	}

	return &Identity{user: user, token: token}, nil
}

// Load restores the remembered session from the preference store.
func Load(p *prefs.Store) (*Identity, error) {
	raw, ok, err := p.Get(sessionKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoStoredSession
	}
	return FromToken(string(raw))
}

// Save remembers the session token for the next start.
func (i *Identity) Save(p *prefs.Store) error {
	i.mu.RLock()
	token := i.token
	i.mu.RUnlock()
	return p.Set(sessionKey, []byte(token))
}

// Forget drops the remembered session, e.g. on sign-out.
func Forget(p *prefs.Store) error {
	return p.Delete(sessionKey)
}

func (i *Identity) CurrentUser() (domain.User, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.user, i.user.ID != uuid.Nil
}

func (i *Identity) Token() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.token
}

// Refresh replaces the cached profile, e.g. after a profile update.
// The id is immutable; a mismatched id is ignored.
func (i *Identity) Refresh(user domain.User) {
	i.mu.Lock()
	if user.ID == i.user.ID {
		i.user = user
	}
	i.mu.Unlock()
}
