package service

import (
	"context"
	"strings"

	"github.com/tetherim/tether/internal/domain"
	"github.com/tetherim/tether/internal/remote"
	"github.com/tetherim/tether/pkg/validator"
)

// SearchUsers is a read-through to the backend with stale-result
// suppression: each call bumps a generation counter, and a result that
// lands after a newer query started is discarded with ErrStaleQuery
// instead of being applied.
func (c *Commands) SearchUsers(ctx context.Context, query string) ([]domain.User, error) {
	if _, err := c.self(); err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	gen := c.searchGen.Add(1)

	if query == "" {
		return nil, nil
	}
	if errs := validator.ValidateSearchQuery(query); errs.HasErrors() {
		return nil, validationError(errs)
	}

	users, err := c.api.SearchUsers(ctx, query)
	if err != nil {
		return nil, &RemoteError{Op: "search users", Err: err}
	}
	if gen != c.searchGen.Load() {
		return nil, ErrStaleQuery
	}

	for _, u := range users {
		c.store.UpsertUser(u)
	}
	return users, nil
}

// UpdateProfile patches the caller's mutable profile fields, optimistic
// with rollback to the previously cached profile on failure.
func (c *Commands) UpdateProfile(ctx context.Context, displayName string, bio, avatarURL *string) (*domain.User, error) {
	self, err := c.self()
	if err != nil {
		return nil, err
	}
	if errs := validator.ValidateProfile(displayName, bio); errs.HasErrors() {
		return nil, validationError(errs)
	}

	prev, hadPrev := c.store.User(self.ID)
	if !hadPrev {
		prev = self
	}

	patched := prev
	patched.DisplayName = strings.TrimSpace(displayName)
	if bio != nil {
		patched.Bio = bio
	}
	if avatarURL != nil {
		patched.AvatarURL = avatarURL
	}
	c.store.UpsertUser(patched)

	authoritative, err := c.api.UpdateProfile(ctx, remote.UpdateProfileInput{
		DisplayName: patched.DisplayName,
		Bio:         bio,
		AvatarURL:   avatarURL,
	})
	if err != nil {
		c.store.UpsertUser(prev)
		return nil, &RemoteError{Op: "update profile", Err: err}
	}

	c.store.UpsertUser(*authoritative)
	return authoritative, nil
}
