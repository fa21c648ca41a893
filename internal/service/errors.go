package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tetherim/tether/pkg/validator"
)

var (
	ErrNoSession       = errors.New("no authenticated user")
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrCannotDMSelf    = errors.New("cannot start a conversation with yourself")
	ErrStaleQuery      = errors.New("query superseded by a newer one")
)

// ValidationError is a local precondition failure. It never reaches the
// remote collaborator and the store is untouched when it is returned.
type ValidationError struct {
	Fields validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

func validationError(errs validator.ValidationErrors) error {
	if !errs.HasErrors() {
		return nil
	}
	return &ValidationError{Fields: errs}
}

// RemoteError is a failed remote call. By the time it is surfaced the
// associated optimistic write has already been rolled back; re-submission
// is a new, explicit user action, never an automatic retry.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
