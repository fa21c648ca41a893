package validator

import (
	"regexp"
	"strings"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

var usernameQueryRegex = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidateMessage checks the send-message precondition: a message needs
// text or at least one attachment.
func ValidateMessage(content string, mediaCount int) ValidationErrors {
	errs := make(ValidationErrors)

	content = strings.TrimSpace(content)
	if content == "" && mediaCount == 0 {
		errs.Add("content", "Message must have text or attachments")
	} else if len(content) > 4000 {
		errs.Add("content", "Message is too long")
	}

	return errs
}

func ValidateGroupChat(name string, otherMembers int) ValidationErrors {
	errs := make(ValidationErrors)

	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "Group name is required")
	} else if len(name) < 2 {
		errs.Add("name", "Group name must be at least 2 characters")
	} else if len(name) > 100 {
		errs.Add("name", "Group name is too long")
	}

	if otherMembers < 1 {
		errs.Add("members", "Select at least one member")
	}

	return errs
}

func ValidateProfile(displayName string, bio *string) ValidationErrors {
	errs := make(ValidationErrors)

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		errs.Add("display_name", "Display name is required")
	} else if len(displayName) < 2 {
		errs.Add("display_name", "Display name must be at least 2 characters")
	} else if len(displayName) > 100 {
		errs.Add("display_name", "Display name is too long")
	}

	if bio != nil && len(*bio) > 500 {
		errs.Add("bio", "Bio is too long")
	}

	return errs
}

// ValidateSearchQuery checks a partial-username query. Usernames are
// lowercase with a constrained charset, so queries are held to the same.
func ValidateSearchQuery(query string) ValidationErrors {
	errs := make(ValidationErrors)

	if query == "" {
		return errs
	}
	if len(query) > 50 {
		errs.Add("query", "Query is too long")
	} else if !usernameQueryRegex.MatchString(query) {
		errs.Add("query", "Query can only contain lowercase letters, numbers, _ and -")
	}

	return errs
}

func ValidateReaction(emoji string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(emoji) == "" {
		errs.Add("emoji", "Emoji is required")
	}

	return errs
}
