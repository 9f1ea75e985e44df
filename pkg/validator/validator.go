package validator

import (
	"strings"
	"unicode/utf8"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

const maxContentLen = 4000

// ValidateMessage checks a message payload: text and/or a media reference,
// at least one of which must be present.
func ValidateMessage(content string, hasMedia bool) ValidationErrors {
	errs := make(ValidationErrors)

	content = strings.TrimSpace(content)
	if content == "" && !hasMedia {
		errs.Add("content", "Message content or media reference is required")
	} else if utf8.RuneCountInString(content) > maxContentLen {
		errs.Add("content", "Message content is too long")
	}

	return errs
}

func ValidateGroupName(name string) ValidationErrors {
	errs := make(ValidationErrors)

	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "Group name is required")
	} else if utf8.RuneCountInString(name) < 2 {
		errs.Add("name", "Group name must be at least 2 characters")
	} else if utf8.RuneCountInString(name) > 100 {
		errs.Add("name", "Group name is too long")
	}

	return errs
}
