package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxNameLength    = 50
	MaxBioLength     = 500
	MaxPostLength    = 5000
	MaxCommentLength = 1000
)

// ValidateName checks a first or last name. Names are required at signup.
func ValidateName(field, name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%s is required", field)
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return fmt.Errorf("%s must not exceed %d characters", field, MaxNameLength)
	}
	return nil
}

// ValidateBio allows an empty bio.
func ValidateBio(bio string) error {
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return fmt.Errorf("bio must not exceed %d characters", MaxBioLength)
	}
	return nil
}

// ValidatePostContent requires text unless the post carries an image.
func ValidatePostContent(content string, hasImage bool) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" && !hasImage {
		return fmt.Errorf("post must have content or an image")
	}
	if utf8.RuneCountInString(trimmed) > MaxPostLength {
		return fmt.Errorf("post content must not exceed %d characters", MaxPostLength)
	}
	return nil
}

func ValidateCommentText(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("comment text is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxCommentLength {
		return fmt.Errorf("comment must not exceed %d characters", MaxCommentLength)
	}
	return nil
}
