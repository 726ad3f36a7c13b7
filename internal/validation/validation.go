package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	phoneRegex  = regexp.MustCompile(`^1[3-9]\d{9}$`)
	emailRegex  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	letterRegex = regexp.MustCompile(`[a-zA-Z]`)
	digitRegex  = regexp.MustCompile(`\d`)
)

// unsafeChars are stripped from free text and rejected in nicknames
const unsafeChars = `<>"'&`

// Upload limits for behavior photos and avatars
const (
	MaxUploadSize   = 5 * 1024 * 1024
	MaxSanitizedLen = 1000
	MinScoreChange  = -50
	MaxScoreChange  = 50
	MinChildAge     = 1
	MaxChildAge     = 18
)

// AllowedImageTypes lists the content types accepted for uploads
var AllowedImageTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp"}

// BehaviorTypes are the categories a behavior can be recorded under
var BehaviorTypes = []string{"learning", "life", "social", "emotion", "exercise", "eating"}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidatePhone checks a mainland China mobile number
func ValidatePhone(phone string) error {
	if phone == "" {
		return ValidationError{Field: "phone", Message: "phone is required"}
	}
	if !phoneRegex.MatchString(phone) {
		return ValidationError{Field: "phone", Message: "invalid phone number"}
	}
	return nil
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidatePassword checks length and that both a letter and a digit are present
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < 6 {
		return ValidationError{Field: "password", Message: "password must be at least 6 characters"}
	}
	if n > 20 {
		return ValidationError{Field: "password", Message: "password must be at most 20 characters"}
	}
	if !letterRegex.MatchString(password) || !digitRegex.MatchString(password) {
		return ValidationError{Field: "password", Message: "password must contain a letter and a digit"}
	}
	return nil
}

// ValidateAge parses and range-checks a child's age
func ValidateAge(age string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(age))
	if err != nil {
		return 0, ValidationError{Field: "age", Message: "age must be a number"}
	}
	if n < MinChildAge || n > MaxChildAge {
		return 0, ValidationError{Field: "age", Message: fmt.Sprintf("age must be between %d and %d", MinChildAge, MaxChildAge)}
	}
	return n, nil
}

// ValidateNickname checks a display name
func ValidateNickname(nickname string) error {
	if strings.TrimSpace(nickname) == "" {
		return ValidationError{Field: "nickname", Message: "nickname is required"}
	}
	n := utf8.RuneCountInString(nickname)
	if n < 2 {
		return ValidationError{Field: "nickname", Message: "nickname must be at least 2 characters"}
	}
	if n > 20 {
		return ValidationError{Field: "nickname", Message: "nickname must be at most 20 characters"}
	}
	if strings.ContainsAny(nickname, unsafeChars) {
		return ValidationError{Field: "nickname", Message: "nickname must not contain special characters"}
	}
	return nil
}

// ValidateScore checks a behavior points change
func ValidateScore(score int) error {
	if score == 0 {
		return ValidationError{Field: "score_change", Message: "score change is required"}
	}
	if score < MinScoreChange || score > MaxScoreChange {
		return ValidationError{Field: "score_change", Message: fmt.Sprintf("score change must be between %d and %d", MinScoreChange, MaxScoreChange)}
	}
	return nil
}

// ValidateBehaviorType checks a behavior category
func ValidateBehaviorType(behaviorType string) error {
	for _, t := range BehaviorTypes {
		if t == behaviorType {
			return nil
		}
	}
	return ValidationError{Field: "behavior_type", Message: "behavior type must be one of " + strings.Join(BehaviorTypes, ", ")}
}

// ValidateUpload checks an upload's content type and size
func ValidateUpload(contentType string, size int64) error {
	allowed := false
	for _, t := range AllowedImageTypes {
		if t == contentType {
			allowed = true
			break
		}
	}
	if !allowed {
		return ValidationError{Field: "file", Message: "only JPEG, JPG, PNG, GIF and WEBP files are supported"}
	}
	if size > MaxUploadSize {
		return ValidationError{Field: "file", Message: fmt.Sprintf("file must not exceed %dMB", MaxUploadSize/(1024*1024))}
	}
	return nil
}

// SanitizeInput trims, strips markup characters and caps the length of free text
func SanitizeInput(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(unsafeChars, r) {
			return -1
		}
		return r
	}, strings.TrimSpace(input))

	if utf8.RuneCountInString(cleaned) > MaxSanitizedLen {
		runes := []rune(cleaned)
		cleaned = string(runes[:MaxSanitizedLen])
	}
	return cleaned
}
