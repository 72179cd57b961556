// Package security provides centralized security configuration, structured
// logging, input validation and rate limiting for the CoTask backend.
// This file implements boundary input validation.
package security

import (
	"encoding/base64"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// ValidationService provides centralized input validation functions.
// All validation methods return descriptive errors that are safe to show to users.
//
// Semantic validation (roles, delegation rules, completion gates) lives in the
// services; this layer only rejects malformed input before it reaches them.
type ValidationService struct {
	config *SecurityConfig
}

// NewValidationService creates a new validation service with security configuration.
func NewValidationService(config *SecurityConfig) *ValidationService {
	return &ValidationService{
		config: config,
	}
}

// ValidateEmail validates email address format according to RFC 5322.
func (v *ValidationService) ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}

	if len(email) > 255 {
		return fmt.Errorf("email must be less than 255 characters")
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email format")
	}

	return nil
}

// ValidatePassword validates password meets minimum security requirements.
// Requirements: at least 8 characters, contains uppercase, lowercase, and number.
func (v *ValidationService) ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}

	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	if len(password) > 128 {
		return fmt.Errorf("password must be less than 128 characters")
	}

	hasUpper := regexp.MustCompile(`[A-Z]`).MatchString(password)
	hasLower := regexp.MustCompile(`[a-z]`).MatchString(password)
	hasNumber := regexp.MustCompile(`[0-9]`).MatchString(password)

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}

	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}

	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

// ValidateGroupName validates group name length and format.
func (v *ValidationService) ValidateGroupName(name string) error {
	if name == "" {
		return fmt.Errorf("group name is required")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("group name cannot be empty")
	}

	if utf8.RuneCountInString(name) > v.config.MaxGroupNameLength {
		return fmt.Errorf("group name must be %d characters or less", v.config.MaxGroupNameLength)
	}

	// Only allow alphanumeric, spaces, hyphens, underscores
	matched := regexp.MustCompile(`^[a-zA-Z0-9\s\-_]+$`).MatchString(name)
	if !matched {
		return fmt.Errorf("group name can only contain letters, numbers, spaces, hyphens, and underscores")
	}

	return nil
}

// ValidateCiphertext validates an encrypted payload field: URL-safe base64
// without padding and within the configured size limit. The server cannot
// inspect content, so size and encoding are the only checks possible.
func (v *ValidationService) ValidateCiphertext(fieldName, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if len(value) > v.config.MaxCiphertextSize {
		return fmt.Errorf("%s exceeds maximum size of %d bytes", fieldName, v.config.MaxCiphertextSize)
	}

	if _, err := base64.RawURLEncoding.DecodeString(value); err != nil {
		return fmt.Errorf("%s is not valid base64", fieldName)
	}

	return nil
}

// ValidateHexColor validates an optional "#rrggbb" color value.
func (v *ValidationService) ValidateHexColor(color string) error {
	if color == "" {
		return nil
	}

	matched := regexp.MustCompile(`^#[0-9a-fA-F]{6}$`).MatchString(color)
	if !matched {
		return fmt.Errorf("color must be a hex value like #3b82f6")
	}

	return nil
}

// ValidateDeadline validates an ISO 8601 date-time string and rejects
// deadlines in the past.
func (v *ValidationService) ValidateDeadline(deadline string) error {
	if deadline == "" {
		return nil
	}

	t, err := time.Parse(time.RFC3339, deadline)
	if err != nil {
		return fmt.Errorf("invalid deadline format (expected RFC 3339)")
	}

	if t.Before(time.Now()) {
		return fmt.Errorf("deadline cannot be in the past")
	}

	return nil
}

// SanitizeString removes potentially dangerous characters from string input.
// Removes control characters and normalizes whitespace.
func (v *ValidationService) SanitizeString(input string) string {
	// Remove control characters (except newline and tab)
	input = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`).ReplaceAllString(input, "")

	return strings.TrimSpace(input)
}

// ValidateRequired checks if a required field is present and non-empty.
func (v *ValidationService) ValidateRequired(fieldName, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	return nil
}

// ValidateLength validates string length is within bounds.
func (v *ValidationService) ValidateLength(fieldName string, value string, min, max int) error {
	length := utf8.RuneCountInString(value)

	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}

	if length > max {
		return fmt.Errorf("%s must be %d characters or less", fieldName, max)
	}

	return nil
}
