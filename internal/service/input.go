package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	maxUsernameLen = 150
	maxEmailLen    = 255
	maxNameLen     = 255
	maxStatusLen   = 255
	// bcrypt ignores input past 72 bytes.
	maxPasswordLen = 72
)

// SignupInput is the registration payload.
type SignupInput struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
	Email    string `json:"email" form:"email"`
}

// Normalize trims the username and lower-cases the email.
func (in *SignupInput) Normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
}

func (in SignupInput) Validate() error {
	switch {
	case in.Username == "":
		return invalid("username is required")
	case utf8.RuneCountInString(in.Username) > maxUsernameLen:
		return invalid("username must be at most %d characters", maxUsernameLen)
	case in.Password == "":
		return invalid("password is required")
	case len(in.Password) > maxPasswordLen:
		return invalid("password must be at most %d bytes", maxPasswordLen)
	case in.Email == "":
		return invalid("email is required")
	case len(in.Email) > maxEmailLen:
		return invalid("email must be at most %d characters", maxEmailLen)
	}
	if a, err := mail.ParseAddress(in.Email); err != nil || a.Address != in.Email {
		return invalid("email is not a valid address")
	}
	return nil
}

// LoginInput carries the login credentials, from JSON or an OAuth2
// password form.
type LoginInput struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Normalize trims the username the same way SignupInput does.
func (in *LoginInput) Normalize() {
	in.Username = strings.TrimSpace(in.Username)
}

func (in LoginInput) Validate() error {
	if in.Username == "" || in.Password == "" {
		return invalid("username and password are required")
	}
	return nil
}

// PipelineInput is the body of pipeline create and update requests.
type PipelineInput struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

func (in PipelineInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return invalid("name is required")
	case utf8.RuneCountInString(in.Name) > maxNameLen:
		return invalid("name must be at most %d characters", maxNameLen)
	case strings.TrimSpace(in.Status) == "":
		return invalid("status is required")
	case utf8.RuneCountInString(in.Status) > maxStatusLen:
		return invalid("status must be at most %d characters", maxStatusLen)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
