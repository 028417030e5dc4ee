// Package service implements registration, login and the ownership-scoped
// pipeline operations on top of the repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/pipeline-service/internal/auth"
	"github.com/iliyamo/pipeline-service/internal/model"
	"github.com/iliyamo/pipeline-service/internal/repository"
)

// UserStore is the part of the credential store the auth flows use.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error)
}

// AuthService runs signup, login and profile lookups.  Stores are passed
// per call because each request works on its own store session.
type AuthService struct {
	hasher *auth.Hasher
	tokens *auth.TokenService
	// dummyHash is verified against when the username is unknown so both
	// failure paths cost one bcrypt comparison.
	dummyHash string
	now       func() time.Time
}

func NewAuthService(hasher *auth.Hasher, tokens *auth.TokenService) (*AuthService, error) {
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	return &AuthService{hasher: hasher, tokens: tokens, dummyHash: dummy, now: time.Now}, nil
}

// Signup registers a new user.  An existing username or email, whether
// found up front or raised by the store as a unique violation during the
// insert, is ErrDuplicateCredential.
func (s *AuthService) Signup(ctx context.Context, users UserStore, in SignupInput) (*model.User, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	_, err := users.GetByUsernameOrEmail(ctx, in.Username, in.Email)
	switch {
	case err == nil:
		return nil, ErrDuplicateCredential
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}
	if err := users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateCredential
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login verifies the credentials and issues a token.  Unknown users and
// wrong passwords both return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, users UserStore, in LoginInput) (auth.Token, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return auth.Token{}, ErrInvalidCredentials
	}

	u, err := users.GetByUsername(ctx, in.Username)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return auth.Token{}, fmt.Errorf("lookup user: %w", err)
		}
		s.hasher.Verify(in.Password, s.dummyHash)
		return auth.Token{}, ErrInvalidCredentials
	}
	if !s.hasher.Verify(in.Password, u.PasswordHash) {
		return auth.Token{}, ErrInvalidCredentials
	}
	return s.tokens.Issue(u.Username)
}

// Profile returns the user record for username.
func (s *AuthService) Profile(ctx context.Context, users UserStore, username string) (*model.User, error) {
	u, err := users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}
