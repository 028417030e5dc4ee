package service

import "errors"

// Service errors.  Handlers map these to HTTP status codes.
var (
	ErrDuplicateCredential    = errors.New("username or email already registered")
	ErrInvalidCredentials     = errors.New("incorrect username or password")
	ErrUserNotFound           = errors.New("user not found")
	ErrNotFoundOrUnauthorized = errors.New("pipeline not found or not authorized")
	ErrInvalidInput           = errors.New("invalid input")
)
