package domain

import "errors"

var (
	// ErrNotFound covers both missing records and records owned by someone else.
	ErrNotFound = errors.New("not found")

	ErrDuplicateEmail     = errors.New("email already registered")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("incorrect username or password")

	// ErrInvalidInput is wrapped with the offending field.
	ErrInvalidInput = errors.New("invalid input")
)
