package rms

import "errors"

var (
	ErrNotFound           = errors.New("user not found")
	ErrDuplicate          = errors.New("username or email already taken")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotSuperuser       = errors.New("user is not a superuser")
)
