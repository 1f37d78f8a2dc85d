package clients

import "errors"

var (
	ErrNotFound     = errors.New("client not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidToken = errors.New("invalid or expired verification token")
)
