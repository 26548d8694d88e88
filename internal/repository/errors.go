package repository

import "errors"

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrTaskNotFound   = errors.New("task not found")
	ErrEmailTaken     = errors.New("email already registered")
	ErrInvalidPayload = errors.New("invalid payload")
)
