package model

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrHandlerNotFound = errors.New("handler not found")
)
