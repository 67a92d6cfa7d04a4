package session

import "errors"

// Failure reasons returned by the store. None of them mutate state.
var (
	ErrNotFound         = errors.New("session not found")
	ErrPlayerMismatch   = errors.New("session belongs to another player")
	ErrAlreadySubmitted = errors.New("session already submitted")
	ErrExpired          = errors.New("session expired")
	ErrNotClaimed       = errors.New("session is not claimed")
	ErrCapacity         = errors.New("session store at capacity")
	ErrIDCollision      = errors.New("session id collision")
)
