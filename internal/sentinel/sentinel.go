package sentinel

import "errors"

// Sentinel dependency errors. Stores and the upstream client should return
// these (optionally wrapped) so services can translate them into domain
// errors exactly once.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrExpired      = errors.New("expired")
	ErrCorrupted    = errors.New("corrupted entry")
	ErrUnavailable  = errors.New("unavailable")
)
