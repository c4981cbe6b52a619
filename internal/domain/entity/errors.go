package entity

import "errors"

var (
	// ErrNotFound is returned when a catalog record, vehicle or user does not exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a uniqueness rule would be violated
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidInput is returned for malformed request data
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned for bad credentials or unusable tokens
	ErrUnauthorized = errors.New("unauthorized")
)
