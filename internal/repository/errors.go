package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("entity conflict")

	// ErrDuplicateCode is returned when a new trip's display code is already taken.
	ErrDuplicateCode = errors.New("trip code already taken")

	// ErrStaleState is returned when a conditional update finds the row changed underneath it.
	ErrStaleState = errors.New("entity state changed concurrently")
)
