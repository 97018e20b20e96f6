package storage

import "errors"

var (
	// ErrNotFound indicates no record matches the lookup.
	ErrNotFound = errors.New("storage: record not found")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("storage: required parameter is nil")

	// ErrDuplicate indicates a record with the same unique key already exists.
	ErrDuplicate = errors.New("storage: duplicate record")

	// ErrInvalidRecord indicates a record is missing a required field.
	ErrInvalidRecord = errors.New("storage: invalid record")

	// ErrIOFailure indicates the backing database failed.
	ErrIOFailure = errors.New("storage: I/O failure")
)
