package postgres

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("audioreg/postgres: record not found")
	// ErrDuplicateIdentity is returned when an insert or update would
	// violate a uniqueness constraint (external id, username, or email).
	ErrDuplicateIdentity = errors.New("audioreg/postgres: duplicate identity")
)
