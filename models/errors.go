package models

import "errors"

var (
	// ErrNotFound means the complaint id (or user id) did not resolve.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means a non-admin caller attempted an admin operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCategory means an override_type outside the category enum.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrInvalidStatus means an ai_status or status outside the allowed set,
	// or a disallowed status transition.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrStoreUnavailable wraps underlying persistence failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)
