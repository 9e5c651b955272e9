// Package apperr defines the error taxonomy shared by the service and HTTP
// layers. Handlers match these with errors.Is and map them to status codes in
// one place.
package apperr

import "errors"

var (
	// ErrInvalidArgument is a missing or malformed required field.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnauthorized covers missing sessions, non-members, insufficient
	// roles and non-owners alike.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned both when a resource does not exist and when
	// it exists but the caller may not see it, so existence never leaks.
	ErrNotFound = errors.New("not found")
	// ErrConflict is a uniqueness violation surfaced to be retried.
	ErrConflict = errors.New("conflict")
	// ErrUpload is an external object-storage failure on the write path.
	ErrUpload = errors.New("upload failed")
)
