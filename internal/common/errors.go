package common

import "errors"

// Failure categories surfaced at the API boundary. Lower layers wrap these
// with fmt.Errorf and %w so callers can match with errors.Is.
var (
	// ErrInvalidCredentials indicates an unknown username or a wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrDuplicateUsername indicates a sign-up with an already-taken username.
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrValidation indicates rejected input, e.g. a password/confirmation
	// mismatch at sign-up. Nothing is persisted when it is returned.
	ErrValidation = errors.New("invalid input")

	// ErrStorage indicates a failed write to the image store.
	ErrStorage = errors.New("image storage failure")

	// ErrDecode indicates an upload that is not a readable image.
	ErrDecode = errors.New("unreadable image")

	// ErrPersistence indicates a failed database read or write.
	ErrPersistence = errors.New("database failure")
)
