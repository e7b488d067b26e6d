package reports

import "errors"

var (
	// ErrInvalidAccount is returned when an account identifier does not match
	// the 0000.00000000 format.
	ErrInvalidAccount = errors.New("invalid account format")

	// ErrStoreUnavailable wraps connectivity and timeout failures of either
	// backing store. Callers may retry; the core never does.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrObjectNotFound is returned when a requested artifact does not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrInvalidObjectName is returned when an artifact name breaks the
	// object store naming rules.
	ErrInvalidObjectName = errors.New("invalid object name")
)
