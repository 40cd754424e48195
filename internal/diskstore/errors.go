package diskstore

import "errors"

var (
	// ErrInvalidDSN is returned when the DSN is empty or invalid.
	ErrInvalidDSN = errors.New("diskstore: invalid or empty DSN")

	// ErrConnectionFailed is returned when connection attempts are exhausted.
	ErrConnectionFailed = errors.New("diskstore: connection failed")
)
