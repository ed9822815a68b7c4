package feed

import "errors"

var (
	// ErrSourceUnavailable marks a failure to acquire raw records. It is
	// fatal for the run and no output is written.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrInvalidFeed marks a generated document that failed verification.
	ErrInvalidFeed = errors.New("invalid feed")
)
