package ripple

import "github.com/pkg/errors"

var (
	// ErrTimeout is delivered to requests which exhausted the retry budget.
	ErrTimeout = errors.New("request timed out")

	// ErrCancelled is delivered to requests cancelled explicitly or by destroying the socket.
	ErrCancelled = errors.New("request cancelled")

	// ErrTooManyRequests is returned when all the transaction IDs are in use.
	ErrTooManyRequests = errors.New("too many requests in flight")
)
