package baseline

import "errors"

var (
	// ErrInvalidMethod is returned when a query method name is not recognized.
	ErrInvalidMethod = errors.New("invalid query method")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
)
