package ann

import "errors"

var (
	// ErrDuplicateLabel is returned when a label is added twice.
	ErrDuplicateLabel = errors.New("label already indexed")

	// ErrInvalidParams is returned for non-positive construction parameters.
	ErrInvalidParams = errors.New("invalid index parameters")

	// ErrShrink is returned when Resize would drop below the current count.
	ErrShrink = errors.New("capacity below current count")
)
