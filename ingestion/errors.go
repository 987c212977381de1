package ingestion

import "errors"

var (
	// ErrMalformedInput is returned when a file is not in one of the
	// accepted article formats.
	ErrMalformedInput = errors.New("malformed article input")

	// ErrNoInput is returned when no input path is given.
	ErrNoInput = errors.New("no input files")
)
