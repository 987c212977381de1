package indexstore

import "errors"

var (
	// ErrNotLoaded is returned when an operation needs an index that has
	// not been built or loaded yet.
	ErrNotLoaded = errors.New("index not loaded")

	// ErrNoIndex is returned by Load when the directory holds no index
	// metadata. It is always wrapped together with core.ErrMissingArtifact.
	ErrNoIndex = errors.New("no index")
)
