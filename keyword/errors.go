package keyword

import "errors"

var (
	// ErrSnapshotVersion is returned when a saved index has an unknown format.
	ErrSnapshotVersion = errors.New("unsupported keyword snapshot version")
)
