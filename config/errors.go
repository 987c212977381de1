package config

import "errors"

// ErrInvalidConfig is returned when a loaded config holds unusable values.
var ErrInvalidConfig = errors.New("invalid config")
