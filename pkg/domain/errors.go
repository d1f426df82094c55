package domain

import "errors"

// ErrConfiguration is returned when a parameter set contains duplicate names,
// including a collision with one of the reserved provenance parameters.
var ErrConfiguration = errors.New("configuration error")

// ErrDependencyUnavailable is returned when a file or source backed parameter
// cannot resolve its target.
var ErrDependencyUnavailable = errors.New("dependency unavailable")

// ErrLogNotFound is returned when no log has been persisted for a workflow yet.
var ErrLogNotFound = errors.New("log not found")

// ErrPersistence is returned when a log cannot be read or written.
var ErrPersistence = errors.New("persistence error")

// ErrInvalidName is returned when a workflow name cannot be used as a storage key.
var ErrInvalidName = errors.New("invalid workflow name")

// ErrLockLost is returned when a distributed lock expired or changed hands
// while it was still in use.
var ErrLockLost = errors.New("lock lost")
