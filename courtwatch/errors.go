package courtwatch

import "errors"

// ErrUnknownEndpoint is returned for an endpoint name not in the registry.
var ErrUnknownEndpoint = errors.New("courtwatch: unknown endpoint")

// ErrCorruptHistory is returned when a stored snapshot no longer
// flattens. Payloads are validated at ingest time, so this is an
// internal invariant violation, not a retryable condition.
var ErrCorruptHistory = errors.New("courtwatch: stored snapshot no longer flattens")
