package sentinel

import "errors"

// Sentinel errors for persistence facts. Stores return these (optionally
// wrapped); services translate them into domain errors.
//
//   - ErrNotFound: document does not exist
//   - ErrConflict: a unique key is already taken
//   - ErrVersionMismatch: optimistic write lost against a newer version
//   - ErrInvalidState: document is in the wrong state for the write
//   - ErrUnavailable: backing store or remote collaborator unreachable
//
// Input problems belong in pkg/domain-errors, not here.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrVersionMismatch = errors.New("version mismatch")
	ErrInvalidState    = errors.New("invalid state")
	ErrUnavailable     = errors.New("unavailable")
)
