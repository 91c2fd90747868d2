package realm

import "errors"

var (
	// ErrOutOfMemory mirrors the engine's allocation-failure error kind:
	// the caller should abort the current update and leave prior state
	// intact.
	ErrOutOfMemory = errors.New("realm: allocation failed")
)
