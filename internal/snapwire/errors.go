package snapwire

import "errors"

var (
	// ErrMalformed is returned when a message underflows its declared
	// length or declares an impossible record length. Per §7, the
	// message is dropped and the error logged; it is never fatal.
	ErrMalformed = errors.New("snapwire: malformed message")
)
