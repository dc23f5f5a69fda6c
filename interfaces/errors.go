package interfaces

import "errors"

var (
	// ErrUnauthorized is returned when the caller does not hold the role an operation requires.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState is returned when an operation is not valid for the current bond
	// status or reporting period.
	ErrInvalidState = errors.New("invalid state")

	// ErrPaused is returned by state-mutating operations while the bond is frozen.
	ErrPaused = errors.New("bond is paused")

	// ErrOutOfRange is returned when an amount exceeds the available supply or balance.
	ErrOutOfRange = errors.New("amount out of range")

	// ErrNotFound is returned when a device is not registered.
	ErrNotFound = errors.New("not found")

	// ErrHashMismatch is returned when a commitment does not match the recomputed digest.
	ErrHashMismatch = errors.New("hash mismatch")

	// ErrOwnerConflict is returned when a device id is already registered.
	ErrOwnerConflict = errors.New("device already registered")

	// ErrInvalidArgument is returned for malformed input such as an empty device id
	// or out-of-order term dates.
	ErrInvalidArgument = errors.New("invalid argument")
)

var errorKinds = []struct {
	kind string
	err  error
}{
	{"unauthorized", ErrUnauthorized},
	{"invalid_state", ErrInvalidState},
	{"paused", ErrPaused},
	{"out_of_range", ErrOutOfRange},
	{"not_found", ErrNotFound},
	{"hash_mismatch", ErrHashMismatch},
	{"owner_conflict", ErrOwnerConflict},
	{"invalid_argument", ErrInvalidArgument},
}

// ErrorKind returns the wire identifier of the taxonomy error wrapped by err,
// "ok" for a nil error and "internal" for anything else.
func ErrorKind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}

// ErrorForKind returns the sentinel error for a wire identifier, or nil if the
// identifier is unknown.
func ErrorForKind(kind string) error {
	for _, k := range errorKinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}
