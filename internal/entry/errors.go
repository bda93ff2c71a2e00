package entry

import (
	platformerrors "github.com/jmgilman/go/errors"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the entry's current state.
	ErrInvalidState = platformerrors.New(platformerrors.CodeConflict, "invalid entry state")

	// ErrInvalidStream is returned for a stream index outside [0, stream count).
	ErrInvalidStream = platformerrors.New(platformerrors.CodeInvalidInput, "invalid stream index")

	// ErrOutOfRange is returned for a read or write range outside a stream.
	ErrOutOfRange = platformerrors.New(platformerrors.CodeInvalidInput, "range outside stream")

	// ErrTooLarge is returned when the serialized entry would not fit in the store.
	ErrTooLarge = platformerrors.New(platformerrors.CodeInvalidInput, "entry exceeds store capacity")

	// ErrCorrupt is returned when a stored record fails validation on reopen.
	ErrCorrupt = platformerrors.New(platformerrors.CodeInternal, "corrupt entry record")
)
