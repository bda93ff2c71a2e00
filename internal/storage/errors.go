package storage

import (
	platformerrors "github.com/jmgilman/go/errors"
)

var (
	// ErrOutOfBounds is returned when a read or write range falls outside [0, capacity).
	ErrOutOfBounds = platformerrors.New(platformerrors.CodeInvalidInput, "range outside storage bounds")

	// ErrShortIO is returned when the medium transferred fewer bytes than requested.
	ErrShortIO = platformerrors.New(platformerrors.CodeInternal, "short read or write")

	// ErrNotOpen is returned for I/O on a storage that is not initialised or already closed.
	ErrNotOpen = platformerrors.New(platformerrors.CodeConflict, "storage is not open")

	// ErrInvalidGeometry is returned when capacity, page size and block size are inconsistent.
	ErrInvalidGeometry = platformerrors.New(platformerrors.CodeInvalidConfig, "invalid storage geometry")
)
