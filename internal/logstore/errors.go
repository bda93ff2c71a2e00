package logstore

import (
	platformerrors "github.com/jmgilman/go/errors"
)

var (
	// ErrNotFound is returned when an id has no live record.
	ErrNotFound = platformerrors.New(platformerrors.CodeNotFound, "entry not found")

	// ErrNoSpace is returned when a record does not fit even after reclaiming stale space.
	ErrNoSpace = platformerrors.New(platformerrors.CodeUnavailable, "log store is full")

	// ErrStale is returned when a record was rewritten or deleted after the caller located it.
	ErrStale = platformerrors.New(platformerrors.CodeConflict, "record version is stale")

	// ErrCorrupt is returned when the superblock or persisted index fails validation.
	ErrCorrupt = platformerrors.New(platformerrors.CodeInternal, "log store is corrupt")

	// ErrGeometryMismatch is returned when a medium was formatted with a different geometry.
	ErrGeometryMismatch = platformerrors.New(platformerrors.CodeInvalidConfig, "medium geometry does not match")

	// ErrClosed is returned for operations on a closed store.
	ErrClosed = platformerrors.New(platformerrors.CodeConflict, "log store is closed")

	// ErrOutOfRange is returned for reads outside a record.
	ErrOutOfRange = platformerrors.New(platformerrors.CodeInvalidInput, "read outside record")

	// ErrInvalidRecord is returned for empty records or non-positive ids.
	ErrInvalidRecord = platformerrors.New(platformerrors.CodeInvalidInput, "invalid record")
)
