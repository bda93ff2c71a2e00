//go:build !linux

package storage

import (
	"os"

	platformerrors "github.com/jmgilman/go/errors"
)

var errNoFallocate = platformerrors.New(platformerrors.CodeNotImplemented, "fallocate not supported")

func preallocate(file *os.File, size int64) error {
	return errNoFallocate
}
