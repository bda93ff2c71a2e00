//go:build !linux

package storage

import (
	"os"
	"path/filepath"
	"testing"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreallocate_NotImplemented(t *testing.T) {
	file, err := os.Create(filepath.Join(t.TempDir(), "cache.flash"))
	require.NoError(t, err)
	defer file.Close()

	err = preallocate(file, 4096)
	assert.ErrorIs(t, err, errNoFallocate)
	assert.Equal(t, platformerrors.CodeNotImplemented, platformerrors.GetCode(err))
}
