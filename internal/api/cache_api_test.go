package api

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekai02/flashcache/internal/config"
	"github.com/sekai02/flashcache/internal/entry"
	"github.com/sekai02/flashcache/internal/logstore"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataPath = filepath.Join(dir, "data", "cache.flash")
	cfg.IndexPath = filepath.Join(dir, "data", "index")
	cfg.Capacity = 64 * 1024
	cfg.PageSize = 512
	cfg.BlockSize = 4096
	return cfg
}

func newTestService(t *testing.T, cfg config.Config) *Service {
	t.Helper()

	s, err := NewService(cfg)
	require.NoError(t, err)
	return s
}

func createWithStream(t *testing.T, s *Service, index int, data []byte) int32 {
	t.Helper()
	ctx := context.Background()

	e, err := s.CreateEntry(ctx)
	require.NoError(t, err)
	_, err = e.WriteData(index, 0, data)
	require.NoError(t, err)
	require.NoError(t, e.Close())
	return e.ID()
}

func TestService_StreamsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	s := newTestService(t, cfg)
	id := createWithStream(t, s, 0, []byte("cached response"))
	require.NoError(t, s.WriteStream(ctx, id, 2, []byte("headers")))
	require.NoError(t, s.Close())

	s = newTestService(t, cfg)
	defer s.Close()

	data, err := s.ReadStream(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("cached response"), data)

	data, err = s.ReadStream(ctx, id, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("headers"), data)

	next := createWithStream(t, s, 0, []byte("x"))
	assert.Greater(t, next, id)
}

func TestService_WriteStreamReplacesContent(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, testConfig(t))
	defer s.Close()

	id := createWithStream(t, s, 1, []byte("a long original value"))
	require.NoError(t, s.WriteStream(ctx, id, 1, []byte("short")))

	data, err := s.ReadStream(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("short"), data)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)
	assert.Positive(t, stats.StaleBytes)
}

func TestService_CopyEntry(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, testConfig(t))
	defer s.Close()

	id := createWithStream(t, s, 0, []byte("body"))
	require.NoError(t, s.WriteStream(ctx, id, 3, []byte("meta")))

	copyID, err := s.CopyEntry(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, id, copyID)

	require.NoError(t, s.DeleteEntry(ctx, id))

	data, err := s.ReadStream(ctx, copyID, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("body"), data)
	data, err = s.ReadStream(ctx, copyID, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("meta"), data)
}

func TestService_DeleteAndReclaim(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, testConfig(t))
	defer s.Close()

	dropped := createWithStream(t, s, 0, make([]byte, 1000))
	kept := createWithStream(t, s, 0, []byte("kept"))

	require.NoError(t, s.DeleteEntry(ctx, dropped))
	assert.ErrorIs(t, s.DeleteEntry(ctx, dropped), logstore.ErrNotFound)
	_, err := s.OpenEntry(ctx, dropped)
	assert.ErrorIs(t, err, logstore.ErrNotFound)

	stats, err := s.Reclaim(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Moved)
	assert.Equal(t, int64(1536), stats.Freed)

	data, err := s.ReadStream(ctx, kept, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), data)
}

func TestService_Errors(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, testConfig(t))
	defer s.Close()

	id := createWithStream(t, s, 0, []byte("x"))

	_, err := s.ReadStream(ctx, id, 9)
	assert.ErrorIs(t, err, entry.ErrInvalidStream)
	assert.ErrorIs(t, s.WriteStream(ctx, id, -1, nil), entry.ErrInvalidStream)
	assert.ErrorIs(t, s.WriteStream(ctx, id, 0, make([]byte, 64*1024)), entry.ErrTooLarge)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.CreateEntry(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewService_InMemoryIndex(t *testing.T) {
	cfg := testConfig(t)
	cfg.IndexPath = ""

	s := newTestService(t, cfg)
	id := createWithStream(t, s, 0, []byte("volatile"))
	require.NoError(t, s.Close())

	s = newTestService(t, cfg)
	defer s.Close()

	_, err := s.ReadStream(context.Background(), id, 0)
	assert.ErrorIs(t, err, logstore.ErrNotFound)
}

func TestNewService_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.StreamCount = 0

	_, err := NewService(cfg)
	assert.Error(t, err)
}
