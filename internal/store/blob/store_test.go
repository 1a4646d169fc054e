package blob

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardedPathDepth(t *testing.T) {
	s, err := New(t.TempDir(), 2)
	require.NoError(t, err)

	id := "abcd1234-5678-90ab-cdef-1234567890ab"
	path := s.OptimizedPath(id, "webp")
	hex := "abcd1234567890abcdef1234567890ab"
	assert.Equal(t, filepath.Join(s.dataDir, optimizedDir, hex[0:2], hex[2:4], id+".webp"), path)
}

func TestShardedPathFlatWhenZeroLevels(t *testing.T) {
	s, err := New(t.TempDir(), 0)
	require.NoError(t, err)
	path := s.OptimizedPath("id1", "png")
	assert.Equal(t, filepath.Join(s.dataDir, optimizedDir, "id1.png"), path)
}

func TestSaveReadDeleteRoundTrip(t *testing.T) {
	s, err := New(t.TempDir(), 2)
	require.NoError(t, err)

	require.NoError(t, s.SaveOptimized("id1", "webp", []byte("optimized-bytes")))
	require.NoError(t, s.SaveOriginal("id1", "png", []byte("original-bytes")))

	got, err := s.ReadOptimized("id1", "webp")
	require.NoError(t, err)
	assert.Equal(t, "optimized-bytes", string(got))

	var buf bytes.Buffer
	n, err := s.CopyOriginalTo(&buf, "id1", "png")
	require.NoError(t, err)
	assert.EqualValues(t, len("original-bytes"), n)
	assert.Equal(t, "original-bytes", buf.String())

	require.NoError(t, s.DeleteOptimized("id1", "webp"))
	require.NoError(t, s.DeleteOriginal("id1", "png"))

	_, err = s.ReadOptimized("id1", "webp")
	assert.Error(t, err)
}

func TestAppendChunkAccumulates(t *testing.T) {
	s, err := New(t.TempDir(), 2)
	require.NoError(t, err)

	require.NoError(t, s.CreateSessionDir("sess1"))
	require.NoError(t, s.AppendChunk("sess1", []byte("hello ")))
	require.NoError(t, s.AppendChunk("sess1", []byte("world")))

	size, err := s.TempSize("sess1")
	require.NoError(t, err)
	assert.EqualValues(t, len("hello world"), size)

	data, err := s.ReadTemp("sess1")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestCleanupExpiredRemovesOldTempDirs(t *testing.T) {
	root := t.TempDir()
	s, err := New(root, 2)
	require.NoError(t, err)

	require.NoError(t, s.CreateSessionDir("old-session"))
	require.NoError(t, s.CreateSessionDir("fresh-session"))

	oldTime := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, tempDir, "old-session"), oldTime, oldTime))

	removed, err := s.CleanupExpired(time.Hour)
	require.NoError(t, err)
	assert.Contains(t, removed, "old-session")
	assert.NotContains(t, removed, "fresh-session")

	_, err = os.Stat(filepath.Join(root, tempDir, "old-session"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, tempDir, "fresh-session"))
	assert.NoError(t, err)
}

func TestGetStats(t *testing.T) {
	s, err := New(t.TempDir(), 1)
	require.NoError(t, err)
	require.NoError(t, s.SaveOptimized("a", "webp", []byte("12345")))
	require.NoError(t, s.SaveOriginal("a", "png", []byte("1234567890")))

	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.EqualValues(t, 5, stats.OptimizedBytes)
	assert.EqualValues(t, 1, stats.OptimizedCount)
	assert.EqualValues(t, 10, stats.OriginalsBytes)
	assert.EqualValues(t, 1, stats.OriginalsCount)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "..my-file_1.0.png", SanitizeFilename("../my-file_1.0.png"))
	assert.Equal(t, "file", SanitizeFilename("???"))
}
