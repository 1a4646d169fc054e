package meta

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexmedia/mediavault/internal/apperr"
	"github.com/rexmedia/mediavault/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertAndFindByHash(t *testing.T) {
	s := openTestStore(t)
	m := &models.Media{ID: "id-1", ContentHash: "hash-1", OriginalFilename: "a.png", CreatedAt: time.Now()}
	require.NoError(t, s.InsertMedia(m))

	got, err := s.FindByHash("hash-1")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)

	got2, err := s.GetMedia("id-1")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", got2.ContentHash)
}

func TestDeleteMediaRemovesHashIndex(t *testing.T) {
	s := openTestStore(t)
	m := &models.Media{ID: "id-2", ContentHash: "hash-2", CreatedAt: time.Now()}
	require.NoError(t, s.InsertMedia(m))
	require.NoError(t, s.DeleteMedia("id-2"))

	_, err := s.GetMedia("id-2")
	ae, ok := apperr.Of(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, ae.Kind)

	_, err = s.FindByHash("hash-2")
	ae, ok = apperr.Of(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, ae.Kind)
}

func TestSessionExpiryIndexFollowsExpiresAtChange(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	sess := &models.UploadSession{
		ID: "sess-1", Status: models.SessionInProgress,
		ExpiresAt: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.InsertSession(sess))

	sess.ExpiresAt = now.Add(-time.Minute) // now in the past
	require.NoError(t, s.UpdateSession(sess))

	expired, err := s.CleanupExpiredSessions()
	require.NoError(t, err)
	assert.Contains(t, expired, "sess-1")

	_, err = s.GetSession("sess-1")
	ae, ok := apperr.Of(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, ae.Kind)
}

func TestCleanupExpiredSessionsIgnoresTerminalStates(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	sess := &models.UploadSession{
		ID: "sess-2", Status: models.SessionCompleted,
		ExpiresAt: now.Add(-time.Hour), CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.InsertSession(sess))

	expired, err := s.CleanupExpiredSessions()
	require.NoError(t, err)
	assert.NotContains(t, expired, "sess-2")

	got, err := s.GetSession("sess-2")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, got.Status)
}

func TestTokenLockLifecycle(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetTokenLock(1, "0xabc")
	ae, ok := apperr.Of(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, ae.Kind)

	require.NoError(t, s.LockToken(&models.TokenLock{ChainID: 1, Address: "0xabc", LockType: models.LockTypeLocked, LockedAt: time.Now()}))
	lock, err := s.GetTokenLock(1, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, models.LockTypeLocked, lock.LockType)

	existed, err := s.UnlockToken(1, "0xabc")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.UnlockToken(1, "0xabc")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestCooldown(t *testing.T) {
	s := openTestStore(t)
	ok, err := s.CanUpdateToken(1, "0xabc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "no prior update means update is allowed")

	require.NoError(t, s.RecordTokenUpdate(1, "0xabc"))

	ok, err = s.CanUpdateToken(1, "0xabc", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := s.SecondsUntilUpdate(1, "0xabc", time.Hour)
	require.NoError(t, err)
	assert.Greater(t, remaining, int64(0))
}
