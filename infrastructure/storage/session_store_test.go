package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"admincore/domain/session"
)

func newTestStore(t *testing.T) *FileSessionStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "session.json")
	store, err := NewFileSessionStore(path, zap.NewNop())
	require.NoError(t, err)
	return store
}

func testSession() session.Session {
	return session.Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
		User: session.User{
			ID:    "u1",
			Email: "admin@example.com",
			Roles: []string{"admin"},
		},
	}
}

func TestFileSessionStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(testSession()))

	loaded, found, err := store.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, testSession(), loaded)
}

func TestFileSessionStore_LoadWithoutSave(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.Load()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileSessionStore_Wipe(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(testSession()))

	require.NoError(t, store.Wipe())

	_, found, err := store.Load()
	require.NoError(t, err)
	assert.False(t, found)

	// Wiping again is a no-op
	require.NoError(t, store.Wipe())
}

func TestFileSessionStore_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store, err := NewFileSessionStore(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, found, err := store.Load()
	assert.Error(t, err)
	assert.False(t, found)
}

func TestFileSessionStore_FilePermissions(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(testSession()))

	loaded, _, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "access-1", loaded.AccessToken)

	info, err := os.Stat(store.path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileSessionStore_EmptyPathRejected(t *testing.T) {
	_, err := NewFileSessionStore("", zap.NewNop())
	assert.Error(t, err)
}
