package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndLoad(t *testing.T) {
	store := openStore(t)
	assert.False(t, store.IsAuthenticated())

	require.NoError(t, store.Save("tok-1", "u1", "Ada"))
	assert.True(t, store.IsAuthenticated())

	sess, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", sess.Token)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, "Ada", sess.DisplayName)
}

func TestSaveOverwrites(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Save("tok-1", "u1", "Ada"))
	require.NoError(t, store.Save("tok-2", "u2", "Grace"))

	sess, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-2", sess.Token)
	assert.Equal(t, "u2", sess.UserID)
	assert.Equal(t, "Grace", sess.DisplayName)
}

func TestSaveRequiresTokenAndUser(t *testing.T) {
	store := openStore(t)
	assert.Error(t, store.Save("", "u1", "Ada"))
	assert.Error(t, store.Save("tok", "", "Ada"))
	assert.False(t, store.IsAuthenticated())
}

func TestClearLogsOut(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Save("tok-1", "u1", "Ada"))

	require.NoError(t, store.Clear())
	assert.False(t, store.IsAuthenticated())

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoSession)

	// clearing twice is harmless
	require.NoError(t, store.Clear())
}

func TestSessionSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save("tok-1", "u1", "Ada"))
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	sess, err := reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)
}
