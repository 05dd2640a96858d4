package draftsync

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCacheRoundTrip(t *testing.T) {
	cache := NewLocalCache(t.TempDir(), "user/1", nil)

	_, ok := cache.Read()
	assert.False(t, ok)

	cache.Write(Snapshot{CurrentStep: 2, DraftData: json.RawMessage(`{"gender":"male"}`), Revision: 5})
	snap, ok := cache.Read()
	require.True(t, ok)
	assert.Equal(t, 2, snap.CurrentStep)
	assert.Equal(t, int64(5), snap.Revision)
	assert.JSONEq(t, `{"gender":"male"}`, string(snap.DraftData))
	assert.Equal(t, "draft-user%2F1.json", filepath.Base(cache.Path()))

	entries, err := os.ReadDir(filepath.Dir(cache.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalCacheIgnoresStaleWrite(t *testing.T) {
	cache := NewLocalCache(t.TempDir(), "u1", nil)

	cache.Write(Snapshot{CurrentStep: 3, Revision: 10})
	cache.Write(Snapshot{CurrentStep: 2, Revision: 9})

	snap, ok := cache.Read()
	require.True(t, ok)
	assert.Equal(t, 3, snap.CurrentStep)

	cache.Write(Snapshot{CurrentStep: 1})
	snap, _ = cache.Read()
	assert.Equal(t, 1, snap.CurrentStep)
}

func TestLocalCacheClear(t *testing.T) {
	cache := NewLocalCache(t.TempDir(), "u1", nil)
	cache.Write(Snapshot{CurrentStep: 3, Revision: 10})
	cache.Clear(0)
	cache.Clear(0)

	_, ok := cache.Read()
	assert.False(t, ok)

	cache.Write(Snapshot{CurrentStep: 1, Revision: 2})
	snap, ok := cache.Read()
	require.True(t, ok)
	assert.Equal(t, int64(2), snap.Revision)
}

func TestLocalCacheClearFloorRejectsOlderWrites(t *testing.T) {
	cache := NewLocalCache(t.TempDir(), "u1", nil)
	cache.Write(Snapshot{CurrentStep: 2, Revision: 5})
	cache.Clear(20)

	cache.Write(Snapshot{CurrentStep: 3, Revision: 9})
	_, ok := cache.Read()
	assert.False(t, ok)

	cache.Write(Snapshot{CurrentStep: 1, Revision: 21})
	snap, ok := cache.Read()
	require.True(t, ok)
	assert.Equal(t, int64(21), snap.Revision)
}

func TestLocalCacheSwallowsFailures(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	cache := NewLocalCache(blocker, "u1", nil)
	cache.Write(Snapshot{CurrentStep: 1, Revision: 1})
	_, ok := cache.Read()
	assert.False(t, ok)

	corrupt := NewLocalCache(dir, "u2", nil)
	require.NoError(t, os.WriteFile(corrupt.Path(), []byte("{not json"), 0o600))
	_, ok = corrupt.Read()
	assert.False(t, ok)
}
