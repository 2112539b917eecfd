package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDDistinct(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 100 {
		id, err := NewID()
		require.NoError(t, err)
		assert.Len(t, id, idLength)
		assert.True(t, ValidID(id))
		assert.False(t, seen[id], "minted identifiers must not repeat")
		seen[id] = true
	}
}

func TestValidID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"minted shape", "0123456789abcdef0123456789abcdef", true},
		{"empty", "", false},
		{"too short", "abcdef", false},
		{"too long", "0123456789abcdef0123456789abcdef00", false},
		{"non-hex", "zzzz456789abcdef0123456789abcdef", false},
		{"path traversal", "../../../../../../etc/passwd0000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.valid, ValidID(tt.id))
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	id, err := NewID()
	require.NoError(t, err)

	data := &Data{
		State:            "nonce-123",
		User:             &User{OID: "oid-1", PreferredUsername: "user@example.com"},
		TokenCache:       `{"accounts":[]}`,
		GraphAccessToken: "graph-token",
		OtherAccessToken: "other-token",
		RefreshToken:     "refresh-token",
	}
	require.NoError(t, store.Save(id, data))

	loaded := store.Load(id)
	assert.Equal(t, data, loaded)
}

func TestStoreLoadMissingYieldsEmpty(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	id, err := NewID()
	require.NoError(t, err)

	loaded := store.Load(id)
	assert.True(t, loaded.IsEmpty())
}

func TestStoreLoadCorruptYieldsEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	id, err := NewID()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), []byte("{not json"), 0o600))

	loaded := store.Load(id)
	assert.True(t, loaded.IsEmpty(), "corrupt record must degrade to an empty session")
}

func TestStoreSaveLeavesNoTempFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	id, err := NewID()
	require.NoError(t, err)
	require.NoError(t, store.Save(id, &Data{State: "x"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id+".json", entries[0].Name())
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "sessions")
	_, err := NewStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewStoreEmptyDirRejected(t *testing.T) {
	t.Parallel()

	_, err := NewStore("")
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	t.Parallel()

	data := &Data{
		State:            "nonce",
		User:             &User{OID: "oid"},
		TokenCache:       "blob",
		GraphAccessToken: "a",
		OtherAccessToken: "b",
		RefreshToken:     "c",
	}
	data.Clear()
	assert.True(t, data.IsEmpty())
}
