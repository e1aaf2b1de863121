package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitpigeon/pigeon/pkg/relay"
)

func openTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func TestJournal_GetMissingReturnsFalse(t *testing.T) {
	j, _ := openTestJournal(t)

	_, ok, err := j.Get("absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJournal_PutGetDelete(t *testing.T) {
	j, _ := openTestJournal(t)

	entry := relay.CachedResponse{
		ID:        "req-1",
		Kind:      relay.ResponseFile,
		FileName:  "side-1",
		Data:      []byte{0x89, 0x50},
		CreatedAt: 100,
	}
	require.NoError(t, j.Put(entry))

	got, ok, err := j.Get("req-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry, got)

	require.NoError(t, j.Delete("req-1"))
	_, ok, err = j.Get("req-1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, j.Delete("req-1"), "deleting a missing id is a no-op")
}

func TestJournal_PutUpserts(t *testing.T) {
	j, _ := openTestJournal(t)

	entry := relay.CachedResponse{ID: "req-1", Kind: relay.ResponseFile, FileName: "side-1", Data: []byte("payload"), CreatedAt: 100}
	require.NoError(t, j.Put(entry))

	// The upload-state update pattern: same id, Uploaded set, Data cleared.
	entry.Uploaded = true
	entry.Data = nil
	require.NoError(t, j.Put(entry))

	got, ok, err := j.Get("req-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Uploaded)
	assert.Nil(t, got.Data)
	assert.Equal(t, "side-1", got.FileName)

	n, err := j.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJournal_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Put(relay.CachedResponse{
		ID:        "req-1",
		Kind:      relay.ResponseText,
		Text:      "answer",
		CreatedAt: 100,
	}))
	require.NoError(t, j.Close())

	// A restarted relay must resume with the cached result.
	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	got, ok, err := j.Get("req-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "answer", got.Text)
	assert.Equal(t, relay.ResponseText, got.Kind)
}

func TestJournal_PurgeBefore(t *testing.T) {
	j, _ := openTestJournal(t)

	require.NoError(t, j.Put(relay.CachedResponse{ID: "old", CreatedAt: 50}))
	require.NoError(t, j.Put(relay.CachedResponse{ID: "cutoff", CreatedAt: 100}))
	require.NoError(t, j.Put(relay.CachedResponse{ID: "new", CreatedAt: 150}))

	require.NoError(t, j.PurgeBefore(100))

	_, ok, _ := j.Get("old")
	assert.False(t, ok)
	_, ok, _ = j.Get("cutoff")
	assert.True(t, ok, "rows created exactly at the cutoff survive")
	_, ok, _ = j.Get("new")
	assert.True(t, ok)
}

func TestJournal_OpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	assert.NoError(t, j.Close())
}
