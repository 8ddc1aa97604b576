package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ruteri/storage-adapters/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileBackend(t *testing.T) *FileBackend {
	t.Helper()
	b, err := NewFileBackend(t.TempDir(), testLogger())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	return b
}

func TestFileBackend_PutGetDel(t *testing.T) {
	ctx := context.Background()
	b := newTestFileBackend(t)

	key, err := b.Put(ctx, "f1/a.txt", []byte("0123456789"), interfaces.PutOptions{Type: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, "f1/a.txt", key)
	assert.FileExists(t, filepath.Join(b.baseDir, "f1", "a.txt"))

	data, err := b.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789"), data)

	removed, err := b.Del(ctx, key)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.NoDirExists(t, filepath.Join(b.baseDir, "f1"))

	removed, err = b.Del(ctx, key)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = b.Get(ctx, key)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestFileBackend_Overwrite(t *testing.T) {
	ctx := context.Background()
	b := newTestFileBackend(t)

	_, err := b.Put(ctx, "k", []byte("first"), interfaces.PutOptions{})
	require.NoError(t, err)

	_, err = b.Put(ctx, "k", []byte("second"), interfaces.PutOptions{})
	assert.ErrorIs(t, err, interfaces.ErrKeyExists)

	data, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)

	_, err = b.Put(ctx, "k", []byte("second"), interfaces.PutOptions{Overwrite: true})
	require.NoError(t, err)

	data, err = b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	entries, err := os.ReadDir(b.baseDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestFileBackend_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	b := newTestFileBackend(t)

	for _, key := range []string{"", "../outside", "a/../../outside", "."} {
		_, err := b.Put(ctx, key, []byte("x"), interfaces.PutOptions{})
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestFileBackend_GetBytesAndStats(t *testing.T) {
	ctx := context.Background()
	b := newTestFileBackend(t)

	_, err := b.Put(ctx, "k", []byte("0123456789"), interfaces.PutOptions{})
	require.NoError(t, err)

	data, err := b.GetBytes(ctx, "k", 3, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte("345"), data)

	data, err = b.GetBytes(ctx, "k", 8, 50)
	require.NoError(t, err)
	assert.Equal(t, []byte("89"), data)

	st, err := b.Stats(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(10), st.Size)
	assert.WithinDuration(t, time.Now(), st.ModifiedAt, time.Minute)

	_, err = b.Stats(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestFileBackend_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := newTestFileBackend(t)

	changes := make(chan string, 16)
	err := b.Watch(ctx, func(change interfaces.ChangeType, key string, info interfaces.ChangeInfo) {
		changes <- string(change) + ":" + key
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(b.baseDir, "external.txt"), []byte("hi"), 0644))

	select {
	case got := <-changes:
		assert.Equal(t, "change:external.txt", got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}
