package catalog

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/storage-adapters/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCollection() *Collection {
	return NewCollection(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCollection_CreateGetDelete(t *testing.T) {
	c := testCollection()

	f := c.Create("a.txt", "text/plain", []byte("hello"))
	_, err := uuid.Parse(f.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.Size())
	assert.True(t, f.HasData())

	got, err := c.Get(f.ID())
	require.NoError(t, err)
	assert.Same(t, f, got)
	assert.Len(t, c.List(), 1)

	require.NoError(t, c.Delete(f.ID()))
	_, err = c.Get(f.ID())
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.ErrorIs(t, c.Delete(f.ID()), ErrFileNotFound)
}

func TestCollection_ApplySavedKeepsCreationTime(t *testing.T) {
	c := testCollection()
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return first }

	f := c.Create("a.txt", "", []byte("x"))
	require.NoError(t, c.ApplySaved(f.ID(), "local", interfaces.SavedFileInfo{Key: "f/a.txt", Size: 1, UpdatedAt: first}))

	c.now = func() time.Time { return first.Add(time.Hour) }
	later := first.Add(2 * time.Hour)
	require.NoError(t, c.ApplySaved(f.ID(), "local", interfaces.SavedFileInfo{Key: "f/a.txt", Size: 2, UpdatedAt: later}))

	rec, ok := f.CopyInfo("local")
	require.True(t, ok)
	assert.Equal(t, interfaces.CopyRecord{Key: "f/a.txt", Size: 2, CreatedAt: first, UpdatedAt: later}, rec)
	assert.Equal(t, []string{"local"}, f.Stores())

	require.NoError(t, c.DropCopy(f.ID(), "local"))
	_, ok = f.CopyInfo("local")
	assert.False(t, ok)

	assert.ErrorIs(t, c.ApplySaved("missing", "local", interfaces.SavedFileInfo{}), ErrFileNotFound)
}

func TestFile_CloneIsIndependent(t *testing.T) {
	f := NewFile("f1", "a.txt", "text/plain", []byte("abc"))
	f.SetCopy("local", interfaces.CopyRecord{Key: "k"})

	clone := f.Clone()
	clone.SetName("b.txt")
	clone.Buffer()[0] = 'x'
	clone.(*File).SetCopy("remote", interfaces.CopyRecord{Key: "r"})

	assert.Equal(t, "a.txt", f.Name())
	assert.Equal(t, []byte("abc"), f.Buffer())
	_, ok := f.CopyInfo("remote")
	assert.False(t, ok)

	rec, ok := clone.CopyInfo("local")
	require.True(t, ok)
	assert.Equal(t, "k", rec.Key)
}

func TestFile_HasData(t *testing.T) {
	assert.False(t, NewFile("f1", "a", "", nil).HasData())
	assert.True(t, NewFile("f1", "a", "", []byte{}).HasData())

	f := NewFile("f1", "a", "", []byte("x"))
	f.ClearData()
	assert.False(t, f.HasData())
}
