package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/storage-adapters/interfaces"
)

// ErrFileNotFound is returned for unknown file ids.
var ErrFileNotFound = errors.New("file not found")

// Collection is an in-memory file catalog. It owns the copy records that
// adapters read and reports what a completed write produced back into them.
type Collection struct {
	mu    sync.RWMutex
	files map[string]*File
	log   *slog.Logger
	now   func() time.Time
}

// NewCollection creates an empty collection.
func NewCollection(log *slog.Logger) *Collection {
	if log == nil {
		log = slog.Default()
	}
	return &Collection{
		files: make(map[string]*File),
		log:   log,
		now:   time.Now,
	}
}

// Create adds a new file with a random id.
func (c *Collection) Create(name, contentType string, data []byte) *File {
	file := NewFile(uuid.NewString(), name, contentType, data)

	c.mu.Lock()
	c.files[file.ID()] = file
	c.mu.Unlock()

	c.log.Debug("File created", slog.String("file_id", file.ID()), slog.String("name", name), slog.Int("size", len(data)))
	return file
}

// Get returns the file with the given id.
func (c *Collection) Get(id string) (*File, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	file, ok := c.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	return file, nil
}

// List returns all files ordered by id.
func (c *Collection) List() []*File {
	c.mu.RLock()
	defer c.mu.RUnlock()

	files := make([]*File, 0, len(c.files))
	for _, f := range c.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID() < files[j].ID() })
	return files
}

// ApplySaved records a completed write in the file's copy record for store.
// An existing record keeps its creation time.
func (c *Collection) ApplySaved(id, store string, info interfaces.SavedFileInfo) error {
	file, err := c.Get(id)
	if err != nil {
		return err
	}

	rec := info.CopyRecord()
	if prev, ok := file.CopyInfo(store); ok && !prev.CreatedAt.IsZero() {
		rec.CreatedAt = prev.CreatedAt
	} else {
		rec.CreatedAt = c.now()
	}
	file.SetCopy(store, rec)

	c.log.Debug("Copy recorded",
		slog.String("file_id", id),
		slog.String("store", store),
		slog.String("key", info.Key))
	return nil
}

// DropCopy forgets the file's copy in store.
func (c *Collection) DropCopy(id, store string) error {
	file, err := c.Get(id)
	if err != nil {
		return err
	}
	file.RemoveCopy(store)
	return nil
}

// Delete removes the file from the collection. Copies held by stores are not
// touched; callers remove them through the adapters first.
func (c *Collection) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.files[id]; !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	delete(c.files, id)
	return nil
}
