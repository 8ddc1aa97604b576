package catalog

import (
	"maps"
	"sync"

	"github.com/ruteri/storage-adapters/interfaces"
)

// File is an in-memory logical file with per-store copy records.
type File struct {
	mu sync.RWMutex

	id          string
	name        string
	contentType string
	size        int64
	data        []byte
	copies      map[string]interfaces.CopyRecord
}

var _ interfaces.LogicalFile = (*File)(nil)

// NewFile creates a file carrying data. Size is taken from the payload.
func NewFile(id, name, contentType string, data []byte) *File {
	return &File{
		id:          id,
		name:        name,
		contentType: contentType,
		size:        int64(len(data)),
		data:        data,
		copies:      make(map[string]interfaces.CopyRecord),
	}
}

func (f *File) ID() string { return f.id }

func (f *File) Name() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.name
}

func (f *File) SetName(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.name = name
}

func (f *File) Type() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.contentType
}

func (f *File) SetType(contentType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contentType = contentType
}

func (f *File) Size() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.size
}

func (f *File) SetSize(size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.size = size
}

// HasData reports whether the file carries a payload. An empty but set
// payload counts as data.
func (f *File) HasData() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.data != nil
}

func (f *File) Buffer() []byte {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.data
}

// SetDataFromBinary replaces the payload. The recorded size is left alone;
// callers that change the payload length set it explicitly.
func (f *File) SetDataFromBinary(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = data
}

// ClearData drops the in-memory payload, keeping metadata and copy records.
func (f *File) ClearData() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = nil
}

func (f *File) Clone() interfaces.LogicalFile {
	f.mu.RLock()
	defer f.mu.RUnlock()

	clone := &File{
		id:          f.id,
		name:        f.name,
		contentType: f.contentType,
		size:        f.size,
		copies:      maps.Clone(f.copies),
	}
	if f.data != nil {
		clone.data = append([]byte{}, f.data...)
	}
	if clone.copies == nil {
		clone.copies = make(map[string]interfaces.CopyRecord)
	}
	return clone
}

func (f *File) CopyInfo(storeName string) (interfaces.CopyRecord, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rec, ok := f.copies[storeName]
	return rec, ok
}

// SetCopy records where the file is stored in the named store.
func (f *File) SetCopy(storeName string, rec interfaces.CopyRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copies[storeName] = rec
}

// RemoveCopy forgets the copy record for the named store.
func (f *File) RemoveCopy(storeName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.copies, storeName)
}

// Stores returns the names of stores holding a copy.
func (f *File) Stores() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.copies))
	for name := range f.copies {
		names = append(names, name)
	}
	return names
}
