package interfaces

import "time"

// CopyRecord records where and how a logical file is stored in one adapter.
type CopyRecord struct {
	Key       string
	Size      int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LogicalFile is the file entity the storage adapters operate on. It is owned
// by the metadata layer; adapters only read it, clone it and look up its copy
// records.
type LogicalFile interface {
	ID() string

	Name() string
	SetName(name string)
	Type() string
	SetType(contentType string)
	Size() int64
	SetSize(size int64)

	// HasData reports whether the file currently carries an in-memory payload.
	HasData() bool

	// Clone returns a deep copy whose payload and copy records are independent.
	Clone() LogicalFile

	// Buffer returns the in-memory payload.
	Buffer() []byte

	// SetDataFromBinary replaces the payload.
	SetDataFromBinary(data []byte)

	// CopyInfo returns the copy record kept for the named store.
	CopyInfo(storeName string) (CopyRecord, bool)
}

// SavedFileInfo is what an adapter reports after a completed write. The caller
// persists it as the CopyRecord for that adapter.
type SavedFileInfo struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Size      int64     `json:"size"`
	Key       string    `json:"key"`
	UpdatedAt time.Time `json:"utime"`
}

// CopyRecord converts the saved info into the record the metadata layer keeps.
func (i SavedFileInfo) CopyRecord() CopyRecord {
	return CopyRecord{
		Key:       i.Key,
		Size:      i.Size,
		UpdatedAt: i.UpdatedAt,
	}
}
