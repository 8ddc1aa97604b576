package adapter

import "github.com/ruteri/storage-adapters/interfaces"

// SyncCallbacks would receive changes made to a backend from outside the
// adapter. A metadata collection registers them once per adapter.
type SyncCallbacks struct {
	Insert func(key string, info interfaces.ChangeInfo, data []byte)
	Update func(fileID string, info interfaces.ChangeInfo)
	Remove func(key string)
}

func (a *StorageAdapter) SyncEnabled() bool { return a.sync }

// DefineSyncCallbacks records interest in external changes. Reconciliation
// of watched changes is disabled: the adapter cannot yet tell its own writes
// apart from outside ones, so the backend watcher is never started. Callers
// may invoke this unconditionally.
func (a *StorageAdapter) DefineSyncCallbacks(callbacks SyncCallbacks) {
	if !a.sync {
		return
	}

	// TODO: start the backend watcher once watched events can be matched
	// against the utime recorded by our own writes.
	a.log.Debug("External change sync requested but disabled",
		"watch_capable", a.caps.Watch,
		"has_insert", callbacks.Insert != nil,
		"has_update", callbacks.Update != nil,
		"has_remove", callbacks.Remove != nil)
}
