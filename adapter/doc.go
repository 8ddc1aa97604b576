// Package adapter implements storage adapters: named wrappers around a
// storage backend that add key management, a pre-save hook and blocking and
// non-blocking variants of every operation.
//
// # Write Pipeline
//
// Insert and Update share one pipeline:
//
//  1. the file must carry data
//  2. with a BeforeSave hook, the hook runs on a deep copy of the file and may
//     change its metadata and payload or skip the write
//  3. Insert proposes the key "<fileID>/<fileName>"; Update reuses the key of
//     the file's copy record for this adapter
//  4. the backend Put returns the authoritative key
//  5. utime comes from the backend's Stats when available, else the clock
//
// A skipped write completes with OutcomeSkipped and no SavedFileInfo.
//
// # Invocation Modes
//
// Every operation is written once in callback form. The Async methods run it
// on a new goroutine and report through the callback; the blocking methods
// wait for the same callback. Both return identical results and errors.
//
// # Capabilities
//
// Byte-range reads are only offered when the backend implements
// interfaces.RangeBackend; New then returns a *RangeStorageAdapter, which
// callers detect with a type assertion to RangeAdapter.
//
// # Errors
//
// Adapter errors are typed (ConfigurationError, DuplicateNameError,
// ContractViolationError, NoKeyError, MissingKeyError) and match the
// package sentinels with errors.Is. Backend errors are returned unchanged.
package adapter
