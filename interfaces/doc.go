// Package interfaces defines the contracts shared by the storage adapter core,
// the concrete backends and the metadata layer, without implementation details.
//
// # Backend Contract
//
// StorageBackend is the required capability set (Put, Get, Del, TypeName).
// Optional capabilities are separate interfaces detected by type assertion:
//
//   - StatsBackend: object size and timestamps
//   - RangeBackend: byte-range reads
//   - WatchBackend: external change notifications
//   - InitBackend: one-time setup when bound to an adapter
//
// A backend whose method set does not match what it can serve (BackendFuncs)
// implements CapabilityReporter instead.
//
// # Logical Files
//
// LogicalFile is the file entity owned by the metadata layer. Each file keeps
// one CopyRecord per store, keyed by adapter name, and adapters produce a
// SavedFileInfo after every completed write for the caller to persist.
//
// # Locations
//
// Backends are described by URIs:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// and created by a StorageBackendFactory.
package interfaces
