// Package registry keeps the named storage adapters of a process.
//
// A Registry is an explicit value shared by whoever needs to resolve stores
// by name, typically the metadata collections and the HTTP server:
//
//	reg := registry.New(logger)
//	local, err := reg.RegisterOrLookup("local", storage.NewMemoryBackend("local", logger), nil)
//	...
//	same, err := reg.RegisterOrLookup("local", nil, nil) // returns local
//
// Registration validates the backend, rejects duplicate names and runs the
// backend's Init hook once before the adapter becomes visible. There is no
// way to unregister a name.
package registry
