// Package hooks provides ready-made pre-save transforms for storage adapters.
//
//	opts := &adapter.Options{
//		BeforeSave: hooks.Chain(hooks.MaxSize(64<<20, log), hooks.SniffType(), hooks.Seal(key, log)),
//	}
//
// Hooks run on a private copy of the file, so sealing never changes the
// caller's payload. Sealed copies carry a ".sealed" name suffix and are read
// back with Open or OpenFor.
package hooks
