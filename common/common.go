// Package common holds process-wide helpers shared by the binaries.
package common

var (
	// Version is set at build time with -ldflags "-X ...common.Version=...".
	Version = "dev"

	// PackageName labels metrics and logs of the binaries.
	PackageName = "storage-adapters"
)
