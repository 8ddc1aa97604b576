// Package catalog provides an in-memory file collection whose files satisfy
// interfaces.LogicalFile. It keeps one copy record per store and is used by
// the HTTP server and command line tools to drive adapters end to end.
package catalog
