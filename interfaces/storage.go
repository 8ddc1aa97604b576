package interfaces

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// PutOptions carries per-write hints from the adapter to the backend.
type PutOptions struct {
	// Overwrite is true for updates of an existing copy and false for inserts.
	Overwrite bool

	// Type is the declared MIME type of the payload.
	Type string
}

// ObjectStats describes a stored object as reported by a backend.
type ObjectStats struct {
	Size       int64
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// ChangeType identifies the kind of change a watching backend observed.
type ChangeType string

const (
	ChangeUpdated ChangeType = "change"
	ChangeRemoved ChangeType = "remove"
)

// ChangeInfo is passed to a ChangeFunc together with the affected key.
type ChangeInfo struct {
	UpdatedAt time.Time
	Size      int64
}

// ChangeFunc is invoked by a WatchBackend for every observed change.
type ChangeFunc func(change ChangeType, key string, info ChangeInfo)

// StorageBackend is the capability set every storage backend must provide.
// Keys are backend-specific addresses; a backend may rewrite the proposed key
// on Put (content addressing, prefixes) and the returned key is authoritative.
type StorageBackend interface {
	// Put stores data under key and returns the key the data can be read back with.
	Put(ctx context.Context, key string, data []byte, opts PutOptions) (string, error)

	// Get returns the full payload stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Del removes the payload stored under key and reports whether anything was removed.
	Del(ctx context.Context, key string) (bool, error)

	// TypeName identifies the backend kind, e.g. "storage.filesystem".
	TypeName() string
}

// StatsBackend is implemented by backends that can report object metadata.
type StatsBackend interface {
	Stats(ctx context.Context, key string) (ObjectStats, error)
}

// RangeBackend is implemented by backends that can serve a byte range [start, end).
type RangeBackend interface {
	GetBytes(ctx context.Context, key string, start, end int64) ([]byte, error)
}

// WatchBackend is implemented by backends that can report external changes.
type WatchBackend interface {
	Watch(ctx context.Context, onChange ChangeFunc) error
}

// AvailabilityChecker is implemented by backends that can check whether their
// service is reachable.
type AvailabilityChecker interface {
	Available(ctx context.Context) bool
}

// InitBackend is implemented by backends that need a one-time setup step
// once they are bound to an adapter.
type InitBackend interface {
	Init() error
}

// Capabilities lists which parts of the backend contract a backend serves.
type Capabilities struct {
	Put      bool `json:"put"`
	Get      bool `json:"get"`
	Del      bool `json:"del"`
	TypeName bool `json:"type_name"`
	Stats    bool `json:"stats"`
	GetBytes bool `json:"get_bytes"`
	Watch    bool `json:"watch"`
	Init     bool `json:"init"`
}

// MissingRequired returns the name of the first required capability that is
// absent, or an empty string when the required set is complete.
func (c Capabilities) MissingRequired() string {
	switch {
	case !c.Put:
		return "put"
	case !c.Get:
		return "get"
	case !c.Del:
		return "del"
	case !c.TypeName:
		return "typeName"
	}
	return ""
}

// CapabilityReporter lets a backend declare its capabilities explicitly when
// its Go method set does not reflect what it can actually serve.
type CapabilityReporter interface {
	Capabilities() Capabilities
}

// DescribeCapabilities inspects a backend and returns the capabilities it serves.
func DescribeCapabilities(b StorageBackend) Capabilities {
	if b == nil {
		return Capabilities{}
	}
	if r, ok := b.(CapabilityReporter); ok {
		return r.Capabilities()
	}

	caps := Capabilities{
		Put:      true,
		Get:      true,
		Del:      true,
		TypeName: b.TypeName() != "",
	}
	_, caps.Stats = b.(StatsBackend)
	_, caps.GetBytes = b.(RangeBackend)
	_, caps.Watch = b.(WatchBackend)
	_, caps.Init = b.(InitBackend)
	return caps
}

// StorageBackendLocation represents URI for storage backend.
type StorageBackendLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStorageBackendLocation creates a new storage location from a URI string with validation.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "memory", "file", "s3", "ipfs", "github", "vault", "nats", "postgres":
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// URL returns the parsed form of the location.
func (loc StorageBackendLocation) URL() *url.URL {
	u, err := url.Parse(loc.Raw)
	if err != nil {
		return &url.URL{Scheme: loc.Scheme, Host: loc.Host, Path: loc.Path, RawQuery: loc.Query.Encode()}
	}
	return u
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

var (
	// ErrContentNotFound is returned when requested content cannot be found in the storage backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")

	// ErrReadOnlyBackend is returned by backends that cannot accept writes.
	ErrReadOnlyBackend = errors.New("storage backend is read-only")

	// ErrKeyExists is returned when a non-overwriting put targets an existing key.
	ErrKeyExists = errors.New("key already exists")
)

// StorageBackendFactory creates storage backends.
type StorageBackendFactory interface {
	// StorageBackendFor creates backend from a location.
	StorageBackendFor(ctx context.Context, location StorageBackendLocation) (StorageBackend, error)

	// CreateMultiBackend creates aggregated storage backend.
	CreateMultiBackend(ctx context.Context, locations []StorageBackendLocation) (StorageBackend, error)

	// WithTLSAuth configures TLS client authentication.
	WithTLSAuth(func() (tls.Certificate, error)) StorageBackendFactory
}
