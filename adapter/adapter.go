package adapter

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/ruteri/storage-adapters/interfaces"
)

// Operation names used in errors, logs and metrics.
const (
	opInsert    = "insert"
	opUpdate    = "update"
	opRemove    = "remove"
	opGetBuffer = "getBuffer"
	opGetBytes  = "getBytes"
)

// Adapter is a named storage adapter bound to one backend. Every operation
// has a blocking form and a non-blocking form that reports through a callback
// invoked from another goroutine.
type Adapter interface {
	Name() string
	TypeName() string
	Capabilities() interfaces.Capabilities
	Backend() interfaces.StorageBackend

	// Option returns a value merged in through Options.Values.
	Option(key string) (any, bool)

	Insert(ctx context.Context, file interfaces.LogicalFile) (WriteResult, error)
	InsertAsync(ctx context.Context, file interfaces.LogicalFile, done Callback[WriteResult])

	Update(ctx context.Context, file interfaces.LogicalFile) (WriteResult, error)
	UpdateAsync(ctx context.Context, file interfaces.LogicalFile, done Callback[WriteResult])

	Remove(ctx context.Context, file interfaces.LogicalFile, opts RemoveOptions) (bool, error)
	RemoveAsync(ctx context.Context, file interfaces.LogicalFile, opts RemoveOptions, done Callback[bool])

	GetBuffer(ctx context.Context, file interfaces.LogicalFile) ([]byte, error)
	GetBufferAsync(ctx context.Context, file interfaces.LogicalFile, done Callback[[]byte])

	// SyncEnabled reports whether the adapter was created with Options.Sync.
	SyncEnabled() bool
	DefineSyncCallbacks(callbacks SyncCallbacks)
}

// RangeAdapter is implemented by adapters whose backend serves byte ranges.
type RangeAdapter interface {
	Adapter

	GetBytes(ctx context.Context, file interfaces.LogicalFile, start, end int64) ([]byte, error)
	GetBytesAsync(ctx context.Context, file interfaces.LogicalFile, start, end int64, done Callback[[]byte])
}

// StorageAdapter wraps a backend with key management, the pre-save hook and
// the blocking and non-blocking operation variants.
type StorageAdapter struct {
	name    string
	backend interfaces.StorageBackend
	caps    interfaces.Capabilities
	stats   interfaces.StatsBackend

	beforeSave BeforeSaveFunc
	sync       bool
	values     map[string]any

	log      *slog.Logger
	observer OperationObserver
	now      func() time.Time
}

// RangeStorageAdapter is a StorageAdapter with byte-range reads.
type RangeStorageAdapter struct {
	*StorageAdapter
	ranger interfaces.RangeBackend
}

var (
	_ Adapter      = (*StorageAdapter)(nil)
	_ RangeAdapter = (*RangeStorageAdapter)(nil)
)

// New validates backend and builds an adapter for it. The returned value is a
// *RangeStorageAdapter when the backend serves byte ranges and a
// *StorageAdapter otherwise. New does not run the backend's Init hook and does
// not register the adapter anywhere; use a registry for that.
func New(name string, backend interfaces.StorageBackend, opts *Options) (Adapter, error) {
	if backend == nil {
		return nil, &ConfigurationError{Adapter: name, Capability: "api"}
	}

	caps := interfaces.DescribeCapabilities(backend)
	if missing := caps.MissingRequired(); missing != "" {
		return nil, &ConfigurationError{Adapter: name, Capability: missing}
	}

	if opts == nil {
		opts = &Options{}
	}

	a := &StorageAdapter{
		name:       name,
		backend:    backend,
		caps:       caps,
		beforeSave: opts.BeforeSave,
		sync:       opts.Sync,
		values:     maps.Clone(opts.Values),
		log:        opts.Logger,
		observer:   opts.Observer,
		now:        opts.Now,
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	a.log = a.log.With(slog.String("adapter", name), slog.String("backend_type", backend.TypeName()))
	if a.now == nil {
		a.now = time.Now
	}
	if caps.Stats {
		a.stats, _ = backend.(interfaces.StatsBackend)
	}

	if caps.GetBytes {
		if ranger, ok := backend.(interfaces.RangeBackend); ok {
			return &RangeStorageAdapter{StorageAdapter: a, ranger: ranger}, nil
		}
	}
	return a, nil
}

// Name returns the adapter name.
func (a *StorageAdapter) Name() string { return a.name }

// TypeName returns the backend type name.
func (a *StorageAdapter) TypeName() string { return a.backend.TypeName() }

// Capabilities returns the capability set computed at construction.
func (a *StorageAdapter) Capabilities() interfaces.Capabilities { return a.caps }

// Backend returns the bound backend.
func (a *StorageAdapter) Backend() interfaces.StorageBackend { return a.backend }

// Option returns a value merged in through Options.Values.
func (a *StorageAdapter) Option(key string) (any, bool) {
	v, ok := a.values[key]
	return v, ok
}

// checkFile enforces the file preconditions shared by all operations.
func (a *StorageAdapter) checkFile(file interfaces.LogicalFile, op string) error {
	if file == nil {
		return &ContractViolationError{Adapter: a.name, Op: op, Reason: "a file"}
	}
	if (op == opInsert || op == opUpdate) && !file.HasData() {
		return &ContractViolationError{Adapter: a.name, Op: op, Reason: "a file with data"}
	}
	return nil
}

// copyKey resolves the key of the file's copy in this adapter.
func (a *StorageAdapter) copyKey(file interfaces.LogicalFile, op string) (interfaces.CopyRecord, error) {
	rec, ok := file.CopyInfo(a.name)
	if !ok || rec.Key == "" {
		return interfaces.CopyRecord{}, &NoKeyError{Adapter: a.name, Op: op}
	}
	return rec, nil
}

func (a *StorageAdapter) observe(op, key string, start time.Time, err error) {
	duration := time.Since(start)
	if a.observer != nil {
		a.observer.ObserveOperation(a.name, op, duration, err)
	}

	if err != nil {
		a.log.Warn("Storage adapter operation failed",
			slog.String("op", op),
			slog.String("key", key),
			slog.Duration("duration", duration),
			"err", err)
		return
	}
	a.log.Debug("Storage adapter operation",
		slog.String("op", op),
		slog.String("key", key),
		slog.Duration("duration", duration))
}
