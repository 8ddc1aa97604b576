package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ruteri/storage-adapters/adapter"
	"github.com/ruteri/storage-adapters/interfaces"
)

// Registry maps unique names to storage adapters. Names are never released
// once an adapter is registered under them.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]adapter.Adapter
	pending  map[string]struct{}

	log      *slog.Logger
	observer adapter.OperationObserver
}

// Option configures a Registry.
type Option func(*Registry)

// WithObserver sets the observer handed to adapters that do not bring their own.
func WithObserver(observer adapter.OperationObserver) Option {
	return func(r *Registry) { r.observer = observer }
}

// New creates an empty registry. Adapters registered without a logger
// inherit log.
func New(log *slog.Logger, opts ...Option) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		adapters: make(map[string]adapter.Adapter),
		pending:  make(map[string]struct{}),
		log:      log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterOrLookup returns the adapter registered under name when called with
// neither backend nor options. Otherwise it builds an adapter for backend,
// runs the backend's Init hook and registers the adapter under name.
//
// Errors are checked in order: an invalid backend yields a
// *adapter.ConfigurationError, a taken name a *adapter.DuplicateNameError and
// a failing Init hook a *adapter.ConfigurationError. A failed registration
// leaves the name free.
func (r *Registry) RegisterOrLookup(name string, backend interfaces.StorageBackend, opts *adapter.Options) (adapter.Adapter, error) {
	if backend == nil && opts == nil {
		if a, ok := r.Lookup(name); ok {
			return a, nil
		}
	}
	return r.Register(name, backend, opts)
}

// Register builds and registers an adapter without ever returning an
// existing one.
func (r *Registry) Register(name string, backend interfaces.StorageBackend, opts *adapter.Options) (adapter.Adapter, error) {
	a, err := adapter.New(name, backend, r.withDefaults(opts))
	if err != nil {
		return nil, err
	}

	if err := r.reserve(name); err != nil {
		return nil, err
	}

	if initer, ok := backend.(interfaces.InitBackend); ok && a.Capabilities().Init {
		if err := initer.Init(); err != nil {
			r.release(name)
			r.log.Warn("Storage backend init failed",
				slog.String("adapter", name),
				slog.String("backend_type", backend.TypeName()),
				"err", err)
			return nil, &adapter.ConfigurationError{Adapter: name, Capability: "init", Err: err}
		}
	}

	r.mu.Lock()
	delete(r.pending, name)
	r.adapters[name] = a
	r.mu.Unlock()

	r.log.Debug("Storage adapter registered",
		slog.String("adapter", name),
		slog.String("backend_type", backend.TypeName()))
	return a, nil
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (adapter.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// MustLookup is like Lookup but panics when name is not registered.
func (r *Registry) MustLookup(name string) adapter.Adapter {
	a, ok := r.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("storage adapter %q is not registered", name))
	}
	return a
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// reserve claims name for an in-flight registration.
func (r *Registry) reserve(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.adapters[name]; ok {
		return &adapter.DuplicateNameError{Name: name}
	}
	if _, ok := r.pending[name]; ok {
		return &adapter.DuplicateNameError{Name: name}
	}
	r.pending[name] = struct{}{}
	return nil
}

func (r *Registry) release(name string) {
	r.mu.Lock()
	delete(r.pending, name)
	r.mu.Unlock()
}

func (r *Registry) withDefaults(opts *adapter.Options) *adapter.Options {
	merged := adapter.Options{}
	if opts != nil {
		merged = *opts
	}
	if merged.Logger == nil {
		merged.Logger = r.log
	}
	if merged.Observer == nil {
		merged.Observer = r.observer
	}
	return &merged
}
