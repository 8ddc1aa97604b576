package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/storage-adapters/interfaces"
)

// MultiStorageBackend implements interfaces.StorageBackend using multiple backends with fallback.
// Writes go to every available backend and the first returned key is
// authoritative; reads are served by the first backend that succeeds.
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

var (
	_ interfaces.StatsBackend       = (*MultiStorageBackend)(nil)
	_ interfaces.RangeBackend       = (*MultiStorageBackend)(nil)
	_ interfaces.InitBackend        = (*MultiStorageBackend)(nil)
	_ interfaces.CapabilityReporter = (*MultiStorageBackend)(nil)
)

// NewMultiStorageBackend creates a new multi-storage backend with fallback.
// The first backend is the primary.
func NewMultiStorageBackend(backends []interfaces.StorageBackend, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Capabilities reports stats and ranges when any backend serves them.
func (m *MultiStorageBackend) Capabilities() interfaces.Capabilities {
	caps := interfaces.Capabilities{
		Put:      len(m.backends) > 0,
		Get:      len(m.backends) > 0,
		Del:      len(m.backends) > 0,
		TypeName: true,
	}
	for _, b := range m.backends {
		if _, ok := b.(interfaces.StatsBackend); ok {
			caps.Stats = true
		}
		if _, ok := b.(interfaces.RangeBackend); ok {
			caps.GetBytes = true
		}
		if _, ok := b.(interfaces.InitBackend); ok {
			caps.Init = true
		}
	}
	return caps
}

// Init initialises every member backend that needs it.
func (m *MultiStorageBackend) Init() error {
	for _, b := range m.backends {
		if initer, ok := b.(interfaces.InitBackend); ok {
			if err := initer.Init(); err != nil {
				return fmt.Errorf("%s: %w", b.TypeName(), err)
			}
		}
	}
	return nil
}

// Put saves data to all available backends.
func (m *MultiStorageBackend) Put(ctx context.Context, key string, data []byte, opts interfaces.PutOptions) (string, error) {
	start := time.Now()
	var result string
	var errs []error

	for _, backend := range m.backends {
		if !available(ctx, backend) {
			m.log.Debug("Backend unavailable", slog.String("backend_type", backend.TypeName()))
			continue
		}

		stored, err := backend.Put(ctx, key, data, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.TypeName(), err))
			m.log.Debug("Failed to store to backend",
				slog.String("backend_type", backend.TypeName()),
				"err", err)
			continue
		}

		if result == "" {
			result = stored
			m.log.Debug("Stored content",
				slog.String("backend_type", backend.TypeName()),
				slog.String("key", stored),
				slog.Duration("duration", time.Since(start)))
		} else if stored != result {
			m.log.Warn("Inconsistent keys from backends",
				slog.String("backend_type", backend.TypeName()),
				slog.String("expected_key", result),
				slog.String("actual_key", stored))
		}
	}

	if result == "" {
		m.log.Error("All backends failed to store data",
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		return "", fmt.Errorf("all backends failed to store %s: %w", key, errors.Join(errs...))
	}

	return result, nil
}

// Get returns the payload from the first backend that has it.
func (m *MultiStorageBackend) Get(ctx context.Context, key string) ([]byte, error) {
	return firstOf(ctx, m, key, func(backend interfaces.StorageBackend) ([]byte, error) {
		return backend.Get(ctx, key)
	})
}

// GetBytes reads the range from the first range-capable backend that has it.
func (m *MultiStorageBackend) GetBytes(ctx context.Context, key string, start, end int64) ([]byte, error) {
	return firstOf(ctx, m, key, func(backend interfaces.StorageBackend) ([]byte, error) {
		ranger, ok := backend.(interfaces.RangeBackend)
		if !ok {
			return nil, errSkipBackend
		}
		return ranger.GetBytes(ctx, key, start, end)
	})
}

// Del removes the key from every available backend and reports whether any
// of them held it.
func (m *MultiStorageBackend) Del(ctx context.Context, key string) (bool, error) {
	var removed bool
	var errs []error
	attempted := 0

	for _, backend := range m.backends {
		if !available(ctx, backend) {
			continue
		}
		attempted++
		ok, err := backend.Del(ctx, key)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.TypeName(), err))
			continue
		}
		removed = removed || ok
	}

	if attempted == 0 {
		return false, fmt.Errorf("%w: no backend could delete %s", interfaces.ErrBackendUnavailable, key)
	}
	if len(errs) == attempted {
		return false, fmt.Errorf("all backends failed to delete %s: %w", key, errors.Join(errs...))
	}
	return removed, nil
}

// Stats are answered by the first available stats-capable backend holding the key.
func (m *MultiStorageBackend) Stats(ctx context.Context, key string) (interfaces.ObjectStats, error) {
	return firstOf(ctx, m, key, func(backend interfaces.StorageBackend) (interfaces.ObjectStats, error) {
		stats, ok := backend.(interfaces.StatsBackend)
		if !ok {
			return interfaces.ObjectStats{}, errSkipBackend
		}
		return stats.Stats(ctx, key)
	})
}

// Available checks if any backend is available.
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if available(ctx, backend) {
			return true
		}
	}
	return false
}

func (m *MultiStorageBackend) TypeName() string { return "storage.multi" }

// LocationURI returns the URI of this backend
func (m *MultiStorageBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		if l, ok := backend.(interface{ LocationURI() string }); ok {
			locations = append(locations, l.LocationURI())
		} else {
			locations = append(locations, backend.TypeName())
		}
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}

var errSkipBackend = errors.New("backend skipped")

// firstOf returns the first successful read across the available backends.
func firstOf[T any](ctx context.Context, m *MultiStorageBackend, key string, read func(interfaces.StorageBackend) (T, error)) (T, error) {
	var zero T
	start := time.Now()
	var errs []error
	notFound := true

	for _, backend := range m.backends {
		if !available(ctx, backend) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_type", backend.TypeName()),
				slog.String("key", key))
			continue
		}

		data, err := read(backend)
		if errors.Is(err, errSkipBackend) {
			continue
		}
		if err == nil {
			m.log.Debug("Fetched content",
				slog.String("backend_type", backend.TypeName()),
				slog.String("key", key),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		notFound = notFound && errors.Is(err, interfaces.ErrContentNotFound)
		errs = append(errs, fmt.Errorf("%s: %w", backend.TypeName(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_type", backend.TypeName()),
			slog.String("key", key),
			"err", err)
	}

	if len(errs) == 0 {
		return zero, fmt.Errorf("%w: no backend could serve %s", interfaces.ErrBackendUnavailable, key)
	}
	if notFound {
		return zero, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
	}

	m.log.Error("All backends failed to fetch content",
		slog.String("key", key),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))
	return zero, fmt.Errorf("all backends failed to fetch %s: %w", key, errors.Join(errs...))
}

// available treats backends without an availability check as always available.
func available(ctx context.Context, backend interfaces.StorageBackend) bool {
	if checker, ok := backend.(interfaces.AvailabilityChecker); ok {
		return checker.Available(ctx)
	}
	return true
}
