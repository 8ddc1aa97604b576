package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ruteri/storage-adapters/interfaces"
)

type memoryObject struct {
	data      []byte
	createdAt time.Time
	updatedAt time.Time
}

// MemoryBackend keeps payloads in a process-local map. Keys are stored as given.
type MemoryBackend struct {
	mu      sync.RWMutex
	name    string
	objects map[string]memoryObject
	log     *slog.Logger
	now     func() time.Time
}

var (
	_ interfaces.StatsBackend = (*MemoryBackend)(nil)
	_ interfaces.RangeBackend = (*MemoryBackend)(nil)
	_ interfaces.InitBackend  = (*MemoryBackend)(nil)
)

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(name string, log *slog.Logger) *MemoryBackend {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryBackend{
		name:    name,
		objects: make(map[string]memoryObject),
		log:     log,
		now:     time.Now,
	}
}

// Init logs the binding. The object map is ready at construction.
func (b *MemoryBackend) Init() error {
	b.log.Debug("Memory backend initialised", slog.String("name", b.name))
	return nil
}

// Put stores a private copy of data under key.
func (b *MemoryBackend) Put(ctx context.Context, key string, data []byte, opts interfaces.PutOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	obj, exists := b.objects[key]
	if exists && !opts.Overwrite {
		return "", fmt.Errorf("%w: %s", interfaces.ErrKeyExists, key)
	}
	if !exists {
		obj.createdAt = now
	}
	obj.data = append([]byte{}, data...)
	obj.updatedAt = now
	b.objects[key] = obj

	return key, nil
}

func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
	}
	return append([]byte{}, obj.data...), nil
}

// GetBytes returns data[start:end], with both bounds clamped to the payload.
func (b *MemoryBackend) GetBytes(ctx context.Context, key string, start, end int64) ([]byte, error) {
	data, err := b.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	start, end = clampRange(start, end, int64(len(data)))
	return data[start:end], nil
}

// Del reports false when nothing was stored under key.
func (b *MemoryBackend) Del(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.objects[key]; !ok {
		return false, nil
	}
	delete(b.objects, key)
	return true, nil
}

func (b *MemoryBackend) Stats(ctx context.Context, key string) (interfaces.ObjectStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, ok := b.objects[key]
	if !ok {
		return interfaces.ObjectStats{}, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
	}
	return interfaces.ObjectStats{
		Size:       int64(len(obj.data)),
		CreatedAt:  obj.createdAt,
		ModifiedAt: obj.updatedAt,
	}, nil
}

func (b *MemoryBackend) TypeName() string { return "storage.memory" }

// Len returns the number of stored objects.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

// clampRange bounds [start, end) to [0, size]. An end at or below zero means
// "to the end of the payload".
func clampRange(start, end, size int64) (int64, int64) {
	if end <= 0 || end > size {
		end = size
	}
	if start < 0 {
		start = 0
	}
	if start > end {
		start = end
	}
	return start, end
}
