package interfaces

import (
	"context"
	"errors"
)

// errCapabilityNotSet is returned when an unset optional function is invoked directly.
var errCapabilityNotSet = errors.New("backend capability not set")

// BackendFuncs is a function-table StorageBackend. Required functions that are
// left nil are reported as missing capabilities, so adapters built on a
// BackendFuncs are rejected at construction rather than failing on first use.
type BackendFuncs struct {
	Type string

	PutFunc func(ctx context.Context, key string, data []byte, opts PutOptions) (string, error)
	GetFunc func(ctx context.Context, key string) ([]byte, error)
	DelFunc func(ctx context.Context, key string) (bool, error)

	StatsFunc    func(ctx context.Context, key string) (ObjectStats, error)
	GetBytesFunc func(ctx context.Context, key string, start, end int64) ([]byte, error)
	WatchFunc    func(ctx context.Context, onChange ChangeFunc) error
	InitFunc     func() error
}

var (
	_ StorageBackend     = (*BackendFuncs)(nil)
	_ StatsBackend       = (*BackendFuncs)(nil)
	_ RangeBackend       = (*BackendFuncs)(nil)
	_ WatchBackend       = (*BackendFuncs)(nil)
	_ InitBackend        = (*BackendFuncs)(nil)
	_ CapabilityReporter = (*BackendFuncs)(nil)
)

// Capabilities reports which functions are set.
func (f *BackendFuncs) Capabilities() Capabilities {
	return Capabilities{
		Put:      f.PutFunc != nil,
		Get:      f.GetFunc != nil,
		Del:      f.DelFunc != nil,
		TypeName: f.Type != "",
		Stats:    f.StatsFunc != nil,
		GetBytes: f.GetBytesFunc != nil,
		Watch:    f.WatchFunc != nil,
		Init:     f.InitFunc != nil,
	}
}

func (f *BackendFuncs) Put(ctx context.Context, key string, data []byte, opts PutOptions) (string, error) {
	if f.PutFunc == nil {
		return "", errCapabilityNotSet
	}
	return f.PutFunc(ctx, key, data, opts)
}

func (f *BackendFuncs) Get(ctx context.Context, key string) ([]byte, error) {
	if f.GetFunc == nil {
		return nil, errCapabilityNotSet
	}
	return f.GetFunc(ctx, key)
}

func (f *BackendFuncs) Del(ctx context.Context, key string) (bool, error) {
	if f.DelFunc == nil {
		return false, errCapabilityNotSet
	}
	return f.DelFunc(ctx, key)
}

func (f *BackendFuncs) TypeName() string {
	return f.Type
}

func (f *BackendFuncs) Stats(ctx context.Context, key string) (ObjectStats, error) {
	if f.StatsFunc == nil {
		return ObjectStats{}, errCapabilityNotSet
	}
	return f.StatsFunc(ctx, key)
}

func (f *BackendFuncs) GetBytes(ctx context.Context, key string, start, end int64) ([]byte, error) {
	if f.GetBytesFunc == nil {
		return nil, errCapabilityNotSet
	}
	return f.GetBytesFunc(ctx, key, start, end)
}

func (f *BackendFuncs) Watch(ctx context.Context, onChange ChangeFunc) error {
	if f.WatchFunc == nil {
		return errCapabilityNotSet
	}
	return f.WatchFunc(ctx, onChange)
}

func (f *BackendFuncs) Init() error {
	if f.InitFunc == nil {
		return nil
	}
	return f.InitFunc()
}
