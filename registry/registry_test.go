package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ruteri/storage-adapters/adapter"
	"github.com/ruteri/storage-adapters/catalog"
	"github.com/ruteri/storage-adapters/interfaces"
	"github.com/ruteri/storage-adapters/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_EndToEnd(t *testing.T) {
	ctx := context.Background()
	reg := New(testLogger())

	a, err := reg.RegisterOrLookup("local", storage.NewMemoryBackend("local", testLogger()), nil)
	require.NoError(t, err)

	file := catalog.NewFile("f1", "a.txt", "text/plain", []byte("0123456789"))
	res, err := a.Insert(ctx, file)
	require.NoError(t, err)
	require.True(t, res.Stored())
	assert.Equal(t, "f1/a.txt", res.Info.Key)
	assert.Equal(t, "a.txt", res.Info.Name)
	assert.Equal(t, "text/plain", res.Info.Type)
	assert.Equal(t, int64(10), res.Info.Size)
	assert.False(t, res.Info.UpdatedAt.IsZero())

	file.SetCopy("local", res.Info.CopyRecord())

	same, err := reg.RegisterOrLookup("local", nil, nil)
	require.NoError(t, err)
	assert.Same(t, a, same)

	data, err := same.GetBuffer(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789"), data)

	ranger, ok := same.(adapter.RangeAdapter)
	require.True(t, ok)
	part, err := ranger.GetBytes(ctx, file, 2, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("23456789"), part)

	removed, err := same.Remove(ctx, file, adapter.RemoveOptions{})
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestRegistry_RegisterOrLookup(t *testing.T) {
	memory := func() interfaces.StorageBackend { return storage.NewMemoryBackend("m", testLogger()) }

	tests := []struct {
		name    string
		setup   func(r *Registry)
		backend interfaces.StorageBackend
		opts    *adapter.Options
		wantErr error
		wantCap string
	}{
		{
			name:    "unknown name without backend",
			wantErr: adapter.ErrConfiguration,
			wantCap: "api",
		},
		{
			name:    "missing put",
			backend: &interfaces.BackendFuncs{Type: "t", GetFunc: getNothing, DelFunc: delNothing},
			wantErr: adapter.ErrConfiguration,
			wantCap: "put",
		},
		{
			name:    "missing get",
			backend: &interfaces.BackendFuncs{Type: "t", PutFunc: putEcho, DelFunc: delNothing},
			wantErr: adapter.ErrConfiguration,
			wantCap: "get",
		},
		{
			name:    "missing del",
			backend: &interfaces.BackendFuncs{Type: "t", PutFunc: putEcho, GetFunc: getNothing},
			wantErr: adapter.ErrConfiguration,
			wantCap: "del",
		},
		{
			name:    "missing type name",
			backend: &interfaces.BackendFuncs{PutFunc: putEcho, GetFunc: getNothing, DelFunc: delNothing},
			wantErr: adapter.ErrConfiguration,
			wantCap: "typeName",
		},
		{
			name: "duplicate name",
			setup: func(r *Registry) {
				_, err := r.Register("store", memory(), nil)
				require.NoError(t, err)
			},
			backend: memory(),
			wantErr: adapter.ErrDuplicateName,
		},
		{
			name: "duplicate name with options only",
			setup: func(r *Registry) {
				_, err := r.Register("store", memory(), nil)
				require.NoError(t, err)
			},
			opts:    &adapter.Options{},
			wantErr: adapter.ErrConfiguration,
			wantCap: "api",
		},
		{
			name: "invalid backend is reported before duplicate name",
			setup: func(r *Registry) {
				_, err := r.Register("store", memory(), nil)
				require.NoError(t, err)
			},
			backend: &interfaces.BackendFuncs{Type: "t"},
			wantErr: adapter.ErrConfiguration,
			wantCap: "put",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := New(testLogger())
			if tt.setup != nil {
				tt.setup(reg)
			}

			a, err := reg.RegisterOrLookup("store", tt.backend, tt.opts)
			require.Error(t, err)
			assert.Nil(t, a)
			assert.ErrorIs(t, err, tt.wantErr)

			if tt.wantCap != "" {
				var cfgErr *adapter.ConfigurationError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, tt.wantCap, cfgErr.Capability)
				assert.Equal(t, "store", cfgErr.Adapter)
			}
		})
	}
}

func TestRegistry_InitRunsOnceBeforeVisible(t *testing.T) {
	reg := New(testLogger())
	calls := 0
	backend := &interfaces.BackendFuncs{
		Type: "t", PutFunc: putEcho, GetFunc: getNothing, DelFunc: delNothing,
		InitFunc: func() error {
			calls++
			_, visible := reg.Lookup("store")
			assert.False(t, visible)
			return nil
		},
	}

	_, err := reg.Register("store", backend, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = reg.RegisterOrLookup("store", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRegistry_InitFailureLeavesNameFree(t *testing.T) {
	reg := New(testLogger())
	initErr := errors.New("bucket missing")
	failing := &interfaces.BackendFuncs{
		Type: "t", PutFunc: putEcho, GetFunc: getNothing, DelFunc: delNothing,
		InitFunc: func() error { return initErr },
	}

	_, err := reg.Register("store", failing, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrConfiguration)
	assert.ErrorIs(t, err, initErr)

	_, ok := reg.Lookup("store")
	assert.False(t, ok)

	_, err = reg.Register("store", storage.NewMemoryBackend("m", testLogger()), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"store"}, reg.Names())
}

func TestRegistry_ConcurrentRegistration(t *testing.T) {
	reg := New(testLogger())

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			backend := &interfaces.BackendFuncs{
				Type: "t", PutFunc: putEcho, GetFunc: getNothing, DelFunc: delNothing,
				InitFunc: func() error {
					time.Sleep(time.Millisecond)
					return nil
				},
			}
			_, err := reg.Register("shared", backend, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, duplicates int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, adapter.ErrDuplicateName):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, duplicates)
}

func TestRegistry_NamesAndMustLookup(t *testing.T) {
	reg := New(testLogger())
	for _, name := range []string{"b", "a", "c"} {
		_, err := reg.Register(name, storage.NewMemoryBackend(name, testLogger()), nil)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"a", "b", "c"}, reg.Names())
	assert.Equal(t, "b", reg.MustLookup("b").Name())
	assert.Panics(t, func() { reg.MustLookup("missing") })
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []string
}

func (o *recordingObserver) ObserveOperation(adapterName, op string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, fmt.Sprintf("%s:%s:%v", adapterName, op, err == nil))
}

func TestRegistry_DefaultObserver(t *testing.T) {
	observer := &recordingObserver{}
	reg := New(testLogger(), WithObserver(observer))

	a, err := reg.Register("local", storage.NewMemoryBackend("local", testLogger()), nil)
	require.NoError(t, err)

	_, err = a.Insert(context.Background(), catalog.NewFile("f1", "a.txt", "", []byte("x")))
	require.NoError(t, err)

	observer.mu.Lock()
	defer observer.mu.Unlock()
	assert.Equal(t, []string{"local:insert:true"}, observer.ops)
}

func putEcho(_ context.Context, key string, _ []byte, _ interfaces.PutOptions) (string, error) {
	return key, nil
}

func getNothing(context.Context, string) ([]byte, error) { return nil, nil }

func delNothing(context.Context, string) (bool, error) { return false, nil }
