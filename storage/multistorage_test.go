package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/storage-adapters/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorageBackend implements interfaces.StorageBackend for testing
type MockStorageBackend struct {
	mock.Mock
	name string
}

func (m *MockStorageBackend) Put(ctx context.Context, key string, data []byte, opts interfaces.PutOptions) (string, error) {
	args := m.Called(ctx, key, data, opts)
	return args.String(0), args.Error(1)
}

func (m *MockStorageBackend) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorageBackend) Del(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorageBackend) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockStorageBackend) TypeName() string {
	return m.name
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMultiStorageBackend_Available(t *testing.T) {
	tests := []struct {
		name     string
		backends []bool
		expected bool
	}{
		{
			name:     "all backends available",
			backends: []bool{true, true, true},
			expected: true,
		},
		{
			name:     "some backends available",
			backends: []bool{false, true, false},
			expected: true,
		},
		{
			name:     "no backends available",
			backends: []bool{false, false, false},
			expected: false,
		},
		{
			name:     "no backends",
			backends: []bool{},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var backends []interfaces.StorageBackend
			for i, available := range tt.backends {
				mockStorage := &MockStorageBackend{name: fmt.Sprintf("mock-A%x", i)}
				mockStorage.On("Available", mock.Anything).Return(available).Maybe()
				backends = append(backends, mockStorage)
			}

			multi := NewMultiStorageBackend(backends, testLogger())

			result := multi.Available(context.Background())
			assert.Equal(t, tt.expected, result)

			for _, backend := range backends {
				backend.(*MockStorageBackend).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_Get(t *testing.T) {
	testKey := "f1/a.txt"
	testData := []byte("test data")
	testErr := errors.New("test error")

	tests := []struct {
		name          string
		setupMocks    func() []interfaces.StorageBackend
		expectedData  []byte
		expectedError error
	}{
		{
			name: "first backend successful",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, testKey).Return(testData, nil)

				mock2 := &MockStorageBackend{name: "mock-B"}

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedData: testData,
		},
		{
			name: "first backend fails, second succeeds",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, testKey).Return(nil, testErr)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, testKey).Return(testData, nil)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedData: testData,
		},
		{
			name: "first backend unavailable, second succeeds",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, testKey).Return(testData, nil)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedData: testData,
		},
		{
			name: "not found everywhere",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, testKey).Return(nil, interfaces.ErrContentNotFound)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, testKey).Return(nil, interfaces.ErrContentNotFound)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedError: interfaces.ErrContentNotFound,
		},
		{
			name: "all backends fail",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, testKey).Return(nil, testErr)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, testKey).Return(nil, interfaces.ErrContentNotFound)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedError: testErr,
		},
		{
			name: "all backends unavailable",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)

				return []interfaces.StorageBackend{mock1}
			},
			expectedError: interfaces.ErrBackendUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks()
			multi := NewMultiStorageBackend(backends, testLogger())

			data, err := multi.Get(context.Background(), testKey)

			if tt.expectedError != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, data)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedData, data)
			}

			for _, backend := range backends {
				backend.(*MockStorageBackend).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_Put(t *testing.T) {
	testKey := "f1/a.txt"
	testData := []byte("test data")
	testErr := errors.New("test error")
	opts := interfaces.PutOptions{Type: "text/plain"}

	tests := []struct {
		name          string
		setupMocks    func() []interfaces.StorageBackend
		expectedKey   string
		expectedError bool
	}{
		{
			name: "all backends successful",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Put", mock.Anything, testKey, testData, opts).Return(testKey, nil)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Put", mock.Anything, testKey, testData, opts).Return(testKey, nil)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedKey: testKey,
		},
		{
			name: "first returned key wins",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Put", mock.Anything, testKey, testData, opts).Return("QmCID", nil)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Put", mock.Anything, testKey, testData, opts).Return(testKey, nil)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedKey: "QmCID",
		},
		{
			name: "one backend fails",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Put", mock.Anything, testKey, testData, opts).Return("", testErr)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Put", mock.Anything, testKey, testData, opts).Return(testKey, nil)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedKey: testKey,
		},
		{
			name: "all backends fail",
			setupMocks: func() []interfaces.StorageBackend {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Put", mock.Anything, testKey, testData, opts).Return("", testErr)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(false)

				return []interfaces.StorageBackend{mock1, mock2}
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks()
			multi := NewMultiStorageBackend(backends, testLogger())

			key, err := multi.Put(context.Background(), testKey, testData, opts)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Empty(t, key)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedKey, key)
			}

			for _, backend := range backends {
				backend.(*MockStorageBackend).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_Del(t *testing.T) {
	mock1 := &MockStorageBackend{name: "mock-A"}
	mock1.On("Available", mock.Anything).Return(true)
	mock1.On("Del", mock.Anything, "k").Return(false, nil)

	mock2 := &MockStorageBackend{name: "mock-B"}
	mock2.On("Available", mock.Anything).Return(true)
	mock2.On("Del", mock.Anything, "k").Return(true, nil)

	multi := NewMultiStorageBackend([]interfaces.StorageBackend{mock1, mock2}, testLogger())

	removed, err := multi.Del(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, removed)
	mock1.AssertExpectations(t)
	mock2.AssertExpectations(t)
}

func TestMultiStorageBackend_DelReportsUnreachableBackends(t *testing.T) {
	ctx := context.Background()

	down := &MockStorageBackend{name: "mock-A"}
	down.On("Available", mock.Anything).Return(false)

	failing := &MockStorageBackend{name: "mock-B"}
	failing.On("Available", mock.Anything).Return(true)
	failing.On("Del", mock.Anything, "k").Return(false, errors.New("connection refused"))

	_, err := NewMultiStorageBackend([]interfaces.StorageBackend{down, failing}, testLogger()).Del(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	down.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)

	_, err = NewMultiStorageBackend([]interfaces.StorageBackend{down}, testLogger()).Del(ctx, "k")
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}

func TestMultiStorageBackend_StatsFallBackToSecondary(t *testing.T) {
	ctx := context.Background()

	down := &MockStorageBackend{name: "mock-A"}
	down.On("Available", mock.Anything).Return(false)
	secondary := NewMemoryBackend("secondary", testLogger())
	multi := NewMultiStorageBackend([]interfaces.StorageBackend{down, secondary}, testLogger())

	key, err := multi.Put(ctx, "f1/a.txt", []byte("0123456789"), interfaces.PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, "f1/a.txt", key)

	st, err := multi.Stats(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(10), st.Size)
	assert.False(t, st.ModifiedAt.IsZero())

	_, err = multi.Stats(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
	down.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMultiStorageBackend_Capabilities(t *testing.T) {
	memory := NewMemoryBackend("primary", testLogger())
	plain := &MockStorageBackend{name: "mock-A"}

	caps := NewMultiStorageBackend([]interfaces.StorageBackend{memory, plain}, testLogger()).Capabilities()
	assert.True(t, caps.Stats)
	assert.True(t, caps.GetBytes)
	assert.Empty(t, caps.MissingRequired())

	caps = NewMultiStorageBackend([]interfaces.StorageBackend{plain, memory}, testLogger()).Capabilities()
	assert.True(t, caps.Stats)
	assert.True(t, caps.GetBytes)

	caps = NewMultiStorageBackend([]interfaces.StorageBackend{plain}, testLogger()).Capabilities()
	assert.False(t, caps.Stats)
	assert.False(t, caps.GetBytes)

	caps = NewMultiStorageBackend(nil, testLogger()).Capabilities()
	assert.Equal(t, "put", caps.MissingRequired())
}

func TestMultiStorageBackend_GetBytesSkipsPlainBackends(t *testing.T) {
	ctx := context.Background()
	plain := &MockStorageBackend{name: "mock-A"}
	plain.On("Available", mock.Anything).Return(true)

	memory := NewMemoryBackend("second", testLogger())
	_, err := memory.Put(ctx, "k", []byte("0123456789"), interfaces.PutOptions{})
	require.NoError(t, err)

	multi := NewMultiStorageBackend([]interfaces.StorageBackend{plain, memory}, testLogger())
	data, err := multi.GetBytes(ctx, "k", 2, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("234"), data)
	plain.AssertNotCalled(t, "GetBytes")
}
