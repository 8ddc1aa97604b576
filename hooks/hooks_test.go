package hooks

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/storage-adapters/adapter"
	"github.com/ruteri/storage-adapters/catalog"
	"github.com/ruteri/storage-adapters/cryptoutils"
	"github.com/ruteri/storage-adapters/interfaces"
	"github.com/ruteri/storage-adapters/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSniffType(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		data     []byte
		want     string
	}{
		{name: "empty type sniffed", data: []byte("<html><body>x</body></html>"), want: "text/html; charset=utf-8"},
		{name: "png sniffed", data: []byte("\x89PNG\r\n\x1a\n0000"), want: "image/png"},
		{name: "declared type kept", declared: "application/json", data: []byte("{}"), want: "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := catalog.NewFile("f1", "a", tt.declared, tt.data)
			assert.Equal(t, adapter.SaveContinue, SniffType()(f))
			assert.Equal(t, tt.want, f.Type())
		})
	}
}

func TestMaxSize(t *testing.T) {
	hook := MaxSize(4, testLogger())
	assert.Equal(t, adapter.SaveContinue, hook(catalog.NewFile("f1", "a", "", []byte("1234"))))
	assert.Equal(t, adapter.SaveSkip, hook(catalog.NewFile("f1", "a", "", []byte("12345"))))
}

func TestHooksLogToGivenLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	assert.Equal(t, adapter.SaveSkip, MaxSize(1, log)(catalog.NewFile("big", "a", "", []byte("12"))))
	assert.Contains(t, buf.String(), "File exceeds size limit")
	assert.Contains(t, buf.String(), "file_id=big")

	buf.Reset()
	assert.Equal(t, adapter.SaveSkip, SealFor([]byte("garbage"), log)(catalog.NewFile("bad", "a", "", []byte("x"))))
	assert.Contains(t, buf.String(), "Could not seal file")
	assert.Contains(t, buf.String(), "file_id=bad")
}

func TestChain(t *testing.T) {
	var calls []string
	step := func(name string, action adapter.SaveAction) adapter.BeforeSaveFunc {
		return func(interfaces.LogicalFile) adapter.SaveAction {
			calls = append(calls, name)
			return action
		}
	}

	hook := Chain(step("a", adapter.SaveContinue), nil, step("b", adapter.SaveSkip), step("c", adapter.SaveContinue))
	assert.Equal(t, adapter.SaveSkip, hook(catalog.NewFile("f1", "a", "", []byte("x"))))
	assert.Equal(t, []string{"a", "b"}, calls)

	calls = nil
	assert.Equal(t, adapter.SaveContinue, Chain(step("a", adapter.SaveContinue))(catalog.NewFile("f1", "a", "", []byte("x"))))
	assert.Equal(t, []string{"a"}, calls)
}

func TestSeal(t *testing.T) {
	f := catalog.NewFile("f1", "report.txt", "text/plain", []byte("quarterly numbers"))
	require.Equal(t, adapter.SaveContinue, Seal([]byte("pw"), testLogger())(f))

	assert.Equal(t, "report.txt.sealed", f.Name())
	assert.Equal(t, SealedType, f.Type())
	assert.Equal(t, int64(len(f.Buffer())), f.Size())
	assert.True(t, cryptoutils.IsSealed(f.Buffer()))

	plain, err := Open([]byte("pw"), f.Buffer())
	require.NoError(t, err)
	assert.Equal(t, []byte("quarterly numbers"), plain)
	assert.Equal(t, "report.txt", OriginalName(f.Name()))
}

func TestSealEmptyPassphraseSkips(t *testing.T) {
	f := catalog.NewFile("f1", "a.txt", "", []byte("secret"))
	assert.Equal(t, adapter.SaveSkip, Seal(nil, testLogger())(f))
	assert.Equal(t, []byte("secret"), f.Buffer())
	assert.Equal(t, "a.txt", f.Name())
}

func TestSealFor(t *testing.T) {
	pub, priv, err := cryptoutils.RandomP256Keypair()
	require.NoError(t, err)

	f := catalog.NewFile("f1", "a.txt", "", []byte("for your eyes"))
	require.Equal(t, adapter.SaveContinue, SealFor(pub, testLogger())(f))
	assert.Equal(t, "a.txt.sealed", f.Name())

	plain, err := OpenFor(priv, f.Buffer())
	require.NoError(t, err)
	assert.Equal(t, []byte("for your eyes"), plain)

	assert.Equal(t, adapter.SaveSkip, SealFor([]byte("garbage"), testLogger())(catalog.NewFile("f2", "b", "", []byte("x"))))
}

func TestSealThroughAdapter(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend("sealed", testLogger())
	a, err := adapter.New("sealed", backend, &adapter.Options{
		Logger:     testLogger(),
		BeforeSave: Chain(MaxSize(1024, testLogger()), SniffType(), Seal([]byte("pw"), testLogger())),
	})
	require.NoError(t, err)

	f := catalog.NewFile("f1", "note.txt", "", []byte("hello"))
	res, err := a.Insert(ctx, f)
	require.NoError(t, err)
	require.True(t, res.Stored())
	assert.Equal(t, "f1/note.txt.sealed", res.Info.Key)
	assert.Equal(t, "note.txt.sealed", res.Info.Name)

	// The caller's file is untouched.
	assert.Equal(t, "note.txt", f.Name())
	assert.Equal(t, []byte("hello"), f.Buffer())

	f.SetCopy("sealed", res.Info.CopyRecord())
	stored, err := a.GetBuffer(ctx, f)
	require.NoError(t, err)

	plain, err := Open([]byte("pw"), stored)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), plain)

	res, err = a.Insert(ctx, catalog.NewFile("f2", "big.bin", "", make([]byte, 2048)))
	require.NoError(t, err)
	assert.Equal(t, adapter.OutcomeSkipped, res.Outcome)
	assert.Equal(t, 1, backend.Len())
}
