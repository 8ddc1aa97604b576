package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/ruteri/storage-adapters/interfaces"
)

const natsInitTimeout = 10 * time.Second

// NATSObjectBackend stores payloads in a NATS JetStream object store bucket.
// The bucket is created on Init when it does not exist yet.
type NATSObjectBackend struct {
	conn        *nats.Conn
	js          jetstream.JetStream
	bucketName  string
	log         *slog.Logger
	locationURI string

	mu    sync.RWMutex
	store jetstream.ObjectStore
}

var (
	_ interfaces.StatsBackend = (*NATSObjectBackend)(nil)
	_ interfaces.InitBackend  = (*NATSObjectBackend)(nil)
)

// NewNATSObjectBackend connects to the NATS server at url.
func NewNATSObjectBackend(url, bucket string, log *slog.Logger) (*NATSObjectBackend, error) {
	if bucket == "" {
		return nil, fmt.Errorf("%w: empty NATS bucket", interfaces.ErrInvalidLocationURI)
	}

	conn, err := nats.Connect(url,
		nats.Name("storage-adapters"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NATSObjectBackend{
		conn:        conn,
		js:          js,
		bucketName:  bucket,
		log:         log,
		locationURI: fmt.Sprintf("%s/%s", strings.TrimSuffix(url, "/"), bucket),
	}, nil
}

// Init opens the bucket, creating it when missing.
func (b *NATSObjectBackend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), natsInitTimeout)
	defer cancel()

	store, err := b.js.ObjectStore(ctx, b.bucketName)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		store, err = b.js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      b.bucketName,
			Description: "storage adapter payloads",
		})
		// Another process may have created it in between.
		if err != nil && strings.Contains(err.Error(), "already in use") {
			store, err = b.js.ObjectStore(ctx, b.bucketName)
		}
		if err == nil {
			b.log.Info("Created NATS object store bucket", slog.String("bucket", b.bucketName))
		}
	}
	if err != nil {
		return fmt.Errorf("failed to open object store %s: %w", b.bucketName, err)
	}

	b.mu.Lock()
	b.store = store
	b.mu.Unlock()
	return nil
}

// Put stores data as the object named key. Without Overwrite an existing
// object is left untouched and ErrKeyExists is returned.
func (b *NATSObjectBackend) Put(ctx context.Context, key string, data []byte, opts interfaces.PutOptions) (string, error) {
	store, err := b.objectStore(ctx)
	if err != nil {
		return "", err
	}

	if !opts.Overwrite {
		_, err := store.GetInfo(ctx, key)
		if err == nil {
			return "", fmt.Errorf("%w: %s", interfaces.ErrKeyExists, key)
		}
		if !errors.Is(err, jetstream.ErrObjectNotFound) {
			return "", fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
		}
	}

	meta := jetstream.ObjectMeta{Name: key}
	if opts.Type != "" {
		meta.Metadata = map[string]string{"content-type": opts.Type}
	}

	info, err := store.Put(ctx, meta, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}

	b.log.Debug("Stored content in NATS object store",
		slog.String("bucket", b.bucketName),
		slog.String("key", key),
		slog.Uint64("size", info.Size))

	return info.Name, nil
}

func (b *NATSObjectBackend) Get(ctx context.Context, key string) ([]byte, error) {
	store, err := b.objectStore(ctx)
	if err != nil {
		return nil, err
	}

	data, err := store.GetBytes(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return data, nil
}

// Del deletes the object. Missing objects report false.
func (b *NATSObjectBackend) Del(ctx context.Context, key string) (bool, error) {
	store, err := b.objectStore(ctx)
	if err != nil {
		return false, err
	}

	err = store.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return true, nil
}

// Stats reports the object's size and modification time.
func (b *NATSObjectBackend) Stats(ctx context.Context, key string) (interfaces.ObjectStats, error) {
	store, err := b.objectStore(ctx)
	if err != nil {
		return interfaces.ObjectStats{}, err
	}

	info, err := store.GetInfo(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return interfaces.ObjectStats{}, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
	}
	if err != nil {
		return interfaces.ObjectStats{}, fmt.Errorf("failed to stat object %s: %w", key, err)
	}

	return interfaces.ObjectStats{
		Size:       int64(info.Size),
		CreatedAt:  info.ModTime,
		ModifiedAt: info.ModTime,
	}, nil
}

// Available reports whether the connection is up.
func (b *NATSObjectBackend) Available(ctx context.Context) bool {
	return b.conn.IsConnected()
}

func (b *NATSObjectBackend) TypeName() string { return "storage.nats" }

// LocationURI returns the URI that identifies this storage backend.
func (b *NATSObjectBackend) LocationURI() string {
	return b.locationURI
}

// Close drains the connection.
func (b *NATSObjectBackend) Close() error {
	return b.conn.Drain()
}

// objectStore returns the bucket opened by Init, opening it lazily when the
// backend is used outside an adapter.
func (b *NATSObjectBackend) objectStore(ctx context.Context) (jetstream.ObjectStore, error) {
	b.mu.RLock()
	store := b.store
	b.mu.RUnlock()
	if store != nil {
		return store, nil
	}

	store, err := b.js.ObjectStore(ctx, b.bucketName)
	if err != nil {
		return nil, fmt.Errorf("%w: object store %s: %v", interfaces.ErrBackendUnavailable, b.bucketName, err)
	}

	b.mu.Lock()
	b.store = store
	b.mu.Unlock()
	return store, nil
}
