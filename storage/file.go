package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/ruteri/storage-adapters/interfaces"
)

const tempFilePrefix = ".tmp-"

// ErrInvalidKey is returned for keys a backend cannot map to a location.
var ErrInvalidKey = errors.New("invalid storage key")

// FileBackend implements a storage backend using the local file system.
// Keys map to slash-separated paths below the base directory.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

var (
	_ interfaces.StatsBackend = (*FileBackend)(nil)
	_ interfaces.RangeBackend = (*FileBackend)(nil)
	_ interfaces.WatchBackend = (*FileBackend)(nil)
	_ interfaces.InitBackend  = (*FileBackend)(nil)
)

// NewFileBackend creates a new file storage backend rooted at baseDir.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("%w: empty base directory", interfaces.ErrInvalidLocationURI)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	return &FileBackend{
		baseDir:     abs,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", abs),
	}, nil
}

// Init creates the base directory.
func (b *FileBackend) Init() error {
	if err := os.MkdirAll(b.baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create base directory: %w", err)
	}
	return nil
}

// Put writes data to a temporary file and moves it into place. Without
// Overwrite an existing key is left untouched and ErrKeyExists is returned.
func (b *FileBackend) Put(ctx context.Context, key string, data []byte, opts interfaces.PutOptions) (string, error) {
	filePath, err := b.pathFor(key)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempFilePrefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	if opts.Overwrite {
		err = os.Rename(tmpPath, filePath)
	} else {
		// Link fails when the target exists, unlike Rename.
		err = os.Link(tmpPath, filePath)
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", interfaces.ErrKeyExists, key)
		}
	}
	if err != nil {
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	b.log.Debug("Stored content in file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return key, nil
}

// Get retrieves the payload stored under key.
// Returns ErrContentNotFound if the file doesn't exist.
func (b *FileBackend) Get(ctx context.Context, key string) ([]byte, error) {
	filePath, err := b.pathFor(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	b.log.Debug("Fetched content from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return data, nil
}

// GetBytes reads [start, end) from the file without loading the rest.
func (b *FileBackend) GetBytes(ctx context.Context, key string, start, end int64) ([]byte, error) {
	filePath, err := b.pathFor(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	start, end = clampRange(start, end, st.Size())
	buf := make([]byte, end-start)
	if _, err := f.ReadAt(buf, start); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return buf, nil
}

// Del removes the file stored under key. Missing files report false.
func (b *FileBackend) Del(ctx context.Context, key string) (bool, error) {
	filePath, err := b.pathFor(key)
	if err != nil {
		return false, err
	}

	err = os.Remove(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to remove file: %w", err)
	}

	// Drop the per-file directory when it became empty; failure is harmless.
	if dir := filepath.Dir(filePath); dir != b.baseDir {
		_ = os.Remove(dir)
	}
	return true, nil
}

// Stats reports size and modification time. The file system does not keep a
// portable creation time, so CreatedAt mirrors ModifiedAt.
func (b *FileBackend) Stats(ctx context.Context, key string) (interfaces.ObjectStats, error) {
	filePath, err := b.pathFor(key)
	if err != nil {
		return interfaces.ObjectStats{}, err
	}

	st, err := os.Stat(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return interfaces.ObjectStats{}, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
	}
	if err != nil {
		return interfaces.ObjectStats{}, fmt.Errorf("failed to stat file: %w", err)
	}

	return interfaces.ObjectStats{
		Size:       st.Size(),
		CreatedAt:  st.ModTime(),
		ModifiedAt: st.ModTime(),
	}, nil
}

// Watch reports changes below the base directory until ctx is done. It
// returns once the watcher is running.
func (b *FileBackend) Watch(ctx context.Context, onChange interfaces.ChangeFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	err = filepath.WalkDir(b.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", b.baseDir, err)
	}

	go b.watchLoop(ctx, watcher, onChange)
	return nil
}

func (b *FileBackend) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, onChange interfaces.ChangeFunc) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			b.log.Warn("File watcher error", "err", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			b.handleEvent(watcher, event, onChange)
		}
	}
}

func (b *FileBackend) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event, onChange interfaces.ChangeFunc) {
	if strings.HasPrefix(filepath.Base(event.Name), tempFilePrefix) {
		return
	}
	rel, err := filepath.Rel(b.baseDir, event.Name)
	if err != nil {
		return
	}
	key := filepath.ToSlash(rel)

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		onChange(interfaces.ChangeRemoved, key, interfaces.ChangeInfo{})
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		st, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if st.IsDir() {
			if err := watcher.Add(event.Name); err != nil {
				b.log.Warn("Failed to watch directory", slog.String("path", event.Name), "err", err)
			}
			return
		}
		onChange(interfaces.ChangeUpdated, key, interfaces.ChangeInfo{
			UpdatedAt: st.ModTime(),
			Size:      st.Size(),
		})
	}
}

func (b *FileBackend) TypeName() string { return "storage.filesystem" }

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}

// pathFor maps a key to a path below the base directory, rejecting keys that
// would escape it.
func (b *FileBackend) pathFor(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	p := filepath.Join(b.baseDir, filepath.FromSlash(key))
	rel, err := filepath.Rel(b.baseDir, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q is outside of the storage directory", ErrInvalidKey, key)
	}
	return p, nil
}
