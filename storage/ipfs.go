package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/storage-adapters/interfaces"
)

// IPFSBackend implements a content-addressed storage backend on an IPFS node.
// Put ignores the proposed key and returns the CID of the payload, so adapters
// record the CID as the file key.
type IPFSBackend struct {
	shell       *shell.Shell
	host        string
	port        string
	log         *slog.Logger
	locationURI string
}

var _ interfaces.RangeBackend = (*IPFSBackend)(nil)

// NewIPFSBackend creates a new IPFS storage backend connected to the API of
// the node at host:port.
func NewIPFSBackend(host, port string, timeout time.Duration, log *slog.Logger) (*IPFSBackend, error) {
	if host == "" {
		return nil, fmt.Errorf("%w: empty IPFS host", interfaces.ErrInvalidLocationURI)
	}
	apiURL := fmt.Sprintf("%s:%s", host, port)

	sh := shell.NewShell(apiURL)
	if timeout > 0 {
		sh.SetTimeout(timeout)
	}

	return &IPFSBackend{
		shell:       sh,
		host:        host,
		port:        port,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s/?timeout=%s", apiURL, timeout),
	}, nil
}

// Put adds data to IPFS and returns its CID.
// Returns ErrBackendUnavailable if the IPFS node is not accessible.
func (b *IPFSBackend) Put(ctx context.Context, key string, data []byte, opts interfaces.PutOptions) (string, error) {
	if !b.shell.IsUp() {
		return "", interfaces.ErrBackendUnavailable
	}

	cid, err := b.shell.Add(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to add data to IPFS: %w", err)
	}

	b.log.Debug("Stored content in IPFS",
		slog.String("cid", cid),
		slog.String("proposed_key", key),
		slog.Int("size", len(data)))

	return cid, nil
}

// Get retrieves the payload addressed by cid.
func (b *IPFSBackend) Get(ctx context.Context, cid string) ([]byte, error) {
	reader, err := b.cat(cid)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}
	return data, nil
}

// GetBytes streams the payload, discarding everything before start.
func (b *IPFSBackend) GetBytes(ctx context.Context, cid string, start, end int64) ([]byte, error) {
	reader, err := b.cat(cid)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if start > 0 {
		if _, err := io.CopyN(io.Discard, reader, start); err != nil {
			if err == io.EOF {
				return []byte{}, nil
			}
			return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
		}
	}

	var r io.Reader = reader
	if end > 0 {
		if end <= start {
			return []byte{}, nil
		}
		r = io.LimitReader(reader, end-start)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}
	return data, nil
}

// Del unpins the content. The node garbage collects it eventually; content
// pinned elsewhere on the network stays reachable.
func (b *IPFSBackend) Del(ctx context.Context, cid string) (bool, error) {
	if !b.shell.IsUp() {
		return false, interfaces.ErrBackendUnavailable
	}

	if err := b.shell.Unpin(cid); err != nil {
		if strings.Contains(err.Error(), "not pinned") {
			return false, nil
		}
		return false, fmt.Errorf("failed to unpin %s: %w", cid, err)
	}
	return true, nil
}

// Available checks if the IPFS node is accessible.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

func (b *IPFSBackend) TypeName() string { return "storage.ipfs" }

// LocationURI returns the URI that identifies this storage backend.
func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}

func (b *IPFSBackend) cat(cid string) (io.ReadCloser, error) {
	start := time.Now()

	if !b.shell.IsUp() {
		b.log.Warn("IPFS node unavailable",
			slog.String("host", b.host),
			slog.String("port", b.port))
		return nil, interfaces.ErrBackendUnavailable
	}

	reader, err := b.shell.Cat(cid)
	if err != nil {
		if strings.Contains(err.Error(), "no link named") || strings.Contains(err.Error(), "not found") {
			b.log.Debug("Content not found in IPFS",
				slog.String("cid", cid),
				slog.Duration("duration", time.Since(start)))
			return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, cid)
		}

		b.log.Error("Failed to fetch data from IPFS",
			slog.String("cid", cid),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to fetch data from IPFS: %w", err)
	}
	return reader, nil
}
