package storage

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/storage-adapters/interfaces"
)

// VaultBackend implements a storage backend on a HashiCorp Vault KV v2 mount.
// Payloads are stored base64 encoded under the "content" field. Clients
// authenticate with a TLS client certificate, a token, or both.
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

var _ interfaces.StatsBackend = (*VaultBackend)(nil)

// NewVaultBackend creates a new Vault storage backend.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: Path within the mount (e.g. "blobs")
//   - clientCert: optional TLS client certificate
//   - token: optional Vault token
//   - log: Structured logger for operational insights
func NewVaultBackend(address, mountPath, dataPath string, clientCert *tls.Certificate, token string, log *slog.Logger) (*VaultBackend, error) {
	config := api.DefaultConfig()
	config.Address = address

	if clientCert != nil {
		config.HttpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					Certificates: []tls.Certificate{*clientCert},
				},
			},
			Timeout: 30 * time.Second,
		}
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", address, mountPath, dataPath),
	}, nil
}

// Put writes the payload as a new secret version. Without Overwrite the write
// uses check-and-set 0, which Vault rejects when the secret already exists.
func (b *VaultBackend) Put(ctx context.Context, key string, data []byte, opts interfaces.PutOptions) (string, error) {
	start := time.Now()
	path := b.secretPath("data", key)

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"content": base64.StdEncoding.EncodeToString(data),
			"type":    opts.Type,
		},
	}
	if !opts.Overwrite {
		secretData["options"] = map[string]interface{}{"cas": 0}
	}

	_, err := b.client.Logical().WriteWithContext(ctx, path, secretData)
	if err != nil {
		if strings.Contains(err.Error(), "check-and-set") {
			return "", fmt.Errorf("%w: %s", interfaces.ErrKeyExists, key)
		}
		b.log.Error("Failed to write to Vault",
			slog.String("path", path),
			"err", err)
		return "", fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored content in Vault",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))

	return key, nil
}

// Get reads the latest version of the secret stored under key.
func (b *VaultBackend) Get(ctx context.Context, key string) ([]byte, error) {
	path := b.secretPath("data", key)

	secret, err := b.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		b.log.Error("Failed to read from Vault",
			slog.String("path", path),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
	}

	// Deleted versions come back with null data.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
	}

	content, ok := data["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content key not found in Vault data at %s", path)
	}

	payload, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("invalid content encoding in Vault data: %w", err)
	}
	return payload, nil
}

// Del removes every version and the metadata of the secret.
func (b *VaultBackend) Del(ctx context.Context, key string) (bool, error) {
	metaPath := b.secretPath("metadata", key)

	meta, err := b.client.Logical().ReadWithContext(ctx, metaPath)
	if err != nil {
		return false, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if meta == nil {
		return false, nil
	}

	if _, err := b.client.Logical().DeleteWithContext(ctx, metaPath); err != nil {
		return false, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return true, nil
}

// Stats reads the KV v2 metadata. Vault does not track payload size.
func (b *VaultBackend) Stats(ctx context.Context, key string) (interfaces.ObjectStats, error) {
	meta, err := b.client.Logical().ReadWithContext(ctx, b.secretPath("metadata", key))
	if err != nil {
		return interfaces.ObjectStats{}, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if meta == nil || meta.Data == nil {
		return interfaces.ObjectStats{}, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
	}

	return interfaces.ObjectStats{
		CreatedAt:  parseVaultTime(meta.Data["created_time"]),
		ModifiedAt: parseVaultTime(meta.Data["updated_time"]),
	}, nil
}

// Available checks if the Vault backend is accessible.
// It uses the health endpoint to verify that Vault is initialized and unsealed.
func (b *VaultBackend) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := b.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		b.log.Debug("Vault health check failed", "err", err)
		return false
	}

	if !health.Initialized || health.Sealed {
		b.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}
	return true
}

func (b *VaultBackend) TypeName() string { return "storage.vault" }

// LocationURI returns the URI that identifies this storage backend.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}

// secretPath builds a KV v2 API path; kind is "data" or "metadata".
func (b *VaultBackend) secretPath(kind, key string) string {
	key = strings.TrimPrefix(key, "/")
	if b.dataPath == "" {
		return fmt.Sprintf("%s/%s/%s", b.mountPath, kind, key)
	}
	return fmt.Sprintf("%s/%s/%s/%s", b.mountPath, kind, b.dataPath, key)
}

func parseVaultTime(v interface{}) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
