package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ruteri/storage-adapters/interfaces"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHubBackend implements a read-only storage backend on a repository's
// contents API. Keys are file paths inside the repository.
type GitHubBackend struct {
	owner       string
	repo        string
	ref         string
	token       string
	apiBase     string
	client      *http.Client
	log         *slog.Logger
	locationURI string
}

// NewGitHubBackend creates a new GitHub storage backend for reading from Git repositories.
// An empty ref reads the default branch.
func NewGitHubBackend(owner, repo, ref string, log *slog.Logger) *GitHubBackend {
	uri := fmt.Sprintf("github://%s/%s", owner, repo)
	if ref != "" {
		uri += "?ref=" + url.QueryEscape(ref)
	}
	return &GitHubBackend{
		owner:       owner,
		repo:        repo,
		ref:         ref,
		apiBase:     defaultGitHubAPI,
		client:      &http.Client{Timeout: 30 * time.Second},
		log:         log,
		locationURI: uri,
	}
}

// WithToken authenticates API requests.
func (b *GitHubBackend) WithToken(token string) *GitHubBackend {
	b.token = token
	return b
}

// WithAPIBase points the backend at another API root, e.g. GitHub Enterprise.
func (b *GitHubBackend) WithAPIBase(apiBase string) *GitHubBackend {
	b.apiBase = strings.TrimSuffix(apiBase, "/")
	return b
}

// Put is not supported by this read-only backend.
func (b *GitHubBackend) Put(ctx context.Context, key string, data []byte, opts interfaces.PutOptions) (string, error) {
	return "", interfaces.ErrReadOnlyBackend
}

// Del is not supported by this read-only backend.
func (b *GitHubBackend) Del(ctx context.Context, key string) (bool, error) {
	return false, interfaces.ErrReadOnlyBackend
}

// Get fetches the raw file content at key.
func (b *GitHubBackend) Get(ctx context.Context, key string) ([]byte, error) {
	contentURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s", b.apiBase, b.owner, b.repo, strings.TrimPrefix(key, "/"))
	if b.ref != "" {
		contentURL += "?ref=" + url.QueryEscape(b.ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, contentURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.raw")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("GitHub API error: %s, %s", resp.Status, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	b.log.Debug("Fetched content from GitHub",
		slog.String("repo", b.owner+"/"+b.repo),
		slog.String("path", key),
		slog.Int("size", len(data)))

	return data, nil
}

// Available checks if the repository is reachable.
func (b *GitHubBackend) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/repos/%s/%s", b.apiBase, b.owner, b.repo), nil)
	if err != nil {
		b.log.Debug("Failed to create request", "err", err)
		return false
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Debug("GitHub backend unavailable", "err", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b.log.Debug("GitHub backend unavailable", slog.String("status", resp.Status))
		return false
	}
	return true
}

func (b *GitHubBackend) TypeName() string { return "storage.github" }

// LocationURI returns the URI that identifies this storage backend.
func (b *GitHubBackend) LocationURI() string {
	return b.locationURI
}
