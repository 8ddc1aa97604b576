package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ruteri/storage-adapters/adapter"
	"github.com/ruteri/storage-adapters/hooks"
	"github.com/ruteri/storage-adapters/interfaces"
	"github.com/ruteri/storage-adapters/registry"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid store configuration")

// Config lists the stores a process registers at startup.
type Config struct {
	Stores []StoreConfig `yaml:"stores"`
}

// StoreConfig describes one named store. Exactly one of Location and
// Locations is set; Locations builds a multi-backend.
type StoreConfig struct {
	Name       string         `yaml:"name"`
	Location   string         `yaml:"location"`
	Locations  []string       `yaml:"locations"`
	BeforeSave []HookSpec     `yaml:"before_save"`
	Sync       bool           `yaml:"sync"`
	Values     map[string]any `yaml:"values"`
}

// HookSpec names a pre-save hook. In YAML it is either a bare name
// ("sniff-type"), a name with a scalar argument ("max-size: 1048576") or a
// name with parameters ("seal: {passphrase_env: BLOB_KEY}").
type HookSpec struct {
	Name   string
	Value  string
	Params map[string]string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *HookSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		h.Name = node.Value
		return nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: hook must have exactly one name", node.Line)
		}
		h.Name = node.Content[0].Value
		arg := node.Content[1]
		switch arg.Kind {
		case yaml.ScalarNode:
			h.Value = arg.Value
			return nil
		case yaml.MappingNode:
			return arg.Decode(&h.Params)
		}
		return fmt.Errorf("line %d: unsupported arguments for hook %q", arg.Line, h.Name)
	}
	return fmt.Errorf("line %d: hook must be a name or a single-key mapping", node.Line)
}

// Load reads and validates a YAML store configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML store configuration. Unknown fields are
// rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks names and locations. Hooks are checked by Apply, where
// their secrets are resolved.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Stores))
	for i, s := range c.Stores {
		if s.Name == "" {
			return fmt.Errorf("%w: stores[%d].name is required", ErrInvalidConfig, i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: store %q defined twice", ErrInvalidConfig, s.Name)
		}
		seen[s.Name] = struct{}{}

		if (s.Location == "") == (len(s.Locations) == 0) {
			return fmt.Errorf("%w: store %q needs exactly one of location or locations", ErrInvalidConfig, s.Name)
		}
		for _, uri := range s.allLocations() {
			if _, err := interfaces.NewStorageBackendLocation(uri); err != nil {
				return fmt.Errorf("store %q: %w", s.Name, err)
			}
		}
	}
	return nil
}

// ParseStoreFlag parses a "name=uri" command line store definition.
func ParseStoreFlag(value string) (StoreConfig, error) {
	name, uri, ok := strings.Cut(value, "=")
	if !ok || name == "" || uri == "" {
		return StoreConfig{}, fmt.Errorf("%w: expected name=uri, got %q", ErrInvalidConfig, value)
	}
	return StoreConfig{Name: name, Location: uri}, nil
}

func (s StoreConfig) allLocations() []string {
	if s.Location != "" {
		return []string{s.Location}
	}
	return s.Locations
}

// Apply builds a backend for every store with factory and registers it in
// reg. Stores are registered in order; the first failure stops the process.
func Apply(ctx context.Context, cfg *Config, factory interfaces.StorageBackendFactory, reg *registry.Registry, log *slog.Logger) error {
	for _, s := range cfg.Stores {
		backend, err := buildBackend(ctx, s, factory)
		if err != nil {
			return fmt.Errorf("store %q: %w", s.Name, err)
		}

		opts := &adapter.Options{Sync: s.Sync, Values: s.Values}
		if len(s.BeforeSave) > 0 {
			hook, err := BuildHooks(s.BeforeSave, os.Getenv, log)
			if err != nil {
				return fmt.Errorf("store %q: %w", s.Name, err)
			}
			opts.BeforeSave = hook
		}

		if _, err := reg.Register(s.Name, backend, opts); err != nil {
			return err
		}
	}
	return nil
}

func buildBackend(ctx context.Context, s StoreConfig, factory interfaces.StorageBackendFactory) (interfaces.StorageBackend, error) {
	locs := make([]interfaces.StorageBackendLocation, 0, len(s.allLocations()))
	for _, uri := range s.allLocations() {
		loc, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	if s.Location != "" {
		return factory.StorageBackendFor(ctx, locs[0])
	}
	return factory.CreateMultiBackend(ctx, locs)
}

// BuildHooks turns hook specs into a single chained pre-save hook. getenv
// resolves secrets referenced by *_env parameters.
func BuildHooks(specs []HookSpec, getenv func(string) string, log *slog.Logger) (adapter.BeforeSaveFunc, error) {
	built := make([]adapter.BeforeSaveFunc, 0, len(specs))
	for _, spec := range specs {
		hook, err := buildHook(spec, getenv, log)
		if err != nil {
			return nil, err
		}
		built = append(built, hook)
	}
	return hooks.Chain(built...), nil
}

func buildHook(spec HookSpec, getenv func(string) string, log *slog.Logger) (adapter.BeforeSaveFunc, error) {
	switch spec.Name {
	case "sniff-type":
		return hooks.SniffType(), nil

	case "max-size":
		raw := spec.Value
		if raw == "" {
			raw = spec.Params["bytes"]
		}
		limit, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || limit < 0 {
			return nil, fmt.Errorf("%w: max-size needs a byte count, got %q", ErrInvalidConfig, raw)
		}
		return hooks.MaxSize(limit, log), nil

	case "seal":
		envName := spec.Params["passphrase_env"]
		if envName == "" {
			return nil, fmt.Errorf("%w: seal needs passphrase_env", ErrInvalidConfig)
		}
		passphrase := getenv(envName)
		if passphrase == "" {
			return nil, fmt.Errorf("%w: environment variable %s is empty", ErrInvalidConfig, envName)
		}
		return hooks.Seal([]byte(passphrase), log), nil

	case "seal-for":
		keyFile := spec.Params["public_key_file"]
		if keyFile == "" {
			return nil, fmt.Errorf("%w: seal-for needs public_key_file", ErrInvalidConfig)
		}
		pem, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read recipient key: %w", err)
		}
		return hooks.SealFor(pem, log), nil
	}
	return nil, fmt.Errorf("%w: unknown hook %q", ErrInvalidConfig, spec.Name)
}
