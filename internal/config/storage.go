package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"mcpbridge/internal/api"
	"mcpbridge/pkg/logging"
)

// registryKey is the top-level object holding server descriptors.
const registryKey = "mcpServers"

// FileStore persists the registry as a JSON document of the form
//
//	{"mcpServers": {"<name>": <descriptor>, ...}}
//
// Entries are read-modify-written under one mutex and the file is replaced
// atomically. Other top-level keys and the raw JSON of untouched entries are
// preserved.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore at path. The file is created on first Add.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the registry file location.
func (fs *FileStore) Path() string {
	return fs.path
}

type registryDocument struct {
	top     map[string]json.RawMessage
	servers map[string]json.RawMessage
}

func (fs *FileStore) read() (registryDocument, error) {
	doc := registryDocument{
		top:     map[string]json.RawMessage{},
		servers: map[string]json.RawMessage{},
	}

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("failed to read registry %s: %w", fs.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, &doc.top); err != nil {
		return doc, fmt.Errorf("failed to parse registry %s: %w", fs.path, err)
	}
	if raw, ok := doc.top[registryKey]; ok && !isJSONNull(raw) {
		if err := json.Unmarshal(raw, &doc.servers); err != nil {
			return doc, fmt.Errorf("failed to parse %q in %s: %w", registryKey, fs.path, err)
		}
	}
	return doc, nil
}

func (fs *FileStore) write(doc registryDocument) error {
	servers, err := json.Marshal(doc.servers)
	if err != nil {
		return fmt.Errorf("failed to encode servers: %w", err)
	}
	doc.top[registryKey] = servers

	data, err := json.MarshalIndent(doc.top, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".mcp_servers-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	// Descriptors may carry API keys in env.
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set permissions on %s: %w", tmpName, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		return fmt.Errorf("failed to replace registry %s: %w", fs.path, err)
	}
	return nil
}

func decodeEntry(name string, raw json.RawMessage) (api.ServerConfig, error) {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return api.ServerConfig{}, err
	}
	desc, err := ValidateDescriptor(generic)
	if err != nil {
		return api.ServerConfig{}, err
	}
	return api.ServerConfig{Name: name, Descriptor: desc}, nil
}

// List returns every valid entry sorted by name. Entries that fail validation
// are skipped with a warning rather than failing the whole registry.
func (fs *FileStore) List(ctx context.Context) ([]api.ServerConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fs.mu.Lock()
	doc, err := fs.read()
	fs.mu.Unlock()
	if err != nil {
		return nil, api.NewStorageError(err.Error(), err)
	}

	out := make([]api.ServerConfig, 0, len(doc.servers))
	for name, raw := range doc.servers {
		cfg, err := decodeEntry(name, raw)
		if err != nil {
			logging.Warn("ConfigStore", "Skipping invalid registry entry %s: %v", name, err)
			continue
		}
		out = append(out, cfg)
	}
	sortConfigs(out)
	return out, nil
}

func (fs *FileStore) Get(ctx context.Context, name string) (api.ServerConfig, bool, error) {
	if err := ctx.Err(); err != nil {
		return api.ServerConfig{}, false, err
	}
	fs.mu.Lock()
	doc, err := fs.read()
	fs.mu.Unlock()
	if err != nil {
		return api.ServerConfig{}, false, api.NewStorageError(err.Error(), err)
	}

	raw, ok := doc.servers[name]
	if !ok {
		return api.ServerConfig{}, false, nil
	}
	cfg, err := decodeEntry(name, raw)
	if err != nil {
		logging.Warn("ConfigStore", "Registry entry %s is invalid: %v", name, err)
		return api.ServerConfig{}, false, nil
	}
	return cfg, true, nil
}

func (fs *FileStore) Add(ctx context.Context, cfg api.ServerConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(DescriptorToMap(cfg.Descriptor))
	if err != nil {
		return api.NewStorageError("failed to encode descriptor", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.read()
	if err != nil {
		return api.NewStorageError(err.Error(), err)
	}
	if _, exists := doc.servers[cfg.Name]; exists {
		return api.NewDuplicateNameError(cfg.Name)
	}
	doc.servers[cfg.Name] = raw

	if err := fs.write(doc); err != nil {
		return api.NewStorageError(err.Error(), err)
	}
	logging.Info("ConfigStore", "Added %s to %s", cfg.Name, fs.path)
	return nil
}

func (fs *FileStore) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.read()
	if err != nil {
		return api.NewStorageError(err.Error(), err)
	}
	if _, exists := doc.servers[name]; !exists {
		return api.NewNotFoundError(name)
	}
	delete(doc.servers, name)

	if err := fs.write(doc); err != nil {
		return api.NewStorageError(err.Error(), err)
	}
	logging.Info("ConfigStore", "Removed %s from %s", name, fs.path)
	return nil
}

func (fs *FileStore) Close() error { return nil }

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
