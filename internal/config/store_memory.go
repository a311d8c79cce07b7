package config

import (
	"context"
	"sync"

	"mcpbridge/internal/api"
)

// MemoryStore keeps the registry in process memory. It backs tests and the
// "memory" backend.
type MemoryStore struct {
	mu      sync.RWMutex
	servers map[string]api.ServerDescriptor
}

// NewMemoryStore creates an empty MemoryStore, optionally seeded.
func NewMemoryStore(seed ...api.ServerConfig) *MemoryStore {
	s := &MemoryStore{servers: make(map[string]api.ServerDescriptor)}
	for _, c := range seed {
		s.servers[c.Name] = c.Descriptor.Clone()
	}
	return s
}

func (s *MemoryStore) List(ctx context.Context) ([]api.ServerConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]api.ServerConfig, 0, len(s.servers))
	for name, d := range s.servers {
		out = append(out, api.ServerConfig{Name: name, Descriptor: d.Clone()})
	}
	sortConfigs(out)
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, name string) (api.ServerConfig, bool, error) {
	if err := ctx.Err(); err != nil {
		return api.ServerConfig{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.servers[name]
	if !ok {
		return api.ServerConfig{}, false, nil
	}
	return api.ServerConfig{Name: name, Descriptor: d.Clone()}, true, nil
}

func (s *MemoryStore) Add(ctx context.Context, cfg api.ServerConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.servers[cfg.Name]; exists {
		return api.NewDuplicateNameError(cfg.Name)
	}
	s.servers[cfg.Name] = cfg.Descriptor.Clone()
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.servers[name]; !exists {
		return api.NewNotFoundError(name)
	}
	delete(s.servers, name)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
