package services

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is a name-keyed set of services of one concrete type.
type Registry[S Service] struct {
	mu       sync.RWMutex
	services map[string]S
}

// NewRegistry creates a new service registry
func NewRegistry[S Service]() *Registry[S] {
	return &Registry[S]{
		services: make(map[string]S),
	}
}

// Register adds a service to the registry
func (r *Registry[S]) Register(service S) error {
	name := service.GetName()
	if name == "" {
		return fmt.Errorf("service has empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.services[name]; exists {
		return fmt.Errorf("service %s already registered", name)
	}

	r.services[name] = service
	return nil
}

// Unregister removes a service from the registry and returns it.
func (r *Registry[S]) Unregister(name string) (S, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	service, exists := r.services[name]
	if exists {
		delete(r.services, name)
	}
	return service, exists
}

// UnregisterIf removes name only when match accepts the registered service.
func (r *Registry[S]) UnregisterIf(name string, match func(S) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	service, exists := r.services[name]
	if !exists || !match(service) {
		return false
	}
	delete(r.services, name)
	return true
}

// Get returns a service by name
func (r *Registry[S]) Get(name string) (S, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	service, exists := r.services[name]
	return service, exists
}

// GetAll returns all registered services ordered by name.
func (r *Registry[S]) GetAll() []S {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)

	services := make([]S, 0, len(names))
	for _, name := range names {
		services = append(services, r.services[name])
	}
	return services
}

// Names returns the registered names in sorted order.
func (r *Registry[S]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered services.
func (r *Registry[S]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.services)
}
