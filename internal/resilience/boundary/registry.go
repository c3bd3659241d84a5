package boundary

import (
	"fmt"
	"log/slog"
	"sync"
)

// Resettable is a sub-component that can be reset when its boundary recovers.
type Resettable interface {
	Reset() error
}

// ResetFunc adapts a plain function to Resettable.
type ResetFunc func() error

func (f ResetFunc) Reset() error { return f() }

// Registry tracks the sub-components of one boundary that must be reset
// together on recovery or remount.
type Registry struct {
	mu         sync.Mutex
	components map[string]Resettable
	order      []string
	log        *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		components: make(map[string]Resettable),
		log:        log.With("component", "registry"),
	}
}

// Register adds or replaces the component under id.
func (r *Registry) Register(id string, c Resettable) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.components[id]; !exists {
		r.order = append(r.order, id)
	}
	r.components[id] = c
}

// Unregister removes the component under id.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.components, id)
	remaining := r.order[:0]
	for _, existing := range r.order {
		if existing != id {
			remaining = append(remaining, existing)
		}
	}
	r.order = remaining
}

// Reset resets a single component by id.
func (r *Registry) Reset(id string) error {
	r.mu.Lock()
	c, ok := r.components[id]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("component %s not registered", id)
	}
	return r.resetOne(id, c)
}

// ResetAll resets every registered component in registration order. A failing
// or panicking component never prevents the rest from resetting; failures are
// collected and logged.
func (r *Registry) ResetAll() []error {
	r.mu.Lock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	components := make(map[string]Resettable, len(r.components))
	for id, c := range r.components {
		components[id] = c
	}
	r.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := r.resetOne(id, components[id]); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (r *Registry) resetOne(id string, c Resettable) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("component %s reset panicked: %v", id, rec)
		}
		if err != nil {
			r.log.Warn("Component reset failed", "id", id, "error", err)
		}
	}()

	if err := c.Reset(); err != nil {
		return fmt.Errorf("component %s reset failed: %w", id, err)
	}
	return nil
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.components)
}
