// Package platform defines the per-platform delivery contract consumed by
// the submission engine, plus the registry that maps platform names to
// adapters. Concrete adapters talk to external systems (ATS APIs, mail
// relays, web-form bridges); the core only requires idempotent delivery:
// a repeated Deliver call with the same idempotency key must be treated as a
// no-op success when the package was already delivered.
package platform

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Package is the application material handed to an adapter for delivery.
type Package struct {
	ApplicationID string     `json:"application_id"`
	OpportunityID string     `json:"opportunity_id"`
	UserID        string     `json:"user_id"`
	ContentRef    string     `json:"content_ref"`
	Title         string     `json:"title"`
	Organization  string     `json:"organization"`
	Deadline      *time.Time `json:"deadline,omitempty"`
}

// Adapter delivers an application package to one external platform.
type Adapter interface {
	// Name returns the platform identifier (email, linkedin, webform, api).
	Name() string
	// Deliver submits the package. Implementations must collapse a repeated
	// call with the same idempotency key into a no-op success carrying the
	// original delivery ID.
	Deliver(ctx context.Context, pkg Package, idempotencyKey string) (deliveryID string, err error)
}

// ErrUnknownPlatform is returned when no adapter is registered for a name.
var ErrUnknownPlatform = errors.New("unknown platform")

// Registry holds the configured adapters. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register installs an adapter under its own name, replacing any previous
// adapter for that platform.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	r.adapters[a.Name()] = a
	r.mu.Unlock()
}

// Get returns the adapter for a platform name, or ErrUnknownPlatform.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	a, ok := r.adapters[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownPlatform
	}
	return a, nil
}

// Names returns the registered platform names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	return out
}
