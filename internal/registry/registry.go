// Package registry maintains the catalog of remote capabilities
// discovered from backend services. Discovery runs once and is cached;
// re-discovery only happens when a caller explicitly asks for it, so a
// backend disappearing can never silently change the capability set.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/mwiersma/landmeter/internal/catalog"
)

// ErrNotFound is returned by Lookup for names absent from the registry.
var ErrNotFound = errors.New("capability not found")

// Capability describes one remote tool: its name, what it does, the
// JSON schema of its arguments, and the backend that owns it. Immutable
// after discovery.
type Capability struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`

	// Backend is the owning service, set during discovery.
	Backend string `json:"-"`
}

// QualifiedName returns the registry-wide unique name, prefixed with
// the owning backend ("kadaster_get_property_details"). Tool names are
// only unique per backend, so the bare name cannot key the registry.
func (c Capability) QualifiedName() string {
	return c.Backend + "_" + c.Name
}

// Lister fetches a backend's raw tool list. *transport.Client satisfies
// it.
type Lister interface {
	ListTools(ctx context.Context, backend catalog.Backend) (json.RawMessage, error)
}

// Registry is the discovered capability catalog. Read-only after
// Discover; safe for concurrent use without further locking on the
// read path.
type Registry struct {
	catalog *catalog.Catalog
	lister  Lister

	mu    sync.RWMutex
	caps  map[string]Capability
	order []string
}

// New returns an empty registry over the given backend catalog.
func New(cat *catalog.Catalog, lister Lister) *Registry {
	return &Registry{
		catalog: cat,
		lister:  lister,
		caps:    make(map[string]Capability),
	}
}

// Discover queries every backend's tool list and caches the result.
// A backend that fails discovery is logged and skipped; Discover only
// errors when no backend yielded any capabilities, which means there is
// nothing the orchestrator could ever call.
func (r *Registry) Discover(ctx context.Context) error {
	caps := make(map[string]Capability)
	var order []string
	var failures []error

	for _, backend := range r.catalog.Backends() {
		raw, err := r.lister.ListTools(ctx, backend)
		if err != nil {
			log.Printf("[registry] discovery failed for %s: %v", backend.Name, err)
			failures = append(failures, fmt.Errorf("%s: %w", backend.Name, err))
			continue
		}

		var tools []Capability
		if err := json.Unmarshal(raw, &tools); err != nil {
			log.Printf("[registry] bad tool list from %s: %v", backend.Name, err)
			failures = append(failures, fmt.Errorf("%s: %w", backend.Name, err))
			continue
		}
		if len(tools) == 0 {
			log.Printf("[registry] no tools discovered from %s", backend.Name)
			continue
		}

		for _, tool := range tools {
			tool.Backend = backend.Name
			name := tool.QualifiedName()
			if _, dup := caps[name]; dup {
				log.Printf("[registry] duplicate capability %s ignored", name)
				continue
			}
			caps[name] = tool
			order = append(order, name)
		}
		log.Printf("[registry] discovered %d tools from %s", len(tools), backend.Name)
	}

	if len(caps) == 0 && r.catalog.Len() > 0 {
		return fmt.Errorf("discovery yielded no capabilities: %w", errors.Join(failures...))
	}

	r.mu.Lock()
	r.caps = caps
	r.order = order
	r.mu.Unlock()
	return nil
}

// Refresh re-runs discovery. It exists as a distinct operation so call
// sites read as the explicit, caller-triggered act the design demands.
func (r *Registry) Refresh(ctx context.Context) error {
	return r.Discover(ctx)
}

// Lookup resolves a qualified capability name.
func (r *Registry) Lookup(name string) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.caps[name]
	if !ok {
		return Capability{}, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return c, nil
}

// Capabilities returns all capabilities in discovery order: backends in
// catalog order, tools in the order each backend listed them.
func (r *Registry) Capabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Capability, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.caps[name])
	}
	return out
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caps)
}
