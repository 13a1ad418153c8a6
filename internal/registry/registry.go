// Package registry provides the domain registry: named, independent knowledge
// partitions, each owning a vector index, chunk storage, and keyword index.
package registry

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/rblake2320/multi-agent-rag/internal/keyword"
	"github.com/rblake2320/multi-agent-rag/internal/models"
	"github.com/rblake2320/multi-agent-rag/internal/storage"
	"github.com/rblake2320/multi-agent-rag/internal/vector"
)

// domainNameRe is the allowed identifier pattern for domain names.
var domainNameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{1,64}$`)

// Domain is one knowledge partition. The ingestion pipeline is the only
// writer; writeMu serializes writers per domain while independent domains
// ingest concurrently.
type Domain struct {
	Name        string
	Description string
	Index       vector.Index
	Store       storage.Storage
	Keywords    keyword.Index

	writeMu sync.Mutex
}

// Lock acquires the domain's writer lock.
func (d *Domain) Lock() { d.writeMu.Lock() }

// Unlock releases the domain's writer lock.
func (d *Domain) Unlock() { d.writeMu.Unlock() }

// Close closes the domain's index, storage, and keyword index, returning the
// first error encountered.
func (d *Domain) Close() error {
	var firstErr error
	if d.Index != nil {
		if err := d.Index.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.Keywords != nil {
		if err := d.Keywords.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ValidateName checks that name matches the allowed identifier pattern
// (non-empty, alphanumeric/underscore, at most 64 characters).
func ValidateName(name string) error {
	if !domainNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q must be non-empty alphanumeric/underscore, at most 64 characters", models.ErrInvalidDomain, name)
	}
	return nil
}

// Registry maps domain names to their handles. It is populated at startup
// and read-only afterwards; it is never mutated by background scans.
type Registry struct {
	mu      sync.RWMutex
	domains map[string]*Domain
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{domains: make(map[string]*Domain)}
}

// Register adds a domain. The name must pass ValidateName and be unused.
func (r *Registry) Register(d *Domain) error {
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.domains[d.Name]; ok {
		return fmt.Errorf("%w: %q already registered", models.ErrInvalidDomain, d.Name)
	}
	r.domains[d.Name] = d
	return nil
}

// Get returns the domain by name, or models.ErrUnknownDomain.
func (r *Registry) Get(name string) (*Domain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.domains[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownDomain, name)
	}
	return d, nil
}

// Exists reports whether name is a registered domain.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.domains[name]
	return ok
}

// Names returns all registered domain names in lexicographic order. Routing
// iterates this order so results never depend on map iteration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.domains))
	for name := range r.domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered domains.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.domains)
}

// Close closes every domain, returning the first error encountered.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var firstErr error
	for _, d := range r.domains {
		if err := d.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
