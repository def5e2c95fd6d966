package provisioning

import (
	"sync"

	"github.com/imamik/proxmate/internal/platform/proxmox"
)

// Registry caches the last known state of each machine and counts finished
// provisioners. Each machine has its own lock, so a read-check-then-fetch on
// one machine never races a mutation of the same machine while different
// machines proceed in parallel.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	mu       sync.Mutex
	state    proxmox.State
	known    bool
	dirty    bool
	finished int
	fired    bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

func (r *Registry) entry(name string) *registryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		e = &registryEntry{}
		r.entries[name] = e
	}
	return e
}

// Resolve returns the cached state of name, calling fetch when nothing is
// cached or the entry was marked dirty. A failed fetch leaves the entry as it was.
func (r *Registry) Resolve(name string, fetch func() (proxmox.State, error)) (proxmox.State, error) {
	e := r.entry(name)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.known && !e.dirty {
		return e.state, nil
	}
	state, err := fetch()
	if err != nil {
		return "", err
	}
	e.state = state
	e.known = true
	e.dirty = false
	return state, nil
}

// MarkDirty forces the next Resolve of name to fetch. Every step that changes
// a machine on the platform calls it.
func (r *Registry) MarkDirty(name string) {
	e := r.entry(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty = true
}

// Cached returns the last known state of name without fetching.
func (r *Registry) Cached(name string) (proxmox.State, bool) {
	e := r.entry(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.known
}

// Dirty reports whether name is marked for refetch.
func (r *Registry) Dirty(name string) bool {
	e := r.entry(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// FinishProvisioner records that one provisioner of name completed. It
// returns true exactly once: on the call that brings the count to expected.
func (r *Registry) FinishProvisioner(name string, expected int) bool {
	e := r.entry(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished++
	if e.fired || e.finished < expected {
		return false
	}
	e.fired = true
	return true
}
