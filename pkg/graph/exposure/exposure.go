// Package exposure tracks subgraph-boundary interface sharing.
//
// When an inner node of a subgraph exposes an interface to the subgraph's
// outer boundary, the outer proxy is not a copy: both the inner interface
// and every proxy above it hold the same canonical *State record, so the
// type tags, connection ceiling, and live connection count always read as
// identical values through every handle, and a write through any handle
// is visible through all the others.
//
// The registry mediates that sharing but owns none of the interfaces. It
// stores, per exposed interface id, the shared record and the ordered
// chain of graph ids the exposure traverses (oldest → newest), so
// privatizing at any nesting level can remove the matching proxy at every
// other level without leaving orphan ports. It is session-scoped shared
// state and must be cleared between independent sessions to prevent
// cross-session id aliasing.
package exposure

import (
	"github.com/mlenz/nodeforge/pkg/errors"
)

// State is the single canonical mutable record behind an exposed
// interface. Inner interface and outer proxies all point at one State.
type State struct {
	// Types holds the interface's type tags for connection compatibility.
	Types []string
	// MaxConnections is the connection ceiling; 0 means unlimited.
	MaxConnections int
	// Count is the live connection count across all handles.
	Count int
}

// Entry is one registration: the shared record plus the chain of graph
// ids the exposure has been threaded through, oldest first.
type Entry struct {
	State  *State
	Graphs []string
}

// Registry indexes exposed interfaces by interface id. The zero value is
// not usable; call New.
type Registry struct {
	entries map[string]*Entry
}

// New creates an empty exposure registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register records id as exposed with the given shared record. The same
// id must not be registered twice; re-exposing requires deleting the old
// registration first.
func (r *Registry) Register(id string, st *State) error {
	if id == "" {
		return errors.New(errors.ErrCodeInvalidInput, "interface id must not be empty")
	}
	if st == nil {
		return errors.New(errors.ErrCodeInvalidInput, "shared state must not be nil")
	}
	if _, exists := r.entries[id]; exists {
		return errors.New(errors.ErrCodeRegistry, "interface %q is already registered", id)
	}
	r.entries[id] = &Entry{State: st}
	return nil
}

// IsRegistered reports whether id has an active registration.
func (r *Registry) IsRegistered(id string) bool {
	_, ok := r.entries[id]
	return ok
}

// Get returns the registration for id, or false if none exists.
func (r *Registry) Get(id string) (*Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// PushGraph appends graphID to the exposure chain of id. The chain stays
// ordered oldest → newest; threading through the same graph twice would
// make the chain cyclic and is rejected.
func (r *Registry) PushGraph(id, graphID string) error {
	e, ok := r.entries[id]
	if !ok {
		return errors.New(errors.ErrCodeRegistry, "interface %q is not registered", id)
	}
	for _, g := range e.Graphs {
		if g == graphID {
			return errors.New(errors.ErrCodeRegistry,
				"interface %q is already threaded through graph %q", id, graphID)
		}
	}
	e.Graphs = append(e.Graphs, graphID)
	return nil
}

// Delete removes the registration for id and returns it so the caller
// can walk Entry.Graphs and remove every proxy. Privatizing an
// unregistered interface is a contract violation.
func (r *Registry) Delete(id string) (*Entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeRegistry, "interface %q is not registered", id)
	}
	delete(r.entries, id)
	return e, nil
}

// IDs returns the registered interface ids in unspecified order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of active registrations.
func (r *Registry) Len() int { return len(r.entries) }

// Clear removes every registration. Sessions call this when a dataflow
// is closed so interface ids never alias across documents.
func (r *Registry) Clear() {
	r.entries = make(map[string]*Entry)
}
