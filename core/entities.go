package core

import (
	"context"
	"sync"
)

// Entities is the framework entry point: it owns the store and tracks the
// entity refs that have been made, in registration order.
type Entities struct {
	store Store

	mu       sync.RWMutex
	refs     map[string]EntityRef
	refOrder []string // Track registration order for consistent display
}

// New creates a new Entities instance backed by the given store
func New(store Store) *Entities {
	return &Entities{
		store:    store,
		refs:     make(map[string]EntityRef),
		refOrder: make([]string, 0),
	}
}

// Make returns a factory bound to the base/name table and registers the ref
func (e *Entities) Make(base, name string) *Factory {
	ref := NewEntityRef(base, name)

	e.mu.Lock()
	if _, exists := e.refs[ref.String()]; !exists {
		e.refs[ref.String()] = ref
		e.refOrder = append(e.refOrder, ref.String())
	}
	e.mu.Unlock()

	return &Factory{store: e.store, ref: ref}
}

// Refs returns all registered refs in registration order
func (e *Entities) Refs() []EntityRef {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ordered := make([]EntityRef, 0, len(e.refOrder))
	for _, key := range e.refOrder {
		ordered = append(ordered, e.refs[key])
	}
	return ordered
}

// Ref looks up a registered ref
func (e *Entities) Ref(base, name string) (EntityRef, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ref, ok := e.refs[NewEntityRef(base, name).String()]
	return ref, ok
}

// Store returns the underlying store
func (e *Entities) Store() Store {
	return e.store
}

// Factory performs entity operations on one table
type Factory struct {
	store Store
	ref   EntityRef
}

// Ref returns the table the factory is bound to
func (f *Factory) Ref() EntityRef {
	return f.ref
}

// Load loads an entity by id. An empty id never reaches the store.
// Returns nil when the entity is absent.
func (f *Factory) Load(ctx context.Context, id string) (Entity, error) {
	if id == "" {
		return nil, nil
	}
	return f.store.Load(ctx, f.ref, id)
}

// Save inserts or updates an entity and returns the stored version
func (f *Factory) Save(ctx context.Context, entity Entity) (Entity, error) {
	if entity == nil {
		return nil, BadArguments("save", f.ref.TableName(), "entity cannot be nil")
	}
	return f.store.Save(ctx, f.ref, entity)
}

// List returns the entities matching the query; a nil query matches all rows
func (f *Factory) List(ctx context.Context, query *Query) ([]Entity, error) {
	if query == nil {
		query = NewQuery()
	}
	return f.store.List(ctx, f.ref, query)
}

// Remove removes an entity by id and reports whether a row was removed
func (f *Factory) Remove(ctx context.Context, id string) (bool, error) {
	return f.store.Remove(ctx, f.ref, id)
}

// RemoveAll removes every entity matching the query and returns the count
func (f *Factory) RemoveAll(ctx context.Context, query *Query) (int64, error) {
	if query == nil {
		query = NewQuery()
	}
	return f.store.RemoveWhere(ctx, f.ref, query)
}

// Describe returns the table schema
func (f *Factory) Describe(ctx context.Context) (*Schema, error) {
	return f.store.Describe(ctx, f.ref)
}
