// Package store implements the in-memory registry of all loaded and derived
// objects. Objects are keyed by kind:name and served through pluggable
// indexes; the canonical index covers qual-name, kind+name and name+kind.
package store

import (
	"github.com/google/uuid"
)

// Object is anything the store can hold: entities and the graph objects the
// planner synthesizes all satisfy it.
type Object interface {
	Kind() string
	Name() string
	QualName() string
}

// Indexer maintains one or more lookup structures over stored objects.
type Indexer interface {
	// Index incorporates an object into the index.
	Index(obj Object)

	// Remove drops an object from the index.
	Remove(obj Object)
}

// Store is the registry of model objects. Objects are only ever mutated by
// replacement or (for entities) facet addition; the store itself tracks
// identity and indexes. Iteration order is insertion order, which keeps
// downstream rendering deterministic.
type Store struct {
	state    map[string]Object
	order    []string
	indexers map[uuid.UUID]Indexer
	primary  *AttributeIndexer
}

// New creates a store with the canonical attribute indexer installed.
func New() *Store {
	s := &Store{
		state:    make(map[string]Object),
		indexers: make(map[uuid.UUID]Indexer),
		primary:  NewAttributeIndexer(),
	}
	s.AddIndexer(s.primary)
	return s
}

// AddIndexer installs an additional indexer and returns a handle for later
// removal. Already-stored objects are indexed immediately.
func (s *Store) AddIndexer(ix Indexer) uuid.UUID {
	id := uuid.New()
	s.indexers[id] = ix
	for _, key := range s.order {
		ix.Index(s.state[key])
	}
	return id
}

// RemoveIndexer uninstalls an indexer by its handle.
func (s *Store) RemoveIndexer(id uuid.UUID) {
	delete(s.indexers, id)
}

// Add registers an object under its kind:name identity. Adding an object
// with an existing identity replaces the mapping slot; entity callers merge
// by facet attachment before re-adding.
func (s *Store) Add(obj Object) {
	key := obj.QualName()
	if _, exists := s.state[key]; !exists {
		s.order = append(s.order, key)
	}
	s.state[key] = obj
	for _, ix := range s.indexers {
		ix.Index(obj)
	}
}

// Delete removes an object and drops it from all indexes.
func (s *Store) Delete(obj Object) {
	key := obj.QualName()
	if _, exists := s.state[key]; !exists {
		return
	}
	delete(s.state, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	for _, ix := range s.indexers {
		ix.Remove(obj)
	}
}

// Get looks up an object by kind and name.
func (s *Store) Get(kind, name string) (Object, bool) {
	obj, ok := s.state[kind+":"+name]
	return obj, ok
}

// GetQual looks up an object by its kind:name identity.
func (s *Store) GetQual(qualName string) (Object, bool) {
	obj, ok := s.state[qualName]
	return obj, ok
}

// Contains reports whether an object with the given identity is stored.
func (s *Store) Contains(qualName string) bool {
	_, ok := s.state[qualName]
	return ok
}

// Kind returns all stored objects of one kind in insertion order.
func (s *Store) Kind(kind string) []Object {
	var out []Object
	for _, key := range s.order {
		obj := s.state[key]
		if obj.Kind() == kind {
			out = append(out, obj)
		}
	}
	return out
}

// Objects returns every stored object in insertion order.
func (s *Store) Objects() []Object {
	out := make([]Object, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.state[key])
	}
	return out
}

// Len reports the number of stored objects.
func (s *Store) Len() int {
	return len(s.order)
}
