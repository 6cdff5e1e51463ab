// Package entity implements the layered, provenance-tracked document model
// underlying every typed object. An Entity is an ordered stack of immutable
// facets; the materialized view is recomputed from the stack on each read,
// so every prior state stays reconstructible.
package entity

import (
	"fmt"
	"reflect"
	"strings"
)

// Well-known synthetic provenance tags for facets that do not originate
// from a file.
const (
	ProvenanceDefaults     = "<defaults>"
	ProvenanceGraph        = "<graph>"
	ProvenanceInterpolated = "<interpolated>"
	ProvenanceOverride     = "<override>"
)

// Facet is one overlay layer of an Entity: a partial document plus a
// reference to where the data came from (file path, URI or synthetic tag).
type Facet struct {
	Data       map[string]interface{}
	Provenance string
}

// Entity is a named and kinded document assembled from facets. Facets are
// never mutated, only appended; readers always see the schema-directed
// merge of the whole stack.
type Entity struct {
	schema *Schema
	facets []Facet
}

// New creates an empty Entity. When a schema is given its defaults form the
// base facet.
func New(schema *Schema) *Entity {
	e := &Entity{schema: schema}
	if schema != nil {
		e.facets = append(e.facets, Facet{
			Data:       schema.Defaults(),
			Provenance: ProvenanceDefaults,
		})
	}
	return e
}

// FromData creates an Entity holding a single facet. Schema defaults, if
// any, are merged underneath the given data into the base facet.
func FromData(data map[string]interface{}, schema *Schema, provenance string) *Entity {
	e := &Entity{schema: schema}
	var base map[string]interface{}
	if schema != nil {
		base = Merge(schema.Defaults(), data, schema).(map[string]interface{})
	} else {
		base = deepCopy(data).(map[string]interface{})
	}
	e.facets = append(e.facets, Facet{Data: base, Provenance: provenance})
	return e
}

// AddFacet pushes a new overlay on top of the stack. The data is copied so
// later caller mutations cannot leak into the entity.
func (e *Entity) AddFacet(data map[string]interface{}, provenance string) {
	e.facets = append(e.facets, Facet{
		Data:       deepCopy(data).(map[string]interface{}),
		Provenance: provenance,
	})
}

// Facets returns the facet stack in reverse insertion order, newest first,
// each paired with its original provenance.
func (e *Entity) Facets() []Facet {
	out := make([]Facet, len(e.facets))
	for i, f := range e.facets {
		out[len(e.facets)-1-i] = f
	}
	return out
}

// View materializes the document by merging the facet stack oldest to
// newest under the entity schema.
func (e *Entity) View() map[string]interface{} {
	var view interface{} = map[string]interface{}{}
	for _, f := range e.facets {
		view = Merge(view, f.Data, e.schema)
	}
	return view.(map[string]interface{})
}

// Schema returns the schema attached to this entity, which may be nil.
func (e *Entity) Schema() *Schema {
	return e.schema
}

// ErrKeyNotFound reports a dotted path that does not resolve against the
// materialized view.
type ErrKeyNotFound struct {
	Path string
}

// Error implements the error interface.
func (e *ErrKeyNotFound) Error() string {
	return fmt.Sprintf("key not found: %s", e.Path)
}

// Get resolves a dotted path against the materialized view.
func (e *Entity) Get(path string) (interface{}, error) {
	v, ok := Lookup(e.View(), path)
	if !ok {
		return nil, &ErrKeyNotFound{Path: path}
	}
	return v, nil
}

// GetDefault resolves a dotted path, returning def when the path is absent.
func (e *Entity) GetDefault(path string, def interface{}) interface{} {
	v, ok := Lookup(e.View(), path)
	if !ok {
		return def
	}
	return v
}

// GetString resolves a dotted path to a string, returning "" when absent or
// not a string.
func (e *Entity) GetString(path string) string {
	s, _ := e.GetDefault(path, "").(string)
	return s
}

// Kind returns the entity kind.
func (e *Entity) Kind() string {
	return e.GetString("kind")
}

// Name returns the entity name.
func (e *Entity) Name() string {
	return e.GetString("name")
}

// QualName returns the canonical kind:name identity.
func (e *Entity) QualName() string {
	return e.Kind() + ":" + e.Name()
}

// Validate applies the entity's schema to the materialized view. Entities
// without a schema always validate.
func (e *Entity) Validate() error {
	if e.schema == nil {
		return nil
	}
	return e.schema.Validate(e.View())
}

// Equal reports whether two entities materialize to the same view.
func (e *Entity) Equal(other *Entity) bool {
	if other == nil {
		return false
	}
	return reflect.DeepEqual(e.View(), other.View())
}

// String renders the entity identity and provenance chain for debugging.
func (e *Entity) String() string {
	refs := make([]string, len(e.facets))
	for i, f := range e.facets {
		refs[i] = f.Provenance
	}
	return fmt.Sprintf("<Entity %s @[%s]>", e.QualName(), strings.Join(refs, ", "))
}

// Lookup resolves a dotted path against nested maps. It reports false when
// any path segment is absent or a non-map is traversed.
func Lookup(obj interface{}, path string) (interface{}, bool) {
	if path == "" {
		return obj, true
	}
	current := obj
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// SetPath writes value at a dotted path inside obj, creating intermediate
// maps as needed, and returns obj.
func SetPath(obj map[string]interface{}, path string, value interface{}) map[string]interface{} {
	parts := strings.Split(path, ".")
	current := obj
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
	return obj
}
