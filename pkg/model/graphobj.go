package model

import (
	"github.com/loomworks/loom/pkg/entity"
)

// GraphContext is the read-only view of the containing graph that graph
// objects use to resolve their siblings. The concrete graph type injects
// itself into every node after construction, never before.
type GraphContext interface {
	// Name is the graph name, used for namespacing rendered artifacts.
	Name() string

	// Environment returns the per-deployment configuration layer.
	Environment() *Environment

	// Interface resolves a connection contract by name.
	Interface(name string) (*Interface, bool)

	// Service resolves a planned service by name.
	Service(name string) (*Service, bool)
}

// Runtime is the capability surface a service's runtime exposes to graph
// objects and to plugins of other runtimes. The concrete implementation
// lives in the runtime package; this interface keeps the model free of the
// plugin machinery.
type Runtime interface {
	Kind() string
	Name() string
	QualName() string

	// ServiceAddrs returns the addresses at which the runtime makes a
	// service reachable.
	ServiceAddrs(svc *Service, g GraphContext) ([]string, error)

	// ExposeTags declares how this runtime can expose endpoints to other
	// runtimes.
	ExposeTags() []string

	// IngestTags declares which exposure mechanisms this runtime can
	// consume from other runtimes.
	IngestTags() []string
}

// TagsIntersect reports whether two tag sets share at least one tag.
func TagsIntersect(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// GraphObj is the shared base of every typed graph object: a kinded, named
// view over an Entity plus a non-owning back-reference to the containing
// graph.
type GraphObj struct {
	kind   string
	name   string
	entity *entity.Entity
	graph  GraphContext
}

func newGraphObj(kind, name string, e *entity.Entity) GraphObj {
	return GraphObj{kind: kind, name: name, entity: e}
}

// Kind returns the object kind.
func (o *GraphObj) Kind() string { return o.kind }

// Name returns the object name.
func (o *GraphObj) Name() string { return o.name }

// QualName returns the canonical kind:name identity.
func (o *GraphObj) QualName() string { return o.kind + ":" + o.name }

// Entity returns the underlying layered document.
func (o *GraphObj) Entity() *entity.Entity { return o.entity }

// Graph returns the containing graph, nil until planning injects it.
func (o *GraphObj) Graph() GraphContext { return o.graph }

// SetGraph injects the containing graph. The reference is set exactly once
// during planning; later calls are ignored.
func (o *GraphObj) SetGraph(g GraphContext) {
	if o.graph == nil {
		o.graph = g
	}
}

// AddFacet appends an overlay to the underlying entity.
func (o *GraphObj) AddFacet(data map[string]interface{}, provenance string) {
	o.entity.AddFacet(data, provenance)
}

// Get resolves a dotted path against the entity view, with a default.
func (o *GraphObj) Get(path string, def interface{}) interface{} {
	return o.entity.GetDefault(path, def)
}

// Validate applies the entity schema; violations surface as validation
// errors carrying the object identity.
func (o *GraphObj) Validate() error {
	if err := o.entity.Validate(); err != nil {
		return NewValidationError("entity schema validation failed", err).
			WithObject(o.QualName())
	}
	return nil
}
