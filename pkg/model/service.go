package model

import (
	"sort"

	"github.com/loomworks/loom/pkg/entity"
)

// Service is a Component bound into a Graph: it exclusively owns its
// resolved Endpoints, accumulates the Relations it participates in, and
// carries the Runtime that will render it.
type Service struct {
	GraphObj
	runtime   Runtime
	config    map[string]interface{}
	endpoints []*Endpoint
	relations []*Relation
	exposed   []string
}

// NewService binds a component entity into a graph under the given name.
// The entity already carries the graph-level spec as its top facet.
func NewService(e *entity.Entity, name string, rt Runtime, config map[string]interface{}) *Service {
	if config == nil {
		config = map[string]interface{}{}
	}
	return &Service{
		GraphObj: newGraphObj("Service", name, e),
		runtime:  rt,
		config:   config,
	}
}

// Runtime returns the runtime that renders this service.
func (s *Service) Runtime() Runtime { return s.runtime }

// Config returns the graph-level service configuration block.
func (s *Service) Config() map[string]interface{} { return s.config }

// AddEndpoint attaches a resolved endpoint. Endpoints are owned by the
// service; relations hold non-owning references to them.
func (s *Service) AddEndpoint(name string, iface *Interface, role string, data map[string]interface{}) *Endpoint {
	ep := newEndpoint(name, s, iface, role, data)
	s.endpoints = append(s.endpoints, ep)
	return ep
}

// Endpoint resolves an owned endpoint by its local name.
func (s *Service) Endpoint(name string) (*Endpoint, bool) {
	for _, ep := range s.endpoints {
		if ep.name == name {
			return ep, true
		}
	}
	return nil, false
}

// Endpoints returns the owned endpoints in declaration order.
func (s *Service) Endpoints() []*Endpoint {
	return s.endpoints
}

// AddRelation records a relation one of this service's endpoints takes part
// in.
func (s *Service) AddRelation(r *Relation) {
	s.relations = append(s.relations, r)
}

// Relations returns the relations this service participates in.
func (s *Service) Relations() []*Relation {
	return s.relations
}

// SetExposed records which endpoint names the graph spec exposes.
func (s *Service) SetExposed(names []string) {
	s.exposed = names
}

// Exposed returns the endpoint names the graph spec exposes for this
// service.
func (s *Service) Exposed() []string {
	return s.exposed
}

// ExposedEndpoints resolves the exposed endpoint names to live endpoints.
func (s *Service) ExposedEndpoints() []*Endpoint {
	var out []*Endpoint
	for _, name := range s.exposed {
		if ep, ok := s.Endpoint(name); ok {
			out = append(out, ep)
		}
	}
	return out
}

// Image returns the effective container image, honoring version-override
// facets applied during planning.
func (s *Service) Image() string {
	return s.entity.GetString("image")
}

// Version returns the effective component version.
func (s *Service) Version() string {
	return stringOf(s.entity.GetDefault("version", ""))
}

// Ports aggregates the distinct ports of all owned endpoints, sorted by
// port number for stable output.
func (s *Service) Ports() []Port {
	seen := make(map[int]bool)
	var out []Port
	for _, ep := range s.endpoints {
		for _, p := range ep.Ports() {
			if seen[p.Port] {
				continue
			}
			seen[p.Port] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Port < out[b].Port })
	return out
}

// FullConfig merges the component-declared config, the graph-level service
// config and the environment-level service override, last write wins.
func (s *Service) FullConfig() map[string]interface{} {
	base, _ := s.entity.GetDefault("config", map[string]interface{}{}).(map[string]interface{})
	merged := entity.Merge(base, s.config, nil)
	if s.graph != nil {
		if env := s.graph.Environment(); env != nil {
			merged = entity.Merge(merged, env.ServiceConfig(s.name), nil)
		}
	}
	return merged.(map[string]interface{})
}

// FullRelations summarizes this service's relations from its own point of
// view: for each relation, the interface, the local role and the remote
// endpoint's resolved data.
func (s *Service) FullRelations() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(s.relations))
	for _, rel := range s.relations {
		local := rel.Local(s)
		remote := rel.Remote(s)
		summary := map[string]interface{}{
			"name":      rel.Name(),
			"interface": rel.Interface().Name(),
		}
		if local != nil {
			summary["role"] = local.Role()
		}
		if remote != nil {
			summary["remote_service"] = remote.Service().Name()
			summary["data"] = remote.Data()
		}
		out = append(out, summary)
	}
	return out
}
