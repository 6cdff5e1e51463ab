package model

import (
	"strings"
)

// Relation is a set of endpoints, normally two, agreeing on exactly one
// shared interface. It holds non-owning references to endpoints across
// services.
type Relation struct {
	endpoints []*Endpoint
}

// NewRelation builds a relation over the given endpoints. The planner
// guarantees the single-interface invariant before construction.
func NewRelation(endpoints []*Endpoint) *Relation {
	return &Relation{endpoints: endpoints}
}

// Kind returns the object kind.
func (r *Relation) Kind() string { return "Relation" }

// Name joins the participating endpoint identities.
func (r *Relation) Name() string {
	parts := make([]string, len(r.endpoints))
	for i, ep := range r.endpoints {
		parts[i] = ep.QualName()
	}
	return strings.Join(parts, "=")
}

// QualName returns the canonical kind:name identity.
func (r *Relation) QualName() string {
	return r.Kind() + ":" + r.Name()
}

// Endpoints returns the participating endpoints.
func (r *Relation) Endpoints() []*Endpoint {
	return r.endpoints
}

// Interface returns the single interface all endpoints share.
func (r *Relation) Interface() *Interface {
	if len(r.endpoints) == 0 {
		return nil
	}
	return r.endpoints[0].Interface()
}

// Local returns the endpoint owned by the given service, or nil.
func (r *Relation) Local(svc *Service) *Endpoint {
	for _, ep := range r.endpoints {
		if ep.Service() == svc {
			return ep
		}
	}
	return nil
}

// Remote returns the first endpoint not owned by the given service, or nil.
func (r *Relation) Remote(svc *Service) *Endpoint {
	for _, ep := range r.endpoints {
		if ep.Service() != svc {
			return ep
		}
	}
	return nil
}
