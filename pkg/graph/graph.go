// Package graph implements the planner: it resolves a raw graph
// specification against the store of components and interfaces into a fully
// validated object graph ready for rendering.
package graph

import (
	"github.com/loomworks/loom/pkg/entity"
	"github.com/loomworks/loom/pkg/model"
)

// Graph is the planned result: services wired by relations, the source
// graph entity, the chosen default runtime, the environment and the
// interface registry. Its shape is immutable after planning; nodes hold
// back-references injected post-construction.
type Graph struct {
	name       string
	nodes      []*model.Service
	edges      []*model.Relation
	source     *entity.Entity
	runtime    model.Runtime
	env        *model.Environment
	interfaces map[string]*model.Interface
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Kind returns the object kind.
func (g *Graph) Kind() string { return "Graph" }

// QualName returns the canonical kind:name identity.
func (g *Graph) QualName() string { return "Graph:" + g.name }

// Source returns the graph specification entity this graph was planned
// from.
func (g *Graph) Source() *entity.Entity { return g.source }

// Runtime returns the graph's default runtime, which individual services
// may override.
func (g *Graph) Runtime() model.Runtime { return g.runtime }

// Environment returns the per-deployment configuration layer.
func (g *Graph) Environment() *model.Environment { return g.env }

// Services returns the planned services in declaration order.
func (g *Graph) Services() []*model.Service { return g.nodes }

// Relations returns the planned relations in declaration order.
func (g *Graph) Relations() []*model.Relation { return g.edges }

// Service resolves a planned service by name.
func (g *Graph) Service(name string) (*model.Service, bool) {
	for _, svc := range g.nodes {
		if svc.Name() == name {
			return svc, true
		}
	}
	return nil, false
}

// Interface resolves a connection contract from the registry built during
// planning.
func (g *Graph) Interface(name string) (*model.Interface, bool) {
	i, ok := g.interfaces[name]
	return i, ok
}
