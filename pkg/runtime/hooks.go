// Package runtime implements plugin composition and the multi-phase render
// pipeline. A runtime is an ordered plugin list; its capability surface is
// assembled once at resolution time by scanning plugins for the fixed set
// of optional hooks, so lookup stays explicit while preserving the
// last-plugin-wins fallback chain.
package runtime

import (
	"context"

	"github.com/loomworks/loom/pkg/graph"
	"github.com/loomworks/loom/pkg/model"
	"github.com/loomworks/loom/pkg/output"
)

// Plugin is the minimal contract every runtime plugin satisfies. All other
// behavior is declared through the optional hook interfaces below; a plugin
// opts into exactly the phases and kinds it implements.
type Plugin interface {
	Name() string
}

// Loader is implemented by plugins needing external connections before
// rendering, e.g. a secrets backend.
type Loader interface {
	Load(ctx context.Context) error
}

// RuntimeBinder is implemented by plugins that need to reach their sibling
// plugins at render time. The runtime injects itself right after assembly.
type RuntimeBinder interface {
	BindRuntime(rt *Runtime)
}

// Initializer runs once per referenced runtime before any render phase.
type Initializer interface {
	Init(ctx context.Context, g *graph.Graph, out *output.Output) error
}

// Finalizer runs once per referenced runtime after all render phases.
type Finalizer interface {
	Fini(ctx context.Context, g *graph.Graph, out *output.Output) error
}

// ServiceRenderer renders one service during the main phase.
type ServiceRenderer interface {
	RenderService(ctx context.Context, svc *model.Service, g *graph.Graph, out *output.Output) error
}

// PreServiceRenderer renders one service during the pre phase.
type PreServiceRenderer interface {
	PreRenderService(ctx context.Context, svc *model.Service, g *graph.Graph, out *output.Output) error
}

// PostServiceRenderer renders one service during the post phase.
type PostServiceRenderer interface {
	PostRenderService(ctx context.Context, svc *model.Service, g *graph.Graph, out *output.Output) error
}

// RelationEndpointRenderer renders one relation endpoint during the main
// phase.
type RelationEndpointRenderer interface {
	RenderRelationEndpoint(ctx context.Context, rel *model.Relation, ep *model.Endpoint, g *graph.Graph, out *output.Output) error
}

// PreRelationEndpointRenderer renders one relation endpoint during the pre
// phase.
type PreRelationEndpointRenderer interface {
	PreRenderRelationEndpoint(ctx context.Context, rel *model.Relation, ep *model.Endpoint, g *graph.Graph, out *output.Output) error
}

// PostRelationEndpointRenderer renders one relation endpoint during the
// post phase.
type PostRelationEndpointRenderer interface {
	PostRenderRelationEndpoint(ctx context.Context, rel *model.Relation, ep *model.Endpoint, g *graph.Graph, out *output.Output) error
}

// AddressProvider resolves the addresses at which a runtime makes a service
// reachable. The last plugin declaring it wins.
type AddressProvider interface {
	ServiceAddrs(svc *model.Service, g model.GraphContext) ([]string, error)
}

// Exposer declares how a runtime can expose endpoints to other runtimes.
type Exposer interface {
	ExposeTags() []string
}

// Ingester declares which exposure mechanisms a runtime can consume from
// other runtimes.
type Ingester interface {
	IngestTags() []string
}
