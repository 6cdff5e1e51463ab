package runtime

import (
	"context"
	"strings"

	"github.com/loomworks/loom/pkg/graph"
	"github.com/loomworks/loom/pkg/model"
	"github.com/loomworks/loom/pkg/output"
)

// KindRuntimeImpl is the store kind under which resolved runtimes are
// registered.
const KindRuntimeImpl = "RuntimeImpl"

// serviceHook and relationHook carry one plugin's registration for a single
// phase, keeping the plugin name attached for logging.
type serviceHook struct {
	plugin string
	fn     func(ctx context.Context, svc *model.Service, g *graph.Graph, out *output.Output) error
}

type relationHook struct {
	plugin string
	fn     func(ctx context.Context, rel *model.Relation, ep *model.Endpoint, g *graph.Graph, out *output.Output) error
}

type lifecycleHook struct {
	plugin string
	fn     func(ctx context.Context, g *graph.Graph, out *output.Output) error
}

// capabilities is the explicit phase-and-kind dispatch table built once per
// runtime. Ordered slices preserve plugin declaration order; the scalar
// capabilities keep the last plugin that declared them.
type capabilities struct {
	init []lifecycleHook
	fini []lifecycleHook

	services  map[Phase][]serviceHook
	relations map[Phase][]relationHook

	addrs  AddressProvider
	expose []string
	ingest []string
}

// Phase identifies one pass of the render pipeline.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhaseMain Phase = "main"
	PhasePost Phase = "post"
)

// Phases lists the render passes in execution order.
var Phases = []Phase{PhasePre, PhaseMain, PhasePost}

// Runtime is an ordered composition of plugins. It is registered in the
// entity store once resolved and satisfies model.Runtime so services can
// hold a reference without depending on this package.
type Runtime struct {
	name    string
	plugins []Plugin
	caps    capabilities
}

// New assembles a runtime from its ordered plugin list and builds the
// capability table. Plugins implementing RuntimeBinder get the finished
// runtime injected before New returns.
func New(name string, plugins []Plugin) *Runtime {
	rt := &Runtime{
		name:    strings.ToLower(name),
		plugins: plugins,
		caps: capabilities{
			services:  make(map[Phase][]serviceHook),
			relations: make(map[Phase][]relationHook),
		},
	}
	for _, p := range plugins {
		rt.register(p)
	}
	for _, p := range plugins {
		if b, ok := p.(RuntimeBinder); ok {
			b.BindRuntime(rt)
		}
	}
	return rt
}

// register scans a single plugin for every optional hook and records it in
// the capability table.
func (r *Runtime) register(p Plugin) {
	name := p.Name()

	if h, ok := p.(Initializer); ok {
		r.caps.init = append(r.caps.init, lifecycleHook{name, h.Init})
	}
	if h, ok := p.(Finalizer); ok {
		r.caps.fini = append(r.caps.fini, lifecycleHook{name, h.Fini})
	}

	if h, ok := p.(PreServiceRenderer); ok {
		r.caps.services[PhasePre] = append(r.caps.services[PhasePre], serviceHook{name, h.PreRenderService})
	}
	if h, ok := p.(ServiceRenderer); ok {
		r.caps.services[PhaseMain] = append(r.caps.services[PhaseMain], serviceHook{name, h.RenderService})
	}
	if h, ok := p.(PostServiceRenderer); ok {
		r.caps.services[PhasePost] = append(r.caps.services[PhasePost], serviceHook{name, h.PostRenderService})
	}

	if h, ok := p.(PreRelationEndpointRenderer); ok {
		r.caps.relations[PhasePre] = append(r.caps.relations[PhasePre], relationHook{name, h.PreRenderRelationEndpoint})
	}
	if h, ok := p.(RelationEndpointRenderer); ok {
		r.caps.relations[PhaseMain] = append(r.caps.relations[PhaseMain], relationHook{name, h.RenderRelationEndpoint})
	}
	if h, ok := p.(PostRelationEndpointRenderer); ok {
		r.caps.relations[PhasePost] = append(r.caps.relations[PhasePost], relationHook{name, h.PostRenderRelationEndpoint})
	}

	// Scalar capabilities: later plugins shadow earlier ones.
	if h, ok := p.(AddressProvider); ok {
		r.caps.addrs = h
	}
	if h, ok := p.(Exposer); ok {
		r.caps.expose = h.ExposeTags()
	}
	if h, ok := p.(Ingester); ok {
		r.caps.ingest = h.IngestTags()
	}
}

// Kind implements store.Object.
func (r *Runtime) Kind() string { return KindRuntimeImpl }

// Name implements store.Object.
func (r *Runtime) Name() string { return r.name }

// QualName implements store.Object.
func (r *Runtime) QualName() string { return KindRuntimeImpl + ":" + r.name }

// Plugins returns the plugin list in declaration order.
func (r *Runtime) Plugins() []Plugin {
	out := make([]Plugin, len(r.plugins))
	copy(out, r.plugins)
	return out
}

// Plugin returns the named plugin, matching case-insensitively.
func (r *Runtime) Plugin(name string) (Plugin, bool) {
	for _, p := range r.plugins {
		if strings.EqualFold(p.Name(), name) {
			return p, true
		}
	}
	return nil, false
}

// ServiceAddrs implements model.Runtime by delegating to the winning
// AddressProvider plugin.
func (r *Runtime) ServiceAddrs(svc *model.Service, g model.GraphContext) ([]string, error) {
	if r.caps.addrs == nil {
		return nil, model.NewUnsupportedCapabilityError("runtime cannot resolve service addresses", nil).
			WithObject(r.QualName())
	}
	return r.caps.addrs.ServiceAddrs(svc, g)
}

// ExposeTags implements model.Runtime.
func (r *Runtime) ExposeTags() []string { return r.caps.expose }

// IngestTags implements model.Runtime.
func (r *Runtime) IngestTags() []string { return r.caps.ingest }
