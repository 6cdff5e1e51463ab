package runtime

import (
	"context"

	"github.com/loomworks/loom/pkg/graph"
	"github.com/loomworks/loom/pkg/model"
	"github.com/loomworks/loom/pkg/output"
	"github.com/loomworks/loom/pkg/telemetry"
)

// RenderGraph drives the full render pipeline over a planned graph:
//
//	init (once per runtime, graph order)
//	pre, main, post: services first, then relation endpoints
//	fini (once per runtime, graph order)
//
// Within a phase services run in declaration order and every plugin hook of
// a runtime runs in plugin declaration order. Any hook error aborts the
// render; the accumulated output is discarded by the caller, never
// partially written.
func RenderGraph(ctx context.Context, g *graph.Graph, out *output.Output) error {
	log := telemetry.FromContext(ctx).NewComponentLogger("render").
		WithField("graph", g.Name())

	runtimes := graphRuntimes(g)
	if len(runtimes) == 0 {
		return model.NewConfigurationError("graph references no runtimes", nil).
			WithObject(g.QualName())
	}

	for _, rt := range runtimes {
		for _, h := range rt.caps.init {
			if err := h.fn(ctx, g, out); err != nil {
				return hookErr("init", rt, h.plugin, err)
			}
		}
	}

	for _, phase := range Phases {
		if err := renderPhase(ctx, log, g, out, phase); err != nil {
			return err
		}
	}

	for _, rt := range runtimes {
		for _, h := range rt.caps.fini {
			if err := h.fn(ctx, g, out); err != nil {
				return hookErr("fini", rt, h.plugin, err)
			}
		}
	}

	log.Infof("graph rendered: %d services, %d relations, %d records",
		len(g.Services()), len(g.Relations()), out.Len())
	return nil
}

func renderPhase(ctx context.Context, log *telemetry.Logger, g *graph.Graph, out *output.Output, phase Phase) error {
	for _, svc := range g.Services() {
		rt, ok := svc.Runtime().(*Runtime)
		if !ok {
			return model.NewConfigurationError("service has no resolved runtime", nil).
				WithObject(svc.QualName())
		}
		for _, h := range rt.caps.services[phase] {
			log.Debugf("phase %s: plugin %s renders service %s", phase, h.plugin, svc.Name())
			if err := h.fn(ctx, svc, g, out); err != nil {
				return hookErr(string(phase), rt, h.plugin, err).
					WithDetail("service", svc.Name())
			}
		}
	}

	for _, rel := range g.Relations() {
		for _, ep := range rel.Endpoints() {
			rt, ok := ep.Service().Runtime().(*Runtime)
			if !ok {
				return model.NewConfigurationError("endpoint service has no resolved runtime", nil).
					WithObject(ep.QualName())
			}
			for _, h := range rt.caps.relations[phase] {
				log.Debugf("phase %s: plugin %s renders endpoint %s", phase, h.plugin, ep.QualName())
				if err := h.fn(ctx, rel, ep, g, out); err != nil {
					return hookErr(string(phase), rt, h.plugin, err).
						WithDetail("relation", rel.Name())
				}
			}
		}
	}
	return nil
}

// graphRuntimes collects the distinct runtimes referenced by the graph, in
// first-reference order.
func graphRuntimes(g *graph.Graph) []*Runtime {
	seen := map[string]bool{}
	var out []*Runtime
	for _, svc := range g.Services() {
		rt, ok := svc.Runtime().(*Runtime)
		if !ok || seen[rt.Name()] {
			continue
		}
		seen[rt.Name()] = true
		out = append(out, rt)
	}
	return out
}

func hookErr(phase string, rt *Runtime, plugin string, err error) *model.ModelError {
	var merr *model.ModelError
	if e, ok := err.(*model.ModelError); ok {
		merr = e
	} else {
		merr = model.NewConfigurationError("render hook failed", err)
	}
	return merr.
		WithDetail("phase", phase).
		WithDetail("runtime", rt.Name()).
		WithDetail("plugin", plugin)
}
