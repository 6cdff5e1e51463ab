package graph

import (
	"fmt"

	"github.com/loomworks/loom/pkg/entity"
	"github.com/loomworks/loom/pkg/interpolate"
	"github.com/loomworks/loom/pkg/model"
)

// finalizeService runs the mandatory per-node finalization pass: endpoint
// config population followed by entity interpolation. Endpoint data
// precedence, least specific first:
//
//	interface role defaults < component endpoint data < environment service override
//
// The planner seeds the first two at endpoint construction; the
// environment layer lands here, then everything is interpolated against
// the layered context.
func finalizeService(svc *model.Service, g *Graph) error {
	envOverrides := map[string]interface{}{}
	if env := g.Environment(); env != nil {
		if eps, ok := entity.Lookup(env.ServiceConfig(svc.Name()), "endpoints"); ok {
			if m, ok := eps.(map[string]interface{}); ok {
				envOverrides = m
			}
		}
	}

	for _, ep := range svc.Endpoints() {
		if override, ok := envOverrides[ep.Name()].(map[string]interface{}); ok {
			ep.MergeData(override)
		}
	}

	ctx := serviceContext(svc, g)

	for _, ep := range svc.Endpoints() {
		data, err := interpolate.Interpolate(ep.Data(), ctx, interpolate.Options{})
		if err != nil {
			return wrapInterpolation(err, svc, "endpoint "+ep.Name())
		}
		ep.SetData(data.(map[string]interface{}))
	}

	cfg := svc.Entity().GetDefault("config", map[string]interface{}{})
	resolved, err := interpolate.Interpolate(cfg, ctx, interpolate.Options{})
	if err != nil {
		return wrapInterpolation(err, svc, "config")
	}
	svc.AddFacet(map[string]interface{}{"config": resolved}, entity.ProvenanceInterpolated)
	return nil
}

// serviceContext assembles the layered interpolation context for one
// service: service-local values first, then the environment.
func serviceContext(svc *model.Service, g *Graph) map[string]interface{} {
	envConfig := map[string]interface{}{}
	if env := g.Environment(); env != nil {
		envConfig = env.Config()
	}
	layers := interpolate.NewLayers(
		map[string]interface{}{
			"name": svc.Name(),
			"service": map[string]interface{}{
				"name":    svc.Name(),
				"image":   svc.Image(),
				"version": svc.Version(),
			},
			"config":    svc.FullConfig(),
			"relations": relationContext(svc),
		},
		map[string]interface{}{
			"graph":       map[string]interface{}{"name": g.Name()},
			"environment": map[string]interface{}{"config": envConfig},
		},
	)
	return layers.Flatten()
}

func relationContext(svc *model.Service) map[string]interface{} {
	out := make(map[string]interface{})
	for _, rel := range svc.Relations() {
		remote := rel.Remote(svc)
		if remote == nil {
			continue
		}
		out[rel.Interface().Name()] = map[string]interface{}{
			"service": remote.Service().Name(),
			"data":    remote.Data(),
		}
	}
	return out
}

func wrapInterpolation(err error, svc *model.Service, where string) error {
	if me, ok := err.(*model.ModelError); ok {
		return me.WithObject(svc.QualName())
	}
	return model.NewMissingContextError(
		fmt.Sprintf("interpolation failed for %s of service %s", where, svc.Name()), err).
		WithObject(svc.QualName())
}

// validateService runs the mandatory per-node validation pass: entity
// schema, required environment variables and interface provides contracts.
func validateService(svc *model.Service) error {
	if err := svc.Validate(); err != nil {
		return err
	}

	if err := validateRequiredEnvironment(svc); err != nil {
		return err
	}

	for _, ep := range svc.Endpoints() {
		role, ok := ep.Interface().Role(ep.Role())
		if !ok {
			continue
		}
		for key, declared := range role.Provides {
			v, present := ep.Data()[key]
			if !present {
				return model.NewValidationError(
					fmt.Sprintf("endpoint %s must provide %q per interface %s role %s", ep.Name(), key, ep.Interface().Name(), role.Name), nil).
					WithCode(model.ErrCodeContract).WithObject(svc.QualName()).WithPath(key)
			}
			if !typeSatisfies(declared, v) {
				return model.NewValidationError(
					fmt.Sprintf("endpoint %s provides %q as %s, interface %s declares %s", ep.Name(), key, entity.TypeOf(v), ep.Interface().Name(), declared), nil).
					WithCode(model.ErrCodeContract).WithObject(svc.QualName()).WithPath(key)
			}
		}
	}
	return nil
}

func validateRequiredEnvironment(svc *model.Service) error {
	raw, _ := svc.FullConfig()["environment"].([]interface{})
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		required, _ := m["required"].(bool)
		if !required {
			continue
		}
		name, _ := m["name"].(string)
		if v, ok := m["value"]; !ok || v == nil || v == "" {
			return model.NewValidationError(
				fmt.Sprintf("required environment variable %q has no value for service %s", name, svc.Name()), nil).
				WithObject(svc.QualName()).WithPath("config.environment." + name)
		}
	}
	return nil
}

func typeSatisfies(declared string, v interface{}) bool {
	actual := entity.TypeOf(v)
	if declared == actual {
		return true
	}
	return declared == "number" && actual == "integer"
}
