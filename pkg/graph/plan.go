package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/loomworks/loom/pkg/entity"
	"github.com/loomworks/loom/pkg/model"
	"github.com/loomworks/loom/pkg/store"
	"github.com/loomworks/loom/pkg/telemetry"
)

// RuntimeResolver turns a runtime name into a live runtime. The concrete
// resolver lives in the runtime package and memoizes by name.
type RuntimeResolver interface {
	Resolve(ctx context.Context, name string) (model.Runtime, error)
}

// VersionOverride retargets the image of a Component or Service after the
// graph spec has been applied. Target is a qualified kind:name reference.
type VersionOverride struct {
	Target string `validate:"required"`
	Image  string `validate:"required"`
}

// Options tunes a planning run.
type Options struct {
	// Runtime names the default runtime used when neither a service spec
	// nor the graph spec chooses one.
	Runtime string

	// Overrides are version-override documents applied after service
	// construction.
	Overrides []VersionOverride
}

// Plan resolves a graph entity against the store into a validated object
// graph. Planning is all-or-nothing: any unresolved reference, malformed
// relation or failed contract aborts with a typed error and no partial
// graph is returned.
func Plan(ctx context.Context, graphEntity *entity.Entity, st *store.Store, env *model.Environment, resolver RuntimeResolver, opts Options) (*Graph, error) {
	log := telemetry.FromContext(ctx).NewComponentLogger("planner")

	g := &Graph{
		name:       graphEntity.Name(),
		source:     graphEntity,
		env:        env,
		interfaces: buildInterfaceRegistry(st),
	}

	defaultRuntime := graphEntity.GetString("runtime")
	if defaultRuntime == "" {
		defaultRuntime = opts.Runtime
	}
	if defaultRuntime != "" {
		rt, err := resolver.Resolve(ctx, defaultRuntime)
		if err != nil {
			return nil, err
		}
		g.runtime = rt
	}

	services := make(map[string]*model.Service)
	rawServices, _ := graphEntity.GetDefault("services", []interface{}{}).([]interface{})
	for _, item := range rawServices {
		spec, ok := item.(map[string]interface{})
		if !ok {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("malformed service spec %v in graph %s", item, g.name), nil).
				WithObject(graphEntity.QualName())
		}
		svc, err := g.planService(ctx, spec, st, resolver, defaultRuntime)
		if err != nil {
			return nil, err
		}
		services[svc.Name()] = svc
		g.nodes = append(g.nodes, svc)
		st.Add(svc)
		log.WithField("service", svc.Name()).Debug("planned service")
	}

	rawRelations, _ := graphEntity.GetDefault("relations", []interface{}{}).([]interface{})
	for _, item := range rawRelations {
		rel, err := g.planRelation(item, services)
		if err != nil {
			return nil, err
		}
		g.edges = append(g.edges, rel)
		st.Add(rel)
		log.WithField("relation", rel.Name()).Debug("planned relation")
	}

	if err := applyOverrides(opts.Overrides, st); err != nil {
		return nil, err
	}

	// Back-references first: fini and validate may resolve siblings
	// through the graph.
	for _, svc := range g.nodes {
		svc.SetGraph(g)
	}
	for _, svc := range g.nodes {
		if err := finalizeService(svc, g); err != nil {
			return nil, err
		}
	}
	for _, svc := range g.nodes {
		if err := validateService(svc); err != nil {
			return nil, err
		}
	}

	log.WithFields(map[string]interface{}{
		"graph":     g.name,
		"services":  len(g.nodes),
		"relations": len(g.edges),
	}).Info("graph planned")
	return g, nil
}

func buildInterfaceRegistry(st *store.Store) map[string]*model.Interface {
	registry := make(map[string]*model.Interface)
	for _, obj := range st.Kind("Interface") {
		e, ok := obj.(*entity.Entity)
		if !ok {
			continue
		}
		iface := model.NewInterface(e)
		registry[iface.Name()] = iface
	}
	return registry
}

func (g *Graph) planService(ctx context.Context, spec map[string]interface{}, st *store.Store, resolver RuntimeResolver, defaultRuntime string) (*model.Service, error) {
	name, _ := spec["name"].(string)
	if name == "" {
		return nil, model.NewConfigurationError(
			fmt.Sprintf("service spec without a name in graph %s", g.name), nil).
			WithObject(g.QualName())
	}

	compName, _ := spec["component"].(string)
	if compName == "" {
		compName = name
	}
	obj, ok := st.Get("Component", compName)
	if !ok {
		return nil, model.NewConfigurationError(
			fmt.Sprintf("graph %s references unknown component %s", g.name, compName), nil).
			WithCode(model.ErrCodeNotFound).WithObject("Component:" + compName)
	}
	compEntity, ok := obj.(*entity.Entity)
	if !ok {
		return nil, model.NewConfigurationError(
			fmt.Sprintf("stored component %s is not an entity", compName), nil).
			WithCode(model.ErrCodeInternal)
	}

	// Graph-level overrides win over the component definition.
	compEntity.AddFacet(spec, entity.ProvenanceGraph)
	comp := model.NewComponent(compEntity)

	rtName, _ := spec["runtime"].(string)
	if rtName == "" {
		rtName = defaultRuntime
	}
	var rt model.Runtime
	if rtName != "" {
		resolved, err := resolver.Resolve(ctx, rtName)
		if err != nil {
			return nil, err
		}
		rt = resolved
	}

	config, _ := spec["config"].(map[string]interface{})
	svc := model.NewService(compEntity, name, rt, config)

	endpoints := comp.Endpoints()
	if err := validateExposed(spec, name, endpoints); err != nil {
		return nil, err
	}
	if exposed := stringList(spec["expose"]); len(exposed) > 0 {
		svc.SetExposed(exposed)
	}

	for _, epSpec := range endpoints {
		iface, role, err := g.resolveInterfaceRole(epSpec.Interface, name, epSpec.Name)
		if err != nil {
			return nil, err
		}
		// Endpoint data precedence, least specific first: interface role
		// defaults, then component-declared endpoint data. Environment
		// overrides land during finalization.
		data := entity.Merge(role.Defaults, epSpec.Data, nil).(map[string]interface{})
		svc.AddEndpoint(epSpec.Name, iface, role.Name, data)
	}
	return svc, nil
}

// resolveInterfaceRole parses an "interface:role" reference. A bare
// interface name resolves only when the interface declares a single role.
func (g *Graph) resolveInterfaceRole(ref, svcName, epName string) (*model.Interface, *model.Role, error) {
	ifaceName, roleName, _ := strings.Cut(ref, ":")
	iface, ok := g.interfaces[ifaceName]
	if !ok {
		return nil, nil, model.NewConfigurationError(
			fmt.Sprintf("endpoint %s of service %s references unknown interface %s", epName, svcName, ifaceName), nil).
			WithCode(model.ErrCodeNotFound).WithObject("Interface:" + ifaceName)
	}

	if roleName == "" {
		role, ok := iface.SingleRole()
		if !ok {
			return nil, nil, model.NewConfigurationError(
				fmt.Sprintf("endpoint %s of service %s must name a role on interface %s", epName, svcName, ifaceName), nil).
				WithCode(model.ErrCodeBadReference).WithObject("Interface:" + ifaceName)
		}
		return iface, role, nil
	}

	role, ok := iface.Role(roleName)
	if !ok {
		return nil, nil, model.NewConfigurationError(
			fmt.Sprintf("interface %s does not declare role %s (endpoint %s of service %s)", ifaceName, roleName, epName, svcName), nil).
			WithCode(model.ErrCodeNotFound).WithObject("Interface:" + ifaceName).WithPath("roles." + roleName)
	}
	return iface, role, nil
}

func validateExposed(spec map[string]interface{}, svcName string, endpoints []model.EndpointSpec) error {
	for _, exposed := range stringList(spec["expose"]) {
		found := false
		for _, ep := range endpoints {
			if ep.Name == exposed {
				found = true
				break
			}
		}
		if !found {
			return model.NewConfigurationError(
				fmt.Sprintf("unable to expose unknown endpoint %s on service %s", exposed, svcName), nil).
				WithCode(model.ErrCodeNotFound).WithObject("Service:" + svcName)
		}
	}
	return nil
}

// planRelation resolves one declared relation: a list of service:endpoint
// references sharing exactly one interface.
func (g *Graph) planRelation(item interface{}, services map[string]*model.Service) (*model.Relation, error) {
	refs, ok := item.([]interface{})
	if !ok {
		return nil, model.NewConfigurationError(
			fmt.Sprintf("malformed relation %v in graph %s", item, g.name), nil).
			WithObject(g.QualName())
	}

	var endpoints []*model.Endpoint
	ifaces := make(map[string]bool)
	for _, ref := range refs {
		refStr, ok := ref.(string)
		if !ok {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("relation endpoint reference %v is not a string", ref), nil).
				WithObject(g.QualName())
		}
		svcName, epName, found := strings.Cut(refStr, ":")
		if !found {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("relation endpoint reference %q must be service:endpoint", refStr), nil).
				WithCode(model.ErrCodeBadReference).WithObject(g.QualName())
		}
		svc, ok := services[svcName]
		if !ok {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("relation references unknown service %s", svcName), nil).
				WithCode(model.ErrCodeNotFound).WithObject(g.QualName())
		}
		ep, ok := svc.Endpoint(epName)
		if !ok {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("relation references unknown endpoint %s on service %s", epName, svcName), nil).
				WithCode(model.ErrCodeNotFound).WithObject("Service:" + svcName)
		}
		endpoints = append(endpoints, ep)
		ifaces[ep.Interface().Name()] = true
	}

	if len(ifaces) != 1 {
		names := make([]string, 0, len(ifaces))
		for name := range ifaces {
			names = append(names, name)
		}
		return nil, model.NewConfigurationError(
			fmt.Sprintf("relation must use exactly one interface, got %d (%s)", len(ifaces), strings.Join(names, ", ")), nil).
			WithObject(g.QualName())
	}

	rel := model.NewRelation(endpoints)
	for _, ep := range endpoints {
		ep.Service().AddRelation(rel)
	}
	return rel, nil
}

func applyOverrides(overrides []VersionOverride, st *store.Store) error {
	for _, ov := range overrides {
		obj, ok := st.GetQual(ov.Target)
		if !ok {
			return model.NewConfigurationError(
				fmt.Sprintf("version override targets unknown object %s", ov.Target), nil).
				WithCode(model.ErrCodeNotFound).WithObject(ov.Target)
		}
		switch target := obj.(type) {
		case *entity.Entity:
			target.AddFacet(map[string]interface{}{"image": ov.Image}, entity.ProvenanceOverride)
		case *model.Service:
			target.AddFacet(map[string]interface{}{"image": ov.Image}, entity.ProvenanceOverride)
		default:
			return model.NewConfigurationError(
				fmt.Sprintf("version override target %s is neither a component nor a service", ov.Target), nil).
				WithCode(model.ErrCodeBadReference).WithObject(ov.Target)
		}
	}
	return nil
}

func stringList(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
