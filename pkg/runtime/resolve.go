package runtime

import (
	"context"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/loomworks/loom/pkg/model"
	"github.com/loomworks/loom/pkg/store"
	"github.com/loomworks/loom/pkg/telemetry"
)

// Resolver turns declarative Runtime entities into live Runtime instances.
// Resolution is memoized: every service naming the same runtime shares one
// instance, so plugin state set during init is visible in later phases.
type Resolver struct {
	mu    sync.Mutex
	store *store.Store
	cache map[string]*Runtime
	check *validator.Validate

	// DynamicLoader, when set, handles plugin specs that carry a path or
	// package reference instead of a registry name.
	DynamicLoader func(spec model.PluginSpec) (Plugin, error)
}

// NewResolver builds a resolver over the given entity store.
func NewResolver(st *store.Store) *Resolver {
	return &Resolver{
		store: st,
		cache: make(map[string]*Runtime),
		check: validator.New(),
	}
}

// Resolve returns the live runtime for a declared Runtime entity, building
// it on first use. The built runtime is registered in the store under the
// RuntimeImpl kind so later lookups and diagnostics can find it.
func (r *Resolver) Resolve(ctx context.Context, name string) (model.Runtime, error) {
	key := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if rt, ok := r.cache[key]; ok {
		return rt, nil
	}

	log := telemetry.FromContext(ctx).NewComponentLogger("runtime")

	// The cache key is case-insensitive; the store keeps Runtime entities
	// under their declared document name.
	obj, ok := r.store.Get("Runtime", name)
	if !ok {
		return nil, model.NewConfigurationError("runtime is not defined", nil).
			WithCode(model.ErrCodeNotFound).
			WithDetail("runtime", name)
	}
	spec, ok := obj.(*model.RuntimeSpec)
	if !ok {
		return nil, model.NewConfigurationError("object is not a runtime declaration", nil).
			WithObject(obj.QualName())
	}

	specs := spec.Plugins()
	if len(specs) == 0 {
		return nil, model.NewConfigurationError("runtime declares no plugins", nil).
			WithObject(spec.QualName())
	}

	plugins := make([]Plugin, 0, len(specs))
	for _, ps := range specs {
		if err := r.check.Struct(ps); err != nil {
			return nil, model.NewValidationError("invalid plugin declaration", err).
				WithObject(spec.QualName())
		}
		p, err := build(ps, r.DynamicLoader)
		if err != nil {
			return nil, model.NewConfigurationError("cannot build plugin", err).
				WithObject(spec.QualName()).
				WithDetail("plugin", ps.Name)
		}
		if l, ok := p.(Loader); ok {
			if err := l.Load(ctx); err != nil {
				return nil, model.NewConfigurationError("plugin load failed", err).
					WithObject(spec.QualName()).
					WithDetail("plugin", ps.Name)
			}
		}
		plugins = append(plugins, p)
	}

	rt := New(key, plugins)
	r.cache[key] = rt
	r.store.Add(rt)

	log.Debugf("runtime %s resolved with %d plugins", key, len(plugins))
	return rt, nil
}
