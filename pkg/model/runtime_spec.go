package model

import (
	"github.com/loomworks/loom/pkg/entity"
)

// PluginSpec declares one plugin of a runtime: a registry name, an optional
// dynamic-loading reference, and plugin-local configuration.
type PluginSpec struct {
	Name    string                 `validate:"required"`
	Path    string                 `validate:"omitempty"`
	Package string                 `validate:"omitempty"`
	Config  map[string]interface{} `validate:"-"`
}

// RuntimeSpec is the declarative form of a runtime: a name plus an ordered
// plugin list. Resolution into a live Runtime happens in the runtime
// package.
type RuntimeSpec struct {
	GraphObj
}

// NewRuntimeSpec wraps a Runtime entity.
func NewRuntimeSpec(e *entity.Entity) *RuntimeSpec {
	return &RuntimeSpec{GraphObj: newGraphObj("Runtime", e.Name(), e)}
}

// Plugins returns the declared plugin specs in declaration order. Order
// matters: later plugins win capability lookups and may depend on records
// earlier plugins registered in the same render phase.
func (r *RuntimeSpec) Plugins() []PluginSpec {
	raw, _ := r.entity.GetDefault("plugins", []interface{}{}).([]interface{})
	out := make([]PluginSpec, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		spec := PluginSpec{
			Name:    stringOf(m["name"]),
			Path:    stringOf(m["path"]),
			Package: stringOf(m["package"]),
		}
		if cfg, ok := m["config"].(map[string]interface{}); ok {
			spec.Config = cfg
		}
		out = append(out, spec)
	}
	return out
}
