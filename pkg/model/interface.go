package model

import (
	"sort"

	"github.com/loomworks/loom/pkg/entity"
)

// Role is one side of a connection contract. Provides and Requires map
// value names to their declared schema types; Defaults seed endpoint-local
// data before service and environment overrides apply.
type Role struct {
	Name     string
	Provides map[string]string
	Requires map[string]string
	Defaults map[string]interface{}
}

// Interface is a named, versioned connection contract with one or more
// roles.
type Interface struct {
	GraphObj
	roles map[string]*Role
}

// NewInterface wraps an Interface entity and parses its role contracts.
func NewInterface(e *entity.Entity) *Interface {
	i := &Interface{
		GraphObj: newGraphObj("Interface", e.Name(), e),
		roles:    make(map[string]*Role),
	}
	raw, _ := e.GetDefault("roles", []interface{}{}).([]interface{})
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		role := &Role{
			Name:     stringOf(m["name"]),
			Provides: typeMap(m["provides"]),
			Requires: typeMap(m["requires"]),
			Defaults: map[string]interface{}{},
		}
		if d, ok := m["defaults"].(map[string]interface{}); ok {
			role.Defaults = d
		}
		i.roles[role.Name] = role
	}
	return i
}

// Version returns the contract version.
func (i *Interface) Version() string {
	return stringOf(i.entity.GetDefault("version", ""))
}

// Role resolves a role contract by name.
func (i *Interface) Role(name string) (*Role, bool) {
	r, ok := i.roles[name]
	return r, ok
}

// Roles returns the declared roles sorted by name.
func (i *Interface) Roles() []*Role {
	out := make([]*Role, 0, len(i.roles))
	for _, r := range i.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// SingleRole returns the only declared role when exactly one exists.
func (i *Interface) SingleRole() (*Role, bool) {
	if len(i.roles) != 1 {
		return nil, false
	}
	for _, r := range i.roles {
		return r, true
	}
	return nil, false
}

func typeMap(v interface{}) map[string]string {
	out := make(map[string]string)
	m, ok := v.(map[string]interface{})
	if !ok {
		return out
	}
	for k, t := range m {
		out[k] = stringOf(t)
	}
	return out
}
