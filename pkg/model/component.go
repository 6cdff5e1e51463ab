package model

import (
	"fmt"

	"github.com/loomworks/loom/pkg/entity"
)

// Component is a reusable deployable unit definition: a container image
// plus the typed endpoints it declares.
type Component struct {
	GraphObj
}

// NewComponent wraps a Component entity.
func NewComponent(e *entity.Entity) *Component {
	return &Component{GraphObj: newGraphObj("Component", e.Name(), e)}
}

// Image returns the container image reference.
func (c *Component) Image() string {
	return c.entity.GetString("image")
}

// Version returns the declared component version.
func (c *Component) Version() string {
	v := c.entity.GetDefault("version", "")
	return stringOf(v)
}

// EndpointSpec is one component-declared connection point: a local name,
// an interface reference of the form "interface:role", and endpoint-local
// key/value data.
type EndpointSpec struct {
	Name      string
	Interface string
	Data      map[string]interface{}
}

// Endpoints returns the component's declared endpoint specs in declaration
// order.
func (c *Component) Endpoints() []EndpointSpec {
	raw, _ := c.entity.GetDefault("endpoints", []interface{}{}).([]interface{})
	out := make([]EndpointSpec, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		spec := EndpointSpec{
			Name:      stringOf(m["name"]),
			Interface: stringOf(m["interface"]),
			Data:      map[string]interface{}{},
		}
		if data, ok := m["data"].(map[string]interface{}); ok {
			spec.Data = data
		}
		// Endpoint-level keys other than name/interface/data ride along as
		// data so components can declare ports inline.
		for k, v := range m {
			switch k {
			case "name", "interface", "data":
			default:
				spec.Data[k] = v
			}
		}
		out = append(out, spec)
	}
	return out
}

func stringOf(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
