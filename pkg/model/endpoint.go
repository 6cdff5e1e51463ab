package model

import (
	"sort"

	"github.com/loomworks/loom/pkg/entity"
)

// Port is one declared port of an endpoint.
type Port struct {
	Name     string
	Port     int
	Protocol string
}

// Endpoint binds one component-declared connection point of a service to an
// interface role, together with endpoint-local key/value data.
type Endpoint struct {
	name    string
	service *Service
	iface   *Interface
	role    string
	data    map[string]interface{}
}

func newEndpoint(name string, svc *Service, iface *Interface, role string, data map[string]interface{}) *Endpoint {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &Endpoint{
		name:    name,
		service: svc,
		iface:   iface,
		role:    role,
		data:    data,
	}
}

// Name returns the endpoint's service-local name.
func (e *Endpoint) Name() string { return e.name }

// Kind returns the object kind.
func (e *Endpoint) Kind() string { return "Endpoint" }

// Service returns the owning service.
func (e *Endpoint) Service() *Service { return e.service }

// Interface returns the bound connection contract.
func (e *Endpoint) Interface() *Interface { return e.iface }

// Role returns the interface role this endpoint plays.
func (e *Endpoint) Role() string { return e.role }

// QualName identifies the endpoint by owning service and interface.
func (e *Endpoint) QualName() string {
	return e.service.Name() + ":" + e.iface.Name()
}

// Data returns the endpoint-local configuration.
func (e *Endpoint) Data() map[string]interface{} { return e.data }

// MergeData overlays values onto the endpoint data under the default merge
// rules. Used during planning to apply the configured precedence chain.
func (e *Endpoint) MergeData(overlay map[string]interface{}) {
	e.data = entity.Merge(e.data, overlay, nil).(map[string]interface{})
}

// SetData replaces the endpoint data wholesale.
func (e *Endpoint) SetData(data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	e.data = data
}

// Ports parses the endpoint's declared ports from its data, sorted by port
// number.
func (e *Endpoint) Ports() []Port {
	raw, _ := e.data["ports"].([]interface{})
	out := make([]Port, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		p := Port{
			Name:     stringOf(m["name"]),
			Port:     intOf(m["port"]),
			Protocol: stringOf(m["protocol"]),
		}
		if p.Protocol == "" {
			p.Protocol = "TCP"
		}
		out = append(out, p)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Port < out[b].Port })
	return out
}

func intOf(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
