package plugins

import (
	"context"
	"fmt"

	"github.com/loomworks/loom/pkg/graph"
	"github.com/loomworks/loom/pkg/model"
	"github.com/loomworks/loom/pkg/output"
	"github.com/loomworks/loom/pkg/runtime"
)

func init() {
	runtime.Register("istio", func(config map[string]interface{}) (runtime.Plugin, error) {
		return &Istio{}, nil
	})
}

// Istio renders ingress routing for exposed endpoints: a shared ingress
// gateway plus one VirtualService per exposed endpoint, and marks the
// graph namespace for sidecar injection.
type Istio struct{}

// Name implements runtime.Plugin.
func (i *Istio) Name() string { return "istio" }

// Init renders the shared ingress gateway.
func (i *Istio) Init(ctx context.Context, g *graph.Graph, out *output.Output) error {
	gateway := map[string]interface{}{
		"apiVersion": "networking.istio.io/v1alpha3",
		"kind":       "Gateway",
		"metadata": map[string]interface{}{
			"name":      "ingressgateway",
			"namespace": "istio-system",
		},
		"spec": map[string]interface{}{
			"selector": map[string]interface{}{"istio": "ingressgateway"},
			"servers": []interface{}{
				map[string]interface{}{
					"hosts": []interface{}{"*"},
					"port": map[string]interface{}{
						"name":     "http",
						"number":   80,
						"protocol": "HTTP",
					},
				},
			},
		},
	}
	return out.Add("02-ingressgateway.yaml", gateway, i.Name(), nil)
}

// RenderService renders a VirtualService for each exposed endpoint,
// routing a public host under the environment's public_dns to the
// cluster-internal service address.
func (i *Istio) RenderService(ctx context.Context, svc *model.Service, g *graph.Graph, out *output.Output) error {
	exposed := svc.ExposedEndpoints()
	if len(exposed) == 0 {
		return nil
	}

	publicDNS := ""
	envObject := g.QualName()
	if env := g.Environment(); env != nil {
		publicDNS, _ = env.Config()["public_dns"].(string)
		envObject = env.QualName()
	}
	if publicDNS == "" {
		return model.NewConfigurationError("environment does not define public_dns", nil).
			WithObject(envObject).
			WithDetail("service", svc.Name())
	}

	for _, ep := range exposed {
		ports := ep.Ports()
		if len(ports) == 0 {
			return model.NewConfigurationError("exposed endpoint declares no ports", nil).
				WithObject(ep.QualName())
		}
		vs := map[string]interface{}{
			"apiVersion": "networking.istio.io/v1alpha3",
			"kind":       "VirtualService",
			"metadata": map[string]interface{}{
				"name":      svc.Name(),
				"namespace": g.Name(),
			},
			"spec": map[string]interface{}{
				"hosts": []interface{}{fmt.Sprintf("%s.%s", svc.Name(), publicDNS)},
				"gateways": []interface{}{
					"ingressgateway.istio-system.svc.cluster.local",
				},
				"http": []interface{}{
					map[string]interface{}{
						"match": []interface{}{
							map[string]interface{}{
								"uri": map[string]interface{}{"prefix": "/"},
							},
						},
						"route": []interface{}{
							map[string]interface{}{
								"destination": map[string]interface{}{
									"host": fmt.Sprintf("%s.%s.svc.cluster.local", svc.Name(), g.Name()),
									"port": map[string]interface{}{"number": ports[0].Port},
								},
							},
						},
					},
				},
			},
		}
		err := out.Add(fmt.Sprintf("60-%s-%s-virtualservice.yaml", svc.Name(), ep.Name()), vs, i.Name(),
			map[string]interface{}{"service": svc.Name(), "endpoint": ep.QualName()})
		if err != nil {
			return err
		}
	}
	return nil
}

// Fini labels the graph namespace for sidecar injection when the
// kubernetes plugin rendered one.
func (i *Istio) Fini(ctx context.Context, g *graph.Graph, out *output.Output) error {
	rec, ok := out.Get(fmt.Sprintf("00-%s-namespace.yaml", g.Name()))
	if !ok {
		return nil
	}
	return out.Update(rec.Name, map[string]interface{}{
		"metadata.labels": map[string]interface{}{"istio-injection": "enabled"},
	}, i.Name(), nil)
}
