package plugins

import (
	"context"
	"reflect"
	"testing"

	"github.com/loomworks/loom/pkg/entity"
	"github.com/loomworks/loom/pkg/graph"
	"github.com/loomworks/loom/pkg/model"
	"github.com/loomworks/loom/pkg/output"
	"github.com/loomworks/loom/pkg/runtime"
	"github.com/loomworks/loom/pkg/store"
)

func testEnt(data map[string]interface{}) *entity.Entity {
	return entity.FromData(data, nil, "test")
}

// planStack plans the two-service shop graph over a runtime composed of the
// given plugins.
func planStack(t *testing.T, pluginNames []string, env *model.Environment, exposeWeb bool) *graph.Graph {
	t.Helper()

	st := store.New()
	st.Add(testEnt(map[string]interface{}{
		"kind": "Interface",
		"name": "http",
		"roles": []interface{}{
			map[string]interface{}{"name": "server"},
			map[string]interface{}{"name": "client"},
		},
	}))
	st.Add(testEnt(map[string]interface{}{
		"kind": "Interface",
		"name": "postgres",
		"roles": []interface{}{
			map[string]interface{}{"name": "server"},
			map[string]interface{}{"name": "client"},
		},
	}))
	st.Add(testEnt(map[string]interface{}{
		"kind":    "Component",
		"name":    "web",
		"image":   "registry.example.com/shop/web:1.2.0",
		"version": "1.2.0",
		"endpoints": []interface{}{
			map[string]interface{}{
				"name":      "http",
				"interface": "http:server",
				"ports": []interface{}{
					map[string]interface{}{"name": "http", "port": 8080},
				},
			},
			map[string]interface{}{"name": "db", "interface": "postgres:client"},
		},
	}))
	st.Add(testEnt(map[string]interface{}{
		"kind":    "Component",
		"name":    "db",
		"image":   "postgres:16",
		"version": "16",
		"endpoints": []interface{}{
			map[string]interface{}{
				"name":      "sql",
				"interface": "postgres:server",
				"ports": []interface{}{
					map[string]interface{}{"name": "sql", "port": 5432},
				},
			},
		},
	}))

	plugins := make([]interface{}, len(pluginNames))
	for i, n := range pluginNames {
		plugins[i] = map[string]interface{}{"name": n}
	}
	st.Add(model.NewRuntimeSpec(testEnt(map[string]interface{}{
		"kind":    "Runtime",
		"name":    "stack",
		"plugins": plugins,
	})))

	webSpec := map[string]interface{}{"name": "web"}
	if exposeWeb {
		webSpec["expose"] = []interface{}{"http"}
	}
	g, err := graph.Plan(context.Background(), testEnt(map[string]interface{}{
		"kind": "Graph", "name": "shop",
		"services": []interface{}{
			webSpec,
			map[string]interface{}{"name": "db"},
		},
		"relations": []interface{}{
			[]interface{}{"web:db", "db:sql"},
		},
	}), st, env, runtime.NewResolver(st), graph.Options{Runtime: "stack"})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	return g
}

func prodEnv() *model.Environment {
	return model.NewEnvironment(testEnt(map[string]interface{}{
		"kind": "Environment",
		"name": "prod",
		"config": map[string]interface{}{
			"public_dns": "example.com",
		},
	}))
}

func TestRenderPipeline_FullStack(t *testing.T) {
	g := planStack(t, []string{"kubernetes", "kustomize", "istio", "docker"}, prodEnv(), true)
	out := output.New()
	if err := runtime.RenderGraph(context.Background(), g, out); err != nil {
		t.Fatalf("RenderGraph() error: %v", err)
	}

	wantNames := []string{
		"kustomization.yaml",
		"02-ingressgateway.yaml",
		"00-shop-namespace.yaml",
		"01-service-account.yaml",
		"configs/shop-web-config.json",
		"configs/shop-web-secrets.json",
		"40-web-deployment.yaml",
		"50-web-service.yaml",
		"60-web-http-virtualservice.yaml",
		"configs/shop-db-config.json",
		"configs/shop-db-secrets.json",
		"40-db-deployment.yaml",
		"50-db-service.yaml",
	}
	if got := out.Names(); !reflect.DeepEqual(got, wantNames) {
		t.Errorf("record names =\n%v\nwant\n%v", got, wantNames)
	}

	dep, _ := out.Get("40-web-deployment.yaml")
	image, _ := entity.Lookup(dep.Data, "spec.template.spec.containers")
	containers := image.([]interface{})
	if containers[0].(map[string]interface{})["image"] != "registry.example.com/shop/web:1.2.0" {
		t.Errorf("deployment container = %v", containers[0])
	}
	labels, _ := entity.Lookup(dep.Data, "metadata.labels")
	if labels.(map[string]interface{})["app.kubernetes.io/managed-by"] != "loom" {
		t.Errorf("deployment labels = %v", labels)
	}
}

func TestRenderPipeline_KustomizationAggregates(t *testing.T) {
	g := planStack(t, []string{"kubernetes", "kustomize", "istio", "docker"}, prodEnv(), true)
	out := output.New()
	if err := runtime.RenderGraph(context.Background(), g, out); err != nil {
		t.Fatalf("RenderGraph() error: %v", err)
	}

	rec, ok := out.Get("kustomization.yaml")
	if !ok {
		t.Fatal("kustomization.yaml missing")
	}
	data := rec.Data.(map[string]interface{})

	gens := data["configMapGenerator"].([]interface{})
	if len(gens) != 2 {
		t.Fatalf("configMapGenerator entries = %d, want one per service", len(gens))
	}
	if gens[0].(map[string]interface{})["name"] != "web-config" {
		t.Errorf("first generator = %v", gens[0])
	}

	// Generator inputs under configs/ are consumed, not applied directly.
	wantResources := []interface{}{
		"00-shop-namespace.yaml",
		"01-service-account.yaml",
		"02-ingressgateway.yaml",
		"40-db-deployment.yaml",
		"40-web-deployment.yaml",
		"50-db-service.yaml",
		"50-web-service.yaml",
		"60-web-http-virtualservice.yaml",
	}
	if got := data["resources"]; !reflect.DeepEqual(got, wantResources) {
		t.Errorf("resources =\n%v\nwant\n%v", got, wantResources)
	}
}

func TestRenderPipeline_IstioRouting(t *testing.T) {
	g := planStack(t, []string{"kubernetes", "istio"}, prodEnv(), true)
	out := output.New()
	if err := runtime.RenderGraph(context.Background(), g, out); err != nil {
		t.Fatalf("RenderGraph() error: %v", err)
	}

	vs, ok := out.Get("60-web-http-virtualservice.yaml")
	if !ok {
		t.Fatal("virtualservice record missing")
	}
	hosts, _ := entity.Lookup(vs.Data, "spec.hosts")
	if !reflect.DeepEqual(hosts, []interface{}{"web.example.com"}) {
		t.Errorf("hosts = %v", hosts)
	}
	routes, _ := entity.Lookup(vs.Data, "spec.http")
	dest, _ := entity.Lookup(routes.([]interface{})[0].(map[string]interface{}), "route")
	destination := dest.([]interface{})[0].(map[string]interface{})["destination"].(map[string]interface{})
	if destination["host"] != "web.shop.svc.cluster.local" {
		t.Errorf("destination = %v", destination)
	}
	if destination["port"].(map[string]interface{})["number"] != 8080 {
		t.Errorf("destination port = %v", destination["port"])
	}

	// The graph namespace is labeled for sidecar injection during fini.
	ns, _ := out.Get("00-shop-namespace.yaml")
	nsLabels, _ := entity.Lookup(ns.Data, "metadata.labels")
	if nsLabels.(map[string]interface{})["istio-injection"] != "enabled" {
		t.Errorf("namespace labels = %v", nsLabels)
	}
	if !reflect.DeepEqual(ns.Plugins, []string{"kubernetes", "istio"}) {
		t.Errorf("namespace contributors = %v", ns.Plugins)
	}
}

func TestRenderPipeline_IstioRequiresPublicDNS(t *testing.T) {
	env := model.NewEnvironment(testEnt(map[string]interface{}{
		"kind": "Environment", "name": "dev",
		"config": map[string]interface{}{},
	}))
	g := planStack(t, []string{"kubernetes", "istio"}, env, true)
	err := runtime.RenderGraph(context.Background(), g, output.New())
	if !model.IsConfiguration(err) {
		t.Errorf("error = %v, want a configuration error", err)
	}
}

func TestRenderPipeline_IstioWithoutEnvironment(t *testing.T) {
	g := planStack(t, []string{"kubernetes", "istio"}, nil, true)
	err := runtime.RenderGraph(context.Background(), g, output.New())
	if !model.IsConfiguration(err) {
		t.Errorf("error = %v, want a configuration error", err)
	}
}

func TestRenderPipeline_Deterministic(t *testing.T) {
	render := func() []string {
		g := planStack(t, []string{"kubernetes", "kustomize", "istio", "docker"}, prodEnv(), true)
		out := output.New()
		if err := runtime.RenderGraph(context.Background(), g, out); err != nil {
			t.Fatalf("RenderGraph() error: %v", err)
		}
		return out.Names()
	}
	if a, b := render(), render(); !reflect.DeepEqual(a, b) {
		t.Errorf("repeated renders differ:\n%v\n%v", a, b)
	}
}

func TestKubernetes_ServiceAddrs(t *testing.T) {
	g := planStack(t, []string{"kubernetes"}, nil, false)
	web, _ := g.Service("web")
	addrs, err := web.Runtime().ServiceAddrs(web, g)
	if err != nil {
		t.Fatalf("ServiceAddrs() error: %v", err)
	}
	if !reflect.DeepEqual(addrs, []string{"web.shop.svc.cluster.local"}) {
		t.Errorf("addrs = %v", addrs)
	}
}

// externalPlugin simulates a runtime living outside the cluster that
// exposes services over a mechanism kubernetes ingests.
type externalPlugin struct {
	addr string
}

func (p *externalPlugin) Name() string { return "external" }

func (p *externalPlugin) ServiceAddrs(svc *model.Service, g model.GraphContext) ([]string, error) {
	return []string{p.addr}, nil
}

func (p *externalPlugin) ExposeTags() []string { return []string{"consul"} }
func (p *externalPlugin) IngestTags() []string { return nil }

func planSplitRuntimes(t *testing.T, externalName string) *graph.Graph {
	t.Helper()
	st := store.New()
	st.Add(testEnt(map[string]interface{}{
		"kind": "Interface",
		"name": "postgres",
		"roles": []interface{}{
			map[string]interface{}{"name": "server"},
			map[string]interface{}{"name": "client"},
		},
	}))
	st.Add(testEnt(map[string]interface{}{
		"kind":  "Component",
		"name":  "web",
		"image": "web:1",
		"endpoints": []interface{}{
			map[string]interface{}{"name": "db", "interface": "postgres:client"},
		},
	}))
	st.Add(testEnt(map[string]interface{}{
		"kind":  "Component",
		"name":  "db",
		"image": "postgres:16",
		"endpoints": []interface{}{
			map[string]interface{}{
				"name":      "sql",
				"interface": "postgres:server",
				"ports": []interface{}{
					map[string]interface{}{"name": "sql", "port": 5432},
				},
			},
		},
	}))
	st.Add(model.NewRuntimeSpec(testEnt(map[string]interface{}{
		"kind": "Runtime", "name": "k8s",
		"plugins": []interface{}{
			map[string]interface{}{"name": "kubernetes"},
		},
	})))
	st.Add(model.NewRuntimeSpec(testEnt(map[string]interface{}{
		"kind": "Runtime", "name": "ext",
		"plugins": []interface{}{
			map[string]interface{}{"name": externalName},
		},
	})))

	g, err := graph.Plan(context.Background(), testEnt(map[string]interface{}{
		"kind": "Graph", "name": "shop",
		"services": []interface{}{
			map[string]interface{}{"name": "web"},
			map[string]interface{}{"name": "db", "runtime": "ext"},
		},
		"relations": []interface{}{
			[]interface{}{"web:db", "db:sql"},
		},
	}), st, nil, runtime.NewResolver(st), graph.Options{Runtime: "k8s"})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	return g
}

func TestKubernetes_CrossRuntimeShim_DNS(t *testing.T) {
	runtime.Register("external-dns", func(config map[string]interface{}) (runtime.Plugin, error) {
		return &externalPlugin{addr: "db.external.example.com"}, nil
	})

	g := planSplitRuntimes(t, "external-dns")
	out := output.New()
	if err := runtime.RenderGraph(context.Background(), g, out); err != nil {
		t.Fatalf("RenderGraph() error: %v", err)
	}

	shim, ok := out.Get("70-db-service.yaml")
	if !ok {
		t.Fatal("ExternalName shim missing")
	}
	spec, _ := entity.Lookup(shim.Data, "spec")
	s := spec.(map[string]interface{})
	if s["type"] != "ExternalName" || s["externalName"] != "db.external.example.com" {
		t.Errorf("shim spec = %v", s)
	}
	if out.Contains("72-db-endpoints.yaml") {
		t.Error("DNS addresses need no Endpoints object")
	}
}

func TestKubernetes_CrossRuntimeShim_IP(t *testing.T) {
	runtime.Register("external-ip", func(config map[string]interface{}) (runtime.Plugin, error) {
		return &externalPlugin{addr: "10.0.0.5"}, nil
	})

	g := planSplitRuntimes(t, "external-ip")
	out := output.New()
	if err := runtime.RenderGraph(context.Background(), g, out); err != nil {
		t.Fatalf("RenderGraph() error: %v", err)
	}

	eps, ok := out.Get("72-db-endpoints.yaml")
	if !ok {
		t.Fatal("Endpoints object missing for raw IP address")
	}
	subsets, _ := entity.Lookup(eps.Data, "subsets")
	subset := subsets.([]interface{})[0].(map[string]interface{})
	addr := subset["addresses"].([]interface{})[0].(map[string]interface{})
	if addr["ip"] != "10.0.0.5" {
		t.Errorf("endpoints address = %v", addr)
	}

	shim, _ := out.Get("70-db-service.yaml")
	spec, _ := entity.Lookup(shim.Data, "spec")
	if _, hasType := spec.(map[string]interface{})["type"]; hasType {
		t.Error("headless shim must not be ExternalName")
	}
}
