package plugins

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/loomworks/loom/pkg/graph"
	"github.com/loomworks/loom/pkg/model"
	"github.com/loomworks/loom/pkg/output"
	"github.com/loomworks/loom/pkg/runtime"
)

func init() {
	runtime.Register("kubernetes", func(config map[string]interface{}) (runtime.Plugin, error) {
		return &Kubernetes{config: config}, nil
	})
}

// Kubernetes renders services into core Kubernetes manifests: a namespace
// per graph, a deployment and service per planned service, projected
// config volumes and ExternalName/Endpoints shims for relations that cross
// runtimes.
type Kubernetes struct {
	config map[string]interface{}
	rt     *runtime.Runtime
}

// Name implements runtime.Plugin.
func (k *Kubernetes) Name() string { return "kubernetes" }

// BindRuntime keeps the owning runtime so pull secrets can be looked up
// from a sibling docker plugin.
func (k *Kubernetes) BindRuntime(rt *runtime.Runtime) { k.rt = rt }

// ExposeTags declares the mechanisms this runtime offers for making
// endpoints reachable from outside.
func (k *Kubernetes) ExposeTags() []string { return []string{"overlay", "ingress"} }

// IngestTags declares the exposure mechanisms this runtime can consume.
func (k *Kubernetes) IngestTags() []string { return []string{"consul", "cloud"} }

// ServiceAddrs resolves the cluster-internal DNS name of a service.
func (k *Kubernetes) ServiceAddrs(svc *model.Service, g model.GraphContext) ([]string, error) {
	return []string{fmt.Sprintf("%s.%s.svc.cluster.local", svc.Name(), g.Name())}, nil
}

func (k *Kubernetes) addNamespace(g *graph.Graph, out *output.Output) {
	ns := map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Namespace",
		"metadata": map[string]interface{}{
			"name":   g.Name(),
			"labels": map[string]interface{}{},
		},
	}
	out.Ensure(fmt.Sprintf("00-%s-namespace.yaml", g.Name()), ns, k.Name(), nil)
}

func (k *Kubernetes) addServiceAccount(g *graph.Graph, out *output.Output) string {
	name := g.Name() + "-admin"
	data := map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "ServiceAccount",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": g.Name(),
		},
	}
	out.Ensure("01-service-account.yaml", data, k.Name(), nil)
	return name
}

func (k *Kubernetes) addConfigMap(g *graph.Graph, svc *model.Service, out *output.Output) (string, error) {
	data := map[string]interface{}{
		"config":    svc.FullConfig(),
		"relations": svc.FullRelations(),
	}
	name := fmt.Sprintf("configs/%s-%s-config.json", g.Name(), svc.Name())
	err := out.Add(name, data, k.Name(), map[string]interface{}{
		"format":  "json",
		"service": svc.Name(),
	})
	if err != nil {
		return "", err
	}
	return svc.Name() + "-config", nil
}

func (k *Kubernetes) addSecrets(g *graph.Graph, svc *model.Service, out *output.Output) (string, error) {
	data := map[string]interface{}{
		"relations": svc.FullRelations(),
	}
	name := fmt.Sprintf("configs/%s-%s-secrets.json", g.Name(), svc.Name())
	err := out.Add(name, data, k.Name(), map[string]interface{}{
		"format":  "json",
		"service": svc.Name(),
	})
	if err != nil {
		return "", err
	}
	return svc.Name() + "-secrets", nil
}

// addVolumes builds the projected volume mapping service config, pod
// metadata and secrets into /etc/model inside every container.
func (k *Kubernetes) addVolumes(g *graph.Graph, svc *model.Service, configMap, secrets string) ([]interface{}, []interface{}) {
	mounts := []interface{}{
		map[string]interface{}{
			"name":      "model",
			"mountPath": "/etc/model/",
			"readOnly":  true,
		},
	}

	sources := []interface{}{
		map[string]interface{}{
			"configMap": map[string]interface{}{
				"name": configMap,
				"items": []interface{}{
					map[string]interface{}{
						"key":  fmt.Sprintf("%s-%s-config.json", g.Name(), svc.Name()),
						"path": svc.Name() + "-config.json",
					},
				},
			},
		},
		map[string]interface{}{
			"downwardAPI": map[string]interface{}{
				"items": []interface{}{
					map[string]interface{}{
						"path":     "labels",
						"fieldRef": map[string]interface{}{"fieldPath": "metadata.labels"},
					},
					map[string]interface{}{
						"path":     "annotations",
						"fieldRef": map[string]interface{}{"fieldPath": "metadata.annotations"},
					},
				},
			},
		},
	}

	if secrets != "" {
		sources = append(sources, map[string]interface{}{
			"secret": map[string]interface{}{
				"name": secrets,
				"items": []interface{}{
					map[string]interface{}{
						"mode": 0o511,
						"key":  fmt.Sprintf("%s-%s-secrets.json", g.Name(), svc.Name()),
						"path": svc.Name() + "-secrets.json",
					},
				},
			},
		})
	}

	volumes := []interface{}{
		map[string]interface{}{
			"name":      "model",
			"projected": map[string]interface{}{"sources": sources},
		},
	}
	return mounts, volumes
}

// addImagePullSecret asks a sibling docker plugin for registry credentials
// covering the default container image and, when found, wires an
// imagePullSecrets reference plus the secret manifest itself.
func (k *Kubernetes) addImagePullSecret(g *graph.Graph, svc *model.Service, out *output.Output, podSpec map[string]interface{}) {
	if k.rt == nil {
		return
	}
	p, ok := k.rt.Plugin("docker")
	if !ok {
		return
	}
	d, ok := p.(*Docker)
	if !ok {
		return
	}
	sec, ok := d.ImageSecretsFor(svc.Image())
	if !ok {
		return
	}

	label := filenameToLabel(sec.Key)
	podSpec["imagePullSecrets"] = []interface{}{
		map[string]interface{}{"name": label},
	}

	auth, _ := json.Marshal(sec.Auth)
	manifest := map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Secret",
		"type":       "kubernetes.io/dockerconfigjson",
		"metadata": map[string]interface{}{
			"name":      label,
			"namespace": g.Name(),
		},
		"data": map[string]interface{}{
			".dockerconfigjson": base64.StdEncoding.EncodeToString(auth),
		},
	}
	out.Ensure(sec.Key, manifest, k.Name(), map[string]interface{}{"service": svc.Name()})
}

// RenderService emits the namespace, service account, config records,
// deployment and (when ports are declared) service manifests for one
// planned service.
func (k *Kubernetes) RenderService(ctx context.Context, svc *model.Service, g *graph.Graph, out *output.Output) error {
	labels := map[string]interface{}{
		"app.kubernetes.io/name":       svc.Name(),
		"app.kubernetes.io/instance":   fmt.Sprintf("%s-%s-%s", g.Name(), svc.Name(), svc.Version()),
		"app.kubernetes.io/version":    svc.Version(),
		"app.kubernetes.io/component":  svc.Entity().Name(),
		"app.kubernetes.io/part-of":    g.Name(),
		"app.kubernetes.io/managed-by": "loom",
	}

	k.addNamespace(g, out)
	serviceAccount := k.addServiceAccount(g, out)

	configMap, err := k.addConfigMap(g, svc, out)
	if err != nil {
		return err
	}
	secrets, err := k.addSecrets(g, svc, out)
	if err != nil {
		return err
	}
	mounts, volumes := k.addVolumes(g, svc, configMap, secrets)

	podLabels := map[string]interface{}{
		"app":     svc.Name(),
		"version": svc.Version(),
	}
	for key, v := range labels {
		podLabels[key] = v
	}

	container := map[string]interface{}{
		"name":            svc.Name(),
		"image":           svc.Image(),
		"imagePullPolicy": "IfNotPresent",
		"volumeMounts":    mounts,
	}
	if cmd := svc.Get("command", nil); cmd != nil {
		container["command"] = cmd
	}
	if args := svc.Get("args", nil); args != nil {
		container["args"] = args
	}

	var containerPorts []interface{}
	for _, p := range svc.Ports() {
		containerPorts = append(containerPorts, map[string]interface{}{
			"containerPort": p.Port,
			"protocol":      p.Protocol,
		})
	}
	if len(containerPorts) > 0 {
		container["ports"] = containerPorts
	}
	if env, ok := svc.FullConfig()["environment"].([]interface{}); ok && len(env) > 0 {
		container["env"] = env
	}

	podSpec := map[string]interface{}{
		"serviceAccountName": serviceAccount,
		"restartPolicy":      "Always",
		"containers":         []interface{}{container},
		"volumes":            volumes,
	}
	k.applyNetworkType(svc, podSpec)
	k.addImagePullSecret(g, svc, out, podSpec)

	deployment := map[string]interface{}{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata": map[string]interface{}{
			"name":      svc.Name(),
			"namespace": g.Name(),
			"labels":    labels,
		},
		"spec": map[string]interface{}{
			"replicas": svc.Get("replicas", nil),
			"selector": map[string]interface{}{
				"matchLabels": map[string]interface{}{"app.kubernetes.io/name": svc.Name()},
			},
			"template": map[string]interface{}{
				"metadata": map[string]interface{}{"labels": podLabels},
				"spec":     podSpec,
			},
		},
	}
	err = out.Add(fmt.Sprintf("40-%s-deployment.yaml", svc.Name()), deployment, k.Name(),
		map[string]interface{}{"service": svc.Name()})
	if err != nil {
		return err
	}

	var svcPorts []interface{}
	for _, p := range svc.Ports() {
		svcPorts = append(svcPorts, map[string]interface{}{
			"name":     p.Name,
			"port":     p.Port,
			"protocol": p.Protocol,
		})
	}
	if len(svcPorts) == 0 {
		return nil
	}
	manifest := map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Service",
		"metadata": map[string]interface{}{
			"name":      svc.Name(),
			"namespace": g.Name(),
		},
		"spec": map[string]interface{}{
			"selector": map[string]interface{}{"app": svc.Name()},
			"ports":    svcPorts,
		},
	}
	return out.Add(fmt.Sprintf("50-%s-service.yaml", svc.Name()), manifest, k.Name(),
		map[string]interface{}{"service": svc.Name()})
}

// applyNetworkType rewrites the pod spec for host networking: host network
// pods bind host port ranges, so they are pinned to tainted nodes and kept
// apart from pods of the same service.
func (k *Kubernetes) applyNetworkType(svc *model.Service, podSpec map[string]interface{}) {
	networkType, _ := svc.Config()["networkType"].(string)
	if networkType != "loom/host" {
		return
	}
	podSpec["hostNetwork"] = true
	podSpec["dnsPolicy"] = "ClusterFirstWithHostNet"
	podSpec["nodeSelector"] = map[string]interface{}{"loom/networkType": "host"}
	podSpec["tolerations"] = []interface{}{
		map[string]interface{}{
			"key":      "hostNetworking",
			"operator": "Equal",
			"value":    "true",
			"effect":   "NoSchedule",
		},
	}
	podSpec["affinity"] = map[string]interface{}{
		"podAntiAffinity": map[string]interface{}{
			"requiredDuringSchedulingIgnoredDuringExecution": []interface{}{
				map[string]interface{}{
					"labelSelector": map[string]interface{}{
						"matchExpressions": []interface{}{
							map[string]interface{}{
								"key":      "app.kubernetes.io/name",
								"operator": "In",
								"values":   []interface{}{svc.Name()},
							},
						},
					},
					"topologyKey": "kubernetes.io/hostname",
				},
			},
		},
	}
}

// RenderRelationEndpoint makes a remote endpoint resolvable inside the
// cluster. When the remote service lives in another runtime whose exposure
// mechanisms this runtime ingests, a Service shim is rendered: ExternalName
// for DNS addresses, a headless Service plus Endpoints object for raw IPs.
// Endpoints within the same runtime need no shim.
func (k *Kubernetes) RenderRelationEndpoint(ctx context.Context, rel *model.Relation, ep *model.Endpoint, g *graph.Graph, out *output.Output) error {
	other := rel.Remote(ep.Service())
	if other == nil {
		return nil
	}
	localRT := ep.Service().Runtime()
	remoteRT := other.Service().Runtime()

	if remoteRT != nil {
		if localRT != nil && remoteRT.QualName() == localRT.QualName() {
			return nil
		}
		if !model.TagsIntersect(remoteRT.ExposeTags(), localRT.IngestTags()) {
			return nil
		}
	}

	var addresses []string
	if remoteRT != nil {
		addrs, err := remoteRT.ServiceAddrs(other.Service(), g)
		if err == nil {
			addresses = addrs
		}
	}
	if len(addresses) == 0 {
		if addr, ok := other.Data()["address"].(string); ok && addr != "" {
			addresses = []string{addr}
		}
	}
	if len(addresses) == 0 {
		return nil
	}

	var ports []interface{}
	for _, p := range other.Ports() {
		ports = append(ports, map[string]interface{}{
			"port":       p.Port,
			"targetPort": p.Port,
		})
	}

	name := other.Service().Name()
	manifest := map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Service",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": g.Name(),
		},
		"spec": map[string]interface{}{"ports": ports},
	}

	if !isIP(addresses[0]) {
		spec := manifest["spec"].(map[string]interface{})
		spec["type"] = "ExternalName"
		spec["externalName"] = addresses[0]
	} else {
		var subsets []interface{}
		for _, addr := range addresses {
			var subsetPorts []interface{}
			for _, p := range other.Ports() {
				subsetPorts = append(subsetPorts, map[string]interface{}{"port": p.Port})
			}
			subsets = append(subsets, map[string]interface{}{
				"addresses": []interface{}{map[string]interface{}{"ip": addr}},
				"ports":     subsetPorts,
			})
		}
		endpoints := map[string]interface{}{
			"apiVersion": "v1",
			"kind":       "Endpoints",
			"metadata": map[string]interface{}{
				"name":      name,
				"namespace": g.Name(),
			},
			"subsets": subsets,
		}
		out.Ensure(fmt.Sprintf("72-%s-endpoints.yaml", name), endpoints, k.Name(),
			map[string]interface{}{"relation": rel.Name(), "endpoint": other.QualName()})
	}

	out.Ensure(fmt.Sprintf("70-%s-service.yaml", name), manifest, k.Name(),
		map[string]interface{}{"relation": rel.Name(), "endpoint": other.QualName()})
	return nil
}
