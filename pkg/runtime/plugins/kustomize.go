package plugins

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/loomworks/loom/pkg/entity"
	"github.com/loomworks/loom/pkg/graph"
	"github.com/loomworks/loom/pkg/model"
	"github.com/loomworks/loom/pkg/output"
	"github.com/loomworks/loom/pkg/runtime"
)

func init() {
	runtime.Register("kustomize", func(config map[string]interface{}) (runtime.Plugin, error) {
		return &Kustomize{}, nil
	})
}

const kustomizationFile = "kustomization.yaml"

var appendSchema = &entity.Schema{MergeStrategy: entity.StrategyAppend}

// Kustomize maintains a kustomization.yaml alongside the manifests other
// plugins render. Config and secret payloads flow through generators
// because the accepted pattern for updating a config map is generating a
// fresh one and repointing the deployment at it.
type Kustomize struct{}

// Name implements runtime.Plugin.
func (k *Kustomize) Name() string { return "kustomize" }

// Init seeds the kustomization record so later phases can append to it.
func (k *Kustomize) Init(ctx context.Context, g *graph.Graph, out *output.Output) error {
	return out.Add(kustomizationFile, map[string]interface{}{
		"resources":          []interface{}{},
		"configMapGenerator": []interface{}{},
		"secretGenerator":    []interface{}{},
	}, k.Name(), nil)
}

// RenderService appends the generator entries backing the config and
// secret records the kubernetes plugin wrote for this service. The two
// plugins agree on the configs/ file naming.
func (k *Kustomize) RenderService(ctx context.Context, svc *model.Service, g *graph.Graph, out *output.Output) error {
	configEntry := map[string]interface{}{
		"name":      svc.Name() + "-config",
		"namespace": g.Name(),
		"files": []interface{}{
			fmt.Sprintf("configs/%s-%s-config.json", g.Name(), svc.Name()),
		},
	}
	err := out.Update(kustomizationFile, map[string]interface{}{
		"configMapGenerator": []interface{}{configEntry},
	}, k.Name(), appendSchema)
	if err != nil {
		return err
	}

	secretEntry := map[string]interface{}{
		"name":      svc.Name() + "-secrets",
		"namespace": g.Name(),
		"files": []interface{}{
			fmt.Sprintf("configs/%s-%s-secrets.json", g.Name(), svc.Name()),
		},
	}
	return out.Update(kustomizationFile, map[string]interface{}{
		"secretGenerator": []interface{}{secretEntry},
	}, k.Name(), appendSchema)
}

// Fini collects every record the other plugins produced into the
// kustomization resources list. Generator inputs under configs/ and
// resources/ are excluded; they are consumed by the generators, not
// applied directly.
func (k *Kustomize) Fini(ctx context.Context, g *graph.Graph, out *output.Output) error {
	var files []string
	for _, rec := range out.Filter(output.Query{Plugin: k.Name()}) {
		if strings.HasPrefix(rec.Name, "configs/") || strings.HasPrefix(rec.Name, "resources/") {
			continue
		}
		files = append(files, rec.Name)
	}
	sort.Strings(files)

	resources := make([]interface{}, len(files))
	for i, f := range files {
		resources[i] = f
	}
	return out.Update(kustomizationFile, map[string]interface{}{
		"resources": resources,
	}, k.Name(), nil)
}
