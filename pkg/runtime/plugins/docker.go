package plugins

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/loomworks/loom/pkg/graph"
	"github.com/loomworks/loom/pkg/output"
	"github.com/loomworks/loom/pkg/runtime"
)

func init() {
	runtime.Register("docker", func(config map[string]interface{}) (runtime.Plugin, error) {
		d := &Docker{pullSecrets: map[string]PullSecret{}}
		if p, ok := config["config_path"].(string); ok {
			d.configPath = p
		}
		return d, nil
	})
}

// tagRe splits a docker image reference into its optional registry domain,
// optional org, image name and optional version tag.
var tagRe = regexp.MustCompile(`^((?P<domain>[^/]+)/)?((?P<org>[^/]+)/)?(?P<image>[^:]+)(:(?P<version>[\w\d.-]+))?$`)

// Tag is a parsed docker image reference.
type Tag struct {
	Domain  string
	Org     string
	Image   string
	Version string
}

// ParseTag parses a docker image reference. It returns false when the
// reference does not match the expected shape.
func ParseTag(ref string) (Tag, bool) {
	m := tagRe.FindStringSubmatch(ref)
	if m == nil {
		return Tag{}, false
	}
	var t Tag
	for i, name := range tagRe.SubexpNames() {
		switch name {
		case "domain":
			t.Domain = m[i]
		case "org":
			t.Org = m[i]
		case "image":
			t.Image = m[i]
		case "version":
			t.Version = m[i]
		}
	}
	return t, true
}

// PullSecret carries the registry credentials needed to pull a private
// image, keyed by the record name it should be published under.
type PullSecret struct {
	Key  string
	Auth map[string]interface{}
}

// Docker surfaces local docker registry credentials to its sibling plugins.
// It renders nothing by itself; the kubernetes plugin asks it for pull
// secrets when a service image lives in a registry with known credentials.
type Docker struct {
	configPath string

	graphName   string
	auths       map[string]interface{}
	headers     map[string]interface{}
	pullSecrets map[string]PullSecret
}

// Name implements runtime.Plugin.
func (d *Docker) Name() string { return "docker" }

// Init parses the local docker config and records the registries with
// stored credentials. A missing config file is not an error: no registries
// are known and no pull secrets get rendered.
func (d *Docker) Init(ctx context.Context, g *graph.Graph, out *output.Output) error {
	d.graphName = g.Name()
	d.auths = map[string]interface{}{}

	path := d.configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, ".docker", "config.json")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var cfg struct {
		Auths       map[string]interface{} `json:"auths"`
		HTTPHeaders map[string]interface{} `json:"HttpHeaders"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil
	}
	d.auths = cfg.Auths
	d.headers = cfg.HTTPHeaders
	return nil
}

// ImageSecretsFor returns the pull secret for an image hosted in a registry
// with known credentials, or false when none applies.
func (d *Docker) ImageSecretsFor(image string) (PullSecret, bool) {
	tag, ok := ParseTag(image)
	if !ok || tag.Domain == "" {
		return PullSecret{}, false
	}
	auth, ok := d.auths[tag.Domain]
	if !ok {
		return PullSecret{}, false
	}
	sec := PullSecret{
		Key: d.graphName + "-" + tag.Domain,
		Auth: map[string]interface{}{
			"auths":       map[string]interface{}{tag.Domain: auth},
			"HttpHeaders": d.headers,
		},
	}
	d.pullSecrets[sec.Key] = sec
	return sec, true
}
