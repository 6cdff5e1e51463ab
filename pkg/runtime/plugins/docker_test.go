package plugins

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		ref  string
		want Tag
		ok   bool
	}{
		{ref: "web", want: Tag{Image: "web"}, ok: true},
		{ref: "web:1.2", want: Tag{Image: "web", Version: "1.2"}, ok: true},
		{ref: "shop/web", want: Tag{Domain: "shop", Image: "web"}, ok: true},
		{
			ref:  "registry.example.com/shop/web:1.2.0",
			want: Tag{Domain: "registry.example.com", Org: "shop", Image: "web", Version: "1.2.0"},
			ok:   true,
		},
		{
			ref:  "registry.example.com/web:latest",
			want: Tag{Domain: "registry.example.com", Image: "web", Version: "latest"},
			ok:   true,
		},
		{ref: "", ok: false},
		{ref: "web:bad:tag", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, ok := ParseTag(tt.ref)
			if ok != tt.ok {
				t.Fatalf("ParseTag(%q) ok = %v, want %v", tt.ref, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("ParseTag(%q) = %+v, want %+v", tt.ref, got, tt.want)
			}
		})
	}
}

func TestDocker_ImageSecretsFor(t *testing.T) {
	d := &Docker{
		graphName: "shop",
		auths: map[string]interface{}{
			"registry.example.com": map[string]interface{}{"auth": "c2VjcmV0"},
		},
		pullSecrets: map[string]PullSecret{},
	}

	sec, ok := d.ImageSecretsFor("registry.example.com/shop/web:1.2.0")
	if !ok {
		t.Fatal("expected a pull secret for a known registry")
	}
	if sec.Key != "shop-registry.example.com" {
		t.Errorf("secret key = %s", sec.Key)
	}
	auths, _ := sec.Auth["auths"].(map[string]interface{})
	if _, present := auths["registry.example.com"]; !present {
		t.Error("secret should carry the matching registry auth")
	}

	if _, ok := d.ImageSecretsFor("other.example.com/web:1"); ok {
		t.Error("unknown registry should yield no secret")
	}
	if _, ok := d.ImageSecretsFor("web:1"); ok {
		t.Error("domain-less image should yield no secret")
	}
}

func TestDocker_InitReadsConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	cfg := `{"auths": {"registry.example.com": {"auth": "c2VjcmV0"}}}`
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	d := &Docker{configPath: path, pullSecrets: map[string]PullSecret{}}
	g := planStack(t, []string{"docker"}, nil, false)
	if err := d.Init(context.Background(), g, nil); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	if _, ok := d.ImageSecretsFor("registry.example.com/shop/web:1.2.0"); !ok {
		t.Error("credentials from the config file not picked up")
	}

	// A missing config file is not an error, just no known registries.
	d2 := &Docker{configPath: filepath.Join(dir, "absent.json"), pullSecrets: map[string]PullSecret{}}
	if err := d2.Init(context.Background(), g, nil); err != nil {
		t.Errorf("Init() with missing config error: %v", err)
	}
}
