package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/loomworks/loom/pkg/entity"
	"github.com/loomworks/loom/pkg/model"
	"github.com/loomworks/loom/pkg/store"
)

func TestLoader_MultiDocument(t *testing.T) {
	st := store.New()
	l := NewLoader(st)

	src := `
kind: Component
name: web
image: registry.example.com/shop/web
---
kind: Interface
name: http
roles:
  - name: server
  - name: client
---
# empty documents are skipped
---
kind: Graph
name: shop
services:
  - name: web
`
	if err := l.LoadReader(context.Background(), strings.NewReader(src), "test.yaml"); err != nil {
		t.Fatalf("LoadReader() error: %v", err)
	}

	if st.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", st.Len())
	}
	if _, ok := st.Get("Component", "web"); !ok {
		t.Error("Component:web not stored")
	}
	if _, ok := st.Get("Interface", "http"); !ok {
		t.Error("Interface:http not stored")
	}
	if _, ok := st.Get("Graph", "shop"); !ok {
		t.Error("Graph:shop not stored")
	}
}

func TestLoader_DuplicateBecomesFacet(t *testing.T) {
	st := store.New()
	l := NewLoader(st)
	ctx := context.Background()

	base := `
kind: Component
name: web
config:
  replicas: 1
  image: web
`
	override := `
kind: Component
name: web
config:
  replicas: 3
`
	if err := l.LoadReader(ctx, strings.NewReader(base), "10-base.yaml"); err != nil {
		t.Fatalf("loading base: %v", err)
	}
	if err := l.LoadReader(ctx, strings.NewReader(override), "20-override.yaml"); err != nil {
		t.Fatalf("loading override: %v", err)
	}

	obj, _ := st.Get("Component", "web")
	e := obj.(*entity.Entity)

	facets := e.Facets()
	if len(facets) != 2 {
		t.Fatalf("facet count = %d, want 2", len(facets))
	}
	if facets[0].Provenance != "20-override.yaml" {
		t.Errorf("newest facet provenance = %s, want 20-override.yaml", facets[0].Provenance)
	}

	cfg := e.View()["config"].(map[string]interface{})
	if cfg["replicas"] != 3 || cfg["image"] != "web" {
		t.Errorf("layered config = %v", cfg)
	}
}

func TestLoader_RuntimeDocumentsWrap(t *testing.T) {
	st := store.New()
	l := NewLoader(st)

	src := `
kind: Runtime
name: k8s
plugins:
  - name: kubernetes
  - name: kustomize
`
	if err := l.LoadReader(context.Background(), strings.NewReader(src), "runtime.yaml"); err != nil {
		t.Fatalf("LoadReader() error: %v", err)
	}

	obj, ok := st.Get("Runtime", "k8s")
	if !ok {
		t.Fatal("Runtime:k8s not stored")
	}
	spec, ok := obj.(*model.RuntimeSpec)
	if !ok {
		t.Fatalf("stored object is %T, want *model.RuntimeSpec", obj)
	}
	plugins := spec.Plugins()
	got := make([]string, len(plugins))
	for i, p := range plugins {
		got[i] = p.Name
	}
	if !reflect.DeepEqual(got, []string{"kubernetes", "kustomize"}) {
		t.Errorf("plugins = %v", got)
	}
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "missing kind",
			src:  "name: web\n",
		},
		{
			name: "missing name",
			src:  "kind: Component\n",
		},
		{
			name: "malformed yaml",
			src:  "kind: [unterminated\n",
		},
		{
			name: "schema violation",
			src:  "kind: Runtime\nname: k8s\n", // plugins required
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader(store.New())
			err := l.LoadReader(context.Background(), strings.NewReader(tt.src), "bad.yaml")
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoader_LoadDirSortedOrder(t *testing.T) {
	dir := t.TempDir()

	// Written out of order; loading must still layer by sorted path.
	files := map[string]string{
		"20-override.yaml": "kind: Component\nname: web\nversion: \"2\"\n",
		"10-base.yaml":     "kind: Component\nname: web\nversion: \"1\"\n",
		"ignored.txt":      "not yaml",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	st := store.New()
	if err := NewLoader(st).LoadDir(context.Background(), dir); err != nil {
		t.Fatalf("LoadDir() error: %v", err)
	}

	obj, _ := st.Get("Component", "web")
	e := obj.(*entity.Entity)
	if got := e.GetString("version"); got != "2" {
		t.Errorf("version = %s, want the later file to win", got)
	}
	if len(e.Facets()) != 2 {
		t.Errorf("facet count = %d, want 2", len(e.Facets()))
	}
}

func TestLoader_UnknownKindPasses(t *testing.T) {
	st := store.New()
	l := NewLoader(st)

	src := "kind: Custom\nname: thing\npayload: 1\n"
	if err := l.LoadReader(context.Background(), strings.NewReader(src), "custom.yaml"); err != nil {
		t.Fatalf("LoadReader() error: %v", err)
	}
	if _, ok := st.Get("Custom", "thing"); !ok {
		t.Error("Custom:thing not stored")
	}
}
