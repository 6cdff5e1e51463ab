package entity

import (
	"errors"
	"reflect"
	"testing"
)

func componentSchema() *Schema {
	return &Schema{
		Type:     "object",
		Required: []string{"kind", "name"},
		Properties: map[string]*Schema{
			"kind":        {Type: "string"},
			"name":        {Type: "string"},
			"config":      {Type: "object"},
			"environment": {Type: "array", MergeStrategy: StrategyAppend},
		},
	}
}

func TestEntity_FacetLayering(t *testing.T) {
	e := FromData(map[string]interface{}{
		"kind":   "Component",
		"name":   "web",
		"config": map[string]interface{}{"replicas": 1, "image": "web"},
	}, componentSchema(), "base.yaml")

	e.AddFacet(map[string]interface{}{
		"config": map[string]interface{}{"replicas": 3},
	}, "override.yaml")

	view := e.View()
	cfg := view["config"].(map[string]interface{})
	if cfg["replicas"] != 3 {
		t.Errorf("replicas = %v, want 3", cfg["replicas"])
	}
	if cfg["image"] != "web" {
		t.Errorf("image = %v, want web", cfg["image"])
	}
}

func TestEntity_FacetsNewestFirst(t *testing.T) {
	e := FromData(map[string]interface{}{"kind": "Component", "name": "web"}, nil, "a.yaml")
	e.AddFacet(map[string]interface{}{"x": 1}, "b.yaml")
	e.AddFacet(map[string]interface{}{"x": 2}, "c.yaml")

	facets := e.Facets()
	want := []string{"c.yaml", "b.yaml", "a.yaml"}
	for i, f := range facets {
		if f.Provenance != want[i] {
			t.Errorf("facet[%d].Provenance = %s, want %s", i, f.Provenance, want[i])
		}
	}
}

func TestEntity_SchemaDefaults(t *testing.T) {
	e := FromData(map[string]interface{}{
		"kind": "Component",
		"name": "web",
	}, componentSchema(), "base.yaml")

	view := e.View()
	if !reflect.DeepEqual(view["environment"], []interface{}{}) {
		t.Errorf("environment = %v, want empty array default", view["environment"])
	}
	if !reflect.DeepEqual(view["config"], map[string]interface{}{}) {
		t.Errorf("config = %v, want empty object default", view["config"])
	}
}

func TestEntity_Get(t *testing.T) {
	e := FromData(map[string]interface{}{
		"kind": "Component",
		"name": "web",
		"config": map[string]interface{}{
			"nested": map[string]interface{}{"value": 42},
		},
	}, nil, "base.yaml")

	v, err := e.Get("config.nested.value")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if v != 42 {
		t.Errorf("Get() = %v, want 42", v)
	}

	_, err = e.Get("config.missing")
	var notFound *ErrKeyNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("Get() error = %v, want *ErrKeyNotFound", err)
	}

	if got := e.GetDefault("config.missing", "fallback"); got != "fallback" {
		t.Errorf("GetDefault() = %v, want fallback", got)
	}
	if got := e.GetString("name"); got != "web" {
		t.Errorf("GetString() = %v, want web", got)
	}
}

func TestEntity_Identity(t *testing.T) {
	e := FromData(map[string]interface{}{"kind": "Graph", "name": "shop"}, nil, "g.yaml")
	if e.Kind() != "Graph" {
		t.Errorf("Kind() = %s, want Graph", e.Kind())
	}
	if e.Name() != "shop" {
		t.Errorf("Name() = %s, want shop", e.Name())
	}
	if e.QualName() != "Graph:shop" {
		t.Errorf("QualName() = %s, want Graph:shop", e.QualName())
	}
}

func TestEntity_AddFacetCopiesData(t *testing.T) {
	e := New(nil)
	data := map[string]interface{}{"x": map[string]interface{}{"y": 1}}
	e.AddFacet(data, "f.yaml")

	data["x"].(map[string]interface{})["y"] = 99

	if e.View()["x"].(map[string]interface{})["y"] != 1 {
		t.Error("AddFacet shared mutable state with the caller")
	}
}

func TestSchema_Validate(t *testing.T) {
	schema := componentSchema()

	tests := []struct {
		name    string
		doc     map[string]interface{}
		wantErr bool
	}{
		{
			name:    "valid document",
			doc:     map[string]interface{}{"kind": "Component", "name": "web"},
			wantErr: false,
		},
		{
			name:    "missing required key",
			doc:     map[string]interface{}{"kind": "Component"},
			wantErr: true,
		},
		{
			name:    "wrong type",
			doc:     map[string]interface{}{"kind": "Component", "name": 42},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.Validate(tt.doc)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLookupAndSetPath(t *testing.T) {
	obj := map[string]interface{}{}
	SetPath(obj, "a.b.c", 1)

	v, ok := Lookup(obj, "a.b.c")
	if !ok || v != 1 {
		t.Fatalf("Lookup(a.b.c) = %v, %v", v, ok)
	}
	if _, ok := Lookup(obj, "a.b.c.d"); ok {
		t.Error("Lookup through a scalar should fail")
	}
	if v, ok := Lookup(obj, ""); !ok || !reflect.DeepEqual(v, obj) {
		t.Error("Lookup with empty path should return the object")
	}
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		v    interface{}
		want string
	}{
		{nil, "null"},
		{map[string]interface{}{}, "object"},
		{[]interface{}{}, "array"},
		{"s", "string"},
		{true, "boolean"},
		{1, "integer"},
		{1.5, "number"},
	}
	for _, tt := range tests {
		if got := TypeOf(tt.v); got != tt.want {
			t.Errorf("TypeOf(%v) = %s, want %s", tt.v, got, tt.want)
		}
	}
}
