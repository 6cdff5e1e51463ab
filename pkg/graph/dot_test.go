package graph

import (
	"testing"
)

func TestDOT(t *testing.T) {
	g := mustPlan(t, map[string]interface{}{
		"kind": "Graph", "name": "shop",
		"services": []interface{}{
			map[string]interface{}{"name": "web"},
			map[string]interface{}{"name": "db"},
		},
		"relations": []interface{}{
			[]interface{}{"web:db", "db:sql"},
		},
	}, Options{})

	want := `graph "shop" {
  "web";
  "db";
  "web" -- "db" [label="postgres"];
}
`
	if got := g.DOT(); got != want {
		t.Errorf("DOT() =\n%s\nwant\n%s", got, want)
	}
}

func TestDOT_Deterministic(t *testing.T) {
	doc := map[string]interface{}{
		"kind": "Graph", "name": "shop",
		"services": []interface{}{
			map[string]interface{}{"name": "web"},
			map[string]interface{}{"name": "db"},
		},
		"relations": []interface{}{
			[]interface{}{"web:db", "db:sql"},
		},
	}
	a := mustPlan(t, doc, Options{}).DOT()
	b := mustPlan(t, doc, Options{}).DOT()
	if a != b {
		t.Error("repeated plans must render identical dot output")
	}
}
