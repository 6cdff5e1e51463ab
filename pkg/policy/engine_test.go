package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/loomworks/loom/pkg/output"
)

// deployment builds a minimal Deployment payload for policy evaluation.
func deployment(name, image, namespace string, labels map[string]interface{}) map[string]interface{} {
	if labels == nil {
		labels = map[string]interface{}{"app.kubernetes.io/managed-by": "loom"}
	}
	return map[string]interface{}{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": namespace,
			"labels":    labels,
		},
		"spec": map[string]interface{}{
			"template": map[string]interface{}{
				"spec": map[string]interface{}{
					"containers": []interface{}{
						map[string]interface{}{"name": name, "image": image},
					},
				},
			},
		},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	return e
}

func violationsFor(result *Result, policy string) []Violation {
	var out []Violation
	for _, v := range result.Violations {
		if v.Policy == policy {
			out = append(out, v)
		}
	}
	return out
}

func TestEvaluateOutput_CleanRecordsAllowed(t *testing.T) {
	e := newTestEngine(t)
	out := output.New()
	_ = out.Add("40-web-deployment.yaml", deployment("web", "web:1.2.0", "shop", nil), "kubernetes", nil)

	result, err := e.EvaluateOutput(context.Background(), "shop", out)
	if err != nil {
		t.Fatalf("EvaluateOutput() error: %v", err)
	}
	if !result.Allowed {
		t.Errorf("clean output blocked: %v", result.Violations)
	}
	if len(result.Violations) != 0 {
		t.Errorf("violations = %v, want none", result.Violations)
	}
	if len(result.EvaluatedPolicies) != 3 {
		t.Errorf("evaluated policies = %v, want the three builtins", result.EvaluatedPolicies)
	}
}

func TestEvaluateOutput_LatestTagBlocks(t *testing.T) {
	e := newTestEngine(t)
	out := output.New()
	_ = out.Add("40-web-deployment.yaml", deployment("web", "web:latest", "shop", nil), "kubernetes", nil)

	result, err := e.EvaluateOutput(context.Background(), "shop", out)
	if err != nil {
		t.Fatalf("EvaluateOutput() error: %v", err)
	}
	if result.Allowed {
		t.Error("a latest tag must block the output")
	}

	found := violationsFor(result, "pinned-image")
	if len(found) != 1 {
		t.Fatalf("pinned-image violations = %v", result.Violations)
	}
	if found[0].Severity != SeverityError {
		t.Errorf("severity = %s", found[0].Severity)
	}
	if found[0].Record != "40-web-deployment.yaml" {
		t.Errorf("record = %s", found[0].Record)
	}
	if !strings.Contains(found[0].Message, "latest") {
		t.Errorf("message = %s", found[0].Message)
	}
}

func TestEvaluateOutput_MissingTagBlocks(t *testing.T) {
	e := newTestEngine(t)
	out := output.New()
	_ = out.Add("40-web-deployment.yaml", deployment("web", "web", "shop", nil), "kubernetes", nil)

	result, err := e.EvaluateOutput(context.Background(), "shop", out)
	if err != nil {
		t.Fatalf("EvaluateOutput() error: %v", err)
	}
	if result.Allowed {
		t.Error("an untagged image must block the output")
	}
	if len(violationsFor(result, "pinned-image")) != 1 {
		t.Errorf("violations = %v", result.Violations)
	}
}

func TestEvaluateOutput_ForeignNamespaceWarns(t *testing.T) {
	e := newTestEngine(t)
	out := output.New()
	_ = out.Add("40-web-deployment.yaml", deployment("web", "web:1.2.0", "elsewhere", nil), "kubernetes", nil)

	result, err := e.EvaluateOutput(context.Background(), "shop", out)
	if err != nil {
		t.Fatalf("EvaluateOutput() error: %v", err)
	}

	found := violationsFor(result, "namespace-scope")
	if len(found) != 1 {
		t.Fatalf("namespace-scope violations = %v", result.Violations)
	}
	if found[0].Severity != SeverityWarning {
		t.Errorf("severity = %s", found[0].Severity)
	}
	// Warnings alone never block.
	if !result.Allowed {
		t.Error("warning-only violations must not block the output")
	}
}

func TestEvaluateOutput_SystemNamespaceExempt(t *testing.T) {
	e := newTestEngine(t)
	out := output.New()
	gw := map[string]interface{}{
		"kind": "Gateway",
		"metadata": map[string]interface{}{
			"name":      "ingressgateway",
			"namespace": "istio-system",
		},
	}
	_ = out.Add("02-ingressgateway.yaml", gw, "istio", nil)

	result, err := e.EvaluateOutput(context.Background(), "shop", out)
	if err != nil {
		t.Fatalf("EvaluateOutput() error: %v", err)
	}
	if len(violationsFor(result, "namespace-scope")) != 0 {
		t.Errorf("system namespaces are exempt, got %v", result.Violations)
	}
}

func TestEvaluateOutput_MissingManagedByLabel(t *testing.T) {
	e := newTestEngine(t)
	out := output.New()
	dep := deployment("web", "web:1.2.0", "shop", map[string]interface{}{"app": "web"})
	_ = out.Add("40-web-deployment.yaml", dep, "kubernetes", nil)

	result, err := e.EvaluateOutput(context.Background(), "shop", out)
	if err != nil {
		t.Fatalf("EvaluateOutput() error: %v", err)
	}
	if len(violationsFor(result, "managed-by-label")) != 1 {
		t.Errorf("violations = %v", result.Violations)
	}
}

func TestEngine_DisablePolicy(t *testing.T) {
	e := newTestEngine(t)
	if err := e.DisablePolicy("pinned-image"); err != nil {
		t.Fatalf("DisablePolicy() error: %v", err)
	}

	out := output.New()
	_ = out.Add("40-web-deployment.yaml", deployment("web", "web:latest", "shop", nil), "kubernetes", nil)

	result, err := e.EvaluateOutput(context.Background(), "shop", out)
	if err != nil {
		t.Fatalf("EvaluateOutput() error: %v", err)
	}
	if !result.Allowed {
		t.Error("disabled policies must not be evaluated")
	}

	if err := e.EnablePolicy("pinned-image"); err != nil {
		t.Fatalf("EnablePolicy() error: %v", err)
	}
	result, _ = e.EvaluateOutput(context.Background(), "shop", out)
	if result.Allowed {
		t.Error("re-enabled policy must block again")
	}
}

func TestEngine_PolicyLookup(t *testing.T) {
	e := newTestEngine(t)

	p, err := e.GetPolicy("pinned-image")
	if err != nil {
		t.Fatalf("GetPolicy() error: %v", err)
	}
	if p.Severity != SeverityError || !p.Enabled {
		t.Errorf("policy = %+v", p)
	}
	if _, err := e.GetPolicy("ghost"); err == nil {
		t.Error("unknown policy must error")
	}
	if got := len(e.ListPolicies()); got != 3 {
		t.Errorf("ListPolicies() = %d, want 3 builtins", got)
	}
}

func TestExtractPackageName(t *testing.T) {
	tests := []struct {
		name string
		rego string
		want string
	}{
		{
			name: "declared package",
			rego: "package loom.policies.custom\n\ndeny[msg] { msg := \"x\" }",
			want: "loom.policies.custom",
		},
		{
			name: "leading comments",
			rego: "# a policy\npackage my.pkg\n",
			want: "my.pkg",
		},
		{
			name: "missing package falls back",
			rego: "deny[msg] { msg := \"x\" }",
			want: "loom.policies",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPackageName(tt.rego); got != tt.want {
				t.Errorf("extractPackageName() = %s, want %s", got, tt.want)
			}
		})
	}
}
