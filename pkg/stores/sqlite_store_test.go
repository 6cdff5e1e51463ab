package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(Config{Path: filepath.Join(t.TempDir(), "loom.db")})
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}
	ctx := context.Background()
	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	return s
}

func testRun(id, graph string, startedAt time.Time) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:          id,
		Graph:       graph,
		Environment: "prod",
		Runtime:     "k8s",
		Status:      RunStatusRunning,
		StartedAt:   startedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("empty path must be rejected")
	}
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := testRun("run-1", "shop", time.Now().UTC())
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if got.Graph != "shop" || got.Status != RunStatusRunning || got.CompletedAt != nil {
		t.Errorf("run = %+v", got)
	}

	if err := s.CompleteRun(ctx, "run-1", RunStatusCompleted, 13, nil); err != nil {
		t.Fatalf("CompleteRun() error: %v", err)
	}
	got, _ = s.GetRun(ctx, "run-1")
	if got.Status != RunStatusCompleted || got.RecordCount != 13 {
		t.Errorf("completed run = %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("completed run lacks completion time")
	}
}

func TestSQLiteStore_FailedRunKeepsError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateRun(ctx, testRun("run-1", "shop", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	msg := "policy violations block the render"
	if err := s.CompleteRun(ctx, "run-1", RunStatusFailed, 0, &msg); err != nil {
		t.Fatalf("CompleteRun() error: %v", err)
	}

	got, _ := s.GetRun(ctx, "run-1")
	if got.Status != RunStatusFailed || got.Error == nil || *got.Error != msg {
		t.Errorf("failed run = %+v", got)
	}
}

func TestSQLiteStore_MissingRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetRun(ctx, "ghost"); err == nil {
		t.Error("GetRun() on a missing run must fail")
	}
	if err := s.CompleteRun(ctx, "ghost", RunStatusCompleted, 0, nil); err == nil {
		t.Error("CompleteRun() on a missing run must fail")
	}
	if err := s.DeleteRun(ctx, "ghost"); err == nil {
		t.Error("DeleteRun() on a missing run must fail")
	}
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, spec := range []struct{ id, graph string }{
		{"run-1", "shop"},
		{"run-2", "shop"},
		{"run-3", "blog"},
	} {
		run := testRun(spec.id, spec.graph, base.Add(time.Duration(i)*time.Minute))
		if err := s.CreateRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListRuns(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("runs = %d, want 3", len(all))
	}
	if all[0].ID != "run-3" {
		t.Errorf("newest run first, got %s", all[0].ID)
	}

	shop, err := s.ListRuns(ctx, "shop", 10, 0)
	if err != nil {
		t.Fatalf("ListRuns(shop) error: %v", err)
	}
	if len(shop) != 2 {
		t.Errorf("shop runs = %d, want 2", len(shop))
	}

	limited, _ := s.ListRuns(ctx, "", 1, 1)
	if len(limited) != 1 || limited[0].ID != "run-2" {
		t.Errorf("paged runs = %+v", limited)
	}
}

func TestSQLiteStore_Artifacts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateRun(ctx, testRun("run-1", "shop", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}

	artifacts := []*Artifact{
		{RunID: "run-1", Name: "40-web-deployment.yaml", Format: "yaml", Plugins: `["kubernetes"]`, Data: "kind: Deployment\n"},
		{RunID: "run-1", Name: "00-shop-namespace.yaml", Format: "yaml", Plugins: `["kubernetes","istio"]`, Data: "kind: Namespace\n"},
	}
	if err := s.AddArtifacts(ctx, "run-1", artifacts); err != nil {
		t.Fatalf("AddArtifacts() error: %v", err)
	}

	listed, err := s.ListArtifacts(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListArtifacts() error: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("artifacts = %d, want 2", len(listed))
	}
	// Name order, not insertion order.
	if listed[0].Name != "00-shop-namespace.yaml" {
		t.Errorf("first artifact = %s", listed[0].Name)
	}

	got, err := s.GetArtifact(ctx, "run-1", "40-web-deployment.yaml")
	if err != nil {
		t.Fatalf("GetArtifact() error: %v", err)
	}
	if got.Data != "kind: Deployment\n" || got.Format != "yaml" {
		t.Errorf("artifact = %+v", got)
	}

	if _, err := s.GetArtifact(ctx, "run-1", "ghost.yaml"); err == nil {
		t.Error("GetArtifact() on a missing artifact must fail")
	}
}

func TestSQLiteStore_DeleteRunCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateRun(ctx, testRun("run-1", "shop", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	artifacts := []*Artifact{
		{RunID: "run-1", Name: "a.yaml", Format: "yaml", Plugins: "[]", Data: "x"},
	}
	if err := s.AddArtifacts(ctx, "run-1", artifacts); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteRun(ctx, "run-1"); err != nil {
		t.Fatalf("DeleteRun() error: %v", err)
	}
	left, err := s.ListArtifacts(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListArtifacts() error: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("artifacts survived the cascade: %d", len(left))
	}
}

func TestSQLiteStore_DuplicateArtifactRolledBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateRun(ctx, testRun("run-1", "shop", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	artifacts := []*Artifact{
		{RunID: "run-1", Name: "a.yaml", Format: "yaml", Plugins: "[]", Data: "x"},
		{RunID: "run-1", Name: "a.yaml", Format: "yaml", Plugins: "[]", Data: "y"},
	}
	if err := s.AddArtifacts(ctx, "run-1", artifacts); err == nil {
		t.Fatal("duplicate artifact names in one run must fail")
	}

	// The whole batch rolls back, not just the duplicate.
	left, _ := s.ListArtifacts(ctx, "run-1")
	if len(left) != 0 {
		t.Errorf("partial artifact batch committed: %d", len(left))
	}
}
