package store

import (
	"reflect"
	"testing"
)

type testObj struct {
	kind string
	name string
}

func (o *testObj) Kind() string     { return o.kind }
func (o *testObj) Name() string     { return o.name }
func (o *testObj) QualName() string { return o.kind + ":" + o.name }

func TestStore_AddAndGet(t *testing.T) {
	st := New()
	web := &testObj{kind: "Component", name: "web"}
	db := &testObj{kind: "Component", name: "db"}
	shop := &testObj{kind: "Graph", name: "shop"}

	st.Add(web)
	st.Add(db)
	st.Add(shop)

	if st.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", st.Len())
	}

	obj, ok := st.Get("Component", "web")
	if !ok || obj != web {
		t.Errorf("Get(Component, web) = %v, %v", obj, ok)
	}
	obj, ok = st.GetQual("Graph:shop")
	if !ok || obj != shop {
		t.Errorf("GetQual(Graph:shop) = %v, %v", obj, ok)
	}
	if !st.Contains("Component:db") {
		t.Error("Contains(Component:db) = false")
	}
	if st.Contains("Component:missing") {
		t.Error("Contains(Component:missing) = true")
	}
}

func TestStore_AddReplacesIdentity(t *testing.T) {
	st := New()
	st.Add(&testObj{kind: "Component", name: "web"})
	replacement := &testObj{kind: "Component", name: "web"}
	st.Add(replacement)

	if st.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after replacement", st.Len())
	}
	obj, _ := st.Get("Component", "web")
	if obj != replacement {
		t.Error("Add did not replace the stored object")
	}
}

func TestStore_InsertionOrder(t *testing.T) {
	st := New()
	names := []string{"c", "a", "b"}
	for _, n := range names {
		st.Add(&testObj{kind: "Component", name: n})
	}

	var got []string
	for _, obj := range st.Objects() {
		got = append(got, obj.Name())
	}
	if !reflect.DeepEqual(got, names) {
		t.Errorf("Objects() order = %v, want %v", got, names)
	}

	got = nil
	for _, obj := range st.Kind("Component") {
		got = append(got, obj.Name())
	}
	if !reflect.DeepEqual(got, names) {
		t.Errorf("Kind() order = %v, want %v", got, names)
	}
}

func TestStore_Delete(t *testing.T) {
	st := New()
	web := &testObj{kind: "Component", name: "web"}
	st.Add(web)
	st.Delete(web)

	if st.Len() != 0 {
		t.Errorf("Len() = %d, want 0", st.Len())
	}
	if _, ok := st.Get("Component", "web"); ok {
		t.Error("deleted object still retrievable")
	}

	// Deleting a missing object is a no-op.
	st.Delete(web)
}

func TestStore_LateIndexerSeesExistingObjects(t *testing.T) {
	st := New()
	st.Add(&testObj{kind: "Component", name: "web"})

	ix := NewAttributeIndexer()
	id := st.AddIndexer(ix)

	if _, ok := ix.QualName("Component:web"); !ok {
		t.Error("late indexer did not index existing objects")
	}

	st.RemoveIndexer(id)
	st.Add(&testObj{kind: "Component", name: "db"})
	if _, ok := ix.QualName("Component:db"); ok {
		t.Error("removed indexer still receiving objects")
	}
}

func TestAttributeIndexer_Lookups(t *testing.T) {
	st := New()
	st.Add(&testObj{kind: "Component", name: "web"})
	st.Add(&testObj{kind: "Interface", name: "web"})
	st.Add(&testObj{kind: "Component", name: "db"})

	ix := NewAttributeIndexer()
	st.AddIndexer(ix)

	byKind := ix.ByKind("Component")
	if len(byKind) != 2 {
		t.Errorf("ByKind(Component) len = %d, want 2", len(byKind))
	}
	byName := ix.ByName("web")
	if len(byName) != 2 {
		t.Errorf("ByName(web) len = %d, want 2", len(byName))
	}
	if _, ok := byName["Interface"]; !ok {
		t.Error("ByName(web) missing Interface entry")
	}
}
