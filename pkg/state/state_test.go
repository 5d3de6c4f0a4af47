package state

import "testing"

func TestMapGetSet(t *testing.T) {
	m := NewMap(nil)
	if _, ok := m.Get("missing"); ok {
		t.Fatal("expected missing key to report not-ok")
	}
	m.Set("a", 1)
	v, ok := m.Get("a")
	if !ok || v != 1 {
		t.Fatalf("expected a=1, got %v ok=%v", v, ok)
	}
}

func TestMapSeededFromInitial(t *testing.T) {
	m := NewMap(map[string]interface{}{"x": "y"})
	v, ok := m.Get("x")
	if !ok || v != "y" {
		t.Fatalf("expected seeded x=y, got %v ok=%v", v, ok)
	}
}

func TestMapDelete(t *testing.T) {
	m := NewMap(map[string]interface{}{"a": 1})
	m.Delete("a")
	if _, ok := m.Get("a"); ok {
		t.Fatal("expected a to be deleted")
	}
}

func TestMapSnapshotIsIndependentCopy(t *testing.T) {
	m := NewMap(map[string]interface{}{"a": 1})
	snap := m.Snapshot()
	snap["a"] = 2
	v, _ := m.Get("a")
	if v != 1 {
		t.Fatalf("expected snapshot mutation not to affect map, got %v", v)
	}
}

func TestVectorCacheIsolatesByVectorID(t *testing.T) {
	c := NewVectorCache()
	c.For("node-1").Set("k", "v1")
	c.For("node-2").Set("k", "v2")

	v1, _ := c.For("node-1").Get("k")
	v2, _ := c.For("node-2").Get("k")
	if v1 != "v1" || v2 != "v2" {
		t.Fatalf("expected isolated caches, got v1=%v v2=%v", v1, v2)
	}
}

func TestVectorCacheForReturnsSameMapOnRepeat(t *testing.T) {
	c := NewVectorCache()
	first := c.For("node-1")
	first.Set("k", "v")

	second := c.For("node-1")
	v, ok := second.Get("k")
	if !ok || v != "v" {
		t.Fatal("expected repeated For() calls to return the same cache instance")
	}
}
