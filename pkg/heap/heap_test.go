package heap

import "testing"

// leafValue holds no outgoing references.
type leafValue struct{ tag string }

func (leafValue) References() []uint32 { return nil }

// refValue holds a fixed list of outgoing references, standing in for an
// object whose fields point at other heap slots.
type refValue struct {
	refs []uint32
}

func (v refValue) References() []uint32 { return v.refs }

func TestAllocateAndGet(t *testing.T) {
	h := New()
	ref := h.Allocate(leafValue{tag: "x"})
	v := h.Get(ref).(leafValue)
	if v.tag != "x" {
		t.Errorf("Get = %+v, want tag=x", v)
	}
	if h.RefCount(ref) != 1 {
		t.Errorf("RefCount = %d, want 1", h.RefCount(ref))
	}
}

func TestIncDecRefFreesAtZero(t *testing.T) {
	h := New()
	ref := h.Allocate(leafValue{})
	h.IncRef(ref)
	if h.RefCount(ref) != 2 {
		t.Fatalf("RefCount = %d, want 2", h.RefCount(ref))
	}
	h.DecRef(ref)
	if !h.Live(ref) {
		t.Fatal("object freed too early")
	}
	h.DecRef(ref)
	if h.Live(ref) {
		t.Error("object should be freed once refcount reaches 0")
	}
}

func TestDecRefCascadesToChildren(t *testing.T) {
	h := New()
	child := h.Allocate(leafValue{tag: "child"})
	parent := h.Allocate(refValue{refs: []uint32{child}})

	if h.RefCount(child) != 1 {
		t.Fatalf("child RefCount = %d, want 1", h.RefCount(child))
	}
	h.DecRef(parent)
	if h.Live(parent) {
		t.Error("parent should be freed")
	}
	if h.Live(child) {
		t.Error("freeing the parent should cascade-free the child")
	}
}

func TestDecRefOnNullIsNoop(t *testing.T) {
	h := New()
	h.DecRef(Null) // must not panic
	h.IncRef(Null) // must not panic
}

func TestFreedSlotsAreNotReused(t *testing.T) {
	h := New()
	a := h.Allocate(leafValue{tag: "a"})
	h.DecRef(a)
	b := h.Allocate(leafValue{tag: "b"})
	if b == a {
		t.Errorf("Allocate after free returned %d, want a fresh slot distinct from freed %d", b, a)
	}
	if h.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (freed index retired, not reused)", h.Len())
	}
}

func TestGetPanicsOnDanglingReference(t *testing.T) {
	h := New()
	ref := h.Allocate(leafValue{})
	h.DecRef(ref)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on Get of a freed reference")
		}
	}()
	h.Get(ref)
}
