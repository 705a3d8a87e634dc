package object

import (
	"testing"

	"github.com/daimatz/gojvm/pkg/heap"
)

func TestNewPlainZeroedSlots(t *testing.T) {
	o := NewPlain("Thing", 3)
	if o.Length() != 3 {
		t.Fatalf("Length() = %d, want 3", o.Length())
	}
	for i := 0; i < 3; i++ {
		if o.GetField(i) != 0 {
			t.Errorf("field %d = %d, want 0", i, o.GetField(i))
		}
	}
}

func TestInitRefDefaultsSetsNullSentinelNotZero(t *testing.T) {
	o := NewPlain("Holder", 2)
	o.IsRef[0] = true // reference-typed field
	o.IsRef[1] = false // primitive field
	o.InitRefDefaults()

	if got := uint32(o.Fields[0]); got != heap.Null {
		t.Errorf("uninitialized ref field = %d, want heap.Null (%d)", got, heap.Null)
	}
	if o.Fields[1] != 0 {
		t.Errorf("uninitialized primitive field = %d, want 0", o.Fields[1])
	}
}

func TestSetFieldManagesRefcounts(t *testing.T) {
	h := heap.New()
	child1 := h.Allocate(plainLeaf{})
	child2 := h.Allocate(plainLeaf{})

	o := NewPlain("Holder", 1)
	o.IsRef[0] = true
	o.InitRefDefaults()

	// SetField transfers the incoming credit rather than duplicating it,
	// so storing child1's sole (Allocate-time) credit into the field
	// leaves its count unchanged at 1 — not bumped to 2.
	o.SetField(0, int32(child1), h)
	if h.RefCount(child1) != 1 {
		t.Fatalf("RefCount(child1) = %d, want 1 (credit transferred, not duplicated)", h.RefCount(child1))
	}

	o.SetField(0, int32(child2), h)
	if h.Live(child1) {
		t.Error("replacing the field should have released child1's only ref, freeing it")
	}
	if !h.Live(child2) {
		t.Error("child2 should still be live")
	}
}

func TestReferencesReportsOnlyRefSlots(t *testing.T) {
	h := heap.New()
	ref := h.Allocate(plainLeaf{})

	o := NewPlain("Holder", 2)
	o.IsRef[1] = true
	o.Fields[0] = 42
	o.Fields[1] = int32(ref)

	refs := o.References()
	if len(refs) != 1 || refs[0] != ref {
		t.Errorf("References() = %v, want [%d]", refs, ref)
	}
}

func TestArrayReferencesWhenElementsAreRef(t *testing.T) {
	h := heap.New()
	a := h.Allocate(plainLeaf{})
	b := h.Allocate(plainLeaf{})

	arr := NewArray("[Ljava/lang/Object;", 2, true)
	arr.Fields[0] = int32(a)
	arr.Fields[1] = int32(b)

	refs := arr.References()
	if len(refs) != 2 {
		t.Fatalf("References() = %v, want 2 entries", refs)
	}
}

type plainLeaf struct{}

func (plainLeaf) References() []uint32 { return nil }
