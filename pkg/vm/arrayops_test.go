package vm

import (
	"testing"

	"github.com/daimatz/gojvm/pkg/bytecode"
	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/object"
)

func TestNewArrayIntRoundTripsThroughLoadStore(t *testing.T) {
	m := newTestMachine()
	f := newTestFrame(8)

	f.Push(3) // length
	m.execNewArray(f, &bytecode.Instruction{ArrTag: bytecode.ArrayInt})
	ref := f.PopRef()

	f.LoadRef(ref, m.Heap)
	f.Push(1) // index
	f.Push(42)
	if err := m.execArrayStore(f, &bytecode.Instruction{Type: bytecode.VKInt}); err != nil {
		t.Fatalf("execArrayStore: %v", err)
	}

	f.LoadRef(ref, m.Heap)
	f.Push(1) // index
	if err := m.execArrayLoad(f, &bytecode.Instruction{Type: bytecode.VKInt}); err != nil {
		t.Fatalf("execArrayLoad: %v", err)
	}
	if got := f.Pop(); got != 42 {
		t.Errorf("arr[1] = %d, want 42", got)
	}
	m.Heap.DecRef(ref)
}

func TestNewArrayLongUsesWideElements(t *testing.T) {
	m := newTestMachine()
	f := newTestFrame(8)

	f.Push(2) // length
	m.execNewArray(f, &bytecode.Instruction{ArrTag: bytecode.ArrayLong})
	ref := f.PopRef()

	inst := m.Heap.Get(ref).(*object.Instance)
	if inst.ArrayElemWidth != 2 {
		t.Fatalf("ArrayElemWidth = %d, want 2", inst.ArrayElemWidth)
	}
	if inst.Length() != 2 {
		t.Fatalf("Length() = %d, want 2 (not len(Fields))", inst.Length())
	}

	f.LoadRef(ref, m.Heap)
	f.Push(0) // index
	f.PushLong(1<<40 + 7)
	if err := m.execArrayStore(f, &bytecode.Instruction{Type: bytecode.VKLong}); err != nil {
		t.Fatalf("execArrayStore: %v", err)
	}

	f.LoadRef(ref, m.Heap)
	f.Push(0) // index
	if err := m.execArrayLoad(f, &bytecode.Instruction{Type: bytecode.VKLong}); err != nil {
		t.Fatalf("execArrayLoad: %v", err)
	}
	if got := f.PopLong(); got != 1<<40+7 {
		t.Errorf("arr[0] = %d, want %d", got, int64(1<<40+7))
	}
	m.Heap.DecRef(ref)
}

func TestArrayLoadOutOfBoundsThrows(t *testing.T) {
	m := newTestMachine()
	f := newTestFrame(8)

	f.Push(2)
	m.execNewArray(f, &bytecode.Instruction{ArrTag: bytecode.ArrayInt})
	ref := f.PopRef()

	f.PushRef(ref)
	f.Push(5) // out of bounds
	err := m.execArrayLoad(f, &bytecode.Instruction{Type: bytecode.VKInt})
	if err == nil {
		t.Fatal("expected ArrayIndexOutOfBoundsException, got nil")
	}
	jexc := err.(*JavaException)
	if got := m.classNameOf(jexc.Ref); got != "java/lang/ArrayIndexOutOfBoundsException" {
		t.Errorf("exception class = %s, want ArrayIndexOutOfBoundsException", got)
	}
}

func TestArrayLoadOnNullThrowsNPE(t *testing.T) {
	m := newTestMachine()
	f := newTestFrame(8)

	f.PushRef(heap.Null)
	f.Push(0)
	err := m.execArrayLoad(f, &bytecode.Instruction{Type: bytecode.VKInt})
	if err == nil {
		t.Fatal("expected NullPointerException, got nil")
	}
	jexc := err.(*JavaException)
	if got := m.classNameOf(jexc.Ref); got != "java/lang/NullPointerException" {
		t.Errorf("exception class = %s, want NullPointerException", got)
	}
}
