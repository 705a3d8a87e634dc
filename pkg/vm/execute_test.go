package vm

import (
	"testing"

	"github.com/daimatz/gojvm/pkg/bytecode"
	"github.com/daimatz/gojvm/pkg/heap"
)

// TestRunFrameReleasesLiveStackRefsOnExceptionJump proves that a
// reference sitting on the operand stack underneath whatever throws
// (e.g. a receiver still on the stack when a later subexpression divides
// by zero) has its heap credit released when the exception handler jump
// clears the stack, rather than leaking forever.
func TestRunFrameReleasesLiveStackRefsOnExceptionJump(t *testing.T) {
	m := newTestMachine()
	markerRef := m.Heap.Allocate(&plainLeafValue{})

	code := &bytecode.Method{
		MaxStack:  4,
		MaxLocals: 1,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpArrayLoad, Type: bytecode.VKInt},
			{Op: bytecode.OpPop},
			{Op: bytecode.OpReturnVoid},
		},
		Exceptions: []bytecode.ExceptionEntry{
			{Start: 0, End: 1, Handler: 1, CatchType: ""},
		},
	}

	f := &Frame{
		Code:       code,
		Stack:      make([]int32, code.MaxStack),
		StackIsRef: make([]bool, code.MaxStack),
		Locals:     make([]int32, code.MaxLocals),
		LocalIsRef: make([]bool, code.MaxLocals),
	}

	// Seed the stack the way mid-expression evaluation would: a live
	// reference underneath the null array ref + index that the
	// arrayload is about to throw NullPointerException over.
	f.PushRef(markerRef)
	f.PushRef(heap.Null)
	f.Push(0)

	if _, _, err := m.runFrame(f); err != nil {
		t.Fatalf("runFrame: %v", err)
	}

	if m.Heap.Live(markerRef) {
		t.Error("marker ref still live: exception-handler jump leaked a stack reference's heap credit")
	}
}

type plainLeafValue struct{}

func (*plainLeafValue) References() []uint32 { return nil }
