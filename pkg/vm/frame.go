package vm

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/bytecode"
	"github.com/daimatz/gojvm/pkg/classarea"
	"github.com/daimatz/gojvm/pkg/heap"
)

// Frame is one activation record: a locals array and an operand stack of
// 32-bit slots, matching the real JVM's layout where a long or double
// occupies two consecutive category-1 slots (high word pushed first).
// Reference-typed slots hold a heap.Heap index (or heap.Null).
//
// Refcount discipline: a local variable slot holding a live reference
// owns exactly one heap credit. Loading it onto the operand stack
// (LoadRef) acquires a second, independent credit for the stack slot;
// storing the stack's top back into a local (StoreRef) transfers that
// stack credit into the local slot, releasing whatever credit the local
// held before. A frame that exits — by return or by an exception
// unwinding past it — must release every local slot's credit via
// ReleaseLocals, since nothing else will.
type Frame struct {
	Method *classarea.Method
	Code   *bytecode.Method
	PC     int

	Locals     []int32
	LocalIsRef []bool

	Stack      []int32
	StackIsRef []bool
	SP         int
}

// NewFrame allocates a frame sized for method's locals/stack requirements.
func NewFrame(method *classarea.Method, code *bytecode.Method) *Frame {
	return &Frame{
		Method:     method,
		Code:       code,
		Locals:     make([]int32, code.MaxLocals),
		LocalIsRef: make([]bool, code.MaxLocals),
		Stack:      make([]int32, code.MaxStack),
		StackIsRef: make([]bool, code.MaxStack),
	}
}

func (f *Frame) Push(v int32) {
	if f.SP >= len(f.Stack) {
		panic(fmt.Sprintf("operand stack overflow: SP=%d max=%d", f.SP, len(f.Stack)))
	}
	f.Stack[f.SP] = v
	f.StackIsRef[f.SP] = false
	f.SP++
}

// PushRef pushes ref onto the stack without touching its refcount — the
// caller already holds (or is transferring in) the credit this slot will
// represent. Use LoadRef instead when duplicating a reference that must
// keep living elsewhere too.
func (f *Frame) PushRef(ref uint32) {
	if f.SP >= len(f.Stack) {
		panic(fmt.Sprintf("operand stack overflow: SP=%d max=%d", f.SP, len(f.Stack)))
	}
	f.Stack[f.SP] = int32(ref)
	f.StackIsRef[f.SP] = true
	f.SP++
}

// LoadRef duplicates ref onto the stack, acquiring a fresh heap credit
// for the new stack slot (the original owner keeps its own credit).
func (f *Frame) LoadRef(ref uint32, h *heap.Heap) {
	h.IncRef(ref)
	f.PushRef(ref)
}

func (f *Frame) Pop() int32 {
	if f.SP <= 0 {
		panic("operand stack underflow")
	}
	f.SP--
	return f.Stack[f.SP]
}

// PopRef pops a slot known to hold a reference, transferring its credit
// to the caller (who must store it somewhere or release it).
func (f *Frame) PopRef() uint32 {
	if f.SP <= 0 {
		panic("operand stack underflow")
	}
	f.SP--
	return uint32(f.Stack[f.SP])
}

// DiscardRef pops a reference slot whose value is not being kept (a bare
// pop/pop2 of an object reference), releasing its credit.
func (f *Frame) DiscardRef(h *heap.Heap) {
	h.DecRef(f.PopRef())
}

// TopIsRef reports whether the slot at stack depth (0 = top) holds a
// reference, used by dup/swap family instructions that must copy the
// IsRef tag along with the value.
func (f *Frame) TopIsRef(depth int) bool {
	return f.StackIsRef[f.SP-1-depth]
}

func (f *Frame) PushLong(v int64) {
	f.Push(int32(uint64(v) >> 32))
	f.Push(int32(uint64(v)))
}

func (f *Frame) PopLong() int64 {
	lo := uint32(f.Pop())
	hi := uint32(f.Pop())
	return int64(uint64(hi)<<32 | uint64(lo))
}

func (f *Frame) PushDouble(bits uint64) {
	f.Push(int32(bits >> 32))
	f.Push(int32(bits))
}

func (f *Frame) PopDoubleBits() uint64 {
	lo := uint32(f.Pop())
	hi := uint32(f.Pop())
	return uint64(hi)<<32 | uint64(lo)
}

func (f *Frame) GetLocal(i int) int32 { return f.Locals[i] }
func (f *Frame) SetLocal(i int, v int32) {
	f.Locals[i] = v
	f.LocalIsRef[i] = false
}
func (f *Frame) GetLocalRef(i int) uint32 { return uint32(f.Locals[i]) }

// StoreRef pops the top-of-stack reference and stores it into local i,
// releasing whatever credit the local previously held (the popped
// credit is transferred in, not duplicated).
func (f *Frame) StoreRef(i int, h *heap.Heap) {
	ref := f.PopRef()
	if f.LocalIsRef[i] {
		h.DecRef(f.GetLocalRef(i))
	}
	f.Locals[i] = int32(ref)
	f.LocalIsRef[i] = true
}

// SetLocalRefNoRelease is used only at call setup, binding an incoming
// argument's already-acquired credit into a fresh frame's local slot
// (there is nothing previously in the slot to release).
func (f *Frame) SetLocalRefNoRelease(i int, ref uint32) {
	f.Locals[i] = int32(ref)
	f.LocalIsRef[i] = true
}

func (f *Frame) GetLocalLong(i int) int64 {
	hi := uint32(f.Locals[i])
	lo := uint32(f.Locals[i+1])
	return int64(uint64(hi)<<32 | uint64(lo))
}
func (f *Frame) SetLocalLong(i int, v int64) {
	f.Locals[i] = int32(uint64(v) >> 32)
	f.LocalIsRef[i] = false
	f.Locals[i+1] = int32(uint64(v))
	f.LocalIsRef[i+1] = false
}

// ReleaseLocals drops every reference-typed local's heap credit. Called
// once a frame is done executing, whatever the reason.
func (f *Frame) ReleaseLocals(h *heap.Heap) {
	for i, isRef := range f.LocalIsRef {
		if isRef {
			ref := uint32(f.Locals[i])
			if ref != heap.Null {
				h.DecRef(ref)
			}
			f.LocalIsRef[i] = false
		}
	}
}

// ReleaseStack drops every reference-typed operand-stack slot's heap
// credit below SP, then empties the stack. An exception unwinding past
// mid-expression state (a receiver ref still sitting under an operation
// that then throws) leaves live references on the operand stack that
// nothing else will release — this must run before the handler jump
// discards them, the same discipline ReleaseLocals applies to locals.
func (f *Frame) ReleaseStack(h *heap.Heap) {
	for i := 0; i < f.SP; i++ {
		if f.StackIsRef[i] {
			ref := uint32(f.Stack[i])
			if ref != heap.Null {
				h.DecRef(ref)
			}
			f.StackIsRef[i] = false
		}
	}
	f.SP = 0
}
