package vm

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/bytecode"
	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/object"
)

// runFrame drives f's instruction stream to completion: a normal return
// yields (resultSlots, resultIsRef, nil); an uncaught Java exception or a
// host-level error both surface as err. runFrame does not release f's
// locals; invoke does that once runFrame returns, either way.
func (m *Machine) runFrame(f *Frame) ([]int32, []bool, error) {
	for {
		if f.PC < 0 || f.PC >= len(f.Code.Instructions) {
			return nil, nil, fmt.Errorf("%s.%s%s: PC %d out of range", f.Method.Owner().Name, f.Method.Name, f.Method.Descriptor.Raw, f.PC)
		}
		pc := f.PC
		in := &f.Code.Instructions[pc]
		f.PC++ // default fallthrough; branches/calls overwrite below

		result, resultIsRef, returning, err := m.step(f, in)
		if err != nil {
			jexc, ok := err.(*JavaException)
			if !ok {
				return nil, nil, err
			}
			handlerIdx, found := m.findHandler(f.Code, pc, jexc)
			if !found {
				return nil, nil, err
			}
			f.ReleaseStack(m.Heap)
			f.PushRef(jexc.Ref)
			f.PC = handlerIdx
			continue
		}
		if returning {
			return result, resultIsRef, nil
		}
	}
}

// step executes a single instruction against frame f, returning
// (result, resultIsRef, true, nil) only for a return instruction.
func (m *Machine) step(f *Frame, in *bytecode.Instruction) ([]int32, []bool, bool, error) {
	h := m.Heap
	switch in.Op {
	case bytecode.OpNop:

	case bytecode.OpPushNull:
		f.PushRef(heap.Null)
	case bytecode.OpPushInt:
		f.Push(in.Value)
	case bytecode.OpPushLong:
		f.PushLong(in.Value64)
	case bytecode.OpPushFloat:
		f.Push(int32(floatBits(in.FValue)))
	case bytecode.OpPushDouble:
		f.PushDouble(doubleBits(in.DValue))
	case bytecode.OpLoadConst:
		if err := m.execLoadConst(f, in); err != nil {
			return nil, nil, false, err
		}

	case bytecode.OpLoad:
		m.execLoad(f, in, h)
	case bytecode.OpStore:
		m.execStore(f, in, h)
	case bytecode.OpIinc:
		f.SetLocal(in.Index, f.GetLocal(in.Index)+in.Value)

	case bytecode.OpPop:
		discardTop(f, h, 1)
	case bytecode.OpPop2:
		discardTop(f, h, 2)
	case bytecode.OpDup:
		v, isRef := f.Stack[f.SP-1], f.StackIsRef[f.SP-1]
		pushDup(f, h, v, isRef)
	case bytecode.OpDupX1:
		execDupX1(f, h)
	case bytecode.OpDupX2:
		execDupX2(f, h)
	case bytecode.OpDup2:
		execDup2(f, h)
	case bytecode.OpDup2X1:
		execDup2X1(f, h)
	case bytecode.OpDup2X2:
		execDup2X2(f, h)
	case bytecode.OpSwap:
		f.Stack[f.SP-1], f.Stack[f.SP-2] = f.Stack[f.SP-2], f.Stack[f.SP-1]
		f.StackIsRef[f.SP-1], f.StackIsRef[f.SP-2] = f.StackIsRef[f.SP-2], f.StackIsRef[f.SP-1]

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpRem:
		if err := m.execArith(f, in); err != nil {
			return nil, nil, false, err
		}
	case bytecode.OpNeg:
		execNeg(f, in)
	case bytecode.OpShl, bytecode.OpShr, bytecode.OpUshr:
		execShift(f, in)
	case bytecode.OpAnd, bytecode.OpOr, bytecode.OpXor:
		execBitwise(f, in)

	case bytecode.OpConvert:
		execConvert(f, in)

	case bytecode.OpLcmp:
		b, a := f.PopLong(), f.PopLong()
		f.Push(cmp3(a, b))
	case bytecode.OpFcmpl, bytecode.OpFcmpg:
		execFcmp(f, in)
	case bytecode.OpDcmpl, bytecode.OpDcmpg:
		execDcmp(f, in)

	case bytecode.OpIfCond:
		v := f.Pop()
		if compare(int64(v), 0, in.Cmp) {
			f.PC = in.Target
		}
	case bytecode.OpIfICmpCond:
		if in.Type == bytecode.VKRef {
			b, a := f.PopRef(), f.PopRef()
			h.DecRef(b)
			h.DecRef(a)
			if compareRefEq(a, b, in.Cmp) {
				f.PC = in.Target
			}
		} else {
			b, a := f.Pop(), f.Pop()
			if compare(int64(a), int64(b), in.Cmp) {
				f.PC = in.Target
			}
		}
	case bytecode.OpIfNull:
		ref := f.PopRef()
		h.DecRef(ref)
		if ref == heap.Null {
			f.PC = in.Target
		}
	case bytecode.OpIfNonNull:
		ref := f.PopRef()
		h.DecRef(ref)
		if ref != heap.Null {
			f.PC = in.Target
		}
	case bytecode.OpGoto:
		f.PC = in.Target

	case bytecode.OpReturnVoid:
		return nil, nil, true, nil
	case bytecode.OpReturnValue:
		return execReturn(f, in), []bool{returnIsRef(in)}, true, nil

	case bytecode.OpGetStatic:
		if err := m.execGetStatic(f, in); err != nil {
			return nil, nil, false, err
		}
	case bytecode.OpPutStatic:
		if err := m.execPutStatic(f, in); err != nil {
			return nil, nil, false, err
		}
	case bytecode.OpGetField:
		if err := m.execGetField(f, in); err != nil {
			return nil, nil, false, err
		}
	case bytecode.OpPutField:
		if err := m.execPutField(f, in); err != nil {
			return nil, nil, false, err
		}

	case bytecode.OpInvokeVirtual, bytecode.OpInvokeInterface:
		if err := m.execInvokeVirtualLike(f, in); err != nil {
			return nil, nil, false, err
		}
	case bytecode.OpInvokeSpecial:
		if err := m.execInvokeSpecial(f, in); err != nil {
			return nil, nil, false, err
		}
	case bytecode.OpInvokeStatic:
		if err := m.execInvokeStatic(f, in); err != nil {
			return nil, nil, false, err
		}
	case bytecode.OpInvokeDynamic:
		if err := m.execInvokeDynamic(f, in); err != nil {
			return nil, nil, false, err
		}

	case bytecode.OpNew:
		if err := m.execNew(f, in); err != nil {
			return nil, nil, false, err
		}
	case bytecode.OpNewArray:
		m.execNewArray(f, in)
	case bytecode.OpANewArray:
		if err := m.execANewArray(f, in); err != nil {
			return nil, nil, false, err
		}
	case bytecode.OpMultiANewArray:
		if err := m.execMultiANewArray(f, in); err != nil {
			return nil, nil, false, err
		}
	case bytecode.OpArrayLength:
		ref := f.PopRef()
		inst := h.Get(ref).(*object.Instance)
		h.DecRef(ref)
		f.Push(int32(inst.Length()))
	case bytecode.OpArrayLoad:
		if err := m.execArrayLoad(f, in); err != nil {
			return nil, nil, false, err
		}
	case bytecode.OpArrayStore:
		if err := m.execArrayStore(f, in); err != nil {
			return nil, nil, false, err
		}

	case bytecode.OpCheckCast:
		if err := m.execCheckCast(f, in); err != nil {
			return nil, nil, false, err
		}
	case bytecode.OpInstanceOf:
		if err := m.execInstanceOf(f, in); err != nil {
			return nil, nil, false, err
		}
	case bytecode.OpAThrow:
		ref := f.PopRef()
		if ref == heap.Null {
			return nil, nil, false, m.throwNew("java/lang/NullPointerException", "")
		}
		return nil, nil, false, &JavaException{Ref: ref}

	default:
		return nil, nil, false, fmt.Errorf("unhandled instruction op %d at byte offset %d", in.Op, in.ByteOffset)
	}
	return nil, nil, false, nil
}

func discardTop(f *Frame, h *heap.Heap, n int) {
	for i := 0; i < n; i++ {
		if f.TopIsRef(0) {
			f.DiscardRef(h)
		} else {
			f.Pop()
		}
	}
}

func pushDup(f *Frame, h *heap.Heap, v int32, isRef bool) {
	if isRef {
		h.IncRef(uint32(v))
		f.PushRef(uint32(v))
	} else {
		f.Push(v)
	}
}

func execDupX1(f *Frame, h *heap.Heap) {
	topV, topRef := f.Stack[f.SP-1], f.StackIsRef[f.SP-1]
	belowV, belowRef := f.Stack[f.SP-2], f.StackIsRef[f.SP-2]
	f.SP -= 2
	pushDup(f, h, topV, topRef)
	f.Stack[f.SP], f.StackIsRef[f.SP] = belowV, belowRef
	f.SP++
	pushDup(f, h, topV, topRef)
}

func execDupX2(f *Frame, h *heap.Heap) {
	top := [1]struct {
		v     int32
		isRef bool
	}{{f.Stack[f.SP-1], f.StackIsRef[f.SP-1]}}
	below1 := struct {
		v     int32
		isRef bool
	}{f.Stack[f.SP-2], f.StackIsRef[f.SP-2]}
	below2 := struct {
		v     int32
		isRef bool
	}{f.Stack[f.SP-3], f.StackIsRef[f.SP-3]}
	f.SP -= 3
	pushDup(f, h, top[0].v, top[0].isRef)
	f.Stack[f.SP], f.StackIsRef[f.SP] = below2.v, below2.isRef
	f.SP++
	f.Stack[f.SP], f.StackIsRef[f.SP] = below1.v, below1.isRef
	f.SP++
	pushDup(f, h, top[0].v, top[0].isRef)
}

func execDup2(f *Frame, h *heap.Heap) {
	v1, r1 := f.Stack[f.SP-2], f.StackIsRef[f.SP-2]
	v2, r2 := f.Stack[f.SP-1], f.StackIsRef[f.SP-1]
	pushDup(f, h, v1, r1)
	pushDup(f, h, v2, r2)
}

func execDup2X1(f *Frame, h *heap.Heap) {
	v1, r1 := f.Stack[f.SP-2], f.StackIsRef[f.SP-2]
	v2, r2 := f.Stack[f.SP-1], f.StackIsRef[f.SP-1]
	below := struct {
		v     int32
		isRef bool
	}{f.Stack[f.SP-3], f.StackIsRef[f.SP-3]}
	f.SP -= 3
	pushDup(f, h, v1, r1)
	pushDup(f, h, v2, r2)
	f.Stack[f.SP], f.StackIsRef[f.SP] = below.v, below.isRef
	f.SP++
	pushDup(f, h, v1, r1)
	pushDup(f, h, v2, r2)
}

func execDup2X2(f *Frame, h *heap.Heap) {
	v1, r1 := f.Stack[f.SP-2], f.StackIsRef[f.SP-2]
	v2, r2 := f.Stack[f.SP-1], f.StackIsRef[f.SP-1]
	b1 := struct {
		v     int32
		isRef bool
	}{f.Stack[f.SP-4], f.StackIsRef[f.SP-4]}
	b2 := struct {
		v     int32
		isRef bool
	}{f.Stack[f.SP-3], f.StackIsRef[f.SP-3]}
	f.SP -= 4
	pushDup(f, h, v1, r1)
	pushDup(f, h, v2, r2)
	f.Stack[f.SP], f.StackIsRef[f.SP] = b1.v, b1.isRef
	f.SP++
	f.Stack[f.SP], f.StackIsRef[f.SP] = b2.v, b2.isRef
	f.SP++
	pushDup(f, h, v1, r1)
	pushDup(f, h, v2, r2)
}

func compare(a, b int64, cmp bytecode.CompareOp) bool {
	switch cmp {
	case bytecode.CmpEQ:
		return a == b
	case bytecode.CmpNE:
		return a != b
	case bytecode.CmpLT:
		return a < b
	case bytecode.CmpGE:
		return a >= b
	case bytecode.CmpGT:
		return a > b
	default:
		return a <= b
	}
}

func compareRefEq(a, b uint32, cmp bytecode.CompareOp) bool {
	if cmp == bytecode.CmpEQ {
		return a == b
	}
	return a != b
}

func returnIsRef(in *bytecode.Instruction) bool { return in.Type == bytecode.VKRef }

func execReturn(f *Frame, in *bytecode.Instruction) []int32 {
	switch in.Type {
	case bytecode.VKLong:
		v := f.PopLong()
		return []int32{int32(uint64(v) >> 32), int32(uint64(v))}
	case bytecode.VKDouble:
		bits := f.PopDoubleBits()
		return []int32{int32(bits >> 32), int32(bits)}
	case bytecode.VKRef:
		return []int32{int32(f.PopRef())}
	default:
		return []int32{f.Pop()}
	}
}

func (m *Machine) execLoad(f *Frame, in *bytecode.Instruction, h *heap.Heap) {
	switch in.Type {
	case bytecode.VKLong:
		f.PushLong(f.GetLocalLong(in.Index))
	case bytecode.VKDouble:
		f.PushDouble(uint64(f.GetLocalLong(in.Index)))
	case bytecode.VKFloat:
		f.Push(f.GetLocal(in.Index))
	case bytecode.VKRef:
		f.LoadRef(f.GetLocalRef(in.Index), h)
	default:
		f.Push(f.GetLocal(in.Index))
	}
}

func (m *Machine) execStore(f *Frame, in *bytecode.Instruction, h *heap.Heap) {
	switch in.Type {
	case bytecode.VKLong:
		f.SetLocalLong(in.Index, f.PopLong())
	case bytecode.VKDouble:
		f.SetLocalLong(in.Index, int64(f.PopDoubleBits()))
	case bytecode.VKRef:
		f.StoreRef(in.Index, h)
	default:
		f.SetLocal(in.Index, f.Pop())
	}
}

func (m *Machine) execLoadConst(f *Frame, in *bytecode.Instruction) error {
	c, err := f.Method.Owner().Pool.At(in.ConstRef)
	if err != nil {
		return err
	}
	return m.loadConstant(f, in, c)
}
