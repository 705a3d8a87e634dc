package vm

import (
	"github.com/daimatz/gojvm/pkg/bytecode"
	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/descriptor"
	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/object"
)

func (m *Machine) execInvokeVirtualLike(f *Frame, in *bytecode.Instruction) error {
	c, desc, err := m.methodRefAndDesc(f, in)
	if err != nil {
		return err
	}
	args, argIsRef := popArgs(f, desc)
	receiver := f.PopRef()
	if receiver == heap.Null {
		releaseArgs(m.Heap, args, argIsRef)
		return m.throwNew("java/lang/NullPointerException", "")
	}
	inst := m.Heap.Get(receiver).(*object.Instance)
	if inst.Kind == object.KindMethodHandle {
		result, resultIsRef, err := m.invokeBoundHandle(inst, receiver, args, argIsRef)
		if err != nil {
			return err
		}
		pushResult(f, desc, result, resultIsRef)
		return nil
	}
	class, method, err := m.resolveVirtual(inst.ClassName, c.RefName, c.RefFieldType)
	if err != nil {
		m.Heap.DecRef(receiver)
		releaseArgs(m.Heap, args, argIsRef)
		return err
	}
	result, resultIsRef, err := m.invoke(class, method, prependRef(receiver, args), prependBool(true, argIsRef))
	if err != nil {
		return err
	}
	pushResult(f, desc, result, resultIsRef)
	return nil
}

func (m *Machine) execInvokeSpecial(f *Frame, in *bytecode.Instruction) error {
	c, desc, err := m.methodRefAndDesc(f, in)
	if err != nil {
		return err
	}
	args, argIsRef := popArgs(f, desc)
	receiver := f.PopRef()
	if receiver == heap.Null {
		releaseArgs(m.Heap, args, argIsRef)
		return m.throwNew("java/lang/NullPointerException", "")
	}
	class, method, err := m.resolveSpecial(c.RefClass, c.RefName, c.RefFieldType)
	if err != nil {
		m.Heap.DecRef(receiver)
		releaseArgs(m.Heap, args, argIsRef)
		return err
	}
	result, resultIsRef, err := m.invoke(class, method, prependRef(receiver, args), prependBool(true, argIsRef))
	if err != nil {
		return err
	}
	pushResult(f, desc, result, resultIsRef)
	return nil
}

func (m *Machine) execInvokeStatic(f *Frame, in *bytecode.Instruction) error {
	c, desc, err := m.methodRefAndDesc(f, in)
	if err != nil {
		return err
	}
	args, argIsRef := popArgs(f, desc)
	class, method, err := m.resolveStatic(c.RefClass, c.RefName, c.RefFieldType)
	if err != nil {
		releaseArgs(m.Heap, args, argIsRef)
		return err
	}
	result, resultIsRef, err := m.invoke(class, method, args, argIsRef)
	if err != nil {
		return err
	}
	pushResult(f, desc, result, resultIsRef)
	return nil
}

func (m *Machine) methodRefAndDesc(f *Frame, in *bytecode.Instruction) (*classfile.Constant, descriptor.MethodDescriptor, error) {
	c, err := f.Method.Owner().Pool.At(in.ConstRef)
	if err != nil {
		return nil, descriptor.MethodDescriptor{}, err
	}
	desc, err := descriptor.ParseMethod(c.RefFieldType)
	if err != nil {
		return nil, descriptor.MethodDescriptor{}, err
	}
	return c, desc, nil
}

// popArgs pops a call's arguments off the operand stack, in descriptor
// order (params were pushed left-to-right, so the last one popped is the
// first one returned). The layout matches invoke()'s JVM-locals
// convention: long/double occupy two consecutive int32 slots.
func popArgs(f *Frame, desc descriptor.MethodDescriptor) ([]int32, []bool) {
	args := make([]int32, desc.ParamSize)
	argIsRef := make([]bool, desc.ParamSize)
	pos := desc.ParamSize
	for i := len(desc.Params) - 1; i >= 0; i-- {
		p := desc.Params[i]
		switch {
		case p.IsReference():
			pos--
			args[pos] = int32(f.PopRef())
			argIsRef[pos] = true
		case p.Width() == 2:
			lo := f.Pop()
			hi := f.Pop()
			pos -= 2
			args[pos], args[pos+1] = hi, lo
		default:
			pos--
			args[pos] = f.Pop()
		}
	}
	return args, argIsRef
}

func pushResult(f *Frame, desc descriptor.MethodDescriptor, result []int32, resultIsRef []bool) {
	if desc.Return == nil {
		return
	}
	switch {
	case desc.Return.IsReference():
		f.PushRef(uint32(result[0]))
	case desc.Return.Width() == 2:
		f.Push(result[0])
		f.Push(result[1])
	default:
		f.Push(result[0])
	}
}

func releaseArgs(h *heap.Heap, args []int32, argIsRef []bool) {
	for i, isRef := range argIsRef {
		if isRef {
			h.DecRef(uint32(args[i]))
		}
	}
}

func prependRef(ref uint32, rest []int32) []int32 {
	out := make([]int32, 0, len(rest)+1)
	out = append(out, int32(ref))
	return append(out, rest...)
}

func prependBool(v bool, rest []bool) []bool {
	out := make([]bool, 0, len(rest)+1)
	out = append(out, v)
	return append(out, rest...)
}
