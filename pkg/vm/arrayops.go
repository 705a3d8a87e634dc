package vm

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/bytecode"
	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/object"
)

// execNew implements new: it allocates a zeroed instance with every
// declared (and inherited) instance field slot reserved, but does not run
// any constructor — the invokespecial of <init> that follows in the
// bytecode stream does that.
func (m *Machine) execNew(f *Frame, in *bytecode.Instruction) error {
	owner := f.Method.Owner()
	className, err := owner.Pool.ClassNameAt(in.ConstRef)
	if err != nil {
		return err
	}
	class, err := m.Area.Load(className)
	if err != nil {
		return err
	}
	if err := class.EnsureInitialized(m.runClinit); err != nil {
		return err
	}
	inst := object.NewPlain(className, class.InstanceSlotCount)
	copy(inst.IsRef, class.FieldLayout())
	inst.InitRefDefaults()
	f.PushRef(m.Heap.Allocate(inst))
	return nil
}

// newArrayName renders the JVM array type descriptor for a newarray atype
// code, matching what a real classfile would spell for the same array.
func newArrayName(tag bytecode.ArrayTag) string {
	switch tag {
	case bytecode.ArrayBoolean:
		return "[Z"
	case bytecode.ArrayChar:
		return "[C"
	case bytecode.ArrayFloat:
		return "[F"
	case bytecode.ArrayDouble:
		return "[D"
	case bytecode.ArrayByte:
		return "[B"
	case bytecode.ArrayShort:
		return "[S"
	case bytecode.ArrayInt:
		return "[I"
	case bytecode.ArrayLong:
		return "[J"
	default:
		return "[?"
	}
}

func (m *Machine) execNewArray(f *Frame, in *bytecode.Instruction) {
	length := f.Pop()
	var inst *object.Instance
	if in.ArrTag == bytecode.ArrayLong || in.ArrTag == bytecode.ArrayDouble {
		inst = object.NewWideArray(newArrayName(in.ArrTag), int(length))
	} else {
		inst = object.NewArray(newArrayName(in.ArrTag), int(length), false)
	}
	f.PushRef(m.Heap.Allocate(inst))
}

func (m *Machine) execANewArray(f *Frame, in *bytecode.Instruction) error {
	owner := f.Method.Owner()
	elemClass, err := owner.Pool.ClassNameAt(in.ConstRef)
	if err != nil {
		return err
	}
	length := f.Pop()
	if length < 0 {
		return m.throwNew("java/lang/NegativeArraySizeException", "")
	}
	inst := object.NewArray("[L"+elemClass+";", int(length), true)
	null := heap.Null
	for i := range inst.Fields {
		inst.Fields[i] = int32(null)
	}
	f.PushRef(m.Heap.Allocate(inst))
	return nil
}

// execMultiANewArray builds a multi-dimensional array by recursively
// allocating one dimension at a time; only the first in.Dims array
// lengths come off the stack (trailing dimensions, if any, are left
// uninitialized the way the JVMS allows).
func (m *Machine) execMultiANewArray(f *Frame, in *bytecode.Instruction) error {
	owner := f.Method.Owner()
	arrClassName, err := owner.Pool.ClassNameAt(in.ConstRef)
	if err != nil {
		return err
	}
	counts := make([]int32, in.Dims)
	for i := in.Dims - 1; i >= 0; i-- {
		counts[i] = f.Pop()
	}
	for _, c := range counts {
		if c < 0 {
			return m.throwNew("java/lang/NegativeArraySizeException", "")
		}
	}
	ref, err := m.buildMultiArray(arrClassName, counts)
	if err != nil {
		return err
	}
	f.PushRef(ref)
	return nil
}

func (m *Machine) buildMultiArray(className string, counts []int32) (uint32, error) {
	length := int(counts[0])
	if len(counts) == 1 {
		if className == "[J" || className == "[D" {
			return m.Heap.Allocate(object.NewWideArray(className, length)), nil
		}
		elemIsRef := className[1] == 'L' || className[1] == '['
		inst := object.NewArray(className, length, elemIsRef)
		if elemIsRef {
			null := heap.Null
			for i := range inst.Fields {
				inst.Fields[i] = int32(null)
			}
		}
		return m.Heap.Allocate(inst), nil
	}
	inst := object.NewArray(className, length, true)
	elemClassName := className[1:]
	for i := 0; i < length; i++ {
		ref, err := m.buildMultiArray(elemClassName, counts[1:])
		if err != nil {
			return 0, err
		}
		inst.Fields[i] = int32(ref)
	}
	return m.Heap.Allocate(inst), nil
}

func (m *Machine) execArrayLoad(f *Frame, in *bytecode.Instruction) error {
	index := f.Pop()
	ref := f.PopRef()
	if ref == heap.Null {
		return m.throwNew("java/lang/NullPointerException", "")
	}
	inst := m.Heap.Get(ref).(*object.Instance)
	if index < 0 || int(index) >= inst.Length() {
		m.Heap.DecRef(ref)
		return m.throwNew("java/lang/ArrayIndexOutOfBoundsException", fmt.Sprintf("Index %d out of bounds for length %d", index, inst.Length()))
	}
	switch in.Type {
	case bytecode.VKRef:
		f.LoadRef(uint32(inst.Fields[index]), m.Heap)
	case bytecode.VKLong, bytecode.VKDouble:
		hi, lo := inst.Fields[2*index], inst.Fields[2*index+1]
		f.Push(hi)
		f.Push(lo)
	default:
		f.Push(inst.Fields[index])
	}
	m.Heap.DecRef(ref)
	return nil
}

func (m *Machine) execArrayStore(f *Frame, in *bytecode.Instruction) error {
	var loVal, hiVal int32
	var refVal uint32
	switch in.Type {
	case bytecode.VKRef:
		refVal = f.PopRef()
	case bytecode.VKLong, bytecode.VKDouble:
		loVal = f.Pop() // lo was pushed last (top of stack)
		hiVal = f.Pop()
	default:
		loVal = f.Pop()
	}

	index := f.Pop()
	ref := f.PopRef()
	if ref == heap.Null {
		if in.Type == bytecode.VKRef {
			m.Heap.DecRef(refVal)
		}
		return m.throwNew("java/lang/NullPointerException", "")
	}
	inst := m.Heap.Get(ref).(*object.Instance)
	if index < 0 || int(index) >= inst.Length() {
		if in.Type == bytecode.VKRef {
			m.Heap.DecRef(refVal)
		}
		m.Heap.DecRef(ref)
		return m.throwNew("java/lang/ArrayIndexOutOfBoundsException", fmt.Sprintf("Index %d out of bounds for length %d", index, inst.Length()))
	}
	switch in.Type {
	case bytecode.VKRef:
		old := uint32(inst.Fields[index])
		inst.Fields[index] = int32(refVal)
		m.Heap.DecRef(old)
	case bytecode.VKLong, bytecode.VKDouble:
		inst.Fields[2*index], inst.Fields[2*index+1] = hiVal, loVal
	default:
		inst.Fields[index] = loVal
	}
	m.Heap.DecRef(ref)
	return nil
}
