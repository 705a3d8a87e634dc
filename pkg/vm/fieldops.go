package vm

import (
	"github.com/daimatz/gojvm/pkg/bytecode"
	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/object"
)

func (m *Machine) execGetStatic(f *Frame, in *bytecode.Instruction) error {
	rf, err := m.resolveField(f.Method.Owner(), in.ConstRef, true)
	if err != nil {
		return err
	}
	m.materializeStringConstant(rf)
	slot := rf.field.Slot
	switch {
	case rf.field.IsRef:
		f.LoadRef(uint32(rf.owner.Statics[slot]), m.Heap)
	case rf.field.Type.Width() == 2:
		hi, lo := rf.owner.Statics[slot], rf.owner.Statics[slot+1]
		f.Push(hi)
		f.Push(lo)
	default:
		f.Push(rf.owner.Statics[slot])
	}
	return nil
}

func (m *Machine) execPutStatic(f *Frame, in *bytecode.Instruction) error {
	rf, err := m.resolveField(f.Method.Owner(), in.ConstRef, true)
	if err != nil {
		return err
	}
	slot := rf.field.Slot
	switch {
	case rf.field.IsRef:
		newRef := f.PopRef()
		old := uint32(rf.owner.Statics[slot])
		rf.owner.Statics[slot] = int32(newRef)
		m.Heap.DecRef(old)
	case rf.field.Type.Width() == 2:
		lo := f.Pop()
		hi := f.Pop()
		rf.owner.Statics[slot], rf.owner.Statics[slot+1] = hi, lo
	default:
		rf.owner.Statics[slot] = f.Pop()
	}
	return nil
}

func (m *Machine) execGetField(f *Frame, in *bytecode.Instruction) error {
	rf, err := m.resolveField(f.Method.Owner(), in.ConstRef, false)
	if err != nil {
		return err
	}
	ref := f.PopRef()
	if ref == heap.Null {
		return m.throwNew("java/lang/NullPointerException", "")
	}
	inst := m.Heap.Get(ref).(*object.Instance)
	slot := rf.field.Slot
	switch {
	case rf.field.IsRef:
		f.LoadRef(uint32(inst.Fields[slot]), m.Heap)
	case rf.field.Type.Width() == 2:
		f.Push(inst.Fields[slot])
		f.Push(inst.Fields[slot+1])
	default:
		f.Push(inst.Fields[slot])
	}
	m.Heap.DecRef(ref)
	return nil
}

func (m *Machine) execPutField(f *Frame, in *bytecode.Instruction) error {
	rf, err := m.resolveField(f.Method.Owner(), in.ConstRef, false)
	if err != nil {
		return err
	}
	slot := rf.field.Slot

	var newLo, newHi int32
	var newRef uint32
	switch {
	case rf.field.IsRef:
		newRef = f.PopRef()
	case rf.field.Type.Width() == 2:
		newLo = f.Pop()
		newHi = f.Pop()
	default:
		newLo = f.Pop()
	}

	objRef := f.PopRef()
	if objRef == heap.Null {
		if rf.field.IsRef {
			m.Heap.DecRef(newRef)
		}
		return m.throwNew("java/lang/NullPointerException", "")
	}
	inst := m.Heap.Get(objRef).(*object.Instance)
	switch {
	case rf.field.IsRef:
		old := uint32(inst.Fields[slot])
		inst.Fields[slot] = int32(newRef)
		m.Heap.DecRef(old)
	case rf.field.Type.Width() == 2:
		inst.Fields[slot], inst.Fields[slot+1] = newHi, newLo
	default:
		inst.Fields[slot] = newLo
	}
	m.Heap.DecRef(objRef)
	return nil
}
