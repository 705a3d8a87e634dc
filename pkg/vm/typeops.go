package vm

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/bytecode"
	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/object"
)

// isArrayDescriptor reports whether a JVM type name (as it appears in a
// CONSTANT_Class entry referenced by checkcast/instanceof) denotes an
// array type rather than a plain class/interface name.
func isArrayDescriptor(name string) bool {
	return len(name) > 0 && name[0] == '['
}

// matchesType reports whether an object whose runtime class/array
// descriptor is className is assignable to targetName, per JVMS §6.5
// checkcast/instanceof. Array-to-array assignability only handles the
// exact-descriptor-match case here: element-covariance for reference
// array types is not exercised by any class this interpreter loads.
func (m *Machine) matchesType(className, targetName string) bool {
	if isArrayDescriptor(targetName) {
		return className == targetName
	}
	if isArrayDescriptor(className) {
		switch targetName {
		case "java/lang/Object", "java/lang/Cloneable", "java/io/Serializable":
			return true
		default:
			return false
		}
	}
	return m.Area.IsInstance(className, targetName)
}

func (m *Machine) execCheckCast(f *Frame, in *bytecode.Instruction) error {
	owner := f.Method.Owner()
	targetName, err := owner.Pool.ClassNameAt(in.ConstRef)
	if err != nil {
		return err
	}
	ref := f.Stack[f.SP-1]
	if uint32(ref) == heap.Null {
		return nil
	}
	inst := m.Heap.Get(uint32(ref)).(*object.Instance)
	if !m.matchesType(inst.ClassName, targetName) {
		return m.throwNew("java/lang/ClassCastException", fmt.Sprintf("class %s cannot be cast to class %s", inst.ClassName, targetName))
	}
	return nil
}

func (m *Machine) execInstanceOf(f *Frame, in *bytecode.Instruction) error {
	owner := f.Method.Owner()
	targetName, err := owner.Pool.ClassNameAt(in.ConstRef)
	if err != nil {
		return err
	}
	ref := f.PopRef()
	if ref == heap.Null {
		f.Push(0)
		return nil
	}
	inst := m.Heap.Get(ref).(*object.Instance)
	result := m.matchesType(inst.ClassName, targetName)
	m.Heap.DecRef(ref)
	if result {
		f.Push(1)
	} else {
		f.Push(0)
	}
	return nil
}
