package vm

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/classarea"
	"github.com/daimatz/gojvm/pkg/descriptor"
	"github.com/daimatz/gojvm/pkg/native"
)

// resolveVirtual implements invokevirtual's resolution rule: search
// starting at the receiver's own runtime class (not the compile-time
// reference type), walking up the superclass chain.
func (m *Machine) resolveVirtual(runtimeClassName, name, desc string) (*classarea.Class, *classarea.Method, error) {
	class, err := m.Area.Load(runtimeClassName)
	if err != nil {
		return nil, nil, err
	}
	for cur := class; cur != nil; cur = cur.Super() {
		if method := cur.FindMethod(name, desc); method != nil {
			return cur, method, nil
		}
	}
	return nil, nil, fmt.Errorf("no such method %s.%s%s", runtimeClassName, name, desc)
}

// resolveSpecial implements invokespecial: resolution starts at the
// compile-time referenced class (the one named in the constant pool
// entry), not the receiver's runtime class — used for <init>, private
// methods, and super.method() calls.
func (m *Machine) resolveSpecial(refClassName, name, desc string) (*classarea.Class, *classarea.Method, error) {
	return m.resolveVirtual(refClassName, name, desc)
}

// resolveStatic implements invokestatic: a static method never depends
// on a receiver, so resolution is identical to the special case.
func (m *Machine) resolveStatic(refClassName, name, desc string) (*classarea.Class, *classarea.Method, error) {
	return m.resolveVirtual(refClassName, name, desc)
}

// resolveInterface implements invokeinterface: dispatch still starts at
// the receiver's runtime class; the compile-time interface type only
// decided which name+descriptor to look for.
func (m *Machine) resolveInterface(runtimeClassName, name, desc string) (*classarea.Class, *classarea.Method, error) {
	return m.resolveVirtual(runtimeClassName, name, desc)
}

// invoke runs method with argSlots/argIsRef already laid out as JVM
// locals (receiver first for an instance method, long/double as two
// slots) and already transferred to this call: invoke releases every
// reference-typed argument's credit by the time it returns, the same way
// a JNI local reference is scoped to the call that received it.
//
// It returns the method's result as 0, 1, or 2 slots (2 only for
// long/double), with resultIsRef set for a reference return type.
func (m *Machine) invoke(class *classarea.Class, method *classarea.Method, argSlots []int32, argIsRef []bool) ([]int32, []bool, error) {
	if m.depth >= maxFrameDepth {
		return nil, nil, fmt.Errorf("stack overflow: exceeded max frame depth %d", maxFrameDepth)
	}
	m.depth++
	defer func() { m.depth-- }()

	if err := class.EnsureInitialized(m.runClinit); err != nil {
		return nil, nil, err
	}

	if method.IsNative() {
		return m.invokeNative(class, method, argSlots, argIsRef)
	}

	decoded, err := method.Decode()
	if err != nil {
		return nil, nil, err
	}
	frame := NewFrame(method, decoded)
	copy(frame.Locals, argSlots)
	copy(frame.LocalIsRef, argIsRef)

	result, resultIsRef, runErr := m.runFrame(frame)
	frame.ReleaseLocals(m.Heap)
	if runErr != nil {
		return nil, nil, runErr
	}
	return result, resultIsRef, nil
}

func (m *Machine) invokeNative(class *classarea.Class, method *classarea.Method, argSlots []int32, argIsRef []bool) ([]int32, []bool, error) {
	fn, ok := m.Natives.Lookup(class.Name, method.Name, method.Descriptor.Raw)
	if !ok {
		return nil, nil, native.NotImplemented(class.Name, method.Name, method.Descriptor.Raw)
	}

	var receiver uint32
	rest := argSlots
	restIsRef := argIsRef
	if !method.IsStatic() {
		receiver = uint32(argSlots[0])
		rest = argSlots[1:]
		restIsRef = argIsRef[1:]
	}
	args := slotsToNativeArgs(method.Descriptor.Params, rest, restIsRef)

	// Every transferred reference slot (receiver and args alike) is
	// released once the native call returns, matching a JNI local
	// reference's lifetime: the native either converted it to a
	// non-heap-tracked Go value already (strings, payload fields) or no
	// longer needs it.
	defer func() {
		if !method.IsStatic() {
			m.Heap.DecRef(receiver)
		}
		for i, isRef := range restIsRef {
			if isRef {
				m.Heap.DecRef(uint32(rest[i]))
			}
		}
	}()

	result, callErr := fn(m.nativeContext(), receiver, args)
	if callErr != nil {
		return nil, nil, callErr
	}
	slots, slotIsRef := nativeArgsToSlots([]native.Value{result})
	if result.Kind == native.KindVoid {
		return nil, nil, nil
	}
	return slots, slotIsRef, nil
}

// slotsToNativeArgs converts already-split argument slots into native
// values, one per declared parameter: a reference slot becomes a Ref, a
// long or double parameter's slot pair (high word first) is widened back
// into one Long or Double, and a float slot is reinterpreted as a Float.
func slotsToNativeArgs(params []descriptor.FieldType, slots []int32, isRef []bool) []native.Value {
	var args []native.Value
	i := 0
	for _, p := range params {
		if isRef[i] {
			args = append(args, native.Ref(uint32(slots[i])))
			i++
			continue
		}
		switch p.Kind {
		case descriptor.KindLong:
			args = append(args, native.Long(int64(uint64(uint32(slots[i]))<<32|uint64(uint32(slots[i+1])))))
		case descriptor.KindDouble:
			args = append(args, native.Double(doubleFromBits(uint64(uint32(slots[i]))<<32|uint64(uint32(slots[i+1])))))
		case descriptor.KindFloat:
			args = append(args, native.Float(floatFromBits(uint32(slots[i]))))
		default:
			args = append(args, native.Int(slots[i]))
		}
		i += p.Width()
	}
	return args
}
