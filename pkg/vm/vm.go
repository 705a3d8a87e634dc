// Package vm is the interpreter: frame-based bytecode execution, method
// dispatch, exception propagation, and the invokedynamic bootstraps the
// class library relies on.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/daimatz/gojvm/pkg/classarea"
	"github.com/daimatz/gojvm/pkg/descriptor"
	"github.com/daimatz/gojvm/pkg/heap"
	"github.com/daimatz/gojvm/pkg/native"
	"github.com/daimatz/gojvm/pkg/object"
)

// maxFrameDepth bounds recursive interpreted calls, standing in for a
// StackOverflowError.
const maxFrameDepth = 2048

// Machine is the virtual machine: the method area, the object heap, the
// native-method registry, and the call-depth counter that guards against
// runaway recursion.
type Machine struct {
	Area    *classarea.Area
	Heap    *heap.Heap
	Natives *native.Registry
	Stdout  io.Writer

	depth int
}

// New creates a machine backed by loader, writing native println/print
// output to os.Stdout.
func New(loader classarea.ClassLoader) *Machine {
	return &Machine{
		Area:    classarea.NewArea(loader),
		Heap:    heap.New(),
		Natives: native.NewRegistry(),
		Stdout:  os.Stdout,
	}
}

// Execute loads mainClassName, runs its <clinit> if needed, and invokes
// public static void main(String[]).
func (m *Machine) Execute(mainClassName string) error {
	class, err := m.Area.Load(mainClassName)
	if err != nil {
		return err
	}
	if err := class.EnsureInitialized(m.runClinit); err != nil {
		return err
	}
	method := class.FindMethod("main", "([Ljava/lang/String;)V")
	if method == nil {
		return fmt.Errorf("main method not found in %s", mainClassName)
	}
	null := heap.Null
	_, _, err = m.invoke(class, method, []int32{int32(null)}, []bool{true})
	return err
}

func (m *Machine) runClinit(c *classarea.Class, clinit *classarea.Method) error {
	_, _, err := m.invoke(c, clinit, nil, nil)
	return err
}

// nativeContext builds the collaborator surface native methods see,
// closing over this machine's heap and string-conversion helpers.
func (m *Machine) nativeContext() *native.Context {
	return &native.Context{
		Stdout:    m.Stdout,
		Callback:  m.nativeCallback,
		NewString: m.NewString,
		GoString:  m.GoString,
		NewObject: m.newBarePayloadObject,
		GetPayload: func(ref uint32) any {
			return m.Heap.Get(ref).(*object.Instance).Native
		},
		SetPayload: func(ref uint32, payload any) {
			m.Heap.Get(ref).(*object.Instance).Native = payload
		},
	}
}

func (m *Machine) nativeCallback(className, methodName, descr string, args []native.Value) (native.Value, error) {
	class, err := m.Area.Load(className)
	if err != nil {
		return native.Value{}, err
	}
	method := class.FindMethod(methodName, descr)
	if method == nil {
		return native.Value{}, fmt.Errorf("%s.%s%s not found", className, methodName, descr)
	}
	slots, isRef := nativeArgsToSlots(args)
	result, resultIsRef, err := m.invoke(class, method, slots, isRef)
	if err != nil {
		return native.Value{}, err
	}
	return slotsToNativeResult(method.Descriptor, result, resultIsRef), nil
}

// newBarePayloadObject allocates a zero-valued instance of className with
// no declared fields of interest to the interpreter — used by natives
// that back a library class entirely with a Go-side payload
// (StringBuilder, boxed Integer, HashMap).
func (m *Machine) newBarePayloadObject(className string) uint32 {
	inst := object.NewPlain(className, 0)
	return m.Heap.Allocate(inst)
}

// NewString allocates a java/lang/String instance whose native payload
// is the Go string itself — this engine represents String as an opaque
// host value rather than a char[] field, since no bytecode in scope
// inspects a String's internal layout directly.
func (m *Machine) NewString(s string) uint32 {
	inst := object.NewPlain("java/lang/String", 0)
	inst.Native = s
	return m.Heap.Allocate(inst)
}

// GoString returns the Go string behind a String reference. A Null
// reference renders as "null", matching Java's String.valueOf(Object).
func (m *Machine) GoString(ref uint32) string {
	if ref == heap.Null {
		return "null"
	}
	inst := m.Heap.Get(ref).(*object.Instance)
	if s, ok := inst.Native.(string); ok {
		return s
	}
	return inst.ClassName + "@instance"
}

func nativeArgsToSlots(args []native.Value) ([]int32, []bool) {
	slots := make([]int32, 0, len(args)*2)
	isRef := make([]bool, 0, len(args)*2)
	for _, a := range args {
		switch a.Kind {
		case native.KindLong:
			slots = append(slots, int32(uint64(a.I64)>>32), int32(uint64(a.I64)))
			isRef = append(isRef, false, false)
		case native.KindDouble:
			bits := doubleBits(a.F64)
			slots = append(slots, int32(bits>>32), int32(bits))
			isRef = append(isRef, false, false)
		case native.KindFloat:
			slots = append(slots, int32(floatBits(a.F32)))
			isRef = append(isRef, false)
		case native.KindRef:
			slots = append(slots, int32(a.Ref))
			isRef = append(isRef, true)
		default:
			slots = append(slots, a.I32)
			isRef = append(isRef, false)
		}
	}
	return slots, isRef
}

func slotsToNativeResult(desc descriptor.MethodDescriptor, slots []int32, isRef []bool) native.Value {
	if desc.Return == nil {
		return native.Void()
	}
	switch desc.Return.Kind {
	case descriptor.KindLong:
		return native.Long(int64(uint64(uint32(slots[0]))<<32 | uint64(uint32(slots[1]))))
	case descriptor.KindDouble:
		bits := uint64(uint32(slots[0]))<<32 | uint64(uint32(slots[1]))
		return native.Double(doubleFromBits(bits))
	case descriptor.KindFloat:
		return native.Float(floatFromBits(uint32(slots[0])))
	default:
		if isRef[0] {
			return native.Ref(uint32(slots[0]))
		}
		return native.Int(slots[0])
	}
}
