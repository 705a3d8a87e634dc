// Package object defines the in-heap representation of JVM object and
// array instances: a class-name tag plus a flat field-slot vector, rather
// than the field-name map a naive interpreter would reach for.
package object

import "github.com/daimatz/gojvm/pkg/heap"

// Kind distinguishes an Instance's payload shape.
type Kind int

const (
	KindPlainObject Kind = iota
	KindArray
	KindMethodHandle
)

// Instance is one heap-resident object: every instance field of the
// class and all its superclasses is assigned a single flat slot at class
// layout time (pkg/classarea), so field access at runtime is an index
// into Fields rather than a name lookup chained up a super hierarchy.
//
// A slot holds either a raw int32 (covering int/float/boolean/byte/char/
// short, and the low or high half of a long/double pair) or, when
// IsRef[i] is true, a heap.Null-or-valid object reference.
type Instance struct {
	Kind      Kind
	ClassName string

	Fields []int32
	IsRef  []bool

	// Native holds engine-internal state a native method attached to this
	// object (e.g. a StringBuilder's accumulated buffer), opaque to the
	// interpreter, untouched by field access, and not walked by References.
	Native any

	// ArrayElemIsRef is set for KindArray instances whose element type is
	// a reference type, so Fields is walked as references on free.
	ArrayElemIsRef bool

	// ArrayElemWidth is the number of int32 slots each element of a
	// KindArray instance occupies: 2 for long[]/double[], 1 otherwise.
	// Fields is sized to length*ArrayElemWidth.
	ArrayElemWidth int

	// MethodHandle payload, populated only for KindMethodHandle.
	Handle *BoundHandle
}

// BoundHandle is the runtime form of a method handle synthesized by an
// invokedynamic bootstrap (lambda metafactory or a direct handle
// constant): the target method plus any captured arguments.
type BoundHandle struct {
	OwnerClass string
	Name       string
	Descriptor string
	IsStatic   bool
	IsInterfaceSAM bool

	// Captured holds the values bound into the handle at creation time
	// (the receiver for a bound instance method reference, or lambda
	// captures), stored the same flat int32-slot way as object fields.
	Captured      []int32
	CapturedIsRef []bool
}

// References implements heap.Value: an Instance reports every slot it
// owns that is reference-typed, so the heap can cascade-decref them when
// the instance itself is freed.
func (o *Instance) References() []uint32 {
	var out []uint32
	if o.Kind == KindArray {
		if o.ArrayElemIsRef {
			for _, v := range o.Fields {
				out = append(out, uint32(v))
			}
		}
		return out
	}
	for i, v := range o.Fields {
		if o.IsRef[i] {
			out = append(out, uint32(v))
		}
	}
	if o.Handle != nil {
		for i, v := range o.Handle.Captured {
			if o.Handle.CapturedIsRef[i] {
				out = append(out, uint32(v))
			}
		}
	}
	return out
}

// NewPlain allocates the flat slot vectors for a plain object with n
// total instance-field slots (already summed across the superclass
// chain at class-layout time).
func NewPlain(className string, n int) *Instance {
	return &Instance{
		Kind:      KindPlainObject,
		ClassName: className,
		Fields:    make([]int32, n),
		IsRef:     make([]bool, n),
	}
}

// InitRefDefaults sets every reference-typed slot (per IsRef) to
// heap.Null. Go's zero value for a slot is 0, which is itself a valid
// live heap reference (heap index 0 is allocated like any other), so a
// freshly laid-out object's reference fields must be explicitly
// sentinel-initialized rather than left at Go's zero default — matching
// spec.md's "references default to NULL = u32::MAX" field-default rule.
// Called once IsRef has been populated (by class layout, for instance
// fields, or by the caller, for statics).
func (o *Instance) InitRefDefaults() {
	for i, ref := range o.IsRef {
		if ref {
			null := heap.Null
			o.Fields[i] = int32(null)
		}
	}
}

// NewArray allocates a fixed-length array instance. className is the
// array's JVM type descriptor (e.g. "[I", "[Ljava/lang/String;"). Use
// NewWideArray for long[]/double[], whose elements need two slots each.
func NewArray(className string, length int, elemIsRef bool) *Instance {
	return &Instance{
		Kind:           KindArray,
		ClassName:      className,
		Fields:         make([]int32, length),
		ArrayElemIsRef: elemIsRef,
		ArrayElemWidth: 1,
	}
}

// NewWideArray allocates a long[]/double[] instance, whose elements
// occupy two int32 slots apiece in Fields.
func NewWideArray(className string, length int) *Instance {
	return &Instance{
		Kind:           KindArray,
		ClassName:      className,
		Fields:         make([]int32, length*2),
		ArrayElemWidth: 2,
	}
}

// Length returns an array instance's element count.
func (o *Instance) Length() int {
	if o.ArrayElemWidth == 2 {
		return len(o.Fields) / 2
	}
	return len(o.Fields)
}

// GetField reads slot i as a raw int32 (the low 32 bits of a long/double
// pair, or the whole value for narrower types).
func (o *Instance) GetField(i int) int32 { return o.Fields[i] }

// SetField writes slot i. v is a reference-typed slot's incoming heap
// credit being transferred in (the caller already popped or otherwise
// owns it, per the engine-wide transfer-credit contract — see
// execPutField/execPutStatic); the old value's credit is released.
// Pass h=nil for a slot known not to be reference-typed (the caller
// already checked IsRef).
func (o *Instance) SetField(i int, v int32, h *heap.Heap) {
	isRef := o.Kind == KindArray && o.ArrayElemIsRef || (o.Kind != KindArray && o.IsRef[i])
	if isRef && h != nil {
		old := uint32(o.Fields[i])
		o.Fields[i] = v
		h.DecRef(old)
		return
	}
	o.Fields[i] = v
}

var _ heap.Value = (*Instance)(nil)
