package vm

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/bytecode"
	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/object"
)

// loadConstant implements ldc/ldc_w/ldc2_w. Strings and Class literals are
// cached on the instruction itself (resolvedCache) so repeated execution
// of the same ldc reuses one heap object rather than allocating a fresh
// one every time — both for the obvious performance reason and because
// Java code that relies on interned string identity (`=="foo"`) expects
// exactly that.
func (m *Machine) loadConstant(f *Frame, in *bytecode.Instruction, c *classfile.Constant) error {
	switch c.Kind {
	case classfile.CInteger:
		f.Push(c.Int)
	case classfile.CFloat:
		f.Push(int32(floatBits(c.Float)))
	case classfile.CLong:
		f.PushLong(c.Long)
	case classfile.CDouble:
		f.PushDouble(doubleBits(c.Double))
	case classfile.CString:
		f.LoadRef(m.cachedConstantRef(in, func() uint32 { return m.NewString(c.StringValue) }), m.Heap)
	case classfile.CClass:
		f.LoadRef(m.cachedConstantRef(in, func() uint32 {
			ref := m.newBarePayloadObject("java/lang/Class")
			m.Heap.Get(ref).(*object.Instance).Native = c.ClassName
			return ref
		}), m.Heap)
	default:
		return fmt.Errorf("ldc of unsupported constant kind %d", c.Kind)
	}
	return nil
}

// cachedConstantRef returns the heap reference cached on in, allocating it
// via make on first use. The cache itself permanently owns one heap
// credit; every load duplicates it with LoadRef.
func (m *Machine) cachedConstantRef(in *bytecode.Instruction, make func() uint32) uint32 {
	if cached := in.Cached(); cached != nil {
		return cached.(uint32)
	}
	ref := make()
	in.SetCached(ref)
	return ref
}
