package vm

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/classarea"
	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/heap"
)

// resolvedFieldRef is a getfield/putfield/getstatic/putstatic operand
// resolved against the constant pool each time the instruction executes
// (it is not cached on the instruction): the declaring class and the
// Field descriptor together pin down both the storage slot and whether
// it's reference-typed.
type resolvedFieldRef struct {
	owner *classarea.Class
	field *classarea.Field
}

func (m *Machine) resolveField(owner *classarea.Class, constRef uint16, static bool) (*resolvedFieldRef, error) {
	c, err := owner.Pool.At(constRef)
	if err != nil {
		return nil, err
	}
	if c.Kind != classfile.CFieldref {
		return nil, fmt.Errorf("constant pool index %d is not a Fieldref", constRef)
	}
	declClass, err := m.Area.Load(c.RefClass)
	if err != nil {
		return nil, err
	}
	if static {
		if err := declClass.EnsureInitialized(m.runClinit); err != nil {
			return nil, err
		}
		field, actualOwner, ok := declClass.ResolveStaticField(c.RefName)
		if !ok {
			return nil, fmt.Errorf("no such static field %s.%s", c.RefClass, c.RefName)
		}
		return &resolvedFieldRef{owner: actualOwner, field: field}, nil
	}
	field, ok := declClass.FindInstanceField(c.RefName)
	if !ok {
		return nil, fmt.Errorf("no such instance field %s.%s", c.RefClass, c.RefName)
	}
	return &resolvedFieldRef{owner: declClass, field: field}, nil
}

// materializeStringConstant lazily backs a static final String field whose
// ConstantValue attribute pointed at a literal: classarea can't allocate
// the java/lang/String instance itself (it has no heap dependency), so
// the first getstatic of such a field does it here and caches the result
// directly in the class's Statics vector.
func (m *Machine) materializeStringConstant(rf *resolvedFieldRef) {
	if !rf.field.IsRef || !rf.field.HasConstantValue {
		return
	}
	if uint32(rf.owner.Statics[rf.field.Slot]) != heap.Null {
		return // already materialized
	}
	if rf.field.ConstantValue.Kind != classfile.CString {
		return
	}
	ref := m.NewString(rf.field.ConstantValue.StringValue)
	rf.owner.Statics[rf.field.Slot] = int32(ref)
}
