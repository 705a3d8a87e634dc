package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/daimatz/gojvm/pkg/bytecode"
	"github.com/daimatz/gojvm/pkg/classarea"
	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/descriptor"
	"github.com/daimatz/gojvm/pkg/object"
)

// execInvokeDynamic implements invokedynamic against the two bootstrap
// methods javac actually emits for the source-level constructs this
// engine supports: string-template concatenation and lambda/method
// references. Any other bootstrap is reported as unsupported rather than
// silently mishandled.
func (m *Machine) execInvokeDynamic(f *Frame, in *bytecode.Instruction) error {
	owner := f.Method.Owner()
	c, err := owner.Pool.At(in.ConstRef)
	if err != nil {
		return err
	}
	desc, err := descriptor.ParseMethod(c.DynDescriptor)
	if err != nil {
		return err
	}
	args, argIsRef := popArgs(f, desc)

	if int(c.BootstrapIndex) >= len(owner.BootstrapMethods) {
		releaseArgs(m.Heap, args, argIsRef)
		return fmt.Errorf("invokedynamic: bootstrap index %d out of range", c.BootstrapIndex)
	}
	bsm := owner.BootstrapMethods[c.BootstrapIndex]
	handleConst, err := owner.Pool.At(bsm.MethodRefIndex)
	if err != nil {
		releaseArgs(m.Heap, args, argIsRef)
		return err
	}

	switch handleConst.Handle.ClassName {
	case "java/lang/invoke/StringConcatFactory":
		ref, err := m.bootstrapConcat(owner, bsm, handleConst.Handle.Name, desc, args, argIsRef)
		if err != nil {
			return err
		}
		f.PushRef(ref)
		return nil
	case "java/lang/invoke/LambdaMetafactory":
		ref, err := m.bootstrapMetafactory(owner, bsm, desc, args, argIsRef)
		if err != nil {
			return err
		}
		f.PushRef(ref)
		return nil
	default:
		releaseArgs(m.Heap, args, argIsRef)
		return fmt.Errorf("unsupported invokedynamic bootstrap %s.%s", handleConst.Handle.ClassName, handleConst.Handle.Name)
	}
}

// bootstrapConcat renders java.lang.invoke.StringConcatFactory's two
// bootstrap forms: makeConcat (no recipe — every argument is simply
// concatenated) and makeConcatWithConstants (a recipe string using \1 for
// "next dynamic argument" and \2 for "next constant operand", JEP 280).
func (m *Machine) bootstrapConcat(owner *classarea.Class, bsm classfile.RawBootstrapMethod, bootstrapName string, desc descriptor.MethodDescriptor, args []int32, argIsRef []bool) (uint32, error) {
	parts := m.formatConcatArgs(desc, args, argIsRef)

	if bootstrapName == "makeConcat" || len(bsm.Arguments) == 0 {
		var sb strings.Builder
		for _, p := range parts {
			sb.WriteString(p)
		}
		return m.NewString(sb.String()), nil
	}

	recipeConst, err := owner.Pool.At(bsm.Arguments[0])
	if err != nil {
		return 0, err
	}
	var sb strings.Builder
	argIdx, constIdx := 0, 1
	for _, r := range recipeConst.StringValue {
		switch r {
		case 1:
			if argIdx < len(parts) {
				sb.WriteString(parts[argIdx])
				argIdx++
			}
		case 2:
			if constIdx < len(bsm.Arguments) {
				c, err := owner.Pool.At(bsm.Arguments[constIdx])
				if err != nil {
					return 0, err
				}
				sb.WriteString(constantToConcatString(c))
				constIdx++
			}
		default:
			sb.WriteRune(r)
		}
	}
	return m.NewString(sb.String()), nil
}

func constantToConcatString(c *classfile.Constant) string {
	switch c.Kind {
	case classfile.CString:
		return c.StringValue
	case classfile.CInteger:
		return strconv.Itoa(int(c.Int))
	case classfile.CLong:
		return strconv.FormatInt(c.Long, 10)
	case classfile.CFloat:
		return strconv.FormatFloat(float64(c.Float), 'g', -1, 32)
	case classfile.CDouble:
		return strconv.FormatFloat(c.Double, 'g', -1, 64)
	default:
		return ""
	}
}

// formatConcatArgs renders each logical call-site argument (already
// popped into slots) the way String.valueOf would, consuming (and
// releasing) any reference argument's heap credit in the process — the
// formatted text is all that survives past the concatenation.
func (m *Machine) formatConcatArgs(desc descriptor.MethodDescriptor, args []int32, argIsRef []bool) []string {
	out := make([]string, 0, len(desc.Params))
	pos := 0
	for _, p := range desc.Params {
		switch {
		case p.IsReference():
			ref := uint32(args[pos])
			out = append(out, m.GoString(ref))
			m.Heap.DecRef(ref)
			pos++
		case p.Width() == 2:
			hi, lo := args[pos], args[pos+1]
			bits := uint64(uint32(hi))<<32 | uint64(uint32(lo))
			if p.Kind == descriptor.KindDouble {
				out = append(out, strconv.FormatFloat(doubleFromBits(bits), 'g', -1, 64))
			} else {
				out = append(out, strconv.FormatInt(int64(bits), 10))
			}
			pos += 2
		default:
			v := args[pos]
			switch p.Kind {
			case descriptor.KindFloat:
				out = append(out, strconv.FormatFloat(float64(floatFromBits(uint32(v))), 'g', -1, 32))
			case descriptor.KindChar:
				out = append(out, string(rune(uint16(v))))
			case descriptor.KindBoolean:
				out = append(out, strconv.FormatBool(v != 0))
			default:
				out = append(out, strconv.Itoa(int(v)))
			}
			pos++
		}
	}
	return out
}

// bootstrapMetafactory implements the common case of
// java.lang.invoke.LambdaMetafactory.metafactory: it binds implMethod
// (the synthetic lambda body or method reference target) plus whatever
// values were captured at the call site into a BoundHandle instance
// representing the functional interface. The Lookup/invokedName/
// invokedType triple the real JVM also passes is implicit here — only
// the bootstrap's own static arguments (samMethodType, implMethod,
// instantiatedMethodType) are read from the constant pool.
func (m *Machine) bootstrapMetafactory(owner *classarea.Class, bsm classfile.RawBootstrapMethod, desc descriptor.MethodDescriptor, captured []int32, capturedIsRef []bool) (uint32, error) {
	if len(bsm.Arguments) < 2 {
		releaseArgs(m.Heap, captured, capturedIsRef)
		return 0, fmt.Errorf("metafactory: expected at least 2 static arguments, got %d", len(bsm.Arguments))
	}
	implConst, err := owner.Pool.At(bsm.Arguments[1])
	if err != nil {
		releaseArgs(m.Heap, captured, capturedIsRef)
		return 0, err
	}
	if implConst.Kind != classfile.CMethodHandle {
		releaseArgs(m.Heap, captured, capturedIsRef)
		return 0, fmt.Errorf("metafactory: static argument 1 is not a MethodHandle")
	}

	ifaceName := ""
	if desc.Return != nil {
		ifaceName = desc.Return.Class
	}

	inst := &object.Instance{
		Kind:      object.KindMethodHandle,
		ClassName: ifaceName,
		Handle: &object.BoundHandle{
			OwnerClass:    implConst.Handle.ClassName,
			Name:          implConst.Handle.Name,
			Descriptor:    implConst.Handle.Descriptor,
			IsStatic:      implConst.Handle.Kind == classfile.MHInvokeStatic,
			Captured:      captured,
			CapturedIsRef: capturedIsRef,
		},
	}
	return m.Heap.Allocate(inst), nil
}

// invokeBoundHandle runs a lambda/method-reference object's single
// abstract method: the captured values recorded at metafactory time are
// prepended to the call's own arguments, exactly as javac's desugared
// synthetic method expects them.
func (m *Machine) invokeBoundHandle(inst *object.Instance, selfRef uint32, args []int32, argIsRef []bool) ([]int32, []bool, error) {
	h := inst.Handle
	ownerClass, err := m.Area.Load(h.OwnerClass)
	if err != nil {
		m.Heap.DecRef(selfRef)
		releaseArgs(m.Heap, args, argIsRef)
		return nil, nil, err
	}
	method := ownerClass.FindMethod(h.Name, h.Descriptor)
	if method == nil {
		m.Heap.DecRef(selfRef)
		releaseArgs(m.Heap, args, argIsRef)
		return nil, nil, fmt.Errorf("metafactory target %s.%s%s not found", h.OwnerClass, h.Name, h.Descriptor)
	}

	// The handle keeps owning its captured values across every
	// invocation, so each call duplicates their credits rather than
	// transferring them away.
	capturedSlots := make([]int32, len(h.Captured))
	copy(capturedSlots, h.Captured)
	capturedIsRef := make([]bool, len(h.CapturedIsRef))
	copy(capturedIsRef, h.CapturedIsRef)
	for i, isRef := range capturedIsRef {
		if isRef {
			m.Heap.IncRef(uint32(capturedSlots[i]))
		}
	}

	finalArgs := append(capturedSlots, args...)
	finalIsRef := append(capturedIsRef, argIsRef...)
	m.Heap.DecRef(selfRef)
	return m.invoke(ownerClass, method, finalArgs, finalIsRef)
}
