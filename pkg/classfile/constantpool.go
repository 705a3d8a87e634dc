package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// parseRawPool reads constant_pool_count-1 raw entries from r. The
// returned pool is 1-indexed (index 0 is nil); long/double entries consume
// two slots, the second holding a placeholder (JVMS §4.4).
func parseRawPool(r io.Reader, count uint16) (RawPool, error) {
	pool := make(RawPool, count)

	for i := uint16(1); i < count; i++ {
		var tag uint8
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, fmt.Errorf("reading constant pool tag at index %d: %w", i, err)
		}

		e := &RawEntry{Tag: tag}
		switch tag {
		case TagUtf8:
			var length uint16
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				return nil, fmt.Errorf("reading Utf8 length at index %d: %w", i, err)
			}
			raw := make([]byte, length)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, fmt.Errorf("reading Utf8 bytes at index %d: %w", i, err)
			}
			s, err := decodeModifiedUTF8(raw)
			if err != nil {
				return nil, fmt.Errorf("decoding Utf8 at index %d: %w", i, err)
			}
			e.Utf8 = s

		case TagInteger:
			if err := binary.Read(r, binary.BigEndian, &e.Int); err != nil {
				return nil, fmt.Errorf("reading Integer at index %d: %w", i, err)
			}

		case TagFloat:
			var bits uint32
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, fmt.Errorf("reading Float at index %d: %w", i, err)
			}
			e.Float = math.Float32frombits(bits)

		case TagLong:
			if err := binary.Read(r, binary.BigEndian, &e.Long); err != nil {
				return nil, fmt.Errorf("reading Long at index %d: %w", i, err)
			}
			pool[i] = e
			i++
			pool[i] = &RawEntry{Tag: tag, Placeholder: true}
			continue

		case TagDouble:
			var bits uint64
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, fmt.Errorf("reading Double at index %d: %w", i, err)
			}
			e.Double = math.Float64frombits(bits)
			pool[i] = e
			i++
			pool[i] = &RawEntry{Tag: tag, Placeholder: true}
			continue

		case TagClass, TagString, TagMethodType:
			if err := binary.Read(r, binary.BigEndian, &e.Index1); err != nil {
				return nil, fmt.Errorf("reading index at constant pool entry %d: %w", i, err)
			}

		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType:
			if err := binary.Read(r, binary.BigEndian, &e.Index1); err != nil {
				return nil, fmt.Errorf("reading first index at constant pool entry %d: %w", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &e.Index2); err != nil {
				return nil, fmt.Errorf("reading second index at constant pool entry %d: %w", i, err)
			}

		case TagMethodHandle:
			if err := binary.Read(r, binary.BigEndian, &e.RefKind); err != nil {
				return nil, fmt.Errorf("reading MethodHandle reference_kind at index %d: %w", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &e.Index1); err != nil {
				return nil, fmt.Errorf("reading MethodHandle reference_index at index %d: %w", i, err)
			}

		case TagDynamic, TagInvokeDynamic:
			if err := binary.Read(r, binary.BigEndian, &e.BootstrapIndex); err != nil {
				return nil, fmt.Errorf("reading bootstrap_method_attr_index at index %d: %w", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &e.Index2); err != nil {
				return nil, fmt.Errorf("reading name_and_type_index at index %d: %w", i, err)
			}

		default:
			return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
		}

		pool[i] = e
	}

	return pool, nil
}

// --- Cooked form -----------------------------------------------------

// ConstKind discriminates a cooked Constant's payload.
type ConstKind int

const (
	CInteger ConstKind = iota
	CFloat
	CLong
	CDouble
	CUtf8
	CString
	CClass
	CFieldref
	CMethodref
	CInterfaceMethodref
	CNameAndType
	CMethodHandle
	CMethodType
	CInvokeDynamic
	CPlaceholder
)

// MethodHandleKind is one of the nine CONSTANT_MethodHandle reference kinds.
type MethodHandleKind int

const (
	MHGetField MethodHandleKind = iota
	MHGetStatic
	MHPutField
	MHPutStatic
	MHInvokeVirtual
	MHInvokeStatic
	MHInvokeSpecial
	MHNewInvokeSpecial
	MHInvokeInterface
)

// MethodHandle is the cooked, self-contained form of a CONSTANT_MethodHandle.
type MethodHandle struct {
	Kind       MethodHandleKind
	ClassName  string
	Name       string
	Descriptor string
}

// Constant is a self-contained, cooked constant pool entry: every index has
// already been resolved to the data it pointed at.
type Constant struct {
	Kind ConstKind

	Int    int32
	Float  float32
	Long   int64
	Double float64
	Utf8   string

	// CString
	StringValue string

	// CClass
	ClassName string

	// CFieldref / CMethodref / CInterfaceMethodref
	RefClass      string
	RefName       string
	RefFieldType  string // field descriptor, for CFieldref

	// CNameAndType
	NatName string
	NatDesc string

	// CMethodHandle
	Handle MethodHandle

	// CMethodType
	MethodTypeDesc string

	// CInvokeDynamic
	BootstrapIndex uint16
	DynName        string
	DynDescriptor  string
}

// Pool is the cooked, 1-indexed constant pool.
type Pool []*Constant

func (p Pool) get(index uint16) (*Constant, error) {
	if int(index) >= len(p) || p[index] == nil {
		return nil, fmt.Errorf("invalid constant pool index %d", index)
	}
	return p[index], nil
}

// Utf8At returns the UTF-8 string at index.
func (p Pool) Utf8At(index uint16) (string, error) {
	c, err := p.get(index)
	if err != nil {
		return "", err
	}
	if c.Kind != CUtf8 {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (kind=%d)", index, c.Kind)
	}
	return c.Utf8, nil
}

// ClassNameAt returns the internal class name referenced by a CONSTANT_Class.
func (p Pool) ClassNameAt(index uint16) (string, error) {
	c, err := p.get(index)
	if err != nil {
		return "", err
	}
	if c.Kind != CClass {
		return "", fmt.Errorf("constant pool index %d is not Class (kind=%d)", index, c.Kind)
	}
	return c.ClassName, nil
}

// At returns the cooked constant at index, or an error if out of range.
func (p Pool) At(index uint16) (*Constant, error) {
	return p.get(index)
}

// CookPool resolves a class's raw constant pool into its self-contained
// cooked form, for callers outside this package (pkg/classarea links a
// class against the cooked pool, not the raw one).
func CookPool(cf *RawClass) (Pool, error) {
	return cook(cf.Pool)
}

// cook resolves every raw entry into a self-contained Constant.
func cook(raw RawPool) (Pool, error) {
	pool := make(Pool, len(raw))

	utf8At := func(idx uint16) (string, error) {
		if int(idx) >= len(raw) || raw[idx] == nil {
			return "", fmt.Errorf("invalid constant pool index %d", idx)
		}
		if raw[idx].Tag != TagUtf8 {
			return "", fmt.Errorf("constant pool index %d is not Utf8", idx)
		}
		return raw[idx].Utf8, nil
	}

	classNameAt := func(idx uint16) (string, error) {
		if int(idx) >= len(raw) || raw[idx] == nil {
			return "", fmt.Errorf("invalid constant pool index %d", idx)
		}
		if raw[idx].Tag != TagClass {
			return "", fmt.Errorf("constant pool index %d is not Class", idx)
		}
		return utf8At(raw[idx].Index1)
	}

	natAt := func(idx uint16) (name, desc string, err error) {
		if int(idx) >= len(raw) || raw[idx] == nil {
			return "", "", fmt.Errorf("invalid constant pool index %d", idx)
		}
		if raw[idx].Tag != TagNameAndType {
			return "", "", fmt.Errorf("constant pool index %d is not NameAndType", idx)
		}
		name, err = utf8At(raw[idx].Index1)
		if err != nil {
			return "", "", err
		}
		desc, err = utf8At(raw[idx].Index2)
		return name, desc, err
	}

	for i, e := range raw {
		if e == nil {
			continue
		}
		c := &Constant{}
		switch e.Tag {
		case TagInteger:
			c.Kind = CInteger
			c.Int = e.Int
		case TagFloat:
			c.Kind = CFloat
			c.Float = e.Float
		case TagLong:
			c.Kind = CLong
			c.Long = e.Long
		case TagDouble:
			c.Kind = CDouble
			c.Double = e.Double
		case TagUtf8:
			c.Kind = CUtf8
			c.Utf8 = e.Utf8
		case TagClass:
			name, err := utf8At(e.Index1)
			if err != nil {
				return nil, fmt.Errorf("cooking Class at index %d: %w", i, err)
			}
			c.Kind = CClass
			c.ClassName = name
		case TagString:
			s, err := utf8At(e.Index1)
			if err != nil {
				return nil, fmt.Errorf("cooking String at index %d: %w", i, err)
			}
			c.Kind = CString
			c.StringValue = s
		case TagFieldref, TagMethodref, TagInterfaceMethodref:
			cn, err := classNameAt(e.Index1)
			if err != nil {
				return nil, fmt.Errorf("cooking ref at index %d: %w", i, err)
			}
			name, desc, err := natAt(e.Index2)
			if err != nil {
				return nil, fmt.Errorf("cooking ref at index %d: %w", i, err)
			}
			c.RefClass = cn
			c.RefName = name
			c.RefFieldType = desc
			switch e.Tag {
			case TagFieldref:
				c.Kind = CFieldref
			case TagMethodref:
				c.Kind = CMethodref
			case TagInterfaceMethodref:
				c.Kind = CInterfaceMethodref
			}
		case TagNameAndType:
			name, desc, err := natAt(uint16(i))
			if err != nil {
				return nil, fmt.Errorf("cooking NameAndType at index %d: %w", i, err)
			}
			c.Kind = CNameAndType
			c.NatName = name
			c.NatDesc = desc
		case TagMethodHandle:
			mh, err := cookMethodHandle(raw, e)
			if err != nil {
				return nil, fmt.Errorf("cooking MethodHandle at index %d: %w", i, err)
			}
			c.Kind = CMethodHandle
			c.Handle = mh
		case TagMethodType:
			desc, err := utf8At(e.Index1)
			if err != nil {
				return nil, fmt.Errorf("cooking MethodType at index %d: %w", i, err)
			}
			c.Kind = CMethodType
			c.MethodTypeDesc = desc
		case TagDynamic, TagInvokeDynamic:
			name, desc, err := natAt(e.Index2)
			if err != nil {
				return nil, fmt.Errorf("cooking InvokeDynamic at index %d: %w", i, err)
			}
			c.Kind = CInvokeDynamic
			c.BootstrapIndex = e.BootstrapIndex
			c.DynName = name
			c.DynDescriptor = desc
		default:
			if e.Placeholder {
				c.Kind = CPlaceholder
			} else {
				return nil, fmt.Errorf("cooking unknown tag %d at index %d", e.Tag, i)
			}
		}
		pool[i] = c
	}
	return pool, nil
}

func cookMethodHandle(raw RawPool, e *RawEntry) (MethodHandle, error) {
	ref := e.Index1
	if int(ref) >= len(raw) || raw[ref] == nil {
		return MethodHandle{}, fmt.Errorf("invalid MethodHandle reference_index %d", ref)
	}
	referent := raw[ref]

	classAt := func(idx uint16) (string, error) {
		if int(idx) >= len(raw) || raw[idx] == nil || raw[idx].Tag != TagClass {
			return "", fmt.Errorf("invalid class index %d", idx)
		}
		if int(raw[idx].Index1) >= len(raw) || raw[raw[idx].Index1] == nil {
			return "", fmt.Errorf("invalid class name index")
		}
		return raw[raw[idx].Index1].Utf8, nil
	}
	natAt := func(idx uint16) (string, string, error) {
		if int(idx) >= len(raw) || raw[idx] == nil || raw[idx].Tag != TagNameAndType {
			return "", "", fmt.Errorf("invalid name_and_type index %d", idx)
		}
		nameIdx, descIdx := raw[idx].Index1, raw[idx].Index2
		if int(nameIdx) >= len(raw) || raw[nameIdx] == nil || int(descIdx) >= len(raw) || raw[descIdx] == nil {
			return "", "", fmt.Errorf("invalid name_and_type contents")
		}
		return raw[nameIdx].Utf8, raw[descIdx].Utf8, nil
	}

	var className, name, desc string
	var err error
	switch referent.Tag {
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		className, err = classAt(referent.Index1)
		if err != nil {
			return MethodHandle{}, err
		}
		name, desc, err = natAt(referent.Index2)
		if err != nil {
			return MethodHandle{}, err
		}
	default:
		return MethodHandle{}, fmt.Errorf("MethodHandle referent has unexpected tag %d", referent.Tag)
	}

	var kind MethodHandleKind
	switch e.RefKind {
	case RefGetField:
		kind = MHGetField
	case RefGetStatic:
		kind = MHGetStatic
	case RefPutField:
		kind = MHPutField
	case RefPutStatic:
		kind = MHPutStatic
	case RefInvokeVirtual:
		kind = MHInvokeVirtual
	case RefInvokeStatic:
		kind = MHInvokeStatic
	case RefInvokeSpecial:
		kind = MHInvokeSpecial
	case RefNewInvokeSpecial:
		kind = MHNewInvokeSpecial
	case RefInvokeInterface:
		kind = MHInvokeInterface
	default:
		return MethodHandle{}, fmt.Errorf("unknown method handle reference_kind %d", e.RefKind)
	}

	return MethodHandle{Kind: kind, ClassName: className, Name: name, Descriptor: desc}, nil
}
