// Package descriptor parses Java field and method descriptors and models
// the field-type atoms they're built from.
package descriptor

import "fmt"

// Kind discriminates the category of a FieldType.
type Kind int

const (
	KindByte Kind = iota
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindBoolean
	KindObject
	KindArray
)

// FieldType is one of the eight primitives, an object type carrying an
// internally-qualified class name, or an array type carrying a boxed
// inner type.
type FieldType struct {
	Kind    Kind
	Class   string     // set when Kind == KindObject
	Elem    *FieldType // set when Kind == KindArray
}

// Width is the slot width of the type: 2 for long/double, 1 otherwise.
func (t FieldType) Width() int {
	if t.Kind == KindLong || t.Kind == KindDouble {
		return 2
	}
	return 1
}

func (t FieldType) String() string {
	switch t.Kind {
	case KindByte:
		return "B"
	case KindChar:
		return "C"
	case KindShort:
		return "S"
	case KindInt:
		return "I"
	case KindLong:
		return "J"
	case KindFloat:
		return "F"
	case KindDouble:
		return "D"
	case KindBoolean:
		return "Z"
	case KindObject:
		return "L" + t.Class + ";"
	case KindArray:
		return "[" + t.Elem.String()
	default:
		return "?"
	}
}

// IsReference reports whether values of this type live in reference slots
// (objects and arrays share refcounting semantics; primitives don't).
func (t FieldType) IsReference() bool {
	return t.Kind == KindObject || t.Kind == KindArray
}

// MethodDescriptor pairs parameter types with an optional return type.
// Return == nil means void.
type MethodDescriptor struct {
	Params     []FieldType
	Return     *FieldType
	ParamSize  int // sum of parameter widths (long/double count 2)
	Raw        string
}

// ParseField parses a single field-type descriptor starting at s[0].
// It returns the parsed type and the number of bytes consumed.
func ParseField(s string) (FieldType, int, error) {
	if len(s) == 0 {
		return FieldType{}, 0, fmt.Errorf("descriptor: empty field type")
	}
	switch s[0] {
	case 'B':
		return FieldType{Kind: KindByte}, 1, nil
	case 'C':
		return FieldType{Kind: KindChar}, 1, nil
	case 'S':
		return FieldType{Kind: KindShort}, 1, nil
	case 'I':
		return FieldType{Kind: KindInt}, 1, nil
	case 'J':
		return FieldType{Kind: KindLong}, 1, nil
	case 'F':
		return FieldType{Kind: KindFloat}, 1, nil
	case 'D':
		return FieldType{Kind: KindDouble}, 1, nil
	case 'Z':
		return FieldType{Kind: KindBoolean}, 1, nil
	case 'L':
		idx := 1
		for idx < len(s) && s[idx] != ';' {
			idx++
		}
		if idx >= len(s) {
			return FieldType{}, 0, fmt.Errorf("descriptor: unterminated class type in %q", s)
		}
		return FieldType{Kind: KindObject, Class: s[1:idx]}, idx + 1, nil
	case '[':
		inner, n, err := ParseField(s[1:])
		if err != nil {
			return FieldType{}, 0, fmt.Errorf("descriptor: array element: %w", err)
		}
		elem := inner
		return FieldType{Kind: KindArray, Elem: &elem}, n + 1, nil
	default:
		return FieldType{}, 0, fmt.Errorf("descriptor: unknown field type tag %q in %q", s[0], s)
	}
}

// ParseMethod parses a method descriptor of the form "(args)ret".
func ParseMethod(s string) (MethodDescriptor, error) {
	if len(s) == 0 || s[0] != '(' {
		return MethodDescriptor{}, fmt.Errorf("descriptor: method descriptor %q missing '('", s)
	}
	i := 1
	var params []FieldType
	size := 0
	for i < len(s) && s[i] != ')' {
		ft, n, err := ParseField(s[i:])
		if err != nil {
			return MethodDescriptor{}, fmt.Errorf("descriptor: parsing parameter: %w", err)
		}
		params = append(params, ft)
		size += ft.Width()
		i += n
	}
	if i >= len(s) {
		return MethodDescriptor{}, fmt.Errorf("descriptor: method descriptor %q missing ')'", s)
	}
	i++ // skip ')'

	var ret *FieldType
	if i < len(s) && s[i] != 'V' {
		ft, _, err := ParseField(s[i:])
		if err != nil {
			return MethodDescriptor{}, fmt.Errorf("descriptor: parsing return type: %w", err)
		}
		ret = &ft
	}

	return MethodDescriptor{Params: params, Return: ret, ParamSize: size, Raw: s}, nil
}

// ArgSlots returns the number of operand-stack slots a call to this
// descriptor consumes for its arguments, optionally including an implicit
// receiver slot for non-static invocations.
func (m MethodDescriptor) ArgSlots(hasReceiver bool) int {
	if hasReceiver {
		return m.ParamSize + 1
	}
	return m.ParamSize
}

// ReturnSlots is how many operand-stack slots the return value occupies.
func (m MethodDescriptor) ReturnSlots() int {
	if m.Return == nil {
		return 0
	}
	return m.Return.Width()
}
